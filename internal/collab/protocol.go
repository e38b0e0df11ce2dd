package collab

import (
	"encoding/json"

	"github.com/inamate/sceneedit/internal/factory"
	"github.com/inamate/sceneedit/internal/geom"
	"github.com/inamate/sceneedit/internal/notify"
	"github.com/inamate/sceneedit/internal/scene"
)

type Message struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId,omitempty"`
	ClientID  string          `json:"clientId,omitempty"`
	UserID    string          `json:"userId,omitempty"`
	Seq       int64           `json:"seq,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

type PresencePayload struct {
	Cursor      *geom.Vec2       `json:"cursor,omitempty"`
	Selection   []scene.EntityID `json:"selection,omitempty"`
	ViewID      scene.EntityID   `json:"viewId,omitempty"`
	DisplayName string           `json:"displayName,omitempty"`
}

type PresenceStatePayload struct {
	Presences map[string]*PresencePayload `json:"presences"`
}

type PresenceJoinPayload struct {
	UserID      string `json:"userId"`
	ClientID    string `json:"clientId"`
	DisplayName string `json:"displayName"`
}

type PresenceLeavePayload struct {
	UserID   string `json:"userId"`
	ClientID string `json:"clientId"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

const (
	TypePresenceUpdate = "presence.update"
	TypePresenceState  = "presence.state"
	TypePresenceJoin   = "presence.join"
	TypePresenceLeave  = "presence.leave"
	TypeError          = "error"

	// Connection
	TypeWelcome = "welcome"

	// Scene sync
	TypeSceneSync  = "scene.sync"
	TypeSceneEvent = "scene.event"

	// Command message types
	TypeCmdSubmit = "cmd.submit"
	TypeCmdAck    = "cmd.ack"
	TypeCmdNack   = "cmd.nack"
)

type WelcomePayload struct {
	ClientID  string `json:"clientId"`
	SessionID string `json:"sessionId"`
	ServerSeq int64  `json:"serverSeq"`
}

type SceneSyncPayload struct {
	State     scene.State `json:"state"`
	ServerSeq int64       `json:"serverSeq"`
}

type SceneEventPayload struct {
	Event     notify.Event `json:"event"`
	ServerSeq int64        `json:"serverSeq"`
}

// --- Operations ---

// Operation types a client may submit.
const (
	OpSelect         = "select"
	OpEnterComposite = "composite.enter"
	OpExitComposite  = "composite.exit"
	OpConvert        = "composite.convert"
	OpAddItem        = "item.add"
	OpMoveItems      = "items.move"
	OpMoveVertex     = "vertex.move"
	OpInsertVertex   = "vertex.insert"
	OpUndo           = "history.undo"
	OpRedo           = "history.redo"
)

// Operation is a request to run one editor action. ViewID and IDs, when
// set, replace the session's edited container and selection first, so an
// operation carries everything it targets.
type Operation struct {
	ID        string           `json:"id"`
	Type      string           `json:"type"`
	ClientSeq int64            `json:"clientSeq"`
	ViewID    scene.EntityID   `json:"viewId,omitempty"`
	IDs       []scene.EntityID `json:"ids,omitempty"`

	// For items.move
	DX float64 `json:"dx,omitempty"`
	DY float64 `json:"dy,omitempty"`

	// For vertex.move and vertex.insert
	EntityID scene.EntityID `json:"entityId,omitempty"`
	Index    int            `json:"index,omitempty"`
	Point    *geom.Vec2     `json:"point,omitempty"`

	// For item.add
	Item *factory.ItemSpec `json:"item,omitempty"`
}

// OperationSubmitPayload is the payload for cmd.submit messages
type OperationSubmitPayload struct {
	Operation Operation `json:"operation"`
}

// OperationAckPayload is the payload for cmd.ack messages
type OperationAckPayload struct {
	OperationID string           `json:"operationId"`
	ServerSeq   int64            `json:"serverSeq"`
	EntityID    scene.EntityID   `json:"entityId,omitempty"`
	Selection   []scene.EntityID `json:"selection"`
	ViewID      scene.EntityID   `json:"viewId"`
}

// Nack reasons
const (
	ReasonInvalid      = "invalid"
	ReasonPrecondition = "precondition"
	ReasonCorruption   = "history_corruption"
	ReasonNothingToDo  = "nothing_to_do"
)

// OperationNackPayload is the payload for cmd.nack messages
type OperationNackPayload struct {
	OperationID string `json:"operationId"`
	Reason      string `json:"reason"`
	Message     string `json:"message"`
}

func newMessage(typ string, payload any) *Message {
	data, _ := json.Marshal(payload)
	return &Message{Type: typ, Payload: data}
}
