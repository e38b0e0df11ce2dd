package collab

import (
	"errors"
	"fmt"

	"github.com/inamate/sceneedit/internal/command"
	"github.com/inamate/sceneedit/internal/engine"
	"github.com/inamate/sceneedit/internal/notify"
	"github.com/inamate/sceneedit/internal/scene"
)

var errInvalidOperation = errors.New("invalid operation")

// Session is one shared scene with its connected clients. It is owned by
// the hub goroutine; nothing in it is touched concurrently.
type Session struct {
	id        string
	engine    *engine.Engine
	clients   map[string]*Client // clientID -> client
	presence  *PresenceManager
	serverSeq int64
	dirty     bool

	unsubscribe func()
}

func newSession(id string, eng *engine.Engine) *Session {
	s := &Session{
		id:       id,
		engine:   eng,
		clients:  make(map[string]*Client),
		presence: NewPresenceManager(),
	}
	s.unsubscribe = eng.Bus().SubscribeAll(func(ev notify.Event) {
		s.broadcast(newMessage(TypeSceneEvent, SceneEventPayload{Event: ev, ServerSeq: s.serverSeq + 1}), "")
	})
	return s
}

// Apply runs op against the session's engine. It returns the entity the
// operation created, if any. A rejected operation leaves the shared view and
// selection as they were before it.
func (s *Session) Apply(op Operation) (scene.EntityID, error) {
	view, selected := s.engine.ViewID(), s.engine.Selection()
	created, err := s.apply(op)
	if err != nil {
		s.engine.RestoreContext(view, selected)
	}
	return created, err
}

func (s *Session) apply(op Operation) (scene.EntityID, error) {
	eng := s.engine

	if op.ViewID != 0 && op.ViewID != eng.ViewID() {
		if err := eng.EnterComposite(op.ViewID); err != nil {
			return 0, fmt.Errorf("%w: %w", errInvalidOperation, err)
		}
	}
	if len(op.IDs) > 0 && op.Type != OpSelect {
		if err := eng.Select(op.IDs...); err != nil {
			return 0, fmt.Errorf("%w: %w", errInvalidOperation, err)
		}
	}

	var (
		created scene.EntityID
		err     error
		mutates = true
	)
	switch op.Type {
	case OpSelect:
		mutates = false
		err = eng.Select(op.IDs...)
	case OpEnterComposite:
		mutates = false
		err = eng.EnterComposite(op.EntityID)
	case OpExitComposite:
		mutates = false
		err = eng.ExitComposite()
	case OpConvert:
		created, err = eng.ConvertToComposite()
	case OpAddItem:
		if op.Item == nil {
			return 0, fmt.Errorf("%w: item.add without item", errInvalidOperation)
		}
		created, err = eng.AddItem(*op.Item)
	case OpMoveItems:
		err = eng.MoveSelection(op.DX, op.DY)
	case OpMoveVertex:
		if op.Point == nil {
			return 0, fmt.Errorf("%w: vertex.move without point", errInvalidOperation)
		}
		err = eng.MoveVertex(op.EntityID, op.Index, *op.Point)
	case OpInsertVertex:
		if op.Point == nil {
			return 0, fmt.Errorf("%w: vertex.insert without point", errInvalidOperation)
		}
		err = eng.InsertVertex(op.EntityID, op.Index, *op.Point)
	case OpUndo:
		err = eng.Undo()
	case OpRedo:
		err = eng.Redo()
	default:
		return 0, fmt.Errorf("%w: unknown type %q", errInvalidOperation, op.Type)
	}
	if err != nil {
		if !mutates {
			err = fmt.Errorf("%w: %w", errInvalidOperation, err)
		}
		return 0, err
	}
	if mutates {
		s.dirty = true
	}
	return created, nil
}

// nackReason maps an Apply error to the reason sent to the client.
func nackReason(err error) string {
	switch {
	case errors.Is(err, command.ErrPrecondition):
		return ReasonPrecondition
	case errors.Is(err, command.ErrHistoryCorruption):
		return ReasonCorruption
	case errors.Is(err, command.ErrNothingToUndo), errors.Is(err, command.ErrNothingToRedo):
		return ReasonNothingToDo
	default:
		return ReasonInvalid
	}
}

func (s *Session) broadcast(msg *Message, excludeClientID string) {
	msg.SessionID = s.id
	for id, c := range s.clients {
		if id != excludeClientID {
			c.Send(msg)
		}
	}
}

// prunePresence drops references to entities the last operation removed and
// rebroadcasts the presences that changed.
func (s *Session) prunePresence() {
	for _, clientID := range s.presence.Prune(s.engine.Exists) {
		p, _ := s.presence.Get(clientID)
		msg := newMessage(TypePresenceUpdate, p)
		msg.ClientID = clientID
		if c, ok := s.clients[clientID]; ok {
			msg.UserID = c.UserID
		}
		s.broadcast(msg, "")
	}
}

func (s *Session) syncMessage() *Message {
	return newMessage(TypeSceneSync, SceneSyncPayload{State: s.engine.State(), ServerSeq: s.serverSeq})
}
