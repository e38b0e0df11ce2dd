package collab

import (
	"encoding/json"
	"log/slog"
	"maps"
	"slices"

	"github.com/inamate/sceneedit/internal/scene"
)

// PresenceManager tracks the cursor, selection and edited container of each
// connected client. It is owned by the session's hub goroutine.
type PresenceManager struct {
	presences map[string]*PresencePayload // clientID -> presence
}

func NewPresenceManager() *PresenceManager {
	return &PresenceManager{
		presences: make(map[string]*PresencePayload),
	}
}

// Update stores a copy of p for clientID.
func (pm *PresenceManager) Update(clientID string, p *PresencePayload) {
	c := *p
	c.Selection = slices.Clone(p.Selection)
	pm.presences[clientID] = &c
}

func (pm *PresenceManager) Get(clientID string) (*PresencePayload, bool) {
	p, ok := pm.presences[clientID]
	return p, ok
}

func (pm *PresenceManager) Remove(clientID string) {
	delete(pm.presences, clientID)
}

func (pm *PresenceManager) GetAll() map[string]*PresencePayload {
	return maps.Clone(pm.presences)
}

// Prune drops references to entities for which exists is false: missing ids
// leave the selection and a missing view falls back to none. It returns the
// sorted ids of the clients whose presence changed.
func (pm *PresenceManager) Prune(exists func(scene.EntityID) bool) []string {
	var changed []string
	for clientID, p := range pm.presences {
		before := len(p.Selection)
		p.Selection = slices.DeleteFunc(p.Selection, func(id scene.EntityID) bool { return !exists(id) })
		touched := len(p.Selection) != before
		if p.ViewID != 0 && !exists(p.ViewID) {
			p.ViewID = 0
			touched = true
		}
		if touched {
			changed = append(changed, clientID)
		}
	}
	slices.Sort(changed)
	return changed
}

func (pm *PresenceManager) StateMessage() *Message {
	payload, err := json.Marshal(PresenceStatePayload{Presences: pm.GetAll()})
	if err != nil {
		slog.Error("marshal presence state", "error", err)
		return nil
	}
	return &Message{
		Type:    TypePresenceState,
		Payload: payload,
	}
}
