package notify

import (
	"log/slog"
	"sync"
)

// Event names published by editor commands.
const (
	CompositeDone = "composite.convert.done"
	ItemAdded     = "item.added"
	ItemRemoved   = "item.removed"
	ItemsMoved    = "items.moved"
	MeshChanged   = "mesh.changed"
	HistoryUndone = "history.undone"
	HistoryRedone = "history.redone"
)

// Event is a named, fire-and-forget notification.
type Event struct {
	Name    string `json:"name"`
	Payload any    `json:"payload,omitempty"`
}

// Publisher is what commands need to announce changes. Publishing never
// fails from the caller's point of view.
type Publisher interface {
	Publish(ev Event)
}

type Handler func(ev Event)

type subscription struct {
	id      int
	name    string // empty matches every event
	handler Handler
}

// Bus delivers events synchronously to subscribers. A panicking subscriber
// is logged and skipped; it never reaches the publisher.
type Bus struct {
	mu     sync.RWMutex
	subs   []subscription
	nextID int
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers h for events called name and returns a func that
// removes the subscription.
func (b *Bus) Subscribe(name string, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, name: name, handler: h})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// SubscribeAll registers h for every event.
func (b *Bus) SubscribeAll(h Handler) func() {
	return b.Subscribe("", h)
}

func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	targets := make([]Handler, 0, len(b.subs))
	for _, s := range b.subs {
		if s.name == "" || s.name == ev.Name {
			targets = append(targets, s.handler)
		}
	}
	b.mu.RUnlock()

	for _, h := range targets {
		deliver(h, ev)
	}
}

func deliver(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("notification observer failed", "event", ev.Name, "panic", r)
		}
	}()
	h(ev)
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(Event) {}
