package command

import (
	"errors"
	"fmt"

	"github.com/inamate/sceneedit/internal/factory"
	"github.com/inamate/sceneedit/internal/notify"
	"github.com/inamate/sceneedit/internal/scene"
	"github.com/inamate/sceneedit/internal/selection"
)

var (
	// ErrPrecondition aborts a command before it mutates anything.
	ErrPrecondition = errors.New("precondition violated")
	// ErrHistoryCorruption means a recorded command no longer matches the
	// scene: an entity it refers to is gone.
	ErrHistoryCorruption = errors.New("history corrupted")
	ErrNothingToUndo     = errors.New("nothing to undo")
	ErrNothingToRedo     = errors.New("nothing to redo")
	ErrBusy              = errors.New("another command is executing")
)

// Command is a reversible scene mutation. Undo is only valid right after a
// matching Do; Do may be called again after Undo to redo.
type Command interface {
	Do() error
	Undo() error
	Name() string
}

// Followers removes on-canvas overlays bound to an entity.
type Followers interface {
	RemoveFollower(id scene.EntityID)
}

// Env is the shared editing state a command mutates. Commands hold it by
// value and refer to entities only through ids.
type Env struct {
	Store     *scene.Store
	Selection *selection.Set
	Factory   factory.ItemFactory
	Publisher notify.Publisher
	Followers Followers

	// View returns the container currently being edited. Nil means the root.
	View func() scene.EntityID
}

func (e Env) view() scene.EntityID {
	if e.View == nil {
		return e.Store.Root()
	}
	return e.View()
}

func (e Env) publish(name string, payload any) {
	if e.Publisher == nil {
		return
	}
	e.Publisher.Publish(notify.Event{Name: name, Payload: payload})
}

func (e Env) removeFollower(id scene.EntityID) {
	if e.Followers != nil {
		e.Followers.RemoveFollower(id)
	}
}

// translate moves ids by (dx, dy). Callers check existence first, so a
// failure means the store no longer matches what the command recorded.
func (e Env) translate(ids []scene.EntityID, dx, dy float64) error {
	for _, id := range ids {
		if err := e.Store.Translate(id, dx, dy); err != nil {
			return fmt.Errorf("%w: translate %s: %w", ErrHistoryCorruption, id, err)
		}
	}
	return nil
}

// missing reports a lookup failure: before the first successful Do it is a
// precondition problem, afterwards the history no longer matches the scene.
func missing(replay bool, what string, id scene.EntityID) error {
	if replay {
		return fmt.Errorf("%w: %s %s not found", ErrHistoryCorruption, what, id)
	}
	return fmt.Errorf("%w: %s %s not found", ErrPrecondition, what, id)
}
