package command

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/inamate/sceneedit/internal/notify"
	"github.com/inamate/sceneedit/internal/scene"
)

// ConvertToComposite groups the selected entities under a new composite
// placed at their left-bottom point. Children keep their visual position.
type ConvertToComposite struct {
	env Env

	// captured on the first successful Do and reused on redo
	targets        []scene.EntityID
	indices        map[scene.EntityID]int
	entityID       scene.EntityID
	parentEntityID scene.EntityID
}

func NewConvertToComposite(env Env) *ConvertToComposite {
	return &ConvertToComposite{env: env}
}

func (c *ConvertToComposite) Name() string { return "convert to composite" }

// EntityID returns the id of the composite, zero before the first Do.
func (c *ConvertToComposite) EntityID() scene.EntityID { return c.entityID }

// ParentEntityID returns the container the composite was created in.
func (c *ConvertToComposite) ParentEntityID() scene.EntityID { return c.parentEntityID }

func (c *ConvertToComposite) Do() error {
	store := c.env.Store
	replay := c.targets != nil

	targets := c.targets
	parent := c.parentEntityID
	if !replay {
		targets = c.env.Selection.Items()
		if len(targets) == 0 {
			return fmt.Errorf("%w: selection is empty", ErrPrecondition)
		}
		parent = c.env.view()
	}
	if !store.Has(parent) {
		return missing(replay, "parent", parent)
	}

	indices := make(map[scene.EntityID]int, len(targets))
	for _, id := range targets {
		e, ok := store.Get(id)
		if !ok {
			return missing(replay, "entity", id)
		}
		if e.Parent != parent {
			if replay {
				return fmt.Errorf("%w: entity %s moved from %s to %s", ErrHistoryCorruption, id, parent, e.Parent)
			}
			return fmt.Errorf("%w: entity %s is not a child of the edited container %s", ErrPrecondition, id, parent)
		}
		idx, err := store.IndexOf(id)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrPrecondition, err)
		}
		indices[id] = idx
	}
	if !replay {
		// children of the composite follow their order in the old parent
		targets = slices.Clone(targets)
		slices.SortFunc(targets, func(a, b scene.EntityID) int { return cmp.Compare(indices[a], indices[b]) })
	}

	position := store.LeftBottomPoint(targets)

	composite := c.env.Factory.CreateComposite(position)
	composite.ID = c.entityID
	id, err := store.Add(parent, composite)
	if err != nil {
		return fmt.Errorf("add composite: %w", err)
	}

	if err := store.ChangeParent(targets, id); err != nil {
		_ = store.Remove(id)
		return fmt.Errorf("reparent into composite: %w", err)
	}
	if err := c.env.translate(targets, -position.X, -position.Y); err != nil {
		return err
	}

	size := store.RightTopPoint(targets)
	composite.Dimensions = scene.Dimensions{Width: size.X, Height: size.Y}

	c.targets = targets
	c.indices = indices
	c.entityID = id
	c.parentEntityID = parent

	c.env.Selection.Set(id)

	c.env.publish(notify.CompositeDone, id)
	c.env.publish(notify.ItemAdded, id)
	return nil
}

func (c *ConvertToComposite) Undo() error {
	store := c.env.Store

	composite, ok := store.Get(c.entityID)
	if !ok {
		return missing(true, "composite", c.entityID)
	}
	if !store.Has(c.parentEntityID) {
		return missing(true, "parent", c.parentEntityID)
	}

	positionDiff := composite.Transform.Position()

	children := store.Children(c.entityID)
	slices.SortStableFunc(children, func(a, b scene.EntityID) int {
		return cmp.Compare(c.restoreIndex(a), c.restoreIndex(b))
	})
	for _, child := range children {
		idx, known := c.indices[child]
		if !known {
			idx = -1
		}
		if err := store.MoveChild(child, c.parentEntityID, idx); err != nil {
			return fmt.Errorf("%w: restore %s: %w", ErrHistoryCorruption, child, err)
		}
	}
	if err := c.env.translate(children, positionDiff.X, positionDiff.Y); err != nil {
		return err
	}

	c.env.removeFollower(c.entityID)
	if err := store.Remove(c.entityID); err != nil {
		return fmt.Errorf("%w: remove composite: %w", ErrHistoryCorruption, err)
	}
	c.env.Selection.Remove(c.entityID)

	c.env.publish(notify.CompositeDone, c.entityID)
	return nil
}

// restoreIndex orders known children by their original slot and puts
// children added later at the end.
func (c *ConvertToComposite) restoreIndex(id scene.EntityID) int {
	if idx, ok := c.indices[id]; ok {
		return idx
	}
	return math.MaxInt
}
