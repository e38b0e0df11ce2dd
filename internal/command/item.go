package command

import (
	"fmt"
	"slices"

	"github.com/inamate/sceneedit/internal/factory"
	"github.com/inamate/sceneedit/internal/notify"
	"github.com/inamate/sceneedit/internal/scene"
)

// AddItem creates an entity in the edited container.
type AddItem struct {
	env    Env
	spec   factory.ItemSpec
	id     scene.EntityID
	parent scene.EntityID
}

func NewAddItem(env Env, spec factory.ItemSpec) *AddItem {
	return &AddItem{env: env, spec: spec}
}

func (c *AddItem) Name() string { return "add item" }

// EntityID returns the id of the created entity, zero before the first Do.
func (c *AddItem) EntityID() scene.EntityID { return c.id }

func (c *AddItem) Do() error {
	replay := c.id != 0
	parent := c.parent
	if !replay {
		parent = c.env.view()
	}
	if !c.env.Store.Has(parent) {
		return missing(replay, "parent", parent)
	}

	e := c.env.Factory.CreateItem(c.spec)
	e.ID = c.id
	id, err := c.env.Store.Add(parent, e)
	if err != nil {
		return fmt.Errorf("add item: %w", err)
	}
	c.id = id
	c.parent = parent

	c.env.publish(notify.ItemAdded, id)
	return nil
}

func (c *AddItem) Undo() error {
	if !c.env.Store.Has(c.id) {
		return missing(true, "item", c.id)
	}
	c.env.removeFollower(c.id)
	if err := c.env.Store.Remove(c.id); err != nil {
		return fmt.Errorf("%w: %w", ErrHistoryCorruption, err)
	}
	c.env.Selection.Remove(c.id)

	c.env.publish(notify.ItemRemoved, c.id)
	return nil
}

// MoveItems translates a set of entities within their parents.
type MoveItems struct {
	env     Env
	targets []scene.EntityID
	dx, dy  float64
	done    bool
}

// NewMoveItems moves ids by (dx, dy). With no ids the selection at the time
// of the first Do is used.
func NewMoveItems(env Env, dx, dy float64, ids ...scene.EntityID) *MoveItems {
	return &MoveItems{env: env, dx: dx, dy: dy, targets: slices.Clone(ids)}
}

func (c *MoveItems) Name() string { return "move items" }

func (c *MoveItems) Do() error {
	if !c.done && len(c.targets) == 0 {
		c.targets = c.env.Selection.Items()
	}
	if len(c.targets) == 0 {
		return fmt.Errorf("%w: nothing to move", ErrPrecondition)
	}
	for _, id := range c.targets {
		if !c.env.Store.Has(id) {
			return missing(c.done, "entity", id)
		}
		if id == c.env.Store.Root() {
			return fmt.Errorf("%w: the root cannot be moved", ErrPrecondition)
		}
	}
	if err := c.env.translate(c.targets, c.dx, c.dy); err != nil {
		return err
	}
	c.done = true

	c.env.publish(notify.ItemsMoved, slices.Clone(c.targets))
	return nil
}

func (c *MoveItems) Undo() error {
	for _, id := range c.targets {
		if !c.env.Store.Has(id) {
			return missing(true, "entity", id)
		}
	}
	if err := c.env.translate(c.targets, -c.dx, -c.dy); err != nil {
		return err
	}

	c.env.publish(notify.ItemsMoved, slices.Clone(c.targets))
	return nil
}
