package command

import (
	"fmt"
	"slices"

	"github.com/inamate/sceneedit/internal/geom"
	"github.com/inamate/sceneedit/internal/notify"
	"github.com/inamate/sceneedit/internal/scene"
)

// MeshChange is the payload of notify.MeshChanged.
type MeshChange struct {
	EntityID scene.EntityID `json:"entityId"`
}

func (e Env) meshOf(replay bool, id scene.EntityID) (*scene.Mesh, error) {
	ent, ok := e.Store.Get(id)
	if !ok {
		return nil, missing(replay, "entity", id)
	}
	if ent.Mesh.Empty() {
		if replay {
			return nil, fmt.Errorf("%w: entity %s lost its mesh", ErrHistoryCorruption, id)
		}
		return nil, fmt.Errorf("%w: entity %s has no mesh", ErrPrecondition, id)
	}
	return ent.Mesh, nil
}

// MoveVertex commits an anchor drag: every occurrence of the point at Index
// in the deduplicated vertex list takes the value To.
type MoveVertex struct {
	env      Env
	entityID scene.EntityID
	index    int
	to       geom.Vec2

	from geom.Vec2
	refs []scene.VertexRef
	done bool
}

func NewMoveVertex(env Env, entityID scene.EntityID, index int, to geom.Vec2) *MoveVertex {
	return &MoveVertex{env: env, entityID: entityID, index: index, to: to}
}

func (c *MoveVertex) Name() string { return "move vertex" }

func (c *MoveVertex) Do() error {
	mesh, err := c.env.meshOf(c.done, c.entityID)
	if err != nil {
		return err
	}
	points := mesh.UniquePoints()
	if c.index < 0 || c.index >= len(points) {
		if c.done {
			return fmt.Errorf("%w: vertex %d of %s is gone", ErrHistoryCorruption, c.index, c.entityID)
		}
		return fmt.Errorf("%w: vertex %d out of range [0, %d)", ErrPrecondition, c.index, len(points))
	}

	from := points[c.index]
	refs := mesh.Occurrences(from)
	for _, r := range refs {
		mesh.Polygons[r.Polygon][r.Index] = c.to
	}
	c.from = from
	c.refs = refs
	c.done = true

	c.env.publish(notify.MeshChanged, MeshChange{EntityID: c.entityID})
	return nil
}

func (c *MoveVertex) Undo() error {
	mesh, err := c.env.meshOf(true, c.entityID)
	if err != nil {
		return err
	}
	for _, r := range c.refs {
		if r.Polygon >= len(mesh.Polygons) || r.Index >= len(mesh.Polygons[r.Polygon]) {
			return fmt.Errorf("%w: vertex %+v of %s is gone", ErrHistoryCorruption, r, c.entityID)
		}
	}
	for _, r := range c.refs {
		mesh.Polygons[r.Polygon][r.Index] = c.from
	}

	c.env.publish(notify.MeshChanged, MeshChange{EntityID: c.entityID})
	return nil
}

// InsertVertex commits an edge click: a new point is inserted on the edge
// LineIndex of the deduplicated vertex loop. Edge i > 0 joins points i-1
// and i; edge 0 is the closing edge from the last point to the first.
type InsertVertex struct {
	env       Env
	entityID  scene.EntityID
	lineIndex int
	point     geom.Vec2

	at   scene.VertexRef
	done bool
}

func NewInsertVertex(env Env, entityID scene.EntityID, lineIndex int, point geom.Vec2) *InsertVertex {
	return &InsertVertex{env: env, entityID: entityID, lineIndex: lineIndex, point: point}
}

func (c *InsertVertex) Name() string { return "insert vertex" }

func (c *InsertVertex) Do() error {
	mesh, err := c.env.meshOf(c.done, c.entityID)
	if err != nil {
		return err
	}
	points := mesh.UniquePoints()
	n := len(points)
	if c.lineIndex < 0 || c.lineIndex >= n {
		if c.done {
			return fmt.Errorf("%w: edge %d of %s is gone", ErrHistoryCorruption, c.lineIndex, c.entityID)
		}
		return fmt.Errorf("%w: edge %d out of range [0, %d)", ErrPrecondition, c.lineIndex, n)
	}

	a, b := points[n-1], points[0]
	if c.lineIndex > 0 {
		a, b = points[c.lineIndex-1], points[c.lineIndex]
	}
	at, ok := mesh.EdgeInsertion(a, b)
	if !ok {
		return fmt.Errorf("%w: edge %d has no owning polygon", ErrPrecondition, c.lineIndex)
	}
	mesh.Polygons[at.Polygon] = slices.Insert(mesh.Polygons[at.Polygon], at.Index, c.point)
	c.at = at
	c.done = true

	c.env.publish(notify.MeshChanged, MeshChange{EntityID: c.entityID})
	return nil
}

func (c *InsertVertex) Undo() error {
	mesh, err := c.env.meshOf(true, c.entityID)
	if err != nil {
		return err
	}
	at := c.at
	if at.Polygon >= len(mesh.Polygons) || at.Index >= len(mesh.Polygons[at.Polygon]) ||
		mesh.Polygons[at.Polygon][at.Index] != c.point {
		return fmt.Errorf("%w: inserted vertex of %s is gone", ErrHistoryCorruption, c.entityID)
	}
	mesh.Polygons[at.Polygon] = slices.Delete(mesh.Polygons[at.Polygon], at.Index, at.Index+1)

	c.env.publish(notify.MeshChanged, MeshChange{EntityID: c.entityID})
	return nil
}
