package scene

import (
	"fmt"
	"math"
	"slices"

	"github.com/inamate/sceneedit/internal/geom"
)

// LeftBottomPoint returns the minimum (x, y) corner over the local positions
// of ids. Unknown ids are skipped; an empty set yields the origin.
func (s *Store) LeftBottomPoint(ids []EntityID) geom.Vec2 {
	p := geom.Vec2{X: math.Inf(1), Y: math.Inf(1)}
	found := false
	for _, id := range ids {
		e, ok := s.entities[id]
		if !ok {
			continue
		}
		found = true
		p.X = min(p.X, e.Transform.X)
		p.Y = min(p.Y, e.Transform.Y)
	}
	if !found {
		return geom.Vec2{}
	}
	return p
}

// RightTopPoint returns the maximum (x, y) corner over the local positions of
// ids. Unknown ids are skipped; an empty set yields the origin.
func (s *Store) RightTopPoint(ids []EntityID) geom.Vec2 {
	p := geom.Vec2{X: math.Inf(-1), Y: math.Inf(-1)}
	found := false
	for _, id := range ids {
		e, ok := s.entities[id]
		if !ok {
			continue
		}
		found = true
		p.X = max(p.X, e.Transform.X)
		p.Y = max(p.Y, e.Transform.Y)
	}
	if !found {
		return geom.Vec2{}
	}
	return p
}

// Position returns the local position of id.
func (s *Store) Position(id EntityID) (geom.Vec2, error) {
	e, ok := s.entities[id]
	if !ok {
		return geom.Vec2{}, fmt.Errorf("entity %s: %w", id, ErrNotFound)
	}
	return e.Transform.Position(), nil
}

// Translate moves id by (dx, dy) in its parent's frame.
func (s *Store) Translate(id EntityID, dx, dy float64) error {
	e, ok := s.entities[id]
	if !ok {
		return fmt.Errorf("entity %s: %w", id, ErrNotFound)
	}
	e.Transform.X += dx
	e.Transform.Y += dy
	return nil
}

// IndexOf returns the position of id among its parent's children.
func (s *Store) IndexOf(id EntityID) (int, error) {
	e, ok := s.entities[id]
	if !ok {
		return -1, fmt.Errorf("entity %s: %w", id, ErrNotFound)
	}
	parent, ok := s.entities[e.Parent]
	if !ok {
		return -1, fmt.Errorf("entity %s: %w", id, ErrHasNoParent)
	}
	return slices.Index(parent.Children, id), nil
}

// IsAncestor reports whether candidate is id itself or one of its ancestors.
func (s *Store) IsAncestor(candidate, id EntityID) bool {
	for cur := id; cur != 0; {
		if cur == candidate {
			return true
		}
		e, ok := s.entities[cur]
		if !ok {
			return false
		}
		cur = e.Parent
	}
	return false
}

// WorldTransform composes the local transforms from the root down to id.
func (s *Store) WorldTransform(id EntityID) (geom.Matrix2D, error) {
	e, ok := s.entities[id]
	if !ok {
		return geom.Identity(), fmt.Errorf("entity %s: %w", id, ErrNotFound)
	}
	m := e.Transform.Matrix()
	for p := e.Parent; p != 0; {
		pe, ok := s.entities[p]
		if !ok {
			break
		}
		m = pe.Transform.Matrix().Multiply(m)
		p = pe.Parent
	}
	return m, nil
}

// ChangeParent moves ids under parent atomically: either every id is moved or
// the store is left untouched. Moved ids are appended in the given order and
// the remaining siblings in the old parents keep their relative order.
func (s *Store) ChangeParent(ids []EntityID, parent EntityID) error {
	p, ok := s.entities[parent]
	if !ok {
		return fmt.Errorf("parent %s: %w", parent, ErrNotFound)
	}
	if !p.IsComposite() {
		return fmt.Errorf("parent %s: %w", parent, ErrNotComposite)
	}
	for _, id := range ids {
		if _, ok := s.entities[id]; !ok {
			return fmt.Errorf("entity %s: %w", id, ErrNotFound)
		}
		if id == s.root {
			return ErrRoot
		}
		if s.IsAncestor(id, parent) {
			return fmt.Errorf("move %s under %s: %w", id, parent, ErrCycle)
		}
	}

	seen := make(map[EntityID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		e := s.entities[id]
		s.detach(e)
		e.Parent = parent
		p.Children = append(p.Children, id)
	}
	return nil
}

// MoveChild moves id under parent at index. A negative or out of range
// index appends.
func (s *Store) MoveChild(id, parent EntityID, index int) error {
	e, ok := s.entities[id]
	if !ok {
		return fmt.Errorf("entity %s: %w", id, ErrNotFound)
	}
	p, ok := s.entities[parent]
	if !ok {
		return fmt.Errorf("parent %s: %w", parent, ErrNotFound)
	}
	if !p.IsComposite() {
		return fmt.Errorf("parent %s: %w", parent, ErrNotComposite)
	}
	if id == s.root {
		return ErrRoot
	}
	if s.IsAncestor(id, parent) {
		return fmt.Errorf("move %s under %s: %w", id, parent, ErrCycle)
	}

	s.detach(e)
	e.Parent = parent
	p.Children = insertAt(p.Children, id, index)
	return nil
}
