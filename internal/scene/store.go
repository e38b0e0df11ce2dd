package scene

import (
	"errors"
	"fmt"
	"slices"
)

var (
	ErrNotFound     = errors.New("entity not found")
	ErrExists       = errors.New("entity already exists")
	ErrNotComposite = errors.New("entity is not a composite")
	ErrCycle        = errors.New("reparent would create a cycle")
	ErrHasNoParent  = errors.New("entity has no parent")
	ErrRoot         = errors.New("root entity cannot be modified")
)

// Store holds every entity of a scene, keyed by stable id.
// It is not safe for concurrent use; callers serialize access.
type Store struct {
	entities map[EntityID]*Entity
	root     EntityID
	next     EntityID
}

// NewStore creates a store containing only the root composite.
func NewStore() *Store {
	s := &Store{
		entities: make(map[EntityID]*Entity),
		next:     1,
	}
	root := &Entity{
		Kind:      KindComposite,
		Name:      "root",
		Children:  []EntityID{},
		Transform: Transform{ScaleX: 1, ScaleY: 1},
	}
	s.root = s.allocate(root)
	s.entities[root.ID] = root
	return s
}

// Root returns the id of the root composite.
func (s *Store) Root() EntityID {
	return s.root
}

// Get returns the live entity for id. Callers must not keep the pointer
// beyond the current operation.
func (s *Store) Get(id EntityID) (*Entity, bool) {
	e, ok := s.entities[id]
	return e, ok
}

// Has reports whether id is registered.
func (s *Store) Has(id EntityID) bool {
	_, ok := s.entities[id]
	return ok
}

// Len returns the number of registered entities, root included.
func (s *Store) Len() int {
	return len(s.entities)
}

// IDs returns every registered id in ascending order.
func (s *Store) IDs() []EntityID {
	ids := make([]EntityID, 0, len(s.entities))
	for id := range s.entities {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Children returns a copy of the ordered children of id.
func (s *Store) Children(id EntityID) []EntityID {
	e, ok := s.entities[id]
	if !ok {
		return nil
	}
	return slices.Clone(e.Children)
}

func (s *Store) allocate(e *Entity) EntityID {
	if e.ID == 0 {
		e.ID = s.next
	}
	if e.ID >= s.next {
		s.next = e.ID + 1
	}
	return e.ID
}

// Add registers e as the last child of parent. A zero e.ID is replaced by a
// freshly allocated id; a preset id is kept, which lets undone creations come
// back under the same identity.
func (s *Store) Add(parent EntityID, e *Entity) (EntityID, error) {
	return s.AddAt(parent, e, -1)
}

// AddAt registers e as a child of parent at index. A negative or out of
// range index appends.
func (s *Store) AddAt(parent EntityID, e *Entity, index int) (EntityID, error) {
	p, ok := s.entities[parent]
	if !ok {
		return 0, fmt.Errorf("parent %s: %w", parent, ErrNotFound)
	}
	if !p.IsComposite() {
		return 0, fmt.Errorf("parent %s: %w", parent, ErrNotComposite)
	}
	if e.ID != 0 {
		if _, exists := s.entities[e.ID]; exists {
			return 0, fmt.Errorf("entity %s: %w", e.ID, ErrExists)
		}
	}

	id := s.allocate(e)
	e.Parent = parent
	if e.Children == nil {
		e.Children = []EntityID{}
	}
	s.entities[id] = e
	p.Children = insertAt(p.Children, id, index)
	return id, nil
}

// Remove detaches id from its parent and deletes it together with its
// descendants.
func (s *Store) Remove(id EntityID) error {
	e, ok := s.entities[id]
	if !ok {
		return fmt.Errorf("entity %s: %w", id, ErrNotFound)
	}
	if id == s.root {
		return ErrRoot
	}
	s.detach(e)
	s.deleteSubtree(e)
	return nil
}

func (s *Store) deleteSubtree(e *Entity) {
	for _, childID := range e.Children {
		if child, ok := s.entities[childID]; ok {
			s.deleteSubtree(child)
		}
	}
	delete(s.entities, e.ID)
}

// detach removes e from its parent's children, keeping sibling order.
func (s *Store) detach(e *Entity) {
	if e.Parent == 0 {
		return
	}
	if parent, ok := s.entities[e.Parent]; ok {
		parent.Children = slices.DeleteFunc(parent.Children, func(c EntityID) bool { return c == e.ID })
	}
	e.Parent = 0
}

// SetMesh replaces the mesh component of id with a copy of m.
func (s *Store) SetMesh(id EntityID, m *Mesh) error {
	e, ok := s.entities[id]
	if !ok {
		return fmt.Errorf("entity %s: %w", id, ErrNotFound)
	}
	e.Mesh = m.Clone()
	return nil
}

// State returns a deep, id-ordered copy of the store.
func (s *Store) State() State {
	st := State{Root: s.root, NextID: s.next, Entities: make([]Entity, 0, len(s.entities))}
	for _, id := range s.IDs() {
		st.Entities = append(st.Entities, *s.entities[id].Clone())
	}
	return st
}

// Restore replaces the store contents with st.
func (s *Store) Restore(st State) error {
	entities := make(map[EntityID]*Entity, len(st.Entities))
	next := st.NextID
	for i := range st.Entities {
		e := st.Entities[i].Clone()
		if !e.ID.Valid() {
			return fmt.Errorf("restore: invalid entity id %d", e.ID)
		}
		if _, dup := entities[e.ID]; dup {
			return fmt.Errorf("restore: entity %s: %w", e.ID, ErrExists)
		}
		entities[e.ID] = e
		if e.ID >= next {
			next = e.ID + 1
		}
	}
	root, ok := entities[st.Root]
	if !ok || !root.IsComposite() {
		return fmt.Errorf("restore: root %s: %w", st.Root, ErrNotFound)
	}
	if root.Parent != 0 {
		return fmt.Errorf("restore: root %s has parent %s", st.Root, root.Parent)
	}
	for _, e := range entities {
		if e.ID != st.Root {
			parent, ok := entities[e.Parent]
			if !ok || !slices.Contains(parent.Children, e.ID) {
				return fmt.Errorf("restore: entity %s is detached from parent %s", e.ID, e.Parent)
			}
		}
		for _, c := range e.Children {
			child, ok := entities[c]
			if !ok || child.Parent != e.ID {
				return fmt.Errorf("restore: child %s of %s is inconsistent", c, e.ID)
			}
		}
	}
	if err := checkReachable(entities, st.Root); err != nil {
		return fmt.Errorf("restore: %w", err)
	}

	s.entities = entities
	s.root = st.Root
	s.next = next
	return nil
}

// checkReachable walks every parent chain up to root. Entities whose chain
// loops before reaching root form a cycle detached from the tree. Every
// non-root parent must already be present in entities.
func checkReachable(entities map[EntityID]*Entity, root EntityID) error {
	reachable := map[EntityID]bool{root: true}
	for id := range entities {
		path := make(map[EntityID]bool)
		for cur := id; !reachable[cur]; cur = entities[cur].Parent {
			if path[cur] {
				return fmt.Errorf("entity %s: %w", id, ErrCycle)
			}
			path[cur] = true
		}
		for p := range path {
			reachable[p] = true
		}
	}
	return nil
}

func insertAt(ids []EntityID, id EntityID, index int) []EntityID {
	if index < 0 || index > len(ids) {
		return append(ids, id)
	}
	return slices.Insert(ids, index, id)
}
