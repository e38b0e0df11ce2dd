package selection

import (
	"slices"

	"github.com/inamate/sceneedit/internal/scene"
)

// Set is the editor's current selection. Items keep the order in which they
// were selected.
type Set struct {
	items []scene.EntityID
}

// New returns a selection holding ids.
func New(ids ...scene.EntityID) *Set {
	s := &Set{}
	s.Set(ids...)
	return s
}

// Set replaces the selection with ids. Duplicates are dropped.
func (s *Set) Set(ids ...scene.EntityID) {
	s.items = s.items[:0]
	for _, id := range ids {
		s.Add(id)
	}
}

// Add appends id unless it is already selected.
func (s *Set) Add(id scene.EntityID) {
	if !s.Contains(id) {
		s.items = append(s.items, id)
	}
}

// Remove deselects id.
func (s *Set) Remove(id scene.EntityID) {
	s.items = slices.DeleteFunc(s.items, func(c scene.EntityID) bool { return c == id })
}

func (s *Set) Clear() {
	s.items = s.items[:0]
}

func (s *Set) Contains(id scene.EntityID) bool {
	return slices.Contains(s.items, id)
}

func (s *Set) Len() int {
	return len(s.items)
}

// Items returns a copy of the selected ids in selection order.
func (s *Set) Items() []scene.EntityID {
	return slices.Clone(s.items)
}

// Prune drops ids that are no longer registered in store.
func (s *Set) Prune(store *scene.Store) {
	s.items = slices.DeleteFunc(s.items, func(id scene.EntityID) bool { return !store.Has(id) })
}
