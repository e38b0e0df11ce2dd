package selection

import (
	"slices"
	"testing"

	"github.com/inamate/sceneedit/internal/scene"
)

func TestSetKeepsOrderWithoutDuplicates(t *testing.T) {
	s := New(3, 1, 3, 2)
	if got := s.Items(); !slices.Equal(got, []scene.EntityID{3, 1, 2}) {
		t.Fatalf("items = %v, want [3 1 2]", got)
	}

	s.Remove(1)
	s.Add(3)
	s.Add(5)
	if got := s.Items(); !slices.Equal(got, []scene.EntityID{3, 2, 5}) {
		t.Fatalf("items = %v, want [3 2 5]", got)
	}

	s.Set(7)
	if s.Len() != 1 || !s.Contains(7) || s.Contains(3) {
		t.Fatalf("Set did not replace the selection: %v", s.Items())
	}

	s.Clear()
	if s.Len() != 0 {
		t.Fatalf("len after clear = %d", s.Len())
	}
}

func TestItemsIsACopy(t *testing.T) {
	s := New(1, 2)
	items := s.Items()
	items[0] = 99
	if s.Contains(99) {
		t.Fatalf("Items exposed internal storage")
	}
}

func TestPrune(t *testing.T) {
	store := scene.NewStore()
	id, err := store.Add(store.Root(), &scene.Entity{Kind: scene.KindImage})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	s := New(id, 404)
	s.Prune(store)
	if got := s.Items(); !slices.Equal(got, []scene.EntityID{id}) {
		t.Fatalf("items = %v, want [%v]", got, id)
	}
}
