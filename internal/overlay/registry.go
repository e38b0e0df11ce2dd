package overlay

import (
	"cmp"
	"slices"

	"github.com/inamate/sceneedit/internal/scene"
)

// Registry tracks the followers attached to entities.
type Registry struct {
	followers map[scene.EntityID]*MeshFollower
}

func NewRegistry() *Registry {
	return &Registry{followers: make(map[scene.EntityID]*MeshFollower)}
}

// Attach registers f, replacing any follower already on the same entity.
func (r *Registry) Attach(f *MeshFollower) {
	r.followers[f.EntityID()] = f
}

func (r *Registry) Get(id scene.EntityID) (*MeshFollower, bool) {
	f, ok := r.followers[id]
	return f, ok
}

// RemoveFollower detaches the follower of id, if any.
func (r *Registry) RemoveFollower(id scene.EntityID) {
	if f, ok := r.followers[id]; ok {
		f.Cancel()
		delete(r.followers, id)
	}
}

// All returns the followers ordered by entity id.
func (r *Registry) All() []*MeshFollower {
	out := make([]*MeshFollower, 0, len(r.followers))
	for _, f := range r.followers {
		out = append(out, f)
	}
	slices.SortFunc(out, func(a, b *MeshFollower) int { return cmp.Compare(a.EntityID(), b.EntityID()) })
	return out
}

// Refresh rebuilds the follower of id from the store.
func (r *Registry) Refresh(id scene.EntityID) {
	if f, ok := r.followers[id]; ok {
		f.Update()
	}
}

// RefreshAll rebuilds every follower and drops those whose entity is gone.
func (r *Registry) RefreshAll(store *scene.Store) {
	for id, f := range r.followers {
		if !store.Has(id) {
			delete(r.followers, id)
			continue
		}
		f.Update()
	}
}

func (r *Registry) Len() int { return len(r.followers) }
