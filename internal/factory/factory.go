package factory

import (
	"github.com/inamate/sceneedit/internal/geom"
	"github.com/inamate/sceneedit/internal/scene"
)

// ItemFactory is the only entity-construction entry point commands use.
// Returned entities are unregistered and carry a zero id; the store assigns
// one when the entity is added.
type ItemFactory interface {
	CreateComposite(position geom.Vec2) *scene.Entity
	CreateItem(spec ItemSpec) *scene.Entity
}

// ItemSpec describes a non-composite item.
type ItemSpec struct {
	Kind     scene.Kind  `json:"kind"`
	Name     string      `json:"name,omitempty"`
	Position geom.Vec2   `json:"position"`
	Size     geom.Vec2   `json:"size"`
	Mesh     *scene.Mesh `json:"mesh,omitempty"`
}

// Default builds entities with default transform and dimensions components.
type Default struct{}

func New() *Default {
	return &Default{}
}

func (f *Default) CreateComposite(position geom.Vec2) *scene.Entity {
	return &scene.Entity{
		Kind:     scene.KindComposite,
		Children: []scene.EntityID{},
		Transform: scene.Transform{
			X: position.X, Y: position.Y, ScaleX: 1, ScaleY: 1,
		},
	}
}

func (f *Default) CreateItem(spec ItemSpec) *scene.Entity {
	kind := spec.Kind
	if kind == "" {
		kind = scene.KindImage
	}
	return &scene.Entity{
		Kind:     kind,
		Name:     spec.Name,
		Children: []scene.EntityID{},
		Transform: scene.Transform{
			X: spec.Position.X, Y: spec.Position.Y, ScaleX: 1, ScaleY: 1,
		},
		Dimensions: scene.Dimensions{Width: spec.Size.X, Height: spec.Size.Y},
		Mesh:       spec.Mesh.Clone(),
	}
}
