package scene

import (
	"slices"
	"strconv"

	"github.com/inamate/sceneedit/internal/geom"
)

// EntityID is the stable identity of an entity. It survives undo/redo and
// save/load unchanged. Zero means "no entity".
type EntityID int64

func (id EntityID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// Valid reports whether id refers to an entity slot.
func (id EntityID) Valid() bool {
	return id > 0
}

type Kind string

const (
	KindComposite Kind = "Composite"
	KindImage     Kind = "Image"
	KindShape     Kind = "Shape"
	KindLabel     Kind = "Label"
)

// Transform is the entity's position, scale and rotation relative to its
// immediate parent's local origin.
type Transform struct {
	X        float64 `json:"x" yaml:"x"`
	Y        float64 `json:"y" yaml:"y"`
	ScaleX   float64 `json:"scaleX" yaml:"scaleX"`
	ScaleY   float64 `json:"scaleY" yaml:"scaleY"`
	Rotation float64 `json:"rotation" yaml:"rotation"`
}

// Position returns the local position as a vector.
func (t Transform) Position() geom.Vec2 {
	return geom.Vec2{X: t.X, Y: t.Y}
}

// Matrix returns the local transform matrix.
func (t Transform) Matrix() geom.Matrix2D {
	return geom.FromTransform(t.X, t.Y, t.ScaleX, t.ScaleY, t.Rotation)
}

type Dimensions struct {
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Mesh is an ordered collection of polygons in the entity's local space.
type Mesh struct {
	Polygons [][]geom.Vec2 `json:"polygons" yaml:"polygons"`
}

// Clone returns a deep copy of the mesh. A nil mesh clones to nil.
func (m *Mesh) Clone() *Mesh {
	if m == nil {
		return nil
	}
	polys := make([][]geom.Vec2, len(m.Polygons))
	for i, p := range m.Polygons {
		polys[i] = slices.Clone(p)
	}
	return &Mesh{Polygons: polys}
}

// Empty reports whether the mesh has no polygons to edit.
func (m *Mesh) Empty() bool {
	return m == nil || len(m.Polygons) == 0
}

// Entity is an addressable object in the scene with its typed components.
type Entity struct {
	ID         EntityID   `json:"id" yaml:"id"`
	Kind       Kind       `json:"kind" yaml:"kind"`
	Name       string     `json:"name,omitempty" yaml:"name,omitempty"`
	Parent     EntityID   `json:"parent,omitempty" yaml:"parent,omitempty"`
	Children   []EntityID `json:"children" yaml:"children"`
	Transform  Transform  `json:"transform" yaml:"transform"`
	Dimensions Dimensions `json:"dimensions" yaml:"dimensions"`
	Mesh       *Mesh      `json:"mesh,omitempty" yaml:"mesh,omitempty"`
}

// IsComposite reports whether the entity can hold children.
func (e *Entity) IsComposite() bool {
	return e.Kind == KindComposite
}

// Clone returns a deep copy of the entity.
func (e *Entity) Clone() *Entity {
	c := *e
	c.Children = slices.Clone(e.Children)
	if c.Children == nil {
		c.Children = []EntityID{}
	}
	c.Mesh = e.Mesh.Clone()
	return &c
}

// State is a detached, deterministic copy of the whole store. Two stores with
// equal states are structurally identical.
type State struct {
	Root     EntityID `json:"root"`
	NextID   EntityID `json:"nextId"`
	Entities []Entity `json:"entities"`
}
