package fixture

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/inamate/sceneedit/internal/geom"
	"github.com/inamate/sceneedit/internal/scene"
)

// SceneSpec is a hand-written scene used to seed sessions and tests.
type SceneSpec struct {
	Name     string       `yaml:"name"`
	Entities []EntitySpec `yaml:"entities"`
}

type EntitySpec struct {
	Name       string         `yaml:"name"`
	Kind       scene.Kind     `yaml:"kind"`
	Transform  TransformSpec  `yaml:"transform"`
	Dimensions DimensionsSpec `yaml:"dimensions"`
	Mesh       [][]geom.Vec2  `yaml:"mesh"`
	Children   []EntitySpec   `yaml:"children"`
}

type TransformSpec struct {
	X        float64 `yaml:"x"`
	Y        float64 `yaml:"y"`
	ScaleX   float64 `yaml:"scale_x"`
	ScaleY   float64 `yaml:"scale_y"`
	Rotation float64 `yaml:"rotation"`
}

type DimensionsSpec struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// Load reads and builds the scene fixture at path.
func Load(path string) (scene.State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return scene.State{}, fmt.Errorf("fixture: load %s: %w", path, err)
	}
	spec, err := Parse(data)
	if err != nil {
		return scene.State{}, fmt.Errorf("fixture: %s: %w", path, err)
	}
	return Build(spec)
}

func Parse(data []byte) (*SceneSpec, error) {
	var spec SceneSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	return &spec, nil
}

// Build adds the entities depth-first under a fresh root, so ids follow
// document order starting at 2.
func Build(spec *SceneSpec) (scene.State, error) {
	store := scene.NewStore()
	for _, e := range spec.Entities {
		if err := add(store, store.Root(), e); err != nil {
			return scene.State{}, err
		}
	}
	return store.State(), nil
}

func add(store *scene.Store, parent scene.EntityID, spec EntitySpec) error {
	kind := spec.Kind
	if kind == "" {
		kind = scene.KindImage
		if len(spec.Children) > 0 {
			kind = scene.KindComposite
		}
	}
	if kind != scene.KindComposite && len(spec.Children) > 0 {
		return fmt.Errorf("fixture: %q is a %s and cannot have children", spec.Name, kind)
	}

	e := &scene.Entity{
		Kind: kind,
		Name: spec.Name,
		Transform: scene.Transform{
			X:        spec.Transform.X,
			Y:        spec.Transform.Y,
			ScaleX:   orOne(spec.Transform.ScaleX),
			ScaleY:   orOne(spec.Transform.ScaleY),
			Rotation: spec.Transform.Rotation,
		},
		Dimensions: scene.Dimensions{Width: spec.Dimensions.Width, Height: spec.Dimensions.Height},
	}
	if len(spec.Mesh) > 0 {
		for i, poly := range spec.Mesh {
			if len(poly) == 0 {
				return fmt.Errorf("fixture: %q polygon %d is empty", spec.Name, i)
			}
		}
		e.Mesh = &scene.Mesh{Polygons: spec.Mesh}
	}

	id, err := store.Add(parent, e)
	if err != nil {
		return fmt.Errorf("fixture: add %q: %w", spec.Name, err)
	}
	for _, c := range spec.Children {
		if err := add(store, id, c); err != nil {
			return err
		}
	}
	return nil
}

func orOne(v float64) float64 {
	if v == 0 {
		return 1
	}
	return v
}
