package engine

import (
	"github.com/inamate/sceneedit/internal/geom"
	"github.com/inamate/sceneedit/internal/overlay"
	"github.com/inamate/sceneedit/internal/scene"
)

// DrawCommand is a single drawing operation for the canvas layer.
type DrawCommand struct {
	Op        string         `json:"op"` // "rect", "path", "anchor", "selection"
	EntityID  scene.EntityID `json:"entityId,omitempty"`
	Transform []float64      `json:"transform,omitempty"` // [a, b, c, d, e, f] world matrix
	Width     float64        `json:"width,omitempty"`
	Height    float64        `json:"height,omitempty"`
	Polygons  [][]geom.Vec2  `json:"polygons,omitempty"`
	Rect      *geom.Rect     `json:"rect,omitempty"` // screen space, for anchors and selection
	Active    bool           `json:"active,omitempty"`
}

// CompileDrawCommands emits the scene in painter's order (back to front).
func CompileDrawCommands(sg *SceneGraph) []DrawCommand {
	if sg == nil || sg.Root == nil {
		return nil
	}
	var commands []DrawCommand
	compileNode(sg.Root, &commands)
	return commands
}

func compileNode(node *SceneNode, commands *[]DrawCommand) {
	switch {
	case node.Kind == scene.KindComposite:
	case len(node.Polygons) > 0:
		*commands = append(*commands, DrawCommand{
			Op:        "path",
			EntityID:  node.ID,
			Transform: node.WorldTransform[:],
			Polygons:  node.Polygons,
		})
	default:
		*commands = append(*commands, DrawCommand{
			Op:        "rect",
			EntityID:  node.ID,
			Transform: node.WorldTransform[:],
			Width:     node.Width,
			Height:    node.Height,
		})
	}
	for _, child := range node.Children {
		compileNode(child, commands)
	}
}

// compileFollower emits one anchor per draw point of f. The dragged anchor
// is marked active.
func compileFollower(f *overlay.MeshFollower, commands *[]DrawCommand) {
	for i, r := range f.Anchors() {
		*commands = append(*commands, DrawCommand{
			Op:       "anchor",
			EntityID: f.EntityID(),
			Rect:     &r,
			Active:   i == f.Dragging(),
		})
	}
}
