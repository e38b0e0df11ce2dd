package engine

import (
	"math"

	"github.com/inamate/sceneedit/internal/geom"
	"github.com/inamate/sceneedit/internal/scene"
)

// SceneGraph is the resolved, render-ready view of the store: world
// transforms and world-space bounds are computed for every entity.
type SceneGraph struct {
	Root      *SceneNode
	NodesByID map[scene.EntityID]*SceneNode
}

// SceneNode is a resolved entity ready for rendering and hit-testing.
type SceneNode struct {
	ID   scene.EntityID
	Kind scene.Kind
	Name string

	WorldTransform geom.Matrix2D // parent world * local

	Parent   *SceneNode
	Children []*SceneNode

	Width    float64
	Height   float64
	Polygons [][]geom.Vec2 // local space, nil unless the entity has a mesh

	// Bounds is the axis-aligned box in world space. Composites take the
	// union of their children.
	Bounds geom.Rect
}

// BuildSceneGraph resolves the whole store starting at the root.
func BuildSceneGraph(store *scene.Store) *SceneGraph {
	sg := &SceneGraph{NodesByID: make(map[scene.EntityID]*SceneNode)}
	sg.Root = buildNode(store, store.Root(), nil, geom.Identity(), sg)
	return sg
}

func buildNode(store *scene.Store, id scene.EntityID, parent *SceneNode, parentWorld geom.Matrix2D, sg *SceneGraph) *SceneNode {
	e, ok := store.Get(id)
	if !ok {
		return nil
	}

	node := &SceneNode{
		ID:             e.ID,
		Kind:           e.Kind,
		Name:           e.Name,
		WorldTransform: parentWorld.Multiply(e.Transform.Matrix()),
		Parent:         parent,
		Width:          e.Dimensions.Width,
		Height:         e.Dimensions.Height,
	}
	if e.Mesh != nil {
		node.Polygons = e.Mesh.Clone().Polygons
	}
	sg.NodesByID[id] = node

	for _, childID := range e.Children {
		if child := buildNode(store, childID, node, node.WorldTransform, sg); child != nil {
			node.Children = append(node.Children, child)
		}
	}

	node.Bounds = nodeBounds(node)
	return node
}

func nodeBounds(node *SceneNode) geom.Rect {
	switch {
	case node.Kind == scene.KindComposite:
		var r geom.Rect
		for _, c := range node.Children {
			r = r.Union(c.Bounds)
		}
		return r
	case len(node.Polygons) > 0:
		return node.WorldTransform.TransformRect(polygonBox(node.Polygons))
	default:
		return node.WorldTransform.TransformRect(geom.Rect{Width: node.Width, Height: node.Height})
	}
}

func polygonBox(polys [][]geom.Vec2) geom.Rect {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, poly := range polys {
		for _, p := range poly {
			minX, minY = min(minX, p.X), min(minY, p.Y)
			maxX, maxY = max(maxX, p.X), max(maxY, p.Y)
		}
	}
	if math.IsInf(minX, 1) {
		return geom.Rect{}
	}
	return geom.Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// HitTest returns the topmost non-composite entity whose world bounds
// contain the point, or zero.
func HitTest(sg *SceneGraph, x, y float64) scene.EntityID {
	if sg == nil || sg.Root == nil {
		return 0
	}
	return hitTestNode(sg.Root, x, y)
}

// hitTestNode tests children before the node itself, front to back.
func hitTestNode(node *SceneNode, x, y float64) scene.EntityID {
	for i := len(node.Children) - 1; i >= 0; i-- {
		if hit := hitTestNode(node.Children[i], x, y); hit != 0 {
			return hit
		}
	}
	if node.Kind != scene.KindComposite && !node.Bounds.IsEmpty() && node.Bounds.Contains(x, y) {
		return node.ID
	}
	return 0
}

// SelectionBounds returns the combined world bounds of ids.
func SelectionBounds(sg *SceneGraph, ids []scene.EntityID) geom.Rect {
	var r geom.Rect
	if sg == nil {
		return r
	}
	for _, id := range ids {
		if node, ok := sg.NodesByID[id]; ok {
			r = r.Union(node.Bounds)
		}
	}
	return r
}
