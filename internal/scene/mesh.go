package scene

import (
	"slices"

	"github.com/inamate/sceneedit/internal/geom"
)

// UniquePoints flattens the polygons in scan order and keeps the first
// occurrence of every point value. A nil or empty mesh yields no points.
func (m *Mesh) UniquePoints() []geom.Vec2 {
	if m.Empty() {
		return nil
	}
	var points []geom.Vec2
	for _, poly := range m.Polygons {
		for _, p := range poly {
			if !slices.Contains(points, p) {
				points = append(points, p)
			}
		}
	}
	return points
}

// VertexRef addresses one vertex inside Mesh.Polygons.
type VertexRef struct {
	Polygon int `json:"polygon"`
	Index   int `json:"index"`
}

// Occurrences returns every location holding the value p, in scan order.
func (m *Mesh) Occurrences(p geom.Vec2) []VertexRef {
	if m == nil {
		return nil
	}
	var refs []VertexRef
	for i, poly := range m.Polygons {
		for j, q := range poly {
			if q == p {
				refs = append(refs, VertexRef{Polygon: i, Index: j})
			}
		}
	}
	return refs
}

// EdgeInsertion finds where a point splitting the edge a-b belongs. It
// prefers a polygon where a and b are adjacent (closing edge included) and
// falls back to the slot right after the first occurrence of a.
func (m *Mesh) EdgeInsertion(a, b geom.Vec2) (VertexRef, bool) {
	if m.Empty() {
		return VertexRef{}, false
	}
	for i, poly := range m.Polygons {
		n := len(poly)
		for j := range n {
			next := poly[(j+1)%n]
			if (poly[j] == a && next == b) || (poly[j] == b && next == a) {
				return VertexRef{Polygon: i, Index: j + 1}, true
			}
		}
	}
	if refs := m.Occurrences(a); len(refs) > 0 {
		return VertexRef{Polygon: refs[0].Polygon, Index: refs[0].Index + 1}, true
	}
	return VertexRef{}, false
}
