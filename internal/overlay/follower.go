package overlay

import (
	"slices"

	"github.com/inamate/sceneedit/internal/geom"
	"github.com/inamate/sceneedit/internal/scene"
)

const (
	DefaultAnchorSize = 8
	DefaultHitRadius  = 10
)

// Projector maps world coordinates to screen coordinates and back.
type Projector interface {
	Project(p geom.Vec2) geom.Vec2
	Unproject(p geom.Vec2) geom.Vec2
}

// Geometry provides the segment/circle primitive used for edge hit-testing.
type Geometry interface {
	IntersectSegmentCircle(a, b, center geom.Vec2, radius float64) bool
}

// GeometryFunc adapts a plain function to Geometry.
type GeometryFunc func(a, b, center geom.Vec2, radius float64) bool

func (f GeometryFunc) IntersectSegmentCircle(a, b, center geom.Vec2, radius float64) bool {
	return f(a, b, center, radius)
}

type IntentKind string

const (
	IntentAnchorPress   IntentKind = "anchor.press"
	IntentAnchorDrag    IntentKind = "anchor.drag"
	IntentAnchorRelease IntentKind = "anchor.release"
	IntentVertexInsert  IntentKind = "vertex.insert"
)

// Intent is a gesture translated into a geometry request. Index is the
// vertex index for anchor intents and the edge index for VertexInsert.
// Point is in the entity's local space.
type Intent struct {
	Kind     IntentKind     `json:"kind"`
	EntityID scene.EntityID `json:"entityId"`
	Index    int            `json:"index"`
	Point    geom.Vec2      `json:"point"`
}

type Options struct {
	AnchorSize float64
	HitRadius  float64
	Projector  Projector
	Geometry   Geometry
	OnIntent   func(Intent)
}

// MeshFollower exposes the vertices of one entity's mesh as anchors and its
// edges as insertion hotspots. It never writes to the store: drags only move
// the follower's draw points until a release intent is committed elsewhere.
type MeshFollower struct {
	store    *scene.Store
	entityID scene.EntityID
	opts     Options

	original []geom.Vec2 // deduplicated, local space
	draw     []geom.Vec2 // local space, includes the uncommitted drag
	screen   []geom.Vec2 // draw projected to screen space

	dragging  int
	lineIndex int
}

func NewMeshFollower(store *scene.Store, entityID scene.EntityID, opts Options) *MeshFollower {
	if opts.AnchorSize <= 0 {
		opts.AnchorSize = DefaultAnchorSize
	}
	if opts.HitRadius <= 0 {
		opts.HitRadius = DefaultHitRadius
	}
	if opts.Projector == nil {
		opts.Projector = geom.NewCamera()
	}
	if opts.Geometry == nil {
		opts.Geometry = GeometryFunc(geom.IntersectSegmentCircle)
	}
	f := &MeshFollower{
		store:     store,
		entityID:  entityID,
		opts:      opts,
		dragging:  -1,
		lineIndex: -1,
	}
	f.Update()
	return f
}

func (f *MeshFollower) EntityID() scene.EntityID { return f.entityID }

// SetHandler replaces the intent handler.
func (f *MeshFollower) SetHandler(h func(Intent)) {
	f.opts.OnIntent = h
}

// Update rebuilds the point lists from the store and drops any drag in
// progress.
func (f *MeshFollower) Update() {
	f.original = nil
	if e, ok := f.store.Get(f.entityID); ok {
		f.original = e.Mesh.UniquePoints()
	}
	f.draw = slices.Clone(f.original)
	f.dragging = -1
	f.lineIndex = -1
	f.UpdateDraw()
}

// UpdateDraw reprojects the draw points, e.g. after the camera moved.
func (f *MeshFollower) UpdateDraw() {
	f.screen = f.screen[:0]
	if len(f.draw) == 0 {
		return
	}
	world, err := f.store.WorldTransform(f.entityID)
	if err != nil {
		return
	}
	for _, p := range f.draw {
		f.screen = append(f.screen, f.opts.Projector.Project(world.Apply(p)))
	}
}

// OriginalPoints returns the deduplicated mesh vertices as stored.
func (f *MeshFollower) OriginalPoints() []geom.Vec2 {
	return slices.Clone(f.original)
}

// DrawPoints returns the vertices as currently displayed.
func (f *MeshFollower) DrawPoints() []geom.Vec2 {
	return slices.Clone(f.draw)
}

// Anchors returns the screen-space anchor squares, one per draw point.
func (f *MeshFollower) Anchors() []geom.Rect {
	half := f.opts.AnchorSize / 2
	rects := make([]geom.Rect, len(f.screen))
	for i, p := range f.screen {
		rects[i] = geom.Rect{X: p.X - half, Y: p.Y - half, Width: f.opts.AnchorSize, Height: f.opts.AnchorSize}
	}
	return rects
}

// Dragging returns the index of the anchor being dragged, or -1.
func (f *MeshFollower) Dragging() int { return f.dragging }

// LineIndex returns the edge found by the last edge hit-test, or -1.
func (f *MeshFollower) LineIndex() int { return f.lineIndex }

// AnchorHitTest returns the first anchor containing the screen point, or -1.
func (f *MeshFollower) AnchorHitTest(p geom.Vec2) int {
	for i, r := range f.Anchors() {
		if r.Contains(p.X, p.Y) {
			return i
		}
	}
	return -1
}

// EdgeHitTest returns the edge within the hit radius of the screen point.
// Edge i > 0 joins points i-1 and i and the first match wins; the closing
// edge from the last point to the first is index 0 and overrides any other
// match. It returns -1 when no edge is close enough.
func (f *MeshFollower) EdgeHitTest(p geom.Vec2) int {
	pts := f.screen
	r := f.opts.HitRadius
	f.lineIndex = -1
	if len(pts) < 2 {
		return -1
	}
	for i := 1; i < len(pts); i++ {
		if f.opts.Geometry.IntersectSegmentCircle(pts[i-1], pts[i], p, r) {
			f.lineIndex = i
			break
		}
	}
	if f.opts.Geometry.IntersectSegmentCircle(pts[len(pts)-1], pts[0], p, r) {
		f.lineIndex = 0
	}
	return f.lineIndex
}

// Hit reports what lies under the screen point. Anchors take precedence over
// edges, so at most one of the two is not -1.
func (f *MeshFollower) Hit(p geom.Vec2) (anchor, line int) {
	if anchor = f.AnchorHitTest(p); anchor >= 0 {
		return anchor, -1
	}
	return -1, f.EdgeHitTest(p)
}

// TouchDown starts a gesture. It reports whether the follower handled it.
func (f *MeshFollower) TouchDown(p geom.Vec2) bool {
	if len(f.draw) == 0 {
		return false
	}
	anchor, line := f.Hit(p)
	switch {
	case anchor >= 0:
		f.dragging = anchor
		f.emit(IntentAnchorPress, anchor, f.draw[anchor])
	case line >= 0:
		local, ok := f.toLocal(p)
		if !ok {
			return false
		}
		f.emit(IntentVertexInsert, line, local)
	default:
		return false
	}
	return true
}

// TouchDragged moves the dragged anchor to the screen point without touching
// the store.
func (f *MeshFollower) TouchDragged(p geom.Vec2) bool {
	if f.dragging < 0 {
		return false
	}
	local, ok := f.toLocal(p)
	if !ok {
		return false
	}
	f.draw[f.dragging] = local
	f.UpdateDraw()
	f.emit(IntentAnchorDrag, f.dragging, local)
	return true
}

// TouchUp ends the drag and asks for the new position to be committed.
func (f *MeshFollower) TouchUp(p geom.Vec2) bool {
	if f.dragging < 0 {
		return false
	}
	i := f.dragging
	if local, ok := f.toLocal(p); ok {
		f.draw[i] = local
	}
	f.dragging = -1
	f.UpdateDraw()
	f.emit(IntentAnchorRelease, i, f.draw[i])
	return true
}

// Cancel abandons a drag and puts the draw points back.
func (f *MeshFollower) Cancel() {
	if f.dragging < 0 {
		return
	}
	f.dragging = -1
	f.draw = slices.Clone(f.original)
	f.UpdateDraw()
}

func (f *MeshFollower) toLocal(screen geom.Vec2) (geom.Vec2, bool) {
	world, err := f.store.WorldTransform(f.entityID)
	if err != nil || world.Determinant() == 0 {
		return geom.Vec2{}, false
	}
	return world.Invert().Apply(f.opts.Projector.Unproject(screen)), true
}

func (f *MeshFollower) emit(kind IntentKind, index int, p geom.Vec2) {
	if f.opts.OnIntent == nil {
		return
	}
	f.opts.OnIntent(Intent{Kind: kind, EntityID: f.entityID, Index: index, Point: p})
}
