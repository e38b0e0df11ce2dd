package engine

import (
	"errors"
	"reflect"
	"slices"
	"testing"

	"github.com/inamate/sceneedit/internal/command"
	"github.com/inamate/sceneedit/internal/factory"
	"github.com/inamate/sceneedit/internal/geom"
	"github.com/inamate/sceneedit/internal/notify"
	"github.com/inamate/sceneedit/internal/scene"
)

func addItem(t *testing.T, e *Engine, x, y float64) scene.EntityID {
	t.Helper()
	id, err := e.AddItem(factory.ItemSpec{Position: geom.Vec2{X: x, Y: y}, Size: geom.Vec2{X: 4, Y: 4}})
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	return id
}

func addSquare(t *testing.T, e *Engine) scene.EntityID {
	t.Helper()
	id, err := e.AddItem(factory.ItemSpec{
		Kind: scene.KindShape,
		Mesh: &scene.Mesh{Polygons: [][]geom.Vec2{{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10}}}},
	})
	if err != nil {
		t.Fatalf("add shape: %v", err)
	}
	return id
}

func position(t *testing.T, e *Engine, id scene.EntityID) geom.Vec2 {
	t.Helper()
	for _, ent := range e.State().Entities {
		if ent.ID == id {
			return ent.Transform.Position()
		}
	}
	t.Fatalf("entity %v not in state", id)
	return geom.Vec2{}
}

func entity(st scene.State, id scene.EntityID) (scene.Entity, bool) {
	for _, ent := range st.Entities {
		if ent.ID == id {
			return ent, true
		}
	}
	return scene.Entity{}, false
}

func TestConvertToCompositeScenario(t *testing.T) {
	e := NewEngine(Options{})
	a := addItem(t, e, 10, 10)
	b := addItem(t, e, 20, 10)
	before := e.State()

	var events []string
	e.Bus().SubscribeAll(func(ev notify.Event) { events = append(events, ev.Name) })

	if err := e.Select(a, b); err != nil {
		t.Fatalf("select: %v", err)
	}
	c, err := e.ConvertToComposite()
	if err != nil {
		t.Fatalf("convert: %v", err)
	}

	st := e.State()
	comp, ok := entity(st, c)
	if !ok {
		t.Fatalf("composite missing")
	}
	if comp.Transform.Position() != (geom.Vec2{X: 10, Y: 10}) {
		t.Fatalf("composite at %v", comp.Transform.Position())
	}
	if comp.Dimensions != (scene.Dimensions{Width: 10, Height: 0}) {
		t.Fatalf("composite dimensions = %+v", comp.Dimensions)
	}
	if got := position(t, e, a); got != (geom.Vec2{}) {
		t.Fatalf("a at %v, want (0,0)", got)
	}
	if got := position(t, e, b); got != (geom.Vec2{X: 10}) {
		t.Fatalf("b at %v, want (10,0)", got)
	}
	if !slices.Equal(e.Selection(), []scene.EntityID{c}) {
		t.Fatalf("selection = %v", e.Selection())
	}

	if err := e.Undo(); err != nil {
		t.Fatalf("undo: %v", err)
	}
	if !reflect.DeepEqual(e.State().Entities, before.Entities) {
		t.Fatalf("undo did not restore the scene")
	}
	if len(e.Selection()) != 0 {
		t.Fatalf("selection after undo = %v", e.Selection())
	}

	want := []string{notify.CompositeDone, notify.ItemAdded, notify.CompositeDone, notify.HistoryUndone}
	if !slices.Equal(events, want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
}

func TestConvertInsideCompositeAndUndoLeavesView(t *testing.T) {
	e := NewEngine(Options{})
	a := addItem(t, e, 0, 0)
	b := addItem(t, e, 5, 5)
	_ = e.Select(a, b)
	outer, err := e.ConvertToComposite()
	if err != nil {
		t.Fatalf("convert: %v", err)
	}

	if err := e.EnterComposite(outer); err != nil {
		t.Fatalf("enter: %v", err)
	}
	if e.ViewID() != outer || len(e.Selection()) != 0 {
		t.Fatalf("view = %v, selection = %v", e.ViewID(), e.Selection())
	}
	_ = e.Select(b)
	inner, err := e.ConvertToComposite()
	if err != nil {
		t.Fatalf("nested convert: %v", err)
	}
	if ent, _ := entity(e.State(), inner); ent.Parent != outer {
		t.Fatalf("inner parent = %v, want %v", ent.Parent, outer)
	}

	// undo the nested convert, then the outer one while still inside it
	if err := e.Undo(); err != nil {
		t.Fatalf("undo nested: %v", err)
	}
	if err := e.Undo(); err != nil {
		t.Fatalf("undo outer: %v", err)
	}
	if e.ViewID() != e.State().Root {
		t.Fatalf("view = %v after its composite was undone", e.ViewID())
	}
}

func TestExitComposite(t *testing.T) {
	e := NewEngine(Options{})
	a := addItem(t, e, 0, 0)
	_ = e.Select(a)
	c, _ := e.ConvertToComposite()

	if err := e.ExitComposite(); !errors.Is(err, scene.ErrHasNoParent) {
		t.Fatalf("exit root err = %v", err)
	}
	_ = e.EnterComposite(c)
	if err := e.ExitComposite(); err != nil {
		t.Fatalf("exit: %v", err)
	}
	if e.ViewID() != e.State().Root || !slices.Equal(e.Selection(), []scene.EntityID{c}) {
		t.Fatalf("view = %v, selection = %v", e.ViewID(), e.Selection())
	}
	if err := e.EnterComposite(a); !errors.Is(err, scene.ErrNotComposite) {
		t.Fatalf("enter item err = %v", err)
	}
}

func TestConvertRejectsEmptySelection(t *testing.T) {
	e := NewEngine(Options{})
	if _, err := e.ConvertToComposite(); !errors.Is(err, command.ErrPrecondition) {
		t.Fatalf("err = %v, want ErrPrecondition", err)
	}
	if e.CanUndo() {
		t.Fatalf("failed command was recorded")
	}
}

func TestAnchorDragCommitsOnRelease(t *testing.T) {
	e := NewEngine(Options{AnchorSize: 4, HitRadius: 2})
	shape := addSquare(t, e)
	if _, err := e.AttachMeshFollower(shape); err != nil {
		t.Fatalf("attach: %v", err)
	}
	before := e.State()

	if !e.PointerDown(geom.Vec2{X: 10, Y: 10}) {
		t.Fatalf("press on anchor not handled")
	}
	e.PointerDrag(geom.Vec2{X: 11, Y: 11})
	if !reflect.DeepEqual(e.State(), before) {
		t.Fatalf("drag preview reached the store")
	}
	if !e.PointerUp(geom.Vec2{X: 12, Y: 12}) {
		t.Fatalf("release not handled")
	}

	ent, _ := entity(e.State(), shape)
	if got := ent.Mesh.Polygons[0][2]; got != (geom.Vec2{X: 12, Y: 12}) {
		t.Fatalf("vertex = %v, want (12,12)", got)
	}

	if err := e.Undo(); err != nil {
		t.Fatalf("undo: %v", err)
	}
	if !reflect.DeepEqual(e.State(), before) {
		t.Fatalf("undo did not restore the mesh")
	}
}

func TestPointerCancelDiscardsDrag(t *testing.T) {
	e := NewEngine(Options{AnchorSize: 4})
	shape := addSquare(t, e)
	f, _ := e.AttachMeshFollower(shape)
	before := e.State()

	e.PointerDown(geom.Vec2{X: 0, Y: 0})
	e.PointerDrag(geom.Vec2{X: -3, Y: -3})
	e.PointerCancel()

	if e.PointerUp(geom.Vec2{X: -3, Y: -3}) {
		t.Fatalf("release after cancel was handled")
	}
	if !reflect.DeepEqual(e.State(), before) {
		t.Fatalf("cancelled drag reached the store")
	}
	if got := f.DrawPoints()[0]; got != (geom.Vec2{}) {
		t.Fatalf("draw point = %v after cancel", got)
	}
}

func TestEdgeClickInsertsVertex(t *testing.T) {
	e := NewEngine(Options{AnchorSize: 4, HitRadius: 2})
	shape := addSquare(t, e)
	f, _ := e.AttachMeshFollower(shape)

	if !e.PointerDown(geom.Vec2{X: 5, Y: 0}) {
		t.Fatalf("edge press not handled")
	}
	want := []geom.Vec2{{X: 0, Y: 0}, {X: 5, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10}}
	if got := f.OriginalPoints(); !reflect.DeepEqual(got, want) {
		t.Fatalf("follower points = %v, want %v", got, want)
	}
}

func TestPointerDownSelectsWithinView(t *testing.T) {
	e := NewEngine(Options{})
	a := addItem(t, e, 10, 10)
	b := addItem(t, e, 50, 50)
	_ = e.Select(a)
	c, _ := e.ConvertToComposite()

	if !e.PointerDown(geom.Vec2{X: 12, Y: 12}) {
		t.Fatalf("press on item missed")
	}
	if !slices.Equal(e.Selection(), []scene.EntityID{c}) {
		t.Fatalf("selection = %v, want the composite %v", e.Selection(), c)
	}

	e.PointerDown(geom.Vec2{X: 51, Y: 51})
	if !slices.Equal(e.Selection(), []scene.EntityID{b}) {
		t.Fatalf("selection = %v, want %v", e.Selection(), b)
	}

	if e.PointerDown(geom.Vec2{X: 500, Y: 500}) || len(e.Selection()) != 0 {
		t.Fatalf("empty press kept selection %v", e.Selection())
	}
}

func TestLoadStateResetsHistory(t *testing.T) {
	src := NewEngine(Options{})
	a := addItem(t, src, 1, 2)
	_ = src.Select(a)
	if _, err := src.ConvertToComposite(); err != nil {
		t.Fatalf("convert: %v", err)
	}

	dst := NewEngine(Options{})
	addItem(t, dst, 0, 0)
	if err := dst.LoadState(src.State()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(dst.State(), src.State()) {
		t.Fatalf("loaded state differs")
	}
	if dst.CanUndo() || len(dst.Selection()) != 0 {
		t.Fatalf("history or selection survived load")
	}
	if err := dst.Undo(); !errors.Is(err, command.ErrNothingToUndo) {
		t.Fatalf("undo err = %v", err)
	}
}

func TestRenderIncludesAnchors(t *testing.T) {
	e := NewEngine(Options{})
	addItem(t, e, 0, 0)
	shape := addSquare(t, e)
	_, _ = e.AttachMeshFollower(shape)

	var ops []string
	for _, c := range e.Render() {
		ops = append(ops, c.Op)
	}
	want := []string{"rect", "path", "anchor", "anchor", "anchor", "anchor"}
	if !slices.Equal(ops, want) {
		t.Fatalf("ops = %v, want %v", ops, want)
	}
}

func TestSelectionBounds(t *testing.T) {
	e := NewEngine(Options{})
	a := addItem(t, e, 0, 0)
	b := addItem(t, e, 10, 20)
	_ = e.Select(a, b)

	want := geom.Rect{X: 0, Y: 0, Width: 14, Height: 24}
	if got := e.SelectionBounds(); got != want {
		t.Fatalf("bounds = %+v, want %+v", got, want)
	}
}

func TestRestoreContext(t *testing.T) {
	e := NewEngine(Options{})
	a := addItem(t, e, 0, 0)
	b := addItem(t, e, 5, 0)
	if err := e.Select(a, b); err != nil {
		t.Fatalf("select: %v", err)
	}
	c, err := e.ConvertToComposite()
	if err != nil {
		t.Fatalf("convert: %v", err)
	}

	e.RestoreContext(c, []scene.EntityID{a, 99})
	if e.ViewID() != c || !slices.Equal(e.Selection(), []scene.EntityID{a}) {
		t.Fatalf("view = %d, selection = %v", e.ViewID(), e.Selection())
	}

	e.RestoreContext(a, nil)
	if e.ViewID() != e.State().Root {
		t.Fatalf("non-composite view kept: %d", e.ViewID())
	}
}
