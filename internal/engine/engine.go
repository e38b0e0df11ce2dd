package engine

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/inamate/sceneedit/internal/command"
	"github.com/inamate/sceneedit/internal/factory"
	"github.com/inamate/sceneedit/internal/geom"
	"github.com/inamate/sceneedit/internal/notify"
	"github.com/inamate/sceneedit/internal/overlay"
	"github.com/inamate/sceneedit/internal/scene"
	"github.com/inamate/sceneedit/internal/selection"
)

// Options configures an Engine. Zero values pick defaults.
type Options struct {
	HistoryLimit int
	AnchorSize   float64
	HitRadius    float64
	Factory      factory.ItemFactory
}

// Engine is the editor core for one scene. It owns the store, selection,
// command history and overlays, and is the only place that mutates them.
// It is not safe for concurrent use.
type Engine struct {
	store     *scene.Store
	selection *selection.Set
	history   *command.History
	bus       *notify.Bus
	factory   factory.ItemFactory
	followers *overlay.Registry
	camera    *geom.Camera
	opts      Options

	// Container currently being edited
	view scene.EntityID

	// Follower that accepted the current pointer gesture
	active *overlay.MeshFollower
}

// NewEngine creates an engine holding an empty scene.
func NewEngine(opts Options) *Engine {
	if opts.Factory == nil {
		opts.Factory = factory.New()
	}
	e := &Engine{
		store:     scene.NewStore(),
		selection: selection.New(),
		history:   command.NewHistory(opts.HistoryLimit),
		bus:       notify.NewBus(),
		factory:   opts.Factory,
		followers: overlay.NewRegistry(),
		camera:    geom.NewCamera(),
		opts:      opts,
	}
	e.view = e.store.Root()

	e.bus.Subscribe(notify.MeshChanged, func(ev notify.Event) {
		if c, ok := ev.Payload.(command.MeshChange); ok {
			e.followers.Refresh(c.EntityID)
		}
	})
	return e
}

func (e *Engine) env() command.Env {
	return command.Env{
		Store:     e.store,
		Selection: e.selection,
		Factory:   e.factory,
		Publisher: e.bus,
		Followers: e.followers,
		View:      e.ViewID,
	}
}

// Bus returns the notification bus observers subscribe to.
func (e *Engine) Bus() *notify.Bus { return e.bus }

// --- Selection and view ---

// Select replaces the selection. Every id must exist.
func (e *Engine) Select(ids ...scene.EntityID) error {
	for _, id := range ids {
		if !e.store.Has(id) {
			return fmt.Errorf("select %s: %w", id, scene.ErrNotFound)
		}
	}
	e.selection.Set(ids...)
	return nil
}

// Exists reports whether id is in the scene.
func (e *Engine) Exists(id scene.EntityID) bool {
	return e.store.Has(id)
}

// Selection returns the selected ids in selection order.
func (e *Engine) Selection() []scene.EntityID {
	return e.selection.Items()
}

// ViewID returns the composite currently being edited.
func (e *Engine) ViewID() scene.EntityID {
	return e.view
}

// EnterComposite makes id the edited container and clears the selection.
func (e *Engine) EnterComposite(id scene.EntityID) error {
	ent, ok := e.store.Get(id)
	if !ok {
		return fmt.Errorf("enter %s: %w", id, scene.ErrNotFound)
	}
	if !ent.IsComposite() {
		return fmt.Errorf("enter %s: %w", id, scene.ErrNotComposite)
	}
	e.view = id
	e.selection.Clear()
	return nil
}

// ExitComposite returns to the parent of the edited container and selects
// the container that was left.
func (e *Engine) ExitComposite() error {
	ent, ok := e.store.Get(e.view)
	if !ok {
		e.view = e.store.Root()
		return nil
	}
	if ent.Parent == 0 {
		return fmt.Errorf("exit %s: %w", e.view, scene.ErrHasNoParent)
	}
	left := e.view
	e.view = ent.Parent
	e.selection.Set(left)
	return nil
}

// RestoreContext puts back a view and selection captured earlier. A view
// that is gone or not a composite falls back to the root; ids that no longer
// exist are dropped from the selection.
func (e *Engine) RestoreContext(view scene.EntityID, ids []scene.EntityID) {
	if ent, ok := e.store.Get(view); ok && ent.IsComposite() {
		e.view = view
	} else {
		e.view = e.store.Root()
	}
	e.selection.Set(ids...)
	e.selection.Prune(e.store)
}

// --- Commands ---

func (e *Engine) execute(cmd command.Command) error {
	if err := e.history.Execute(cmd); err != nil {
		return err
	}
	slog.Debug("command executed", "command", cmd.Name(), "cursor", e.history.Cursor())
	return nil
}

// ConvertToComposite groups the selection into a new composite and returns
// its id.
func (e *Engine) ConvertToComposite() (scene.EntityID, error) {
	cmd := command.NewConvertToComposite(e.env())
	if err := e.execute(cmd); err != nil {
		return 0, err
	}
	return cmd.EntityID(), nil
}

// AddItem creates an item in the edited container.
func (e *Engine) AddItem(spec factory.ItemSpec) (scene.EntityID, error) {
	cmd := command.NewAddItem(e.env(), spec)
	if err := e.execute(cmd); err != nil {
		return 0, err
	}
	return cmd.EntityID(), nil
}

// MoveSelection translates the selected entities by (dx, dy).
func (e *Engine) MoveSelection(dx, dy float64) error {
	return e.execute(command.NewMoveItems(e.env(), dx, dy))
}

// MoveVertex moves deduplicated vertex index of id's mesh to p.
func (e *Engine) MoveVertex(id scene.EntityID, index int, p geom.Vec2) error {
	return e.execute(command.NewMoveVertex(e.env(), id, index, p))
}

// InsertVertex inserts p on edge lineIndex of id's mesh.
func (e *Engine) InsertVertex(id scene.EntityID, lineIndex int, p geom.Vec2) error {
	return e.execute(command.NewInsertVertex(e.env(), id, lineIndex, p))
}

func (e *Engine) Undo() error {
	cmd, err := e.history.Undo()
	if err != nil {
		return err
	}
	e.afterHistory(notify.HistoryUndone, cmd)
	return nil
}

func (e *Engine) Redo() error {
	cmd, err := e.history.Redo()
	if err != nil {
		return err
	}
	e.afterHistory(notify.HistoryRedone, cmd)
	return nil
}

func (e *Engine) CanUndo() bool { return e.history.CanUndo() }

func (e *Engine) CanRedo() bool { return e.history.CanRedo() }

// afterHistory drops state that pointed at entities the replay removed.
func (e *Engine) afterHistory(event string, cmd command.Command) {
	e.selection.Prune(e.store)
	if !e.store.Has(e.view) {
		e.view = e.store.Root()
	}
	e.active = nil
	e.followers.RefreshAll(e.store)
	e.bus.Publish(notify.Event{Name: event, Payload: cmd.Name()})
}

// --- Overlays ---

// SetCamera replaces the view matrix used to project anchors.
func (e *Engine) SetCamera(view geom.Matrix2D) {
	e.camera.View = view
	for _, f := range e.followers.All() {
		f.UpdateDraw()
	}
}

// AttachMeshFollower puts a mesh overlay on id. An entity without a mesh
// gets a follower that shows and accepts nothing.
func (e *Engine) AttachMeshFollower(id scene.EntityID) (*overlay.MeshFollower, error) {
	if !e.store.Has(id) {
		return nil, fmt.Errorf("attach follower %s: %w", id, scene.ErrNotFound)
	}
	f := overlay.NewMeshFollower(e.store, id, overlay.Options{
		AnchorSize: e.opts.AnchorSize,
		HitRadius:  e.opts.HitRadius,
		Projector:  e.camera,
		OnIntent:   e.handleIntent,
	})
	e.followers.Attach(f)
	return f, nil
}

func (e *Engine) DetachMeshFollower(id scene.EntityID) {
	if e.active != nil && e.active.EntityID() == id {
		e.active = nil
	}
	e.followers.RemoveFollower(id)
}

// handleIntent turns committing gestures into commands. Press and drag only
// preview inside the follower.
func (e *Engine) handleIntent(in overlay.Intent) {
	var err error
	switch in.Kind {
	case overlay.IntentAnchorRelease:
		err = e.MoveVertex(in.EntityID, in.Index, in.Point)
	case overlay.IntentVertexInsert:
		err = e.InsertVertex(in.EntityID, in.Index, in.Point)
	default:
		return
	}
	if err != nil {
		slog.Warn("overlay intent rejected", "intent", in.Kind, "entity", in.EntityID, "error", err)
		e.followers.Refresh(in.EntityID)
	}
}

// --- Pointer input (screen space) ---

// PointerDown routes a press to the first follower that accepts it, then
// falls back to selecting the entity under the pointer within the edited
// container. It reports whether anything was hit.
func (e *Engine) PointerDown(p geom.Vec2) bool {
	e.active = nil
	for _, f := range e.followers.All() {
		if f.TouchDown(p) {
			if f.Dragging() >= 0 {
				e.active = f
			}
			return true
		}
	}

	world := e.camera.Unproject(p)
	hit := e.pick(HitTest(BuildSceneGraph(e.store), world.X, world.Y))
	if hit == 0 {
		e.selection.Clear()
		return false
	}
	e.selection.Set(hit)
	return true
}

// pick maps a hit entity to its ancestor that is a direct child of the view.
func (e *Engine) pick(id scene.EntityID) scene.EntityID {
	for id != 0 {
		ent, ok := e.store.Get(id)
		if !ok {
			return 0
		}
		if ent.Parent == e.view {
			return id
		}
		id = ent.Parent
	}
	return 0
}

func (e *Engine) PointerDrag(p geom.Vec2) bool {
	if e.active == nil {
		return false
	}
	return e.active.TouchDragged(p)
}

func (e *Engine) PointerUp(p geom.Vec2) bool {
	if e.active == nil {
		return false
	}
	f := e.active
	e.active = nil
	return f.TouchUp(p)
}

// PointerCancel abandons the current gesture without committing it.
func (e *Engine) PointerCancel() {
	if e.active != nil {
		e.active.Cancel()
		e.active = nil
	}
}

// --- State ---

// State returns a detached copy of the scene.
func (e *Engine) State() scene.State {
	return e.store.State()
}

// LoadState replaces the scene. History, selection and view are reset.
func (e *Engine) LoadState(st scene.State) error {
	if err := e.store.Restore(st); err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	e.history.Clear()
	e.selection.Clear()
	e.view = e.store.Root()
	e.active = nil
	e.followers.RefreshAll(e.store)
	return nil
}

// Render returns the draw commands for the scene followed by the overlays.
func (e *Engine) Render() []DrawCommand {
	commands := CompileDrawCommands(BuildSceneGraph(e.store))
	for _, f := range e.followers.All() {
		compileFollower(f, &commands)
	}
	return commands
}

// SelectionBounds returns the world bounds of the selection.
func (e *Engine) SelectionBounds() geom.Rect {
	return SelectionBounds(BuildSceneGraph(e.store), e.selection.Items())
}

// IsHistoryCorruption reports whether err means the history no longer
// matches the scene.
func IsHistoryCorruption(err error) bool {
	return errors.Is(err, command.ErrHistoryCorruption)
}
