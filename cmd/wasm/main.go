//go:build js && wasm

package main

import (
	"encoding/json"
	"syscall/js"

	"github.com/inamate/sceneedit/internal/engine"
	"github.com/inamate/sceneedit/internal/factory"
	"github.com/inamate/sceneedit/internal/geom"
	"github.com/inamate/sceneedit/internal/notify"
	"github.com/inamate/sceneedit/internal/scene"
)

var (
	eng    *engine.Engine
	events []notify.Event
)

func main() {
	eng = engine.NewEngine(engine.Options{HistoryLimit: 100})
	eng.Bus().SubscribeAll(func(ev notify.Event) { events = append(events, ev) })

	// Create the editor API object
	sceneEditor := js.Global().Get("Object").New()

	// --- Commands (frontend → core) ---
	sceneEditor.Set("loadState", js.FuncOf(loadState))
	sceneEditor.Set("select", js.FuncOf(selectIDs))
	sceneEditor.Set("enterComposite", js.FuncOf(enterComposite))
	sceneEditor.Set("exitComposite", js.FuncOf(exitComposite))
	sceneEditor.Set("convertToComposite", js.FuncOf(convertToComposite))
	sceneEditor.Set("addItem", js.FuncOf(addItem))
	sceneEditor.Set("moveSelection", js.FuncOf(moveSelection))
	sceneEditor.Set("undo", js.FuncOf(undo))
	sceneEditor.Set("redo", js.FuncOf(redo))
	sceneEditor.Set("attachMeshFollower", js.FuncOf(attachMeshFollower))
	sceneEditor.Set("detachMeshFollower", js.FuncOf(detachMeshFollower))
	sceneEditor.Set("setCamera", js.FuncOf(setCamera))
	sceneEditor.Set("pointerDown", js.FuncOf(pointerDown))
	sceneEditor.Set("pointerDrag", js.FuncOf(pointerDrag))
	sceneEditor.Set("pointerUp", js.FuncOf(pointerUp))
	sceneEditor.Set("pointerCancel", js.FuncOf(pointerCancel))

	// --- Queries (frontend ← core) ---
	sceneEditor.Set("render", js.FuncOf(render))
	sceneEditor.Set("getState", js.FuncOf(getState))
	sceneEditor.Set("getSelection", js.FuncOf(getSelection))
	sceneEditor.Set("getSelectionBounds", js.FuncOf(getSelectionBounds))
	sceneEditor.Set("getViewId", js.FuncOf(getViewID))
	sceneEditor.Set("canUndo", js.FuncOf(canUndo))
	sceneEditor.Set("canRedo", js.FuncOf(canRedo))
	sceneEditor.Set("takeEvents", js.FuncOf(takeEvents))

	js.Global().Set("sceneEditor", sceneEditor)
	js.Global().Set("sceneEditorReady", js.ValueOf(true))

	// Keep Go runtime alive
	select {}
}

func result(err error) any {
	if err != nil {
		return js.ValueOf(map[string]any{"error": err.Error()})
	}
	return js.ValueOf(map[string]any{"ok": true})
}

func toJSON(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return js.ValueOf("null")
	}
	return js.ValueOf(string(data))
}

func point(args []js.Value) (geom.Vec2, bool) {
	if len(args) < 2 {
		return geom.Vec2{}, false
	}
	return geom.Vec2{X: args[0].Float(), Y: args[1].Float()}, true
}

func entityID(args []js.Value) scene.EntityID {
	if len(args) < 1 {
		return 0
	}
	return scene.EntityID(args[0].Int())
}

// --- Command Handlers ---

func loadState(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return js.ValueOf(map[string]any{"error": "missing state JSON"})
	}
	var st scene.State
	if err := json.Unmarshal([]byte(args[0].String()), &st); err != nil {
		return result(err)
	}
	return result(eng.LoadState(st))
}

func selectIDs(this js.Value, args []js.Value) any {
	if len(args) < 1 || args[0].Type() != js.TypeObject {
		return result(eng.Select())
	}
	arr := args[0]
	ids := make([]scene.EntityID, arr.Length())
	for i := range ids {
		ids[i] = scene.EntityID(arr.Index(i).Int())
	}
	return result(eng.Select(ids...))
}

func enterComposite(this js.Value, args []js.Value) any {
	return result(eng.EnterComposite(entityID(args)))
}

func exitComposite(this js.Value, args []js.Value) any {
	return result(eng.ExitComposite())
}

func convertToComposite(this js.Value, args []js.Value) any {
	id, err := eng.ConvertToComposite()
	if err != nil {
		return result(err)
	}
	return js.ValueOf(map[string]any{"ok": true, "entityId": int(id)})
}

func addItem(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return js.ValueOf(map[string]any{"error": "missing item JSON"})
	}
	var spec factory.ItemSpec
	if err := json.Unmarshal([]byte(args[0].String()), &spec); err != nil {
		return result(err)
	}
	id, err := eng.AddItem(spec)
	if err != nil {
		return result(err)
	}
	return js.ValueOf(map[string]any{"ok": true, "entityId": int(id)})
}

func moveSelection(this js.Value, args []js.Value) any {
	d, ok := point(args)
	if !ok {
		return js.ValueOf(map[string]any{"error": "missing offset"})
	}
	return result(eng.MoveSelection(d.X, d.Y))
}

func undo(this js.Value, args []js.Value) any {
	return result(eng.Undo())
}

func redo(this js.Value, args []js.Value) any {
	return result(eng.Redo())
}

func attachMeshFollower(this js.Value, args []js.Value) any {
	_, err := eng.AttachMeshFollower(entityID(args))
	return result(err)
}

func detachMeshFollower(this js.Value, args []js.Value) any {
	eng.DetachMeshFollower(entityID(args))
	return nil
}

func setCamera(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return nil
	}
	var m geom.Matrix2D
	if err := json.Unmarshal([]byte(args[0].String()), &m); err != nil {
		return result(err)
	}
	eng.SetCamera(m)
	return nil
}

func pointerDown(this js.Value, args []js.Value) any {
	p, ok := point(args)
	return js.ValueOf(ok && eng.PointerDown(p))
}

func pointerDrag(this js.Value, args []js.Value) any {
	p, ok := point(args)
	return js.ValueOf(ok && eng.PointerDrag(p))
}

func pointerUp(this js.Value, args []js.Value) any {
	p, ok := point(args)
	return js.ValueOf(ok && eng.PointerUp(p))
}

func pointerCancel(this js.Value, args []js.Value) any {
	eng.PointerCancel()
	return nil
}

// --- Query Handlers ---

func render(this js.Value, args []js.Value) any {
	return toJSON(eng.Render())
}

func getState(this js.Value, args []js.Value) any {
	return toJSON(eng.State())
}

func getSelection(this js.Value, args []js.Value) any {
	return toJSON(eng.Selection())
}

func getSelectionBounds(this js.Value, args []js.Value) any {
	return toJSON(eng.SelectionBounds())
}

func getViewID(this js.Value, args []js.Value) any {
	return js.ValueOf(int(eng.ViewID()))
}

func canUndo(this js.Value, args []js.Value) any {
	return js.ValueOf(eng.CanUndo())
}

func canRedo(this js.Value, args []js.Value) any {
	return js.ValueOf(eng.CanRedo())
}

// takeEvents returns and clears the notifications published since the last
// call, for the UI to refresh from.
func takeEvents(this js.Value, args []js.Value) any {
	out := toJSON(events)
	events = events[:0]
	return out
}
