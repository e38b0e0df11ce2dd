package collab

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/inamate/sceneedit/internal/factory"
	"github.com/inamate/sceneedit/internal/geom"
	"github.com/inamate/sceneedit/internal/notify"
	"github.com/inamate/sceneedit/internal/scene"
)

func newTestClient(h *Hub, sessionID, clientID string) *Client {
	return NewClient(h, nil, "user_"+clientID, "User "+clientID, sessionID, clientID)
}

// drain returns every message queued for c.
func drain(t *testing.T, c *Client) []*Message {
	t.Helper()
	var out []*Message
	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				return out
			}
			var msg Message
			if err := json.Unmarshal(data, &msg); err != nil {
				t.Fatalf("decode: %v", err)
			}
			out = append(out, &msg)
		default:
			return out
		}
	}
}

func types(msgs []*Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Type
	}
	return out
}

func submit(t *testing.T, h *Hub, c *Client, op Operation) {
	t.Helper()
	payload, err := json.Marshal(OperationSubmitPayload{Operation: op})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	h.handleMessage(c, &Message{Type: TypeCmdSubmit, Payload: payload})
}

func decode[T any](t *testing.T, msg *Message) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(msg.Payload, &v); err != nil {
		t.Fatalf("decode %s: %v", msg.Type, err)
	}
	return v
}

func seedState(t *testing.T) *scene.State {
	t.Helper()
	store := scene.NewStore()
	for _, x := range []float64{10, 20} {
		if _, err := store.Add(store.Root(), &scene.Entity{
			Kind:      scene.KindImage,
			Transform: scene.Transform{X: x, Y: 10, ScaleX: 1, ScaleY: 1},
		}); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	st := store.State()
	return &st
}

func TestJoinSendsWelcomeAndSync(t *testing.T) {
	seed := seedState(t)
	h := NewHub(func(context.Context, string) (*scene.State, error) { return seed, nil }, nil, Options{})

	a := newTestClient(h, "sess_1", "a")
	h.addClient(a)
	msgs := drain(t, a)
	if want := []string{TypeWelcome, TypeSceneSync, TypePresenceState}; !slices.Equal(types(msgs), want) {
		t.Fatalf("messages = %v, want %v", types(msgs), want)
	}
	synced := decode[SceneSyncPayload](t, msgs[1])
	if len(synced.State.Entities) != 3 {
		t.Fatalf("synced %d entities, want 3", len(synced.State.Entities))
	}

	b := newTestClient(h, "sess_1", "b")
	h.addClient(b)
	if got := types(drain(t, a)); !slices.Equal(got, []string{TypePresenceJoin}) {
		t.Fatalf("a saw %v", got)
	}
}

func TestSubmitConvertBroadcastsAndAcks(t *testing.T) {
	seed := seedState(t)
	h := NewHub(func(context.Context, string) (*scene.State, error) { return seed, nil }, nil, Options{})
	a := newTestClient(h, "sess_1", "a")
	b := newTestClient(h, "sess_1", "b")
	h.addClient(a)
	h.addClient(b)
	drain(t, a)
	drain(t, b)

	submit(t, h, a, Operation{ID: "op_1", Type: OpConvert, IDs: []scene.EntityID{2, 3}, ClientSeq: 7})

	msgsA := drain(t, a)
	want := []string{TypeSceneEvent, TypeSceneEvent, TypeCmdAck}
	if !slices.Equal(types(msgsA), want) {
		t.Fatalf("a got %v, want %v", types(msgsA), want)
	}
	ev := decode[SceneEventPayload](t, msgsA[0])
	if ev.Event.Name != notify.CompositeDone || ev.ServerSeq != 1 {
		t.Fatalf("event = %+v", ev)
	}
	ack := decode[OperationAckPayload](t, msgsA[2])
	if ack.OperationID != "op_1" || ack.ServerSeq != 1 || ack.EntityID != 4 {
		t.Fatalf("ack = %+v", ack)
	}
	if !slices.Equal(ack.Selection, []scene.EntityID{4}) || msgsA[2].Seq != 7 {
		t.Fatalf("ack selection = %v, seq = %d", ack.Selection, msgsA[2].Seq)
	}

	if got := types(drain(t, b)); !slices.Equal(got, []string{TypeSceneEvent, TypeSceneEvent}) {
		t.Fatalf("b got %v", got)
	}
	if !h.sessions["sess_1"].dirty {
		t.Fatalf("session not marked dirty")
	}
}

func TestSubmitNackReasons(t *testing.T) {
	cases := []struct {
		name   string
		op     Operation
		reason string
	}{
		{"empty_selection", Operation{Type: OpConvert}, ReasonPrecondition},
		{"nothing_to_undo", Operation{Type: OpUndo}, ReasonNothingToDo},
		{"unknown_type", Operation{Type: "teleport"}, ReasonInvalid},
		{"unknown_entity", Operation{Type: OpSelect, IDs: []scene.EntityID{99}}, ReasonInvalid},
		{"missing_point", Operation{Type: OpMoveVertex, EntityID: 2}, ReasonInvalid},
		{"no_mesh", Operation{Type: OpInsertVertex, EntityID: 2, Point: &geom.Vec2{}}, ReasonPrecondition},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			seed := seedState(t)
			h := NewHub(func(context.Context, string) (*scene.State, error) { return seed, nil }, nil, Options{})
			a := newTestClient(h, "sess_1", "a")
			h.addClient(a)
			drain(t, a)

			submit(t, h, a, c.op)
			msgs := drain(t, a)
			if len(msgs) != 1 || msgs[0].Type != TypeCmdNack {
				t.Fatalf("messages = %v", types(msgs))
			}
			nack := decode[OperationNackPayload](t, msgs[0])
			if nack.Reason != c.reason || nack.OperationID == "" {
				t.Fatalf("nack = %+v, want reason %s", nack, c.reason)
			}
			if h.sessions["sess_1"].dirty {
				t.Fatalf("rejected operation marked the session dirty")
			}
		})
	}
}

func TestUndoRedoOverTheWire(t *testing.T) {
	h := NewHub(nil, nil, Options{})
	a := newTestClient(h, "sess_1", "a")
	h.addClient(a)

	submit(t, h, a, Operation{Type: OpAddItem, Item: &factory.ItemSpec{Name: "x"}})
	submit(t, h, a, Operation{Type: OpUndo})
	submit(t, h, a, Operation{Type: OpRedo})
	drain(t, a)

	st := h.sessions["sess_1"].engine.State()
	if len(st.Entities) != 2 || st.Entities[1].Name != "x" {
		t.Fatalf("state = %+v", st.Entities)
	}
	if h.sessions["sess_1"].serverSeq != 3 {
		t.Fatalf("serverSeq = %d, want 3", h.sessions["sess_1"].serverSeq)
	}
}

func TestPresenceUpdateGoesToOthers(t *testing.T) {
	h := NewHub(nil, nil, Options{})
	a := newTestClient(h, "sess_1", "a")
	b := newTestClient(h, "sess_1", "b")
	h.addClient(a)
	h.addClient(b)
	drain(t, a)
	drain(t, b)

	payload, _ := json.Marshal(PresencePayload{Cursor: &geom.Vec2{X: 1, Y: 2}})
	h.handleMessage(a, &Message{Type: TypePresenceUpdate, Payload: payload})

	if got := drain(t, a); len(got) != 0 {
		t.Fatalf("sender got %v", types(got))
	}
	got := drain(t, b)
	if len(got) != 1 || got[0].Type != TypePresenceUpdate || got[0].ClientID != "a" {
		t.Fatalf("b got %v", types(got))
	}
	p := decode[PresencePayload](t, got[0])
	if p.DisplayName != "User a" || *p.Cursor != (geom.Vec2{X: 1, Y: 2}) {
		t.Fatalf("presence = %+v", p)
	}
}

type recordingSaver struct {
	mu    sync.Mutex
	saved map[string]scene.State
	err   error
}

func (r *recordingSaver) save(_ context.Context, id string, st scene.State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if r.saved == nil {
		r.saved = make(map[string]scene.State)
	}
	r.saved[id] = st
	return nil
}

func TestLastClientLeavingSaves(t *testing.T) {
	rec := &recordingSaver{}
	h := NewHub(nil, rec.save, Options{})
	a := newTestClient(h, "sess_1", "a")
	h.addClient(a)
	submit(t, h, a, Operation{Type: OpAddItem, Item: &factory.ItemSpec{Name: "x"}})

	h.removeClient(a)
	if _, ok := h.sessions["sess_1"]; ok {
		t.Fatalf("empty session kept open")
	}
	if st, ok := rec.saved["sess_1"]; !ok || len(st.Entities) != 2 {
		t.Fatalf("saved = %+v", rec.saved)
	}
	drain(t, a)
	if _, ok := <-a.send; ok {
		t.Fatalf("client queue left open")
	}
}

func TestFailedSaveKeepsDirty(t *testing.T) {
	rec := &recordingSaver{err: errors.New("db down")}
	h := NewHub(nil, rec.save, Options{})
	a := newTestClient(h, "sess_1", "a")
	h.addClient(a)
	submit(t, h, a, Operation{Type: OpAddItem, Item: &factory.ItemSpec{}})

	h.saveAll()
	if !h.sessions["sess_1"].dirty {
		t.Fatalf("failed save cleared the dirty flag")
	}
}

func TestLoaderErrorStartsEmpty(t *testing.T) {
	h := NewHub(func(context.Context, string) (*scene.State, error) {
		return nil, errors.New("db down")
	}, nil, Options{})
	a := newTestClient(h, "sess_1", "a")
	h.addClient(a)
	if n := len(h.sessions["sess_1"].engine.State().Entities); n != 1 {
		t.Fatalf("entities = %d, want only the root", n)
	}
}

func TestRunStopSavesDirtySessions(t *testing.T) {
	rec := &recordingSaver{}
	h := NewHub(nil, rec.save, Options{SaveInterval: time.Hour})
	go h.Run()

	a := newTestClient(h, "sess_1", "a")
	h.Register(a)
	payload, _ := json.Marshal(OperationSubmitPayload{Operation: Operation{Type: OpAddItem, Item: &factory.ItemSpec{}}})
	h.deliver(a, &Message{Type: TypeCmdSubmit, Payload: payload})
	h.Stop()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if _, ok := rec.saved["sess_1"]; !ok {
		t.Fatalf("dirty session not saved on stop")
	}

	// the hub is gone; late calls must not block
	h.Unregister(a)
	h.Stop()
}

func TestUndoPrunesRemotePresence(t *testing.T) {
	seed := seedState(t)
	h := NewHub(func(context.Context, string) (*scene.State, error) { return seed, nil }, nil, Options{})
	a := newTestClient(h, "sess_1", "a")
	b := newTestClient(h, "sess_1", "b")
	h.addClient(a)
	h.addClient(b)

	submit(t, h, a, Operation{Type: OpAddItem, Item: &factory.ItemSpec{Name: "x"}})
	payload, _ := json.Marshal(PresencePayload{Selection: []scene.EntityID{2, 4}})
	h.handleMessage(b, &Message{Type: TypePresenceUpdate, Payload: payload})
	drain(t, a)
	drain(t, b)

	submit(t, h, a, Operation{Type: OpUndo})

	var update *Message
	for _, m := range drain(t, b) {
		if m.Type == TypePresenceUpdate {
			update = m
		}
	}
	if update == nil || update.ClientID != "b" {
		t.Fatalf("no pruned presence for b")
	}
	p := decode[PresencePayload](t, update)
	if !slices.Equal(p.Selection, []scene.EntityID{2}) {
		t.Fatalf("pruned selection = %v, want [2]", p.Selection)
	}
}

func TestRejectedOperationKeepsViewAndSelection(t *testing.T) {
	cases := []struct {
		name string
		op   Operation
	}{
		{"convert_in_empty_composite", Operation{Type: OpConvert, ViewID: 4}},
		{"vertex_on_meshless_item", Operation{Type: OpMoveVertex, IDs: []scene.EntityID{3}, EntityID: 3, Point: &geom.Vec2{}}},
		{"unknown_selection", Operation{Type: OpMoveItems, ViewID: 4, IDs: []scene.EntityID{99}, DX: 1}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			seed := seedState(t)
			h := NewHub(func(context.Context, string) (*scene.State, error) { return seed, nil }, nil, Options{})
			a := newTestClient(h, "sess_1", "a")
			h.addClient(a)
			submit(t, h, a, Operation{Type: OpConvert, IDs: []scene.EntityID{2}})
			drain(t, a)

			eng := h.sessions["sess_1"].engine
			if eng.ViewID() != 1 || !slices.Equal(eng.Selection(), []scene.EntityID{4}) {
				t.Fatalf("setup view = %d, selection = %v", eng.ViewID(), eng.Selection())
			}

			submit(t, h, a, c.op)
			msgs := drain(t, a)
			if len(msgs) != 1 || msgs[0].Type != TypeCmdNack {
				t.Fatalf("messages = %v", types(msgs))
			}
			if eng.ViewID() != 1 {
				t.Fatalf("view = %d after rejection, want 1", eng.ViewID())
			}
			if !slices.Equal(eng.Selection(), []scene.EntityID{4}) {
				t.Fatalf("selection = %v after rejection, want [4]", eng.Selection())
			}
		})
	}
}
