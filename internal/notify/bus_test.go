package notify

import (
	"slices"
	"testing"
)

func TestBusDeliversByName(t *testing.T) {
	b := NewBus()
	var named, all []string

	b.Subscribe(ItemAdded, func(ev Event) { named = append(named, ev.Name) })
	b.SubscribeAll(func(ev Event) { all = append(all, ev.Name) })

	b.Publish(Event{Name: ItemAdded, Payload: 7})
	b.Publish(Event{Name: CompositeDone})

	if !slices.Equal(named, []string{ItemAdded}) {
		t.Fatalf("named = %v", named)
	}
	if !slices.Equal(all, []string{ItemAdded, CompositeDone}) {
		t.Fatalf("all = %v", all)
	}
}

func TestBusUnsubscribe(t *testing.T) {
	b := NewBus()
	calls := 0
	cancel := b.Subscribe(MeshChanged, func(Event) { calls++ })

	b.Publish(Event{Name: MeshChanged})
	cancel()
	b.Publish(Event{Name: MeshChanged})

	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestBusSurvivesPanickingObserver(t *testing.T) {
	b := NewBus()
	delivered := false
	b.SubscribeAll(func(Event) { panic("boom") })
	b.SubscribeAll(func(Event) { delivered = true })

	b.Publish(Event{Name: CompositeDone})

	if !delivered {
		t.Fatalf("observer after the panicking one was skipped")
	}
}
