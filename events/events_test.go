package events

import "testing"

func TestPublishDeliversToSubscriber(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(4)
	defer unsub()

	b.Publish(Event{Type: "cp_state_changed", CPID: "CP-001"})

	select {
	case ev := <-ch:
		if ev.CPID != "CP-001" {
			t.Fatalf("got %+v", ev)
		}
	default:
		t.Fatalf("expected event to be delivered")
	}
}

func TestPublishNeverBlocksOnFullSubscriber(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(1)
	defer unsub()

	// Fill the buffer, then publish again: must not block or panic.
	b.Publish(Event{Type: "a"})
	b.Publish(Event{Type: "b"})

	ev := <-ch
	if ev.Type != "a" {
		t.Fatalf("got %q, want a (second publish should have been dropped)", ev.Type)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(4)
	unsub()

	b.Publish(Event{Type: "x"})

	if _, ok := <-ch; ok {
		t.Fatalf("expected channel to be closed after unsubscribe")
	}
}

func TestPublishWithNoSubscribers(t *testing.T) {
	b := New()
	b.Publish(Event{Type: "noop"}) // must not panic
}
