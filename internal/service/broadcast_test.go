package service

import (
	"testing"
)

func TestPublishDeliversToSubscribers(t *testing.T) {
	b := NewBroadcaster(4)
	sub1 := b.Subscribe("batch-1")
	sub2 := b.Subscribe("batch-1")

	if got := b.SubscriberCount("batch-1"); got != 2 {
		t.Fatalf("subscriber count = %d, want 2", got)
	}

	snap := &Snapshot{BatchID: "batch-1"}
	b.Publish("batch-1", snap)

	for i, sub := range []*Subscription{sub1, sub2} {
		select {
		case got := <-sub.Updates():
			if got != snap {
				t.Errorf("subscriber %d received %+v, want the published snapshot", i, got)
			}
		default:
			t.Errorf("subscriber %d received nothing", i)
		}
	}
}

func TestPublishIsScopedToBatch(t *testing.T) {
	b := NewBroadcaster(4)
	sub := b.Subscribe("batch-b")

	b.Publish("batch-a", &Snapshot{BatchID: "batch-a"})

	select {
	case got := <-sub.Updates():
		t.Errorf("subscriber of batch-b received %+v", got)
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := NewBroadcaster(4)
	sub := b.Subscribe("batch-1")

	b.Unsubscribe(sub)

	if _, ok := <-sub.Updates(); ok {
		t.Error("expected channel to be closed after unsubscribe")
	}
	if got := b.SubscriberCount("batch-1"); got != 0 {
		t.Errorf("subscriber count = %d, want 0", got)
	}

	// A second unsubscribe of the same subscription is a no-op
	b.Unsubscribe(sub)
}

func TestSlowSubscriberIsDropped(t *testing.T) {
	b := NewBroadcaster(1)
	sub := b.Subscribe("batch-1")

	first := &Snapshot{BatchID: "batch-1"}
	second := &Snapshot{BatchID: "batch-1"}
	b.Publish("batch-1", first)
	b.Publish("batch-1", second)

	if got := b.SubscriberCount("batch-1"); got != 0 {
		t.Errorf("subscriber count = %d, want 0 after overflow", got)
	}

	// The buffered snapshot is still readable, then the channel is closed
	if got, ok := <-sub.Updates(); !ok || got != first {
		t.Errorf("first receive = (%+v, %v), want the buffered snapshot", got, ok)
	}
	if _, ok := <-sub.Updates(); ok {
		t.Error("expected channel to be closed after the subscriber was dropped")
	}
}

func TestPublishWithoutSubscribers(t *testing.T) {
	b := NewBroadcaster(4)
	b.Publish("batch-1", &Snapshot{BatchID: "batch-1"})

	if got := b.SubscriberCount("batch-1"); got != 0 {
		t.Errorf("subscriber count = %d, want 0", got)
	}
}
