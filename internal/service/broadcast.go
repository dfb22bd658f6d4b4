package service

import (
	"sync"
)

// defaultSubscriberBuffer is the channel depth given to each subscription.
const defaultSubscriberBuffer = 8

// Subscription is one listener on a batch's progress snapshots.
type Subscription struct {
	batchID string
	ch      chan *Snapshot
}

// Updates returns the channel snapshots are delivered on.
// The channel is closed when the subscription is removed.
func (s *Subscription) Updates() <-chan *Snapshot {
	return s.ch
}

// Broadcaster fans batch progress snapshots out to subscribers.
// Delivery is best-effort: a subscriber that cannot keep up is dropped
// rather than stalling the publisher.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[string]map[*Subscription]struct{}
	buffer int
}

// NewBroadcaster creates a new Broadcaster.
// Parameters:
//   - buffer: per-subscriber channel depth; non-positive uses the default.
// Returns:
//   - *Broadcaster: initialized broadcaster.
func NewBroadcaster(buffer int) *Broadcaster {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	return &Broadcaster{
		subs:   make(map[string]map[*Subscription]struct{}),
		buffer: buffer,
	}
}

// Subscribe registers a listener for one batch.
// Parameters:
//   - batchID: batch to listen on.
// Returns:
//   - *Subscription: registered subscription.
func (b *Broadcaster) Subscribe(batchID string) *Subscription {
	sub := &Subscription{
		batchID: batchID,
		ch:      make(chan *Snapshot, b.buffer),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.subs[batchID]
	if !ok {
		set = make(map[*Subscription]struct{})
		b.subs[batchID] = set
	}
	set[sub] = struct{}{}
	return sub
}

// Unsubscribe removes a subscription and closes its channel.
// Safe to call after the subscriber has already been dropped.
// Parameters:
//   - sub: subscription to remove.
// Returns: none.
func (b *Broadcaster) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(sub)
}

// Publish delivers a snapshot to every subscriber of a batch.
// Subscribers whose buffers are full are dropped. Batches with no
// subscribers are a no-op.
// Parameters:
//   - batchID: batch the snapshot belongs to.
//   - snap: snapshot to deliver.
// Returns: none.
func (b *Broadcaster) Publish(batchID string, snap *Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()

	set, ok := b.subs[batchID]
	if !ok {
		return
	}

	var dropped []*Subscription
	for sub := range set {
		select {
		case sub.ch <- snap:
		default:
			dropped = append(dropped, sub)
		}
	}
	for _, sub := range dropped {
		b.removeLocked(sub)
	}
}

// SubscriberCount reports the number of active subscribers for a batch.
// Parameters:
//   - batchID: batch to inspect.
// Returns:
//   - int: subscriber count.
func (b *Broadcaster) SubscriberCount(batchID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[batchID])
}

// removeLocked deletes a subscription and closes its channel.
// Caller must hold b.mu.
func (b *Broadcaster) removeLocked(sub *Subscription) {
	set, ok := b.subs[sub.batchID]
	if !ok {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	close(sub.ch)
	if len(set) == 0 {
		delete(b.subs, sub.batchID)
	}
}
