// Package eventstream implements the Outbound Event Stream (spec.md §6.5):
// after a resolved action, the core emits a delta bundle favoring diffs
// over full snapshots; state remains authoritative on the core side.
package eventstream

import (
	"sync"

	"github.com/google/uuid"

	"tilecrawler/internal/narrative"
	"tilecrawler/internal/worldstate"
)

// Delta is one broadcast bundle.
type Delta struct {
	UpdatedState       *worldstate.Player
	RoomChanges        []worldstate.RoomChange
	NarrativeAdditions []narrative.Event
	AudioHint          string
}

// Stream fans a sequence of Deltas out to subscribers. Publish never blocks
// on a slow subscriber for long: each subscriber channel is buffered, and a
// full channel drops the oldest pending delta rather than stalling the
// task loop (a late-arriving replacement is allowed to be superseded, per
// §5's "the UI may ignore a late-arriving response").
type Stream struct {
	mu   sync.Mutex
	subs map[string]chan Delta
}

// NewStream creates an empty Stream.
func NewStream() *Stream {
	return &Stream{subs: map[string]chan Delta{}}
}

// Subscription is a handle a caller uses to receive and later stop
// receiving Deltas. The id is a random UUID rather than a counter so it
// stays stable and unique if a subscriber is ever handed off across a
// save/load (a counter would collide with a freshly restored Stream's own
// sequence).
type Subscription struct {
	id string
	ch chan Delta
	s  *Stream
}

// C returns the channel to receive Deltas on.
func (sub *Subscription) C() <-chan Delta { return sub.ch }

// Close unregisters the subscription.
func (sub *Subscription) Close() {
	sub.s.mu.Lock()
	defer sub.s.mu.Unlock()
	delete(sub.s.subs, sub.id)
	close(sub.ch)
}

// Subscribe registers a new subscriber with a bounded buffer.
func (s *Stream) Subscribe() *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	ch := make(chan Delta, 32)
	s.subs[id] = ch
	return &Subscription{id: id, ch: ch, s: s}
}

// Publish broadcasts d to every subscriber.
func (s *Stream) Publish(d Delta) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- d:
		default:
			// drop oldest, then push
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- d:
			default:
			}
		}
	}
}
