package talkkiller

import (
	"sync"
	"time"
)

type EventType string

const (
	// EventTick is emitted once per sampling tick with the current score.
	EventTick EventType = "tick"

	// EventBlocked is emitted once when analysis becomes permanently
	// unavailable for the current station.
	EventBlocked EventType = "blocked"

	// EventSwitch is emitted when the trigger fires a station switch.
	EventSwitch EventType = "switch"
)

// Event is what the detector publishes to its subscribers (the websocket
// feed and the notifier).
type Event struct {
	Type    EventType `json:"type"`
	Score   float64   `json:"speechScore"`
	Label   string    `json:"label,omitempty"`
	Blocked bool      `json:"analysisBlocked,omitempty"`
	Station string    `json:"station,omitempty"`
	Target  string    `json:"target,omitempty"`
	At      time.Time `json:"at"`
}

// Subscription receives detector events. Slow subscribers have events
// dropped rather than blocking the detection loop.
type Subscription struct {
	C    chan Event
	done chan struct{}
}

type feed struct {
	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

func newFeed() *feed {
	return &feed{subs: make(map[*Subscription]struct{})}
}

func (f *feed) subscribe() *Subscription {
	sub := &Subscription{
		C:    make(chan Event, 32),
		done: make(chan struct{}),
	}
	f.mu.Lock()
	f.subs[sub] = struct{}{}
	f.mu.Unlock()
	return sub
}

func (f *feed) unsubscribe(sub *Subscription) {
	f.mu.Lock()
	if _, ok := f.subs[sub]; ok {
		delete(f.subs, sub)
		close(sub.done)
	}
	f.mu.Unlock()
}

func (f *feed) publish(e Event) {
	f.mu.RLock()
	for sub := range f.subs {
		select {
		case sub.C <- e:
		default:
			// subscriber too slow, drop the event
		}
	}
	f.mu.RUnlock()
}

// Done is closed when the subscription is cancelled.
func (s *Subscription) Done() <-chan struct{} { return s.done }
