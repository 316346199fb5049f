package player

import "sync"

// fanout distributes values from one producer to N taps. Slow taps have
// values dropped rather than blocking the producer; audio must keep moving.
type fanout[T any] struct {
	mu   sync.RWMutex
	taps map[*tap[T]]struct{}
}

// tap receives values from a fanout until Close is called or the fanout is
// shut down, at which point the channel is closed.
type tap[T any] struct {
	f *fanout[T]
	c chan T
}

func newFanout[T any]() *fanout[T] {
	return &fanout[T]{taps: make(map[*tap[T]]struct{})}
}

func (f *fanout[T]) subscribe(buffer int) *tap[T] {
	t := &tap[T]{f: f, c: make(chan T, buffer)}
	f.mu.Lock()
	f.taps[t] = struct{}{}
	f.mu.Unlock()
	return t
}

func (f *fanout[T]) remove(t *tap[T]) {
	f.mu.Lock()
	if _, ok := f.taps[t]; ok {
		delete(f.taps, t)
		close(t.c)
	}
	f.mu.Unlock()
}

func (f *fanout[T]) publish(v T) {
	f.mu.RLock()
	for t := range f.taps {
		select {
		case t.c <- v:
		default:
			// tap too slow, drop
		}
	}
	f.mu.RUnlock()
}

// closeAll closes every tap, signalling subscribers that the source is gone.
func (f *fanout[T]) closeAll() {
	f.mu.Lock()
	for t := range f.taps {
		delete(f.taps, t)
		close(t.c)
	}
	f.mu.Unlock()
}

// Frames returns the tap's receive channel.
func (t *tap[T]) Frames() <-chan T { return t.c }

// Close detaches the tap from its fanout.
func (t *tap[T]) Close() { t.f.remove(t) }
