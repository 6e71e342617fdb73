// Package queue holds the telemetry buffer shared by the sensor simulators
// (many producers) and the stream delivery loop (one consumer).
package queue

import (
	"sync"
	"sync/atomic"
	"time"

	"telemetry-sim/internal/model"
)

// Queue is a FIFO of telemetry events. Push never blocks; TryPop blocks the
// caller until an event is available or its timeout elapses.
//
// Order is preserved per producer. Interleaving between producers is whatever
// order their pushes acquired the lock in.
type Queue struct {
	mu       sync.Mutex
	items    []model.TelemetryEvent
	capacity int
	notify   chan struct{}
	dropped  atomic.Uint64
	onDrop   func(model.TelemetryEvent)
}

type Option func(*Queue)

// WithCapacity bounds the queue. When full, Push discards the oldest event.
// A capacity <= 0 leaves the queue unbounded.
func WithCapacity(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.capacity = n
		}
	}
}

// WithDropHook is called, outside the lock, for every event discarded by the
// capacity bound.
func WithDropHook(fn func(model.TelemetryEvent)) Option {
	return func(q *Queue) {
		q.onDrop = fn
	}
}

func New(opts ...Option) *Queue {
	q := &Queue{notify: make(chan struct{}, 1)}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Push appends ev and wakes one waiting consumer.
func (q *Queue) Push(ev model.TelemetryEvent) {
	var (
		evicted    model.TelemetryEvent
		hasEvicted bool
	)

	q.mu.Lock()
	if q.capacity > 0 && len(q.items) >= q.capacity {
		evicted, hasEvicted = q.items[0], true
		q.items[0] = model.TelemetryEvent{}
		q.items = q.items[1:]
	}
	q.items = append(q.items, ev)
	q.mu.Unlock()

	if hasEvicted {
		q.dropped.Add(1)
		if q.onDrop != nil {
			q.onDrop(evicted)
		}
	}

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// TryPop returns the oldest event, waiting up to timeout for one to arrive.
// ok is false when the timeout elapsed with the queue still empty.
func (q *Queue) TryPop(timeout time.Duration) (model.TelemetryEvent, bool) {
	if ev, ok := q.pop(); ok {
		return ev, true
	}
	if timeout <= 0 {
		return model.TelemetryEvent{}, false
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-q.notify:
			// The wake-up may be stale (its event was taken by the fast path
			// of an earlier call), so an empty queue here means keep waiting.
			if ev, ok := q.pop(); ok {
				return ev, true
			}
		case <-timer.C:
			return q.pop()
		}
	}
}

// Size is advisory: the count may be stale by the time the caller reads it.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Dropped reports how many events the capacity bound has discarded.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}

func (q *Queue) pop() (model.TelemetryEvent, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return model.TelemetryEvent{}, false
	}
	ev := q.items[0]
	q.items[0] = model.TelemetryEvent{}
	q.items = q.items[1:]
	if len(q.items) == 0 {
		// Drop the consumed prefix of the backing array.
		q.items = nil
	}
	return ev, true
}
