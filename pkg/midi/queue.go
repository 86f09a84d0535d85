package midi

import (
	"sync/atomic"

	"github.com/justyntemme/loopstation/pkg/trigger"
)

// EventQueue hands events from the driver's callback thread to a consumer.
// Add never blocks; events arriving while the queue is full are dropped and
// counted.
type EventQueue struct {
	events  chan trigger.Event
	dropped atomic.Uint64
}

func NewEventQueue(size int) *EventQueue {
	if size < 1 {
		size = 1
	}
	return &EventQueue{events: make(chan trigger.Event, size)}
}

// Add queues ev and reports whether it fit.
func (q *EventQueue) Add(ev trigger.Event) bool {
	select {
	case q.events <- ev:
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

// Events is read by the consumer.
func (q *EventQueue) Events() <-chan trigger.Event { return q.events }

// Dropped returns the number of events lost to a full queue.
func (q *EventQueue) Dropped() uint64 { return q.dropped.Load() }

func (q *EventQueue) Size() int { return len(q.events) }
