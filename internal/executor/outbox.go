package executor

import (
	"context"
	"sync"
	"time"

	"github.com/user/quickbuttons/internal/types"
)

// EventKind distinguishes what an outbox event carries.
type EventKind string

const (
	// EventChunk carries incremental output from a running invocation.
	EventChunk EventKind = "chunk"
	// EventDone carries the terminal record of an invocation.
	EventDone EventKind = "done"
	// EventNotice carries an out-of-band message tied to a button, such as a
	// timer completion.
	EventNotice EventKind = "notice"
)

// Event is one entry of the outbox.
type Event struct {
	Kind         EventKind
	ButtonID     types.ButtonID
	InvocationID types.InvocationID
	Chunk        string
	Notice       string
	Record       Record
	At           time.Time
}

// Outbox is an unbounded FIFO with a single consumer. Producers never block;
// events appear in the order they were pushed, which for done events is
// completion order.
type Outbox struct {
	mu    sync.Mutex
	items []Event
	ready chan struct{}
}

func newOutbox() *Outbox {
	return &Outbox{ready: make(chan struct{}, 1)}
}

func (o *Outbox) push(ev Event) {
	o.mu.Lock()
	o.items = append(o.items, ev)
	o.mu.Unlock()
	select {
	case o.ready <- struct{}{}:
	default:
	}
}

// Ready signals that events may be waiting. A consumer woken by it should
// call Drain; the signal can be stale.
func (o *Outbox) Ready() <-chan struct{} { return o.ready }

// Drain removes and returns every queued event.
func (o *Outbox) Drain() []Event {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := o.items
	o.items = nil
	return out
}

// Len returns the number of queued events.
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.items)
}

// Next blocks until an event is available or ctx is done.
func (o *Outbox) Next(ctx context.Context) (Event, error) {
	for {
		o.mu.Lock()
		if len(o.items) > 0 {
			ev := o.items[0]
			o.items[0] = Event{}
			o.items = o.items[1:]
			o.mu.Unlock()
			return ev, nil
		}
		o.mu.Unlock()
		select {
		case <-o.ready:
		case <-ctx.Done():
			return Event{}, ctx.Err()
		}
	}
}
