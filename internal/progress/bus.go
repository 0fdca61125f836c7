package progress

import (
	"sync"
	"time"

	"github.com/RinkyDinkyNooble/AudioMorph/internal/model"
)

// EventType classifies bus messages.
type EventType string

const (
	EventTypeProgress EventType = "progress"
	EventTypeStatus   EventType = "status"
	EventTypeOutcome  EventType = "outcome"
)

// DefaultBusSize bounds the history kept by NewBus when size <= 0.
const DefaultBusSize = 500

// Event is a sequenced notification about one job.
type Event struct {
	Seq       int64           `json:"seq"`
	Timestamp time.Time       `json:"timestamp"`
	JobID     string          `json:"jobId"`
	Kind      model.JobKind   `json:"kind"`
	Type      EventType       `json:"type"`
	Percent   int             `json:"percent"`
	Status    model.JobStatus `json:"status,omitempty"`
	Success   bool            `json:"success,omitempty"`
	ErrorKind model.ErrorKind `json:"errorKind,omitempty"`
	Message   string          `json:"message,omitempty"`
}

// Bus stores recent events and provides incremental reads.
type Bus struct {
	mu        sync.RWMutex
	nextSeq   int64
	maxEvents int
	events    []Event
	changed   chan struct{}
}

// NewBus creates a bounded in-memory event buffer.
func NewBus(maxEvents int) *Bus {
	if maxEvents <= 0 {
		maxEvents = DefaultBusSize
	}

	return &Bus{
		maxEvents: maxEvents,
		events:    make([]Event, 0, maxEvents),
		changed:   make(chan struct{}),
	}
}

// Publish appends one event, assigns its sequence and timestamp, and wakes
// every goroutine waiting on Changed.
func (b *Bus) Publish(event Event) Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSeq++
	event.Seq = b.nextSeq
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.events = append(b.events, event)
	if len(b.events) > b.maxEvents {
		trim := len(b.events) - b.maxEvents
		b.events = append([]Event(nil), b.events[trim:]...)
	}

	close(b.changed)
	b.changed = make(chan struct{})

	return event
}

// Since returns events with sequence strictly greater than seq, oldest first.
func (b *Bus) Since(seq int64) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.events) == 0 {
		return nil
	}

	out := make([]Event, 0, len(b.events))
	for _, event := range b.events {
		if event.Seq > seq {
			out = append(out, event)
		}
	}
	return out
}

// Changed returns a channel that is closed by the next Publish. Callers take
// the channel before calling Since so no event is missed.
func (b *Bus) Changed() <-chan struct{} {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.changed
}

// LastSeq returns the sequence of the newest event.
func (b *Bus) LastSeq() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.nextSeq
}
