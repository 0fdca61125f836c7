// Package progress carries percentage updates from a job's background
// goroutine to whoever presents them. Tracker is the single synchronization
// point between the two; Bus keeps an ordered, bounded event history that
// consumers read incrementally without ever blocking the publisher.
package progress

import (
	"sync"

	"github.com/RinkyDinkyNooble/AudioMorph/internal/model"
)

// Reporter receives integer percentages in the range 0..100.
type Reporter interface {
	Update(percent int)
}

// ReporterFunc adapts a plain function to Reporter.
type ReporterFunc func(percent int)

// Update calls f(percent).
func (f ReporterFunc) Update(percent int) {
	f(percent)
}

// Discard is a Reporter that drops every update.
var Discard Reporter = ReporterFunc(func(int) {})

// Clamp bounds percent to 0..100.
func Clamp(percent int) int {
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}

// Tracker holds the latest progress of the job owned by one pipeline and
// publishes changes to a Bus. Updates are clamped and coalesced: a value that
// is not greater than the current one is dropped, so the published sequence
// for a job never decreases.
type Tracker struct {
	mu      sync.RWMutex
	kind    model.JobKind
	jobID   string
	percent int
	bus     *Bus
}

// NewTracker creates a tracker for one pipeline. bus may be nil.
func NewTracker(kind model.JobKind, bus *Bus) *Tracker {
	return &Tracker{kind: kind, bus: bus}
}

// Begin resets the tracker for a new job.
func (t *Tracker) Begin(jobID string) {
	t.mu.Lock()
	t.jobID = jobID
	t.percent = 0
	t.mu.Unlock()

	t.publish(Event{Type: EventTypeProgress, JobID: jobID, Percent: 0})
}

// Update records percent for the current job. Updates arriving while no job
// is bound are dropped.
func (t *Tracker) Update(percent int) {
	percent = Clamp(percent)

	t.mu.Lock()
	if t.jobID == "" || percent <= t.percent {
		t.mu.Unlock()
		return
	}
	t.percent = percent
	jobID := t.jobID
	t.mu.Unlock()

	t.publish(Event{Type: EventTypeProgress, JobID: jobID, Percent: percent})
}

// Percent returns the latest recorded value.
func (t *Tracker) Percent() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.percent
}

// JobID returns the job the tracker currently reports for.
func (t *Tracker) JobID() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.jobID
}

// Reset clears the job and returns progress to zero without publishing.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.jobID = ""
	t.percent = 0
}

func (t *Tracker) publish(event Event) {
	if t.bus == nil {
		return
	}
	event.Kind = t.kind
	t.bus.Publish(event)
}
