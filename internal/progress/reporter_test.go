package progress

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RinkyDinkyNooble/AudioMorph/internal/model"
)

func TestClamp(t *testing.T) {
	assert.Equal(t, 0, Clamp(-5))
	assert.Equal(t, 42, Clamp(42))
	assert.Equal(t, 100, Clamp(250))
}

func TestTrackerCoalescesAndNeverDecreases(t *testing.T) {
	bus := NewBus(0)
	tracker := NewTracker(model.JobKindConversion, bus)
	tracker.Begin("job-1")

	for _, pct := range []int{10, 10, 5, 50, 49, 120, 100} {
		tracker.Update(pct)
	}

	events := bus.Since(0)
	var got []int
	for _, e := range events {
		require.Equal(t, "job-1", e.JobID)
		require.Equal(t, model.JobKindConversion, e.Kind)
		got = append(got, e.Percent)
	}
	assert.Equal(t, []int{0, 10, 50, 100}, got)
	assert.Equal(t, 100, tracker.Percent())
}

func TestTrackerBeginResets(t *testing.T) {
	tracker := NewTracker(model.JobKindDownload, nil)
	tracker.Begin("a")
	tracker.Update(80)
	require.Equal(t, 80, tracker.Percent())

	tracker.Begin("b")
	assert.Equal(t, 0, tracker.Percent())
	assert.Equal(t, "b", tracker.JobID())

	tracker.Update(5)
	assert.Equal(t, 5, tracker.Percent())

	tracker.Reset()
	assert.Equal(t, 0, tracker.Percent())
	assert.Empty(t, tracker.JobID())
}

func TestTrackerConcurrentUpdates(t *testing.T) {
	bus := NewBus(1000)
	tracker := NewTracker(model.JobKindConversion, bus)
	tracker.Begin("job")

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i <= 100; i++ {
				tracker.Update(i)
				_ = tracker.Percent()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, tracker.Percent())

	last := -1
	for _, e := range bus.Since(0) {
		assert.GreaterOrEqual(t, e.Percent, last)
		last = e.Percent
	}
}

func TestReporterFunc(t *testing.T) {
	var got []int
	var r Reporter = ReporterFunc(func(p int) { got = append(got, p) })
	r.Update(3)
	r.Update(7)
	Discard.Update(9)
	assert.Equal(t, []int{3, 7}, got)
}

func TestTrackerDropsUpdatesWithoutJob(t *testing.T) {
	bus := NewBus(0)
	tracker := NewTracker(model.JobKindDownload, bus)

	tracker.Update(40)

	assert.Equal(t, 0, tracker.Percent())
	assert.Empty(t, bus.Since(0))
}
