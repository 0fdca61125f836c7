// Package job runs one job function at a time on a background goroutine and
// turns whatever it returns, or panics with, into exactly one Outcome.
package job

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/RinkyDinkyNooble/AudioMorph/internal/logger"
	"github.com/RinkyDinkyNooble/AudioMorph/internal/model"
	"github.com/RinkyDinkyNooble/AudioMorph/internal/progress"
)

// ErrJobAlreadyRunning is returned when starting a second active job.
var ErrJobAlreadyRunning = errors.New("job already running")

// ErrNoRunningJob is returned when cancel is requested for idle state.
var ErrNoRunningJob = errors.New("no running job")

// Func is the body of a job. ctx is cancelled by Cancel or when the runner's
// timeout expires; report receives percentages for the job.
type Func func(ctx context.Context, report progress.Reporter) error

// Options configures a Runner.
type Options struct {
	// Timeout bounds a single run. Zero means no limit.
	Timeout time.Duration

	Bus    *progress.Bus
	Logger *logger.Logger

	// OnOutcome is called once per run, after the outcome event is published
	// and before the runner returns to Pending. Starting a job from inside
	// the callback is rejected.
	OnOutcome func(model.Outcome)
}

// Runner tracks the single allowed active job of one pipeline.
type Runner struct {
	mu      sync.RWMutex
	kind    model.JobKind
	opts    Options
	log     *logger.Logger
	tracker *progress.Tracker
	current model.Job
	last    model.Job
	active  *Handle
}

// NewRunner creates a runner in Pending state.
func NewRunner(kind model.JobKind, opts Options) *Runner {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	return &Runner{
		kind:    kind,
		opts:    opts,
		log:     log.WithComponent("runner." + kind.String()),
		tracker: progress.NewTracker(kind, opts.Bus),
		current: model.Job{Kind: kind, Status: model.JobStatusPending},
	}
}

// Start launches fn on a background goroutine. target is the output path the
// job is expected to produce; it is recorded for status and history only.
func (r *Runner) Start(ctx context.Context, target string, fn Func) (*Handle, error) {
	if fn == nil {
		return nil, fmt.Errorf("start %s job: nil job function", r.kind)
	}

	r.mu.Lock()
	if r.active != nil {
		r.mu.Unlock()
		return nil, ErrJobAlreadyRunning
	}

	var runCtx context.Context
	var cancel context.CancelFunc
	if r.opts.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}

	h := &Handle{
		id:     generateJobID(r.kind),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	r.active = h
	r.current = model.Job{
		ID:        h.id,
		Kind:      r.kind,
		Target:    target,
		Status:    model.JobStatusRunning,
		StartedAt: time.Now(),
	}
	started := r.current.StartedAt
	r.mu.Unlock()

	r.tracker.Begin(h.id)
	r.publish(progress.Event{Type: progress.EventTypeStatus, JobID: h.id, Status: model.JobStatusRunning})
	r.log.Info().Str("job_id", h.id).Str("target", target).Msg("job started")

	go r.run(runCtx, h, started, fn)

	return h, nil
}

// Cancel cancels the active job, if any.
func (r *Runner) Cancel() error {
	r.mu.RLock()
	h := r.active
	r.mu.RUnlock()

	if h == nil {
		return ErrNoRunningJob
	}
	h.Cancel()
	return nil
}

// Current returns a snapshot of the current job. An idle runner reports a
// Pending job with no ID.
func (r *Runner) Current() model.Job {
	r.mu.RLock()
	job := r.current
	r.mu.RUnlock()

	if job.Status.IsActive() {
		job.Progress = r.tracker.Percent()
	}
	return job
}

// Last returns the most recently finished job.
func (r *Runner) Last() (model.Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last, r.last.ID != ""
}

// IsRunning reports whether a job is in flight.
func (r *Runner) IsRunning() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active != nil
}

// Kind returns the pipeline kind this runner serves.
func (r *Runner) Kind() model.JobKind {
	return r.kind
}

func (r *Runner) run(ctx context.Context, h *Handle, started time.Time, fn Func) {
	defer h.cancel()

	err := r.invoke(ctx, fn)
	if err != nil && ctx.Err() != nil && model.KindOf(err) != model.ErrorKindCancelled {
		err = &model.JobError{Kind: model.ErrorKindCancelled, Op: "run", Err: fmt.Errorf("%w: %w", ctx.Err(), err)}
	}

	outcome := model.Outcome{
		JobID:    h.id,
		Kind:     r.kind,
		Success:  err == nil,
		Err:      err,
		Started:  started,
		Finished: time.Now(),
	}
	h.outcome = outcome

	status := model.JobStatusSucceeded
	if !outcome.Success {
		status = model.JobStatusFailed
	}

	r.mu.Lock()
	r.current.Status = status
	r.current.Progress = r.tracker.Percent()
	r.current.FinishedAt = outcome.Finished
	r.current.ErrorKind = outcome.ErrorKind()
	if err != nil {
		r.current.LastError = err.Error()
	}
	r.last = r.current
	r.mu.Unlock()

	r.tracker.Reset()

	event := progress.Event{
		Type:      progress.EventTypeOutcome,
		JobID:     h.id,
		Status:    status,
		Success:   outcome.Success,
		ErrorKind: outcome.ErrorKind(),
	}
	if outcome.Success {
		event.Percent = 100
	}
	r.publish(event)

	if outcome.Success {
		r.log.Info().Str("job_id", h.id).Dur("elapsed", outcome.Duration()).Msg("job succeeded")
	} else {
		r.log.Warn().Err(err).Str("job_id", h.id).Str("error_kind", string(outcome.ErrorKind())).Msg("job failed")
	}

	if r.opts.OnOutcome != nil {
		r.opts.OnOutcome(outcome)
	}

	r.mu.Lock()
	r.current = model.Job{Kind: r.kind, Status: model.JobStatusPending}
	r.active = nil
	r.mu.Unlock()

	close(h.done)
}

// invoke calls fn, converting a panic into an internal failure.
func (r *Runner) invoke(ctx context.Context, fn Func) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error().Interface("panic", rec).Msg("job panicked")
			err = model.NewJobError(model.ErrorKindInternal, "run", fmt.Errorf("panic: %v", rec))
		}
	}()
	return fn(ctx, r.tracker)
}

func (r *Runner) publish(event progress.Event) {
	if r.opts.Bus == nil {
		return
	}
	event.Kind = r.kind
	r.opts.Bus.Publish(event)
}

// generateJobID generates a unique job ID using UUID v7 so IDs sort by start time
func generateJobID(kind model.JobKind) string {
	prefix := kind.String() + "-"
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Sprintf("%s%d", prefix, time.Now().UnixNano())
	}
	return prefix + id.String()
}
