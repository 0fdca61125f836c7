// Package pipeline wires a job runner to request validation, status
// messages and history for each of the two job kinds. It is the boundary the
// HTTP API and the CLI trigger jobs through.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/RinkyDinkyNooble/AudioMorph/internal/history"
	"github.com/RinkyDinkyNooble/AudioMorph/internal/job"
	"github.com/RinkyDinkyNooble/AudioMorph/internal/logger"
	"github.com/RinkyDinkyNooble/AudioMorph/internal/model"
	"github.com/RinkyDinkyNooble/AudioMorph/internal/progress"
)

// DefaultMessageDuration is how long a status message stays visible.
const DefaultMessageDuration = 6 * time.Second

// recordTimeout bounds a single history write.
const recordTimeout = 5 * time.Second

// Recorder persists finished jobs.
type Recorder interface {
	Record(ctx context.Context, entry history.Entry) error
}

// Options configures a pipeline.
type Options struct {
	Bus             *progress.Bus
	Logger          *logger.Logger
	Recorder        Recorder
	Timeout         time.Duration
	MessageDuration time.Duration
}

// Snapshot is the caller-visible state of one pipeline.
type Snapshot struct {
	Kind     model.JobKind   `json:"kind"`
	JobID    string          `json:"jobId,omitempty"`
	Status   model.JobStatus `json:"status"`
	Progress int             `json:"progress"`
	Running  bool            `json:"running"`
	Target   string          `json:"target,omitempty"`
	Message  string          `json:"message,omitempty"`
}

// Pipeline holds the state shared by both job kinds.
type Pipeline struct {
	kind        model.JobKind
	runner      *job.Runner
	recorder    Recorder
	log         *logger.Logger
	successText string
	failureText string
	messageTTL  time.Duration
	now         func() time.Time

	mu           sync.RWMutex
	message      string
	messageUntil time.Time
	handle       *job.Handle
}

func newPipeline(kind model.JobKind, successText, failureText string, opts Options) *Pipeline {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	ttl := opts.MessageDuration
	if ttl <= 0 {
		ttl = DefaultMessageDuration
	}

	p := &Pipeline{
		kind:        kind,
		recorder:    opts.Recorder,
		log:         log.WithComponent("pipeline." + kind.String()),
		successText: successText,
		failureText: failureText,
		messageTTL:  ttl,
		now:         time.Now,
	}
	p.runner = job.NewRunner(kind, job.Options{
		Timeout:   opts.Timeout,
		Bus:       opts.Bus,
		Logger:    log,
		OnOutcome: p.handleOutcome,
	})
	return p
}

// Kind returns the job kind this pipeline runs.
func (p *Pipeline) Kind() model.JobKind {
	return p.kind
}

// Status returns a snapshot of the current job and any unexpired message.
func (p *Pipeline) Status() Snapshot {
	current := p.runner.Current()

	snap := Snapshot{
		Kind:     p.kind,
		JobID:    current.ID,
		Status:   current.Status,
		Progress: current.Progress,
		Running:  current.Status.IsActive(),
		Target:   current.Target,
	}

	p.mu.RLock()
	if p.message != "" && p.now().Before(p.messageUntil) {
		snap.Message = p.message
	}
	p.mu.RUnlock()

	return snap
}

// Last returns the most recently finished job.
func (p *Pipeline) Last() (model.Job, bool) {
	return p.runner.Last()
}

// Cancel cancels the in-flight job.
func (p *Pipeline) Cancel() error {
	return p.runner.Cancel()
}

// Wait blocks until the most recently triggered job has delivered its
// outcome.
func (p *Pipeline) Wait(ctx context.Context) (model.Outcome, error) {
	p.mu.RLock()
	h := p.handle
	p.mu.RUnlock()

	if h == nil {
		return model.Outcome{}, job.ErrNoRunningJob
	}
	return h.Wait(ctx)
}

// start runs fn unless a job is already in flight. validate runs only after
// the busy check so a rejected trigger has no side effects.
func (p *Pipeline) start(ctx context.Context, target string, validate func() error, fn job.Func) (string, error) {
	if p.runner.IsRunning() {
		return "", job.ErrJobAlreadyRunning
	}

	if err := validate(); err != nil {
		p.setMessage(ValidationMessage(err))
		p.log.Debug().Err(err).Msg("Trigger rejected")
		return "", err
	}

	// The message is cleared before the job exists so a fast outcome is
	// never overwritten.
	p.mu.Lock()
	previous, previousUntil := p.message, p.messageUntil
	p.message = ""
	p.mu.Unlock()

	h, err := p.runner.Start(context.WithoutCancel(ctx), target, fn)
	if err != nil {
		p.mu.Lock()
		if p.message == "" {
			p.message, p.messageUntil = previous, previousUntil
		}
		p.mu.Unlock()
		return "", err
	}

	p.mu.Lock()
	p.handle = h
	p.mu.Unlock()

	return h.ID(), nil
}

func (p *Pipeline) handleOutcome(outcome model.Outcome) {
	switch {
	case outcome.Success:
		p.setMessage(p.successText)
	case outcome.ErrorKind() == model.ErrorKindCancelled:
		p.setMessage(MessageCancelled)
	default:
		p.setMessage(p.failureText)
	}

	if p.recorder == nil {
		return
	}

	target := ""
	if last, ok := p.runner.Last(); ok && last.ID == outcome.JobID {
		target = last.Target
	}

	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := p.recorder.Record(ctx, history.EntryFromOutcome(outcome, target)); err != nil {
		p.log.Error().Err(err).Str("job_id", outcome.JobID).Msg("Failed to record job history")
	}
}

func (p *Pipeline) setMessage(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.message = msg
	p.messageUntil = p.now().Add(p.messageTTL)
}

// IsBusy reports whether err means a job was already in flight.
func IsBusy(err error) bool {
	return errors.Is(err, job.ErrJobAlreadyRunning)
}

// IsValidation reports whether err is a validation fault.
func IsValidation(err error) bool {
	return model.KindOf(err) == model.ErrorKindValidation
}
