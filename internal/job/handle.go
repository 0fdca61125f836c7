package job

import (
	"context"

	"github.com/RinkyDinkyNooble/AudioMorph/internal/model"
)

// Handle refers to one started job.
type Handle struct {
	id      string
	cancel  context.CancelFunc
	done    chan struct{}
	outcome model.Outcome
}

// ID returns the job ID.
func (h *Handle) ID() string {
	return h.id
}

// Cancel asks the job to stop. It does not wait.
func (h *Handle) Cancel() {
	h.cancel()
}

// Done is closed once the outcome has been delivered and the runner is back
// to Pending.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Outcome returns the outcome if the job has finished.
func (h *Handle) Outcome() (model.Outcome, bool) {
	select {
	case <-h.done:
		return h.outcome, true
	default:
		return model.Outcome{}, false
	}
}

// Wait blocks until the job finishes or ctx is done.
func (h *Handle) Wait(ctx context.Context) (model.Outcome, error) {
	select {
	case <-h.done:
		return h.outcome, nil
	case <-ctx.Done():
		return model.Outcome{}, ctx.Err()
	}
}
