package history

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/RinkyDinkyNooble/AudioMorph/internal/logger"
)

// PruneJobName names the retention job in the scheduler.
const PruneJobName = "history-prune"

// Pruner periodically deletes history older than the retention window.
type Pruner struct {
	store     *Store
	retention time.Duration
	scheduler gocron.Scheduler
	log       *logger.Logger
	now       func() time.Time
}

// NewPruner schedules a prune every interval, starting immediately once
// Start is called.
func NewPruner(store *Store, retention, interval time.Duration, log *logger.Logger) (*Pruner, error) {
	if retention <= 0 {
		return nil, fmt.Errorf("retention must be positive")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("prune interval must be positive")
	}
	if log == nil {
		log = logger.Nop()
	}

	gs, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	p := &Pruner{
		store:     store,
		retention: retention,
		scheduler: gs,
		log:       log.WithComponent("history"),
		now:       time.Now,
	}

	_, err = gs.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if _, err := p.PruneNow(context.Background()); err != nil {
				p.log.Error().Err(err).Msg("History prune failed")
			}
		}),
		gocron.WithName(PruneJobName),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = gs.Shutdown()
		return nil, fmt.Errorf("failed to create job %q: %w", PruneJobName, err)
	}

	return p, nil
}

// PruneNow deletes entries older than the retention window.
func (p *Pruner) PruneNow(ctx context.Context) (int64, error) {
	cutoff := p.now().Add(-p.retention)
	removed, err := p.store.Prune(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		p.log.Info().Int64("removed", removed).Time("cutoff", cutoff).Msg("Pruned job history")
	}
	return removed, nil
}

// Start starts the scheduler.
func (p *Pruner) Start() {
	p.scheduler.Start()
}

// Stop stops the scheduler gracefully.
func (p *Pruner) Stop() error {
	return p.scheduler.Shutdown()
}
