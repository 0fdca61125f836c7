package download

import (
	"context"
	"fmt"
	"os"

	"github.com/RinkyDinkyNooble/AudioMorph/internal/logger"
	"github.com/RinkyDinkyNooble/AudioMorph/internal/model"
	"github.com/RinkyDinkyNooble/AudioMorph/internal/progress"
)

// OutputFormat is the codec every download is extracted to.
const OutputFormat = model.DownloadOutputFormat

// Job downloads one URL. It is safe to reuse across runs.
type Job struct {
	Engine Engine
	Logger *logger.Logger
}

// NewJob creates a download job backed by engine.
func NewJob(engine Engine, log *logger.Logger) *Job {
	if log == nil {
		log = logger.Nop()
	}
	return &Job{Engine: engine, Logger: log.WithComponent("download")}
}

// Run downloads url to basePath.flac, reporting progress to report.
func (j *Job) Run(ctx context.Context, url, basePath string, report progress.Reporter) error {
	if report == nil {
		report = progress.Discard
	}

	err := j.Engine.Download(ctx, url, basePath, func(downloaded, total int64) {
		if total <= 0 {
			return
		}
		report.Update(Percent(downloaded, total))
	})
	if err != nil {
		if ctx.Err() != nil {
			return &model.JobError{Kind: model.ErrorKindCancelled, Op: "download", Path: url, Err: fmt.Errorf("%w: %w", ctx.Err(), err)}
		}
		return &model.JobError{Kind: model.ErrorKindEngineFailed, Op: "download", Path: url, Err: err}
	}

	target := basePath + "." + OutputFormat
	if _, err := os.Stat(target); err != nil {
		return &model.JobError{Kind: model.ErrorKindMissingOutput, Op: "verify", Path: target, Err: err}
	}

	if j.Logger != nil {
		j.Logger.Debug().Str("target", target).Msg("download verified")
	}
	report.Update(100)
	return nil
}

// Func adapts Run to a runner job body.
func (j *Job) Func(req model.DownloadRequest) func(context.Context, progress.Reporter) error {
	url, base := req.URL, req.BasePath()
	return func(ctx context.Context, report progress.Reporter) error {
		return j.Run(ctx, url, base, report)
	}
}

// Percent maps byte counters to a floored 0..100 percentage.
func Percent(downloaded, total int64) int {
	if total <= 0 || downloaded <= 0 {
		return 0
	}
	if downloaded >= total {
		return 100
	}
	return int(downloaded * 100 / total)
}
