package pipeline

import (
	"context"

	"github.com/RinkyDinkyNooble/AudioMorph/internal/download"
	"github.com/RinkyDinkyNooble/AudioMorph/internal/model"
)

// Download triggers download jobs.
type Download struct {
	*Pipeline
	job *download.Job
}

// NewDownload creates the download pipeline.
func NewDownload(j *download.Job, opts Options) *Download {
	return &Download{
		Pipeline: newPipeline(model.JobKindDownload, MessageDownloaded, MessageDownloadFail, opts),
		job:      j,
	}
}

// Trigger validates req, including the pre-flight collision check, and
// starts the download.
func (d *Download) Trigger(ctx context.Context, req model.DownloadRequest) (string, error) {
	return d.start(ctx, req.TargetPath(), req.Validate, d.job.Func(req))
}
