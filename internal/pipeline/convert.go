package pipeline

import (
	"context"
	"strings"

	"github.com/RinkyDinkyNooble/AudioMorph/internal/convert"
	"github.com/RinkyDinkyNooble/AudioMorph/internal/model"
)

// Conversion triggers conversion jobs.
type Conversion struct {
	*Pipeline
	job     *convert.Job
	formats []string
}

// NewConversion creates the conversion pipeline. formats restricts the
// accepted output formats; empty accepts any.
func NewConversion(j *convert.Job, formats []string, opts Options) *Conversion {
	return &Conversion{
		Pipeline: newPipeline(model.JobKindConversion, MessageConverted, MessageConvertFail, opts),
		job:      j,
		formats:  formats,
	}
}

// Trigger validates req and starts the conversion. Validation faults are
// returned immediately and no job is launched.
func (c *Conversion) Trigger(ctx context.Context, req model.ConversionRequest) (string, error) {
	validate := func() error {
		if err := req.Validate(); err != nil {
			return err
		}
		if !c.supports(req.OutputFormat) {
			return &model.JobError{Kind: model.ErrorKindValidation, Op: "validate", Path: req.OutputFormat, Err: model.ErrInvalidFormat}
		}
		return nil
	}
	return c.start(ctx, req.OutputPath(), validate, c.job.Func(req))
}

// Formats returns the accepted output formats.
func (c *Conversion) Formats() []string {
	return append([]string(nil), c.formats...)
}

func (c *Conversion) supports(format string) bool {
	if len(c.formats) == 0 {
		return true
	}
	for _, f := range c.formats {
		if strings.EqualFold(f, format) {
			return true
		}
	}
	return false
}
