package convert

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/RinkyDinkyNooble/AudioMorph/internal/logger"
	"github.com/RinkyDinkyNooble/AudioMorph/internal/model"
	"github.com/RinkyDinkyNooble/AudioMorph/internal/progress"
)

// Job converts one input file. It is safe to reuse across runs.
type Job struct {
	Prober     Prober
	Transcoder Transcoder
	Logger     *logger.Logger
}

// NewJob creates a conversion job backed by the given tools.
func NewJob(prober Prober, transcoder Transcoder, log *logger.Logger) *Job {
	if log == nil {
		log = logger.Nop()
	}
	return &Job{
		Prober:     prober,
		Transcoder: transcoder,
		Logger:     log.WithComponent("convert"),
	}
}

type started struct {
	proc Process
	err  error
}

// Run transcodes inputPath into outputPath, reporting progress to report.
// Failures carry a model.ErrorKind.
func (j *Job) Run(ctx context.Context, inputPath, outputPath string, report progress.Reporter) error {
	if report == nil {
		report = progress.Discard
	}
	log := j.log()

	raw, err := j.Prober.Probe(ctx, inputPath)
	if err != nil {
		if ctx.Err() != nil {
			return &model.JobError{Kind: model.ErrorKindCancelled, Op: "probe", Path: inputPath, Err: ctx.Err()}
		}
		return &model.JobError{Kind: model.ErrorKindProcessFailed, Op: "probe", Path: inputPath, Err: err}
	}

	total, err := ParseDuration(raw)
	if err != nil {
		return &model.JobError{Kind: model.ErrorKindProbeParse, Op: "probe", Path: inputPath, Err: err}
	}
	log.Debug().Str("input", inputPath).Int64("total_us", total).Msg("probed duration")

	existing := statOutput(outputPath)

	// The process handle is delivered over a channel so reading starts only
	// once it exists.
	ready := make(chan started, 1)
	go func() {
		proc, err := j.Transcoder.Start(ctx, inputPath, outputPath)
		ready <- started{proc: proc, err: err}
	}()

	var res started
	select {
	case res = <-ready:
	case <-ctx.Done():
		go drain(ready)
		return &model.JobError{Kind: model.ErrorKindCancelled, Op: "transcode", Path: outputPath, Err: ctx.Err()}
	}
	if res.err != nil {
		return &model.JobError{Kind: model.ErrorKindProcessFailed, Op: "transcode", Path: outputPath, Err: res.err}
	}

	scanner := bufio.NewScanner(res.proc.Stdout())
	for scanner.Scan() {
		elapsed, ok := ParseProgressLine(scanner.Text())
		if !ok {
			continue
		}
		report.Update(Percent(elapsed, total))
	}
	if err := scanner.Err(); err != nil {
		log.Debug().Err(err).Msg("progress stream read error")
	}
	// Wait must not run while the process can still block on a full pipe.
	_, _ = io.Copy(io.Discard, res.proc.Stdout())

	if err := res.proc.Wait(); err != nil {
		removePartial(outputPath, existing)
		if ctx.Err() != nil {
			return &model.JobError{Kind: model.ErrorKindCancelled, Op: "transcode", Path: outputPath, Err: fmt.Errorf("%w: %w", ctx.Err(), err)}
		}
		return &model.JobError{Kind: model.ErrorKindProcessFailed, Op: "transcode", Path: outputPath, Err: err}
	}

	if _, err := os.Stat(outputPath); err != nil {
		return &model.JobError{Kind: model.ErrorKindMissingOutput, Op: "verify", Path: outputPath, Err: err}
	}

	report.Update(100)
	return nil
}

// Func adapts Run to a runner job body.
func (j *Job) Func(req model.ConversionRequest) func(context.Context, progress.Reporter) error {
	input, output := req.InputPath, req.OutputPath()
	return func(ctx context.Context, report progress.Reporter) error {
		return j.Run(ctx, input, output, report)
	}
}

func (j *Job) log() *logger.Logger {
	if j.Logger == nil {
		return logger.Nop()
	}
	return j.Logger
}

func statOutput(path string) os.FileInfo {
	info, err := os.Stat(path)
	if err != nil {
		return nil
	}
	return info
}

// removePartial deletes what a failed run left at path. A file that existed
// before the run and was not touched by it is kept.
func removePartial(path string, before os.FileInfo) {
	after, err := os.Stat(path)
	if err != nil {
		return
	}
	if before != nil && after.Size() == before.Size() && after.ModTime().Equal(before.ModTime()) {
		return
	}
	_ = os.Remove(path)
}

// drain reaps a process that started after the caller gave up on it.
func drain(ready <-chan started) {
	res := <-ready
	if res.err != nil || res.proc == nil {
		return
	}
	_, _ = io.Copy(io.Discard, res.proc.Stdout())
	_ = res.proc.Wait()
}
