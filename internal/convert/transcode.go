package convert

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// FFmpeg constants for the transcode invocation
const (
	FFmpegCommand      = "ffmpeg"
	ProgressPipeTarget = "pipe:1"
	DefaultStatsPeriod = "0.05"
	FFmpegLogLevel     = "quiet"
)

// Process is a running transcode.
type Process interface {
	// Stdout yields progress lines until the process closes it.
	Stdout() io.Reader
	// Wait blocks until the process exits. Stdout must be drained first.
	Wait() error
}

// Transcoder starts a transcode from inputPath to outputPath.
type Transcoder interface {
	Start(ctx context.Context, inputPath, outputPath string) (Process, error)
}

// FFmpeg runs the ffmpeg binary.
type FFmpeg struct {
	// Path is the executable. Empty means FFmpegCommand on PATH.
	Path string

	// StatsPeriod is the progress sampling interval in seconds.
	StatsPeriod string
}

// BuildArgs builds the ffmpeg command arguments
func (f FFmpeg) BuildArgs(inputPath, outputPath string) []string {
	period := f.StatsPeriod
	if period == "" {
		period = DefaultStatsPeriod
	}

	return []string{
		"-i", inputPath,
		"-progress", ProgressPipeTarget,
		"-stats_period", period,
		"-loglevel", FFmpegLogLevel,
		"-y",
		outputPath,
	}
}

// Start launches ffmpeg with progress on stdout.
func (f FFmpeg) Start(ctx context.Context, inputPath, outputPath string) (Process, error) {
	bin := f.Path
	if bin == "" {
		bin = FFmpegCommand
	}

	cmd := exec.CommandContext(ctx, bin, f.BuildArgs(inputPath, outputPath)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	proc := &execProcess{cmd: cmd, stdout: stdout}
	cmd.Stderr = &proc.stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	return proc, nil
}

type execProcess struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr bytes.Buffer
}

func (p *execProcess) Stdout() io.Reader {
	return p.stdout
}

func (p *execProcess) Wait() error {
	if err := p.cmd.Wait(); err != nil {
		if msg := strings.TrimSpace(p.stderr.String()); msg != "" {
			return fmt.Errorf("ffmpeg: %w: %s", err, msg)
		}
		return fmt.Errorf("ffmpeg: %w", err)
	}
	return nil
}
