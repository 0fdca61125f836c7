package convert

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// FFprobe constants for the duration query
const (
	FFprobeCommand      = "ffprobe"
	FFprobeLogLevel     = "error"
	FFprobeShowEntries  = "format=duration"
	FFprobeOutputFormat = "default=noprint_wrappers=1:nokey=1"
)

// Prober reports the raw duration text of a media file.
type Prober interface {
	Probe(ctx context.Context, inputPath string) (string, error)
}

// FFprobe runs the ffprobe binary.
type FFprobe struct {
	// Path is the executable. Empty means FFprobeCommand on PATH.
	Path string
}

// Args returns the ffprobe arguments for inputPath.
func (p FFprobe) Args(inputPath string) []string {
	return []string{
		"-v", FFprobeLogLevel,
		"-show_entries", FFprobeShowEntries,
		"-of", FFprobeOutputFormat,
		inputPath,
	}
}

// Probe returns ffprobe's standard output.
func (p FFprobe) Probe(ctx context.Context, inputPath string) (string, error) {
	bin := p.Path
	if bin == "" {
		bin = FFprobeCommand
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, p.Args(inputPath)...)
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("failed to run ffprobe: %w: %s", err, msg)
		}
		return "", fmt.Errorf("failed to run ffprobe: %w", err)
	}
	return string(output), nil
}

// ParseDuration converts probe output in seconds into the microsecond total
// that out_time_ms values are compared against. Zero, negative and
// non-finite durations are rejected.
func ParseDuration(raw string) (int64, error) {
	text := strings.TrimSpace(raw)
	seconds, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration %q: %w", text, err)
	}
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return 0, fmt.Errorf("invalid duration %q", text)
	}

	total := int64(seconds * 1_000_000)
	if total <= 0 {
		return 0, fmt.Errorf("zero duration %q", text)
	}
	return total, nil
}
