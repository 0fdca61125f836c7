package download

import (
	"context"
	"fmt"
	"time"

	"github.com/lrstanley/go-ytdlp"

	"github.com/RinkyDinkyNooble/AudioMorph/internal/logger"
)

// Download defaults
const (
	DefaultFormat           = "bestaudio/best"
	DefaultAudioQuality     = "0"
	DefaultProgressInterval = 250 * time.Millisecond
	OutputTemplateSuffix    = ".%(ext)s"
)

// ProgressFunc receives byte counters while the stream downloads. total is
// zero when the size is not yet known.
type ProgressFunc func(downloaded, total int64)

// Engine fetches the audio of url into basePath plus the audio extension.
type Engine interface {
	Download(ctx context.Context, url, basePath string, onProgress ProgressFunc) error
}

// YTDLPEngine drives the yt-dlp binary.
type YTDLPEngine struct {
	// Executable overrides the yt-dlp binary. Empty uses go-ytdlp resolution.
	Executable string

	// FFmpegLocation is passed to yt-dlp for the extract-audio step.
	FFmpegLocation string

	Format           string
	AudioFormat      string
	AudioQuality     string
	ProgressInterval time.Duration

	// AutoInstall downloads a managed yt-dlp when no executable is set.
	AutoInstall bool

	Logger *logger.Logger
}

// Command builds the yt-dlp invocation for one URL.
func (e *YTDLPEngine) Command(basePath string, onProgress ProgressFunc) *ytdlp.Command {
	dl := ytdlp.New().
		Format(orDefault(e.Format, DefaultFormat)).
		Output(basePath + OutputTemplateSuffix).
		ExtractAudio().
		AudioFormat(orDefault(e.AudioFormat, OutputFormat)).
		AudioQuality(orDefault(e.AudioQuality, DefaultAudioQuality)).
		NoPlaylist().
		Quiet().
		NoWarnings()

	if e.Executable != "" {
		dl.SetExecutable(e.Executable)
	}
	if e.FFmpegLocation != "" {
		dl.FFmpegLocation(e.FFmpegLocation)
	}

	interval := e.ProgressInterval
	if interval <= 0 {
		interval = DefaultProgressInterval
	}
	dl.ProgressFunc(interval, progressAdapter(onProgress))

	return dl
}

// Download runs yt-dlp for exactly one URL.
func (e *YTDLPEngine) Download(ctx context.Context, url, basePath string, onProgress ProgressFunc) error {
	if e.AutoInstall && e.Executable == "" {
		if _, err := ytdlp.Install(ctx, nil); err != nil {
			return fmt.Errorf("failed to install yt-dlp: %w", err)
		}
	}

	result, err := e.Command(basePath, onProgress).Run(ctx, url)
	if err != nil {
		if result != nil && e.Logger != nil {
			e.Logger.Debug().Str("stderr", result.Stderr).Int("exit_code", result.ExitCode).Msg("yt-dlp failed")
		}
		return fmt.Errorf("yt-dlp: %w", err)
	}
	return nil
}

// progressAdapter forwards only events of the downloading state.
func progressAdapter(onProgress ProgressFunc) ytdlp.ProgressCallbackFunc {
	return func(update ytdlp.ProgressUpdate) {
		if onProgress == nil || update.Status != ytdlp.ProgressStatusDownloading {
			return
		}
		onProgress(int64(update.DownloadedBytes), int64(update.TotalBytes))
	}
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
