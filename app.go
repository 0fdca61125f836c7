package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/RinkyDinkyNooble/AudioMorph/internal/config"
	"github.com/RinkyDinkyNooble/AudioMorph/internal/convert"
	"github.com/RinkyDinkyNooble/AudioMorph/internal/download"
	"github.com/RinkyDinkyNooble/AudioMorph/internal/history"
	"github.com/RinkyDinkyNooble/AudioMorph/internal/logger"
	"github.com/RinkyDinkyNooble/AudioMorph/internal/pipeline"
	"github.com/RinkyDinkyNooble/AudioMorph/internal/platform"
	"github.com/RinkyDinkyNooble/AudioMorph/internal/progress"
)

// app holds the services shared by every command.
type app struct {
	log        *logger.Logger
	bus        *progress.Bus
	store      *history.Store
	pruner     *history.Pruner
	conversion *pipeline.Conversion
	download   *pipeline.Download
}

// newApp initializes services from cfg. The pruner is only created for
// long-running processes.
func newApp(cfg *config.Config, logOut io.Writer, withPruner bool) (*app, error) {
	log := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Path:       cfg.Logging.Path,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
		Out:        logOut,
	})

	a := &app{log: log, bus: progress.NewBus(progress.DefaultBusSize)}

	for _, dir := range []string{cfg.Convert.OutputDir, cfg.Download.OutputDir} {
		if dir == "" {
			continue
		}
		if err := platform.CreateDirectoryIfNotExists(dir); err != nil {
			log.Warn().Err(err).Str("dir", dir).Msg("Failed to ensure output directory")
		}
	}

	tools := cfg.Tools.ResolveTools(platform.ExecutableDir())
	log.Debug().
		Str("ffmpeg", tools.FFmpeg).
		Str("ffprobe", tools.FFprobe).
		Str("ytdlp", tools.YTDLP).
		Msg("Resolved tools")

	var recorder pipeline.Recorder
	if cfg.History.Enabled {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			return nil, a.fail(err)
		}
		a.store = store
		if err := store.Migrate(); err != nil {
			return nil, a.fail(err)
		}
		recorder = store

		if withPruner {
			pruner, err := history.NewPruner(store, cfg.History.Retention, cfg.History.PruneInterval, log)
			if err != nil {
				return nil, a.fail(err)
			}
			a.pruner = pruner
		}
	}

	opts := pipeline.Options{
		Bus:             a.bus,
		Logger:          log,
		Recorder:        recorder,
		Timeout:         cfg.Jobs.Timeout,
		MessageDuration: cfg.Jobs.MessageDuration,
	}

	convertJob := convert.NewJob(
		convert.FFprobe{Path: tools.FFprobe},
		convert.FFmpeg{Path: tools.FFmpeg, StatsPeriod: cfg.Convert.StatsPeriod},
		log,
	)
	a.conversion = pipeline.NewConversion(convertJob, cfg.Convert.Formats, opts)

	engine := &download.YTDLPEngine{
		Executable:       tools.YTDLP,
		FFmpegLocation:   tools.FFmpeg,
		Format:           cfg.Download.Format,
		AudioFormat:      cfg.Download.OutputFormat,
		AudioQuality:     cfg.Download.AudioQuality,
		ProgressInterval: cfg.Download.ProgressInterval,
		AutoInstall:      cfg.Download.AutoInstall,
		Logger:           log,
	}
	a.download = pipeline.NewDownload(download.NewJob(engine, log), opts)

	return a, nil
}

func (a *app) fail(err error) error {
	_ = a.Close()
	return fmt.Errorf("failed to initialize history: %w", err)
}

// Close stops the pruner and releases the history store and log file.
func (a *app) Close() error {
	var errs []error
	if a.pruner != nil {
		errs = append(errs, a.pruner.Stop())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	errs = append(errs, a.log.Close())
	return errors.Join(errs...)
}
