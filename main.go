package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RinkyDinkyNooble/AudioMorph/internal/api"
	"github.com/RinkyDinkyNooble/AudioMorph/internal/config"
	"github.com/RinkyDinkyNooble/AudioMorph/internal/model"
	"github.com/RinkyDinkyNooble/AudioMorph/internal/pipeline"
	"github.com/RinkyDinkyNooble/AudioMorph/internal/progress"
)

// Version is set during build via -ldflags "-X main.version=X.Y.Z"
var version = "dev"

const (
	AppName = "audiomorph"

	// ShutdownTimeout bounds graceful HTTP shutdown.
	ShutdownTimeout = 10 * time.Second
)

// Exit codes
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run parses the global flags and dispatches to a subcommand. serve is the
// default when no subcommand is given.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet(AppName, flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to a YAML config file")
	showVersion := fs.Bool("version", false, "print the version and exit")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: %s [-config path] [serve|convert|download] [flags]\n", AppName)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *showVersion {
		fmt.Fprintf(stdout, "%s v%s\n", AppName, version)
		return exitOK
	}

	command := "serve"
	rest := fs.Args()
	if len(rest) > 0 {
		command, rest = rest[0], rest[1:]
	}

	switch command {
	case "serve", "convert", "download":
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", command)
		fs.Usage()
		return exitUsage
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "failed to load config: %v\n", err)
		return exitFailure
	}

	switch command {
	case "convert":
		return runConvert(ctx, cfg, rest, stdout, stderr)
	case "download":
		return runDownload(ctx, cfg, rest, stdout, stderr)
	default:
		return runServe(ctx, cfg, stderr)
	}
}

// runServe starts the HTTP API and the history pruner, and blocks until ctx
// is cancelled.
func runServe(ctx context.Context, cfg *config.Config, stderr io.Writer) int {
	a, err := newApp(cfg, stderr, true)
	if err != nil {
		fmt.Fprintf(stderr, "failed to start: %v\n", err)
		return exitFailure
	}
	defer a.Close()

	log := a.log
	log.Info().Str("version", version).Msg("AudioMorph starting")

	if a.pruner != nil {
		a.pruner.Start()
	}

	var lister api.HistoryLister
	if a.store != nil {
		lister = a.store
	}
	server := api.NewServer(api.Options{
		Conversion: a.conversion,
		Download:   a.download,
		Bus:        a.bus,
		History:    lister,
		Logger:     log,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(cfg.Server.Address())
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server failed")
			return exitFailure
		}
	case <-ctx.Done():
		log.Info().Msg("Shutdown signal received")
	}

	// Running jobs are cancelled so their outcomes are recorded before exit.
	_ = a.conversion.Cancel()
	_ = a.download.Cancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
	_, _ = a.conversion.Wait(shutdownCtx)
	_, _ = a.download.Wait(shutdownCtx)

	log.Info().Msg("AudioMorph stopped")
	return exitOK
}

func runConvert(ctx context.Context, cfg *config.Config, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet(AppName+" convert", flag.ContinueOnError)
	fs.SetOutput(stderr)
	input := fs.String("i", "", "input audio file")
	format := fs.String("f", "", "output format")
	outDir := fs.String("o", cfg.Convert.OutputDir, "output directory")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	a, err := newApp(cfg, stderr, false)
	if err != nil {
		fmt.Fprintf(stderr, "failed to start: %v\n", err)
		return exitFailure
	}
	defer a.Close()

	req := model.ConversionRequest{InputPath: *input, OutputDirectory: *outDir, OutputFormat: *format}
	return runJob(ctx, a.conversion.Pipeline, a.bus, stdout, stderr, func() (string, error) {
		return a.conversion.Trigger(ctx, req)
	})
}

func runDownload(ctx context.Context, cfg *config.Config, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet(AppName+" download", flag.ContinueOnError)
	fs.SetOutput(stderr)
	url := fs.String("u", "", "YouTube video URL")
	name := fs.String("n", "", "output file name without extension")
	outDir := fs.String("o", cfg.Download.OutputDir, "output directory")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	a, err := newApp(cfg, stderr, false)
	if err != nil {
		fmt.Fprintf(stderr, "failed to start: %v\n", err)
		return exitFailure
	}
	defer a.Close()

	req := model.DownloadRequest{URL: *url, OutputDirectory: *outDir, FileName: *name}
	return runJob(ctx, a.download.Pipeline, a.bus, stdout, stderr, func() (string, error) {
		return a.download.Trigger(ctx, req)
	})
}

// runJob triggers one job, renders its progress and prints the final status
// message. Cancelling ctx cancels the job.
func runJob(ctx context.Context, p *pipeline.Pipeline, bus *progress.Bus, stdout, stderr io.Writer, trigger func() (string, error)) int {
	jobID, err := trigger()
	if err != nil {
		if pipeline.IsValidation(err) {
			fmt.Fprintln(stderr, pipeline.ValidationMessage(err))
		} else {
			fmt.Fprintln(stderr, err)
		}
		return exitFailure
	}

	stop := context.AfterFunc(ctx, func() { _ = p.Cancel() })
	defer stop()

	if _, err := renderProgress(context.Background(), bus, jobID, stdout); err != nil {
		fmt.Fprintln(stderr, err)
		return exitFailure
	}

	outcome, err := p.Wait(context.Background())
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitFailure
	}

	msg := p.Status().Message
	if outcome.Success {
		fmt.Fprintln(stdout, msg)
		return exitOK
	}
	fmt.Fprintln(stderr, msg)
	if outcome.Err != nil {
		fmt.Fprintf(stderr, "cause: %v\n", outcome.Err)
	}
	return exitFailure
}

// renderProgress prints one line per progress event of jobID and returns the
// job's outcome event.
func renderProgress(ctx context.Context, bus *progress.Bus, jobID string, w io.Writer) (progress.Event, error) {
	var last int64
	for {
		changed := bus.Changed()

		for _, event := range bus.Since(last) {
			last = event.Seq
			if event.JobID != jobID {
				continue
			}
			switch event.Type {
			case progress.EventTypeProgress:
				fmt.Fprintf(w, "%s %3d%%\n", event.Kind, event.Percent)
			case progress.EventTypeOutcome:
				return event, nil
			}
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return progress.Event{}, ctx.Err()
		}
	}
}
