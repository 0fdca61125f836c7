// Package api exposes the two pipelines over HTTP: JSON endpoints to trigger,
// cancel and inspect jobs, and a websocket that streams progress and outcome
// events in publish order.
package api

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/RinkyDinkyNooble/AudioMorph/internal/history"
	"github.com/RinkyDinkyNooble/AudioMorph/internal/logger"
	"github.com/RinkyDinkyNooble/AudioMorph/internal/pipeline"
	"github.com/RinkyDinkyNooble/AudioMorph/internal/progress"
)

// HistoryLister reads recorded jobs, newest first.
type HistoryLister interface {
	List(ctx context.Context, limit int) ([]history.Entry, error)
}

// Options wires the server to its dependencies. History may be nil.
type Options struct {
	Conversion *pipeline.Conversion
	Download   *pipeline.Download
	Bus        *progress.Bus
	History    HistoryLister
	Logger     *logger.Logger
}

// Server handles HTTP requests for the AudioMorph API.
type Server struct {
	echo       *echo.Echo
	conversion *pipeline.Conversion
	download   *pipeline.Download
	bus        *progress.Bus
	history    HistoryLister
	log        *logger.Logger
}

// NewServer creates a new API server instance.
func NewServer(opts Options) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	s := &Server{
		echo:       e,
		conversion: opts.Conversion,
		download:   opts.Download,
		bus:        opts.Bus,
		history:    opts.History,
		log:        log.WithComponent("api"),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures Echo middleware.
func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestID())

	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogMethod:   true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.log.Error().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Err(v.Error).
					Msg("request error")
			} else {
				s.log.Debug().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Msg("request")
			}
			return nil
		},
	}))
}

// setupRoutes registers all API routes.
func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.handleHealth)

	api := s.echo.Group("/api")
	api.POST("/convert", s.handleConvert)
	api.POST("/convert/cancel", s.handleCancel(s.conversion.Pipeline))
	api.POST("/download", s.handleDownload)
	api.POST("/download/cancel", s.handleCancel(s.download.Pipeline))
	api.GET("/status", s.handleStatus)
	api.GET("/formats", s.handleFormats)
	api.GET("/history", s.handleHistory)
	api.GET("/events", s.handleEvents)
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start(address string) error {
	s.log.Info().Str("address", address).Msg("starting HTTP server")
	return s.echo.Start(address)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down HTTP server")
	return s.echo.Shutdown(ctx)
}
