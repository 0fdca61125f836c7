package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/RinkyDinkyNooble/AudioMorph/internal/job"
	"github.com/RinkyDinkyNooble/AudioMorph/internal/model"
	"github.com/RinkyDinkyNooble/AudioMorph/internal/pipeline"
)

// maxHistoryLimit caps the history page size.
const maxHistoryLimit = 500

// ErrorResponse is the body of every non-2xx JSON reply.
type ErrorResponse struct {
	Error string          `json:"error"`
	Kind  model.ErrorKind `json:"kind,omitempty"`
}

// TriggerResponse is returned when a job is accepted.
type TriggerResponse struct {
	JobID string `json:"jobId"`
}

// StatusResponse carries both pipeline snapshots.
type StatusResponse struct {
	Conversion pipeline.Snapshot `json:"conversion"`
	Download   pipeline.Snapshot `json:"download"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// handleConvert validates and starts a conversion job.
func (s *Server) handleConvert(c echo.Context) error {
	var req model.ConversionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}

	id, err := s.conversion.Trigger(c.Request().Context(), req)
	if err != nil {
		return triggerError(c, err)
	}
	return c.JSON(http.StatusAccepted, TriggerResponse{JobID: id})
}

// handleDownload validates and starts a download job.
func (s *Server) handleDownload(c echo.Context) error {
	var req model.DownloadRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}

	id, err := s.download.Trigger(c.Request().Context(), req)
	if err != nil {
		return triggerError(c, err)
	}
	return c.JSON(http.StatusAccepted, TriggerResponse{JobID: id})
}

func (s *Server) handleCancel(p *pipeline.Pipeline) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := p.Cancel(); err != nil {
			if errors.Is(err, job.ErrNoRunningJob) {
				return c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
			}
			return err
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func (s *Server) handleStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, StatusResponse{
		Conversion: s.conversion.Status(),
		Download:   s.download.Status(),
	})
}

func (s *Server) handleFormats(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"conversion": s.conversion.Formats(),
		"download":   []string{model.DownloadOutputFormat},
	})
}

func (s *Server) handleHistory(c echo.Context) error {
	if s.history == nil {
		return c.JSON(http.StatusOK, []any{})
	}

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
		}
		limit = min(n, maxHistoryLimit)
	}

	entries, err := s.history.List(c.Request().Context(), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, entries)
}

// triggerError maps a rejected trigger to 400 or 409.
func triggerError(c echo.Context, err error) error {
	switch {
	case pipeline.IsBusy(err):
		return c.JSON(http.StatusConflict, ErrorResponse{Error: pipeline.MessageBusy})
	case pipeline.IsValidation(err):
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: pipeline.ValidationMessage(err),
			Kind:  model.ErrorKindValidation,
		})
	default:
		return err
	}
}
