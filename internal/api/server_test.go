package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RinkyDinkyNooble/AudioMorph/internal/convert"
	"github.com/RinkyDinkyNooble/AudioMorph/internal/download"
	"github.com/RinkyDinkyNooble/AudioMorph/internal/history"
	"github.com/RinkyDinkyNooble/AudioMorph/internal/model"
	"github.com/RinkyDinkyNooble/AudioMorph/internal/pipeline"
	"github.com/RinkyDinkyNooble/AudioMorph/internal/progress"
)

type probeFunc func(context.Context, string) (string, error)

func (f probeFunc) Probe(ctx context.Context, in string) (string, error) { return f(ctx, in) }

type transcodeFunc func(ctx context.Context, in, out string) (convert.Process, error)

func (f transcodeFunc) Start(ctx context.Context, in, out string) (convert.Process, error) {
	return f(ctx, in, out)
}

type process struct {
	stdout io.Reader
	wait   func() error
}

func (p *process) Stdout() io.Reader { return p.stdout }
func (p *process) Wait() error {
	if p.wait == nil {
		return nil
	}
	return p.wait()
}

type engineFunc func(ctx context.Context, url, base string, onProgress download.ProgressFunc) error

func (f engineFunc) Download(ctx context.Context, url, base string, onProgress download.ProgressFunc) error {
	return f(ctx, url, base, onProgress)
}

type stubHistory struct {
	entries []history.Entry
	limit   int
	err     error
}

func (h *stubHistory) List(_ context.Context, limit int) ([]history.Entry, error) {
	h.limit = limit
	return h.entries, h.err
}

type testServer struct {
	*Server
	gate  chan struct{}
	dir   string
	input string
}

// setupTestServer builds a server whose transcoder waits on gate before
// streaming progress, so tests control when jobs finish.
func setupTestServer(t *testing.T, hist HistoryLister) *testServer {
	t.Helper()

	dir := t.TempDir()
	input := filepath.Join(dir, "song.wav")
	require.NoError(t, os.WriteFile(input, []byte("RIFF"), 0o644))

	gate := make(chan struct{})
	transcoder := transcodeFunc(func(ctx context.Context, _, out string) (convert.Process, error) {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if err := os.WriteFile(out, []byte("ID3"), 0o644); err != nil {
			return nil, err
		}
		return &process{stdout: strings.NewReader("out_time_ms=5000000\nout_time_ms=10000000\n")}, nil
	})
	engine := engineFunc(func(ctx context.Context, _, base string, onProgress download.ProgressFunc) error {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
		onProgress(50, 100)
		return os.WriteFile(base+".flac", []byte("fLaC"), 0o644)
	})

	bus := progress.NewBus(0)
	probe := probeFunc(func(context.Context, string) (string, error) { return "10", nil })

	conv := pipeline.NewConversion(convert.NewJob(probe, transcoder, nil), []string{"mp3", "wav"}, pipeline.Options{Bus: bus})
	dl := pipeline.NewDownload(download.NewJob(engine, nil), pipeline.Options{Bus: bus})

	s := NewServer(Options{Conversion: conv, Download: dl, Bus: bus, History: hist})
	return &testServer{Server: s, gate: gate, dir: dir, input: input}
}

func (ts *testServer) do(method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ts.Handler().ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) convertBody(format string) string {
	body, _ := json.Marshal(model.ConversionRequest{InputPath: ts.input, OutputDirectory: ts.dir, OutputFormat: format})
	return string(body)
}

func TestHealthCheck(t *testing.T) {
	ts := setupTestServer(t, nil)

	rec := ts.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestConvertLifecycle(t *testing.T) {
	ts := setupTestServer(t, nil)

	rec := ts.do(http.MethodPost, "/api/convert", ts.convertBody("mp3"))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var accepted TriggerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &accepted))
	assert.True(t, strings.HasPrefix(accepted.JobID, "conversion-"))

	// A second trigger while running is rejected.
	rec = ts.do(http.MethodPost, "/api/convert", ts.convertBody("mp3"))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var status StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(t, status.Conversion.Running)
	assert.Equal(t, accepted.JobID, status.Conversion.JobID)
	assert.False(t, status.Download.Running)

	close(ts.gate)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	outcome, err := ts.conversion.Wait(ctx)
	require.NoError(t, err)
	assert.True(t, outcome.Success)

	rec = ts.do(http.MethodGet, "/api/status", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.False(t, status.Conversion.Running)
	assert.Equal(t, pipeline.MessageConverted, status.Conversion.Message)
}

func TestConvertValidation(t *testing.T) {
	ts := setupTestServer(t, nil)

	tests := []struct {
		name string
		body string
		code int
		want string
	}{
		{"malformed", `{"input_path":`, http.StatusBadRequest, "invalid request body"},
		{"missing file", `{"output_format":"mp3"}`, http.StatusBadRequest, pipeline.MessageSelectFile},
		{"unsupported format", ts.convertBody("xyz"), http.StatusBadRequest, "Unsupported format: xyz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(http.MethodPost, "/api/convert", tt.body)
			assert.Equal(t, tt.code, rec.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.want, resp.Error)
		})
	}
}

func TestDownloadCollision(t *testing.T) {
	ts := setupTestServer(t, nil)
	target := filepath.ToSlash(filepath.Join(ts.dir, "track.flac"))
	require.NoError(t, os.WriteFile(target, []byte("keep"), 0o644))

	body := `{"url":"https://youtu.be/abc","output_directory":"` + filepath.ToSlash(ts.dir) + `","file_name":"track"}`
	rec := ts.do(http.MethodPost, "/api/download", body)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "File already exists: "+target, resp.Error)
	assert.Equal(t, model.ErrorKindValidation, resp.Kind)
}

func TestCancel(t *testing.T) {
	ts := setupTestServer(t, nil)

	rec := ts.do(http.MethodPost, "/api/download/cancel", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	body := `{"url":"https://youtu.be/abc","output_directory":"` + filepath.ToSlash(ts.dir) + `","file_name":"track"}`
	rec = ts.do(http.MethodPost, "/api/download", body)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	rec = ts.do(http.MethodPost, "/api/download/cancel", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	outcome, err := ts.download.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.ErrorKindCancelled, outcome.ErrorKind())
}

func TestFormats(t *testing.T) {
	ts := setupTestServer(t, nil)

	rec := ts.do(http.MethodGet, "/api/formats", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"conversion":["mp3","wav"],"download":["flac"]}`, rec.Body.String())
}

func TestHistory(t *testing.T) {
	hist := &stubHistory{entries: []history.Entry{{JobID: "download-1", Kind: model.JobKindDownload, Success: true}}}
	ts := setupTestServer(t, hist)

	rec := ts.do(http.MethodGet, "/api/history?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, hist.limit)

	var entries []history.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "download-1", entries[0].JobID)

	rec = ts.do(http.MethodGet, "/api/history?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	hist.err = errors.New("database is locked")
	rec = ts.do(http.MethodGet, "/api/history", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHistoryDisabled(t *testing.T) {
	ts := setupTestServer(t, nil)

	rec := ts.do(http.MethodGet, "/api/history", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestEventsStream(t *testing.T) {
	ts := setupTestServer(t, nil)
	srv := httptest.NewServer(ts.Handler())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	rec := ts.do(http.MethodPost, "/api/convert", ts.convertBody("mp3"))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	close(ts.gate)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var percents []int
	var lastSeq int64
	for {
		var event progress.Event
		require.NoError(t, conn.ReadJSON(&event))
		assert.Greater(t, event.Seq, lastSeq)
		lastSeq = event.Seq

		if event.Type == progress.EventTypeProgress {
			percents = append(percents, event.Percent)
		}
		if event.Type == progress.EventTypeOutcome {
			assert.True(t, event.Success)
			assert.Equal(t, model.JobKindConversion, event.Kind)
			break
		}
	}
	assert.Equal(t, []int{0, 50, 100}, percents)
}

func TestEventsRejectsBadSince(t *testing.T) {
	ts := setupTestServer(t, nil)

	rec := ts.do(http.MethodGet, "/api/events?since=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
