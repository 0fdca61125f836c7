package convert

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RinkyDinkyNooble/AudioMorph/internal/model"
	"github.com/RinkyDinkyNooble/AudioMorph/internal/progress"
)

type fakeProber struct {
	output string
	err    error
	calls  int
}

func (f *fakeProber) Probe(context.Context, string) (string, error) {
	f.calls++
	return f.output, f.err
}

type fakeTranscoder struct {
	mu    sync.Mutex
	calls int
	start func(ctx context.Context, in, out string) (Process, error)
}

func (f *fakeTranscoder) Start(ctx context.Context, in, out string) (Process, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.start(ctx, in, out)
}

func (f *fakeTranscoder) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeProcess struct {
	stdout  io.Reader
	waitErr error
}

func (p *fakeProcess) Stdout() io.Reader { return p.stdout }
func (p *fakeProcess) Wait() error       { return p.waitErr }

// writingTranscoder creates the output file and streams lines.
func writingTranscoder(lines string) *fakeTranscoder {
	return &fakeTranscoder{start: func(_ context.Context, _, out string) (Process, error) {
		if err := os.WriteFile(out, []byte("audio"), 0o644); err != nil {
			return nil, err
		}
		return &fakeProcess{stdout: strings.NewReader(lines)}, nil
	}}
}

type recorder struct {
	mu     sync.Mutex
	values []int
}

func (r *recorder) Update(p int) {
	r.mu.Lock()
	r.values = append(r.values, p)
	r.mu.Unlock()
}

func (r *recorder) Values() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.values...)
}

func setup(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	input := filepath.Join(dir, "song.wav")
	require.NoError(t, os.WriteFile(input, []byte("RIFF"), 0o644))
	outDir := filepath.Join(dir, "out")
	require.NoError(t, os.Mkdir(outDir, 0o755))
	return input, outDir
}

func TestRunPublishesPercentages(t *testing.T) {
	input, outDir := setup(t)
	req := model.ConversionRequest{InputPath: input, OutputDirectory: outDir, OutputFormat: "mp3"}

	prober := &fakeProber{output: "10.000000\n"}
	transcoder := writingTranscoder("frame=10\n  out_time_ms=5000000  \nprogress=continue\nout_time_ms=10000000\nprogress=end\n")
	rec := &recorder{}

	job := NewJob(prober, transcoder, nil)
	require.NoError(t, job.Run(context.Background(), req.InputPath, req.OutputPath(), rec))

	assert.Equal(t, []int{50, 100, 100}, rec.Values())
	assert.FileExists(t, req.OutputPath())
	assert.Equal(t, 1, transcoder.Calls())
}

func TestRunThroughTrackerIsMonotonic(t *testing.T) {
	input, outDir := setup(t)
	output := filepath.Join(outDir, "song.ogg")

	lines := "out_time_ms=1000000\nout_time_ms=3000000\nout_time_ms=2000000\nout_time_ms=-5\nout_time_ms=N/A\nout_time_ms=25000000\n"
	job := NewJob(&fakeProber{output: "4"}, writingTranscoder(lines), nil)

	bus := progress.NewBus(0)
	tracker := progress.NewTracker(model.JobKindConversion, bus)
	tracker.Begin("job")

	require.NoError(t, job.Run(context.Background(), input, output, tracker))

	last := -1
	for _, e := range bus.Since(0) {
		assert.GreaterOrEqual(t, e.Percent, last)
		assert.LessOrEqual(t, e.Percent, 100)
		last = e.Percent
	}
	assert.Equal(t, 100, tracker.Percent())
}

func TestRunProbeFailures(t *testing.T) {
	tests := []struct {
		name   string
		prober *fakeProber
		want   model.ErrorKind
	}{
		{"non-numeric", &fakeProber{output: "N/A\n"}, model.ErrorKindProbeParse},
		{"empty", &fakeProber{output: ""}, model.ErrorKindProbeParse},
		{"zero duration", &fakeProber{output: "0.000000"}, model.ErrorKindProbeParse},
		{"probe tool error", &fakeProber{err: errors.New("exit status 1")}, model.ErrorKindProcessFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input, outDir := setup(t)
			output := filepath.Join(outDir, "song.mp3")
			transcoder := writingTranscoder("out_time_ms=1\n")

			err := NewJob(tt.prober, transcoder, nil).Run(context.Background(), input, output, nil)

			require.Error(t, err)
			assert.Equal(t, tt.want, model.KindOf(err))
			assert.Zero(t, transcoder.Calls(), "transcoder must not run")
			assert.NoFileExists(t, output)
		})
	}
}

func TestRunMissingOutput(t *testing.T) {
	input, outDir := setup(t)
	output := filepath.Join(outDir, "song.mp3")

	transcoder := &fakeTranscoder{start: func(context.Context, string, string) (Process, error) {
		return &fakeProcess{stdout: strings.NewReader("out_time_ms=10000000\n")}, nil
	}}
	rec := &recorder{}

	err := NewJob(&fakeProber{output: "10"}, transcoder, nil).Run(context.Background(), input, output, rec)

	require.Error(t, err)
	assert.Equal(t, model.ErrorKindMissingOutput, model.KindOf(err))
	assert.Equal(t, []int{100}, rec.Values())
}

func TestRunProcessFailureRemovesPartialOutput(t *testing.T) {
	input, outDir := setup(t)
	output := filepath.Join(outDir, "song.mp3")

	transcoder := &fakeTranscoder{start: func(_ context.Context, _, out string) (Process, error) {
		if err := os.WriteFile(out, []byte("partial"), 0o644); err != nil {
			return nil, err
		}
		return &fakeProcess{stdout: strings.NewReader("out_time_ms=2000000\n"), waitErr: errors.New("exit status 1")}, nil
	}}

	err := NewJob(&fakeProber{output: "10"}, transcoder, nil).Run(context.Background(), input, output, nil)

	require.Error(t, err)
	assert.Equal(t, model.ErrorKindProcessFailed, model.KindOf(err))
	assert.NoFileExists(t, output)
}

func TestRunProcessFailureKeepsUntouchedExistingOutput(t *testing.T) {
	input, outDir := setup(t)
	output := filepath.Join(outDir, "song.mp3")
	require.NoError(t, os.WriteFile(output, []byte("user audio"), 0o644))

	transcoder := &fakeTranscoder{start: func(context.Context, string, string) (Process, error) {
		return &fakeProcess{stdout: strings.NewReader(""), waitErr: errors.New("exit status 1")}, nil
	}}

	err := NewJob(&fakeProber{output: "10"}, transcoder, nil).Run(context.Background(), input, output, nil)

	require.Error(t, err)
	assert.Equal(t, model.ErrorKindProcessFailed, model.KindOf(err))
	data, readErr := os.ReadFile(output)
	require.NoError(t, readErr)
	assert.Equal(t, "user audio", string(data))
}

func TestRunProcessFailureRemovesOverwrittenOutput(t *testing.T) {
	input, outDir := setup(t)
	output := filepath.Join(outDir, "song.mp3")
	require.NoError(t, os.WriteFile(output, []byte("user audio"), 0o644))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(output, old, old))

	transcoder := &fakeTranscoder{start: func(_ context.Context, _, out string) (Process, error) {
		if err := os.WriteFile(out, []byte("partial"), 0o644); err != nil {
			return nil, err
		}
		return &fakeProcess{stdout: strings.NewReader(""), waitErr: errors.New("exit status 1")}, nil
	}}

	err := NewJob(&fakeProber{output: "10"}, transcoder, nil).Run(context.Background(), input, output, nil)

	require.Error(t, err)
	assert.NoFileExists(t, output)
}

// drainCheckingProcess fails Wait if stdout still holds unread data.
type drainCheckingProcess struct {
	stdout *strings.Reader
}

func (p *drainCheckingProcess) Stdout() io.Reader { return p.stdout }
func (p *drainCheckingProcess) Wait() error {
	if p.stdout.Len() > 0 {
		return errors.New("stdout not drained")
	}
	return nil
}

func TestRunDrainsStdoutAfterOversizedLine(t *testing.T) {
	input, outDir := setup(t)
	output := filepath.Join(outDir, "song.mp3")

	lines := "out_time_ms=2000000\n" + strings.Repeat("x", 128*1024) + "\nout_time_ms=4000000\n"
	transcoder := &fakeTranscoder{start: func(_ context.Context, _, out string) (Process, error) {
		if err := os.WriteFile(out, []byte("audio"), 0o644); err != nil {
			return nil, err
		}
		return &drainCheckingProcess{stdout: strings.NewReader(lines)}, nil
	}}
	rec := &recorder{}

	err := NewJob(&fakeProber{output: "10"}, transcoder, nil).Run(context.Background(), input, output, rec)

	require.NoError(t, err)
	assert.Equal(t, []int{20, 100}, rec.Values())
}

func TestRunStartFailure(t *testing.T) {
	input, outDir := setup(t)
	transcoder := &fakeTranscoder{start: func(context.Context, string, string) (Process, error) {
		return nil, errors.New("executable file not found in $PATH")
	}}

	err := NewJob(&fakeProber{output: "10"}, transcoder, nil).Run(context.Background(), input, filepath.Join(outDir, "x.mp3"), nil)

	require.Error(t, err)
	assert.Equal(t, model.ErrorKindProcessFailed, model.KindOf(err))
}

func TestRunCancelledWhileStarting(t *testing.T) {
	input, outDir := setup(t)
	release := make(chan struct{})
	defer close(release)

	transcoder := &fakeTranscoder{start: func(context.Context, string, string) (Process, error) {
		<-release
		return &fakeProcess{stdout: strings.NewReader("")}, nil
	}}

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		errc <- NewJob(&fakeProber{output: "10"}, transcoder, nil).Run(ctx, input, filepath.Join(outDir, "x.mp3"), nil)
	}()

	require.Eventually(t, func() bool { return transcoder.Calls() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		assert.Equal(t, model.ErrorKindCancelled, model.KindOf(err))
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestFuncUsesDerivedOutputPath(t *testing.T) {
	input, outDir := setup(t)
	req := model.ConversionRequest{InputPath: input, OutputDirectory: outDir, OutputFormat: "flac"}

	var gotOut string
	transcoder := &fakeTranscoder{start: func(_ context.Context, _, out string) (Process, error) {
		gotOut = out
		if err := os.WriteFile(out, nil, 0o644); err != nil {
			return nil, err
		}
		return &fakeProcess{stdout: strings.NewReader("")}, nil
	}}

	fn := NewJob(&fakeProber{output: "1"}, transcoder, nil).Func(req)
	require.NoError(t, fn(context.Background(), progress.Discard))
	assert.Equal(t, req.OutputPath(), gotOut)
}
