package monitor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/audiolibrelab/wpstatus/internal/debounce"
	"github.com/audiolibrelab/wpstatus/internal/errors"
	"github.com/audiolibrelab/wpstatus/internal/render"
	"github.com/audiolibrelab/wpstatus/internal/wpctl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStream replays fixed output, or blocks on a pipe until stopped
type fakeStream struct {
	reader  io.Reader
	pipe    *io.PipeWriter
	waitErr error

	mu      sync.Mutex
	stopped bool
}

func (s *fakeStream) Lines() io.Reader { return s.reader }
func (s *fakeStream) Wait() error      { return s.waitErr }

func (s *fakeStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.pipe != nil {
		s.pipe.Close()
	}
	return nil
}

func (s *fakeStream) wasStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// fakeSource hands out streams built by next, one per Start call
type fakeSource struct {
	mu       sync.Mutex
	starts   int
	startErr error
	next     func(n int) *fakeStream
	streams  []*fakeStream
}

func (f *fakeSource) Start(ctx context.Context) (Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	if f.startErr != nil {
		return nil, f.startErr
	}
	s := f.next(f.starts)
	f.streams = append(f.streams, s)
	return s, nil
}

func (f *fakeSource) startCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts
}

func linesStream(lines ...string) *fakeStream {
	return &fakeStream{reader: strings.NewReader(strings.Join(lines, "\n") + "\n")}
}

// fakeQuerier returns a fixed status or error and counts queries
type fakeQuerier struct {
	mu     sync.Mutex
	status wpctl.Status
	err    error
	calls  int
}

func (q *fakeQuerier) Query(ctx context.Context) (wpctl.Status, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.calls++
	return q.status, q.err
}

// syncBuffer is a bytes.Buffer safe for the worker and the test to share
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	text := strings.TrimRight(b.buf.String(), "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

// steppingClock returns t0, t0+step, t0+2*step, ... on each call
func steppingClock(step time.Duration) func() time.Time {
	var mu sync.Mutex
	current := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := current
		current = current.Add(step)
		return t
	}
}

func speakerStatus() wpctl.Status {
	return wpctl.Status{AudioSinks: []wpctl.Entry{{ID: 43, Name: "Speaker", Volume: 0.5, IsDefault: true}}}
}

func newTestLoop(source EventSource, querier Querier, out io.Writer, budget int) *Loop {
	opts := render.DefaultOptions()
	opts.Symbol, opts.Icon = false, false

	loop := New(source, querier, render.New(opts), debounce.NewGate(50*time.Millisecond), out, Options{
		SettleDelay:   0,
		RestartBudget: budget,
	})
	return loop
}

func TestLoop_DebouncesBurst(t *testing.T) {
	source := &fakeSource{next: func(int) *fakeStream {
		return linesStream("added: 1", "changed: 2", "changed: 3", "changed: 4", "removed: 5")
	}}
	querier := &fakeQuerier{status: speakerStatus()}
	out := &syncBuffer{}

	loop := newTestLoop(source, querier, out, 1)
	loop.now = steppingClock(30 * time.Millisecond)

	require.NoError(t, loop.Run(context.Background()))

	// Lines at 0, 30, 60, 90, 120ms: 0, 60 and 120 pass the 50ms gate.
	assert.Equal(t, []string{"50.0%", "50.0%", "50.0%"}, out.Lines())
	assert.Equal(t, 3, querier.calls)
}

func TestLoop_RestartsUntilBudgetExhausted(t *testing.T) {
	source := &fakeSource{next: func(int) *fakeStream { return linesStream("changed") }}
	querier := &fakeQuerier{status: speakerStatus()}
	out := &syncBuffer{}

	loop := newTestLoop(source, querier, out, 3)
	// A frozen clock would reject every later line if the gate were not
	// reset between streams.
	frozen := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	loop.now = func() time.Time { return frozen }

	require.NoError(t, loop.Run(context.Background()))

	assert.Equal(t, 3, source.startCount())
	assert.Len(t, out.Lines(), 3)
}

func TestLoop_LaunchFailureConsumesBudget(t *testing.T) {
	source := &fakeSource{startErr: errors.New(errors.ErrUnavailable, "failed to launch pw-mon", "")}
	querier := &fakeQuerier{status: speakerStatus()}
	out := &syncBuffer{}

	err := newTestLoop(source, querier, out, 5).Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 5, source.startCount())
	assert.Empty(t, out.Lines())
	assert.Zero(t, querier.calls)
}

func TestLoop_StreamEndingOnItsOwnIsNotStopped(t *testing.T) {
	source := &fakeSource{next: func(int) *fakeStream { return linesStream("added: 1", "changed: 2") }}
	querier := &fakeQuerier{status: speakerStatus()}

	require.NoError(t, newTestLoop(source, querier, &syncBuffer{}, 20).Run(context.Background()))

	require.Len(t, source.streams, 20)
	for i, s := range source.streams {
		assert.False(t, s.wasStopped(), "stream %d was stopped after a clean exit", i+1)
	}
}

func TestLoop_StreamExitErrorRestarts(t *testing.T) {
	source := &fakeSource{next: func(n int) *fakeStream {
		s := linesStream(fmt.Sprintf("event %d", n))
		s.waitErr = fmt.Errorf("exit status 1")
		return s
	}}
	querier := &fakeQuerier{status: speakerStatus()}
	out := &syncBuffer{}

	require.NoError(t, newTestLoop(source, querier, out, 2).Run(context.Background()))
	assert.Equal(t, 2, source.startCount())
	assert.Len(t, out.Lines(), 2)
}

func TestLoop_NoSinks(t *testing.T) {
	source := &fakeSource{next: func(int) *fakeStream { return linesStream("changed") }}
	querier := &fakeQuerier{status: wpctl.Status{}}
	out := &syncBuffer{}

	require.NoError(t, newTestLoop(source, querier, out, 1).Run(context.Background()))
	assert.Equal(t, []string{render.NoSinks}, out.Lines())
}

func TestLoop_FailingWpctlPrintsNoSinks(t *testing.T) {
	bin := filepath.Join(t.TempDir(), "wpctl")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\necho 'Could not connect to PipeWire' >&2\nexit 1\n"), 0o755))

	source := &fakeSource{next: func(int) *fakeStream { return linesStream("changed") }}
	client := wpctl.NewClient(nil, wpctl.Options{Binary: bin, Timeout: 5 * time.Second})
	out := &syncBuffer{}

	require.NoError(t, newTestLoop(source, client, out, 2).Run(context.Background()))
	assert.Equal(t, []string{render.NoSinks, render.NoSinks}, out.Lines())
	assert.Equal(t, 2, source.startCount())
}

func TestLoop_QueryFailureIsTerminal(t *testing.T) {
	pr, pw := io.Pipe()
	stream := &fakeStream{reader: pr, pipe: pw}
	source := &fakeSource{next: func(int) *fakeStream { return stream }}
	querier := &fakeQuerier{err: errors.New(errors.ErrUnavailable, "failed to launch wpctl", "")}
	out := &syncBuffer{}

	go func() {
		// The write fails once the loop stops the stream; that is expected.
		_, _ = pw.Write([]byte("changed\n"))
	}()

	err := newTestLoop(source, querier, out, 10).Run(context.Background())

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrUnavailable))
	assert.Equal(t, 1, source.startCount(), "refresh failures must not restart the stream")
	assert.True(t, stream.wasStopped())
	assert.Empty(t, out.Lines())
}

func TestLoop_ParseFailureIsTerminal(t *testing.T) {
	source := &fakeSource{next: func(int) *fakeStream { return linesStream("changed", "changed") }}
	querier := &fakeQuerier{err: errors.New(errors.ErrParse, "invalid volume", "")}

	err := newTestLoop(source, querier, &syncBuffer{}, 10).Run(context.Background())
	assert.True(t, errors.IsCode(err, errors.ErrParse))
	assert.Equal(t, 1, source.startCount())
}

func TestLoop_ContextCancelStopsStream(t *testing.T) {
	pr, pw := io.Pipe()
	stream := &fakeStream{reader: pr, pipe: pw}
	source := &fakeSource{next: func(int) *fakeStream { return stream }}
	querier := &fakeQuerier{status: speakerStatus()}
	out := &syncBuffer{}

	ctx, cancel := context.WithCancel(context.Background())
	loop := newTestLoop(source, querier, out, 10)

	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	_, err := pw.Write([]byte("changed\n"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(out.Lines()) == 1 }, time.Second, 5*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not stop after cancellation")
	}
	assert.True(t, stream.wasStopped())
	assert.Equal(t, 1, source.startCount())
}

func TestLoop_SettleDelayCancelled(t *testing.T) {
	source := &fakeSource{next: func(int) *fakeStream { return linesStream("changed") }}
	querier := &fakeQuerier{status: speakerStatus()}

	loop := newTestLoop(source, querier, &syncBuffer{}, 1)
	loop.settle = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := loop.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, querier.calls)
}

func TestNew_Defaults(t *testing.T) {
	loop := New(&fakeSource{}, &fakeQuerier{}, render.New(render.DefaultOptions()), nil, io.Discard, Options{SettleDelay: -time.Second})

	assert.Equal(t, DefaultRestartBudget, loop.budget)
	assert.Equal(t, DefaultBufferSize, loop.bufferSize)
	assert.Zero(t, loop.settle)
	assert.Equal(t, debounce.DefaultWindow, loop.gate.Window())
}
