// Package monitor follows the pw-mon event stream and prints a fresh status
// line after each burst of PipeWire events.
package monitor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/audiolibrelab/wpstatus/internal/debounce"
	"github.com/audiolibrelab/wpstatus/internal/errors"
	"github.com/audiolibrelab/wpstatus/internal/wpctl"
)

// Defaults used when Options leaves a field at zero
const (
	DefaultSettleDelay   = 100 * time.Millisecond
	DefaultRestartBudget = 100
	DefaultBufferSize    = 256
)

// Stream is one running event stream process
type Stream interface {
	// Lines is the stream's output. It reaches EOF when the process exits.
	Lines() io.Reader
	// Wait reaps the process once Lines is drained.
	Wait() error
	// Stop terminates the process. It is safe to call more than once.
	Stop() error
}

// EventSource starts event streams
type EventSource interface {
	Start(ctx context.Context) (Stream, error)
}

// Querier fetches a fresh status snapshot
type Querier interface {
	Query(ctx context.Context) (wpctl.Status, error)
}

// StatusRenderer turns a snapshot into the status bar line
type StatusRenderer interface {
	RenderStatus(status wpctl.Status) string
}

// Options tunes the loop
type Options struct {
	// SettleDelay is how long to wait after an accepted event before
	// querying, so WirePlumber has finished applying the change.
	SettleDelay time.Duration
	// RestartBudget is the number of times the event stream is started.
	RestartBudget int
	// BufferSize is the number of event lines buffered while a refresh runs.
	BufferSize int
}

// Loop owns the event stream process and is the only user of its gate
type Loop struct {
	source   EventSource
	querier  Querier
	renderer StatusRenderer
	gate     *debounce.Gate
	out      io.Writer

	settle     time.Duration
	budget     int
	bufferSize int

	// now timestamps lines as they are read
	now func() time.Time
}

// New creates a monitor loop
func New(source EventSource, querier Querier, renderer StatusRenderer, gate *debounce.Gate, out io.Writer, opts Options) *Loop {
	if gate == nil {
		gate = debounce.NewGate(debounce.DefaultWindow)
	}
	if opts.SettleDelay < 0 {
		opts.SettleDelay = 0
	}
	if opts.RestartBudget <= 0 {
		opts.RestartBudget = DefaultRestartBudget
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	return &Loop{
		source:     source,
		querier:    querier,
		renderer:   renderer,
		gate:       gate,
		out:        out,
		settle:     opts.SettleDelay,
		budget:     opts.RestartBudget,
		bufferSize: opts.BufferSize,
		now:        time.Now,
	}
}

type event struct {
	line string
	at   time.Time
}

// Run starts the event stream and restarts it each time it ends, until the
// restart budget is used up. An exhausted budget is a normal shutdown and
// returns nil. A failed refresh stops the stream and is returned as is.
func (l *Loop) Run(ctx context.Context) error {
	for attempt := 1; attempt <= l.budget; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := l.stream(ctx, attempt)
		switch {
		case err == nil:
			slog.Info("Event stream ended", "attempt", attempt, "remaining", l.budget-attempt)
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.IsCode(err, errors.ErrStream):
			slog.Warn("Event stream failed", "attempt", attempt, "remaining", l.budget-attempt, "error", err)
		default:
			return err
		}
	}

	slog.Info("Restart budget exhausted, stopping monitor", "budget", l.budget)
	return nil
}

// stream runs one event stream process from start to exit
func (l *Loop) stream(ctx context.Context, attempt int) error {
	l.gate.Reset()

	stream, err := l.source.Start(ctx)
	if err != nil {
		return errors.Wrap(err, errors.ErrStream, "failed to start event stream")
	}
	slog.Debug("Event stream started", "attempt", attempt)

	// stopCtx is cancelled only by ctx or by a failing goroutine, never by a
	// stream that ended on its own.
	stopCtx, stopStream := context.WithCancel(ctx)
	defer stopStream()

	finished := make(chan struct{})
	stopperDone := make(chan struct{})
	go func() {
		defer close(stopperDone)
		select {
		case <-stopCtx.Done():
		case <-finished:
		}
		if stopCtx.Err() != nil {
			if err := stream.Stop(); err != nil {
				slog.Debug("Failed to stop event stream", "error", err)
			}
		}
	}()

	g, gctx := errgroup.WithContext(stopCtx)
	events := make(chan event, l.bufferSize)

	g.Go(func() error {
		defer close(events)
		scanner := bufio.NewScanner(stream.Lines())
		for scanner.Scan() {
			ev := event{line: scanner.Text(), at: l.now()}
			select {
			case events <- ev:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		if err := scanner.Err(); err != nil {
			stopStream()
			return errors.Wrap(err, errors.ErrStream, "failed to read event stream")
		}
		return nil
	})

	g.Go(func() error {
		for ev := range events {
			if err := l.handle(gctx, ev); err != nil {
				stopStream()
				return err
			}
		}
		return nil
	})

	runErr := g.Wait()
	close(finished)
	<-stopperDone
	waitErr := stream.Wait()

	if runErr != nil {
		return runErr
	}
	if waitErr != nil {
		return errors.Wrap(waitErr, errors.ErrStream, "event stream exited with error")
	}
	return nil
}

// handle runs one refresh cycle if the gate lets the event through
func (l *Loop) handle(ctx context.Context, ev event) error {
	if !l.gate.Accept(ev.at) {
		slog.Debug("Event debounced", "line", ev.line)
		return nil
	}
	slog.Debug("Event accepted", "line", ev.line)

	if err := sleep(ctx, l.settle); err != nil {
		return err
	}

	status, err := l.querier.Query(ctx)
	if err != nil {
		return fmt.Errorf("refresh failed: %w", err)
	}

	if _, err := fmt.Fprintln(l.out, l.renderer.RenderStatus(status)); err != nil {
		return fmt.Errorf("failed to write status line: %w", err)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
