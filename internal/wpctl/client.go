// Package wpctl queries and controls WirePlumber through the wpctl CLI.
package wpctl

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/audiolibrelab/wpstatus/internal/errors"
)

// Runner executes external commands
type Runner interface {
	// Output runs the command and returns its stdout. Stderr is discarded.
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
	// Run runs the command for its side effect.
	Run(ctx context.Context, name string, args ...string) error
}

// ExecRunner runs commands with os/exec
type ExecRunner struct{}

// Output implements Runner
func (ExecRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.Output()
}

// Run implements Runner
func (ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w (output: %s)", err, strings.TrimSpace(string(output)))
	}
	return nil
}

// Options configures a Client
type Options struct {
	// Binary is the wpctl executable, "wpctl" when empty.
	Binary string
	// Timeout bounds each wpctl invocation. Zero disables the bound.
	Timeout time.Duration
	// Strict makes a malformed status line fail the whole query.
	Strict bool
}

// Client wraps the wpctl commands wpstatus needs
type Client struct {
	runner  Runner
	binary  string
	timeout time.Duration
	parser  *Parser
}

// NewClient creates a new Client. A nil runner uses ExecRunner.
func NewClient(runner Runner, opts Options) *Client {
	if runner == nil {
		runner = ExecRunner{}
	}
	binary := opts.Binary
	if binary == "" {
		binary = "wpctl"
	}
	return &Client{
		runner:  runner,
		binary:  binary,
		timeout: opts.Timeout,
		parser:  &Parser{Strict: opts.Strict},
	}
}

// Query runs `wpctl status` and parses a fresh Status
func (c *Client) Query(ctx context.Context) (Status, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	output, err := c.runner.Output(ctx, c.binary, "status")
	if err != nil {
		// wpctl exits non-zero while PipeWire is down or restarting; whatever
		// it printed on stdout (usually nothing) is still the status.
		var exitErr *exec.ExitError
		if ctx.Err() != nil || !errors.As(err, &exitErr) {
			return Status{}, c.unavailable(ctx, err, "status")
		}
		slog.Debug("wpctl status exited with an error, parsing its output",
			"code", exitErr.ExitCode(),
			"stderr", strings.TrimSpace(string(exitErr.Stderr)))
	}

	status, err := c.parser.Parse(string(output))
	if err != nil {
		return Status{}, err
	}

	slog.Debug("Queried wpctl status", "sinks", len(status.AudioSinks), "sources", len(status.AudioSources))
	return status, nil
}

// SetVolume sets the volume of a device, clamped to [0, 1]
func (c *Client) SetVolume(ctx context.Context, id int, volume float64) error {
	return c.run(ctx, "set-volume", strconv.Itoa(id), strconv.FormatFloat(ClampVolume(volume), 'f', 4, 64))
}

// ToggleMute toggles the mute state of a device
func (c *Client) ToggleMute(ctx context.Context, id int) error {
	return c.run(ctx, "set-mute", strconv.Itoa(id), "toggle")
}

// SetDefault makes a device the default sink or source
func (c *Client) SetDefault(ctx context.Context, id int) error {
	return c.run(ctx, "set-default", strconv.Itoa(id))
}

// ClampVolume limits volume to [0, 1]
func ClampVolume(volume float64) float64 {
	return max(min(volume, 1), 0)
}

func (c *Client) run(ctx context.Context, args ...string) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	slog.Debug("Running wpctl", "args", strings.Join(args, " "))
	if err := c.runner.Run(ctx, c.binary, args...); err != nil {
		return c.unavailable(ctx, err, args[0])
	}
	return nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// unavailable classifies a wpctl failure. Every failure maps to UNAVAILABLE;
// only the message and hint differ. Query handles non-zero exits itself.
func (c *Client) unavailable(ctx context.Context, err error, subcommand string) error {
	if ctx.Err() == context.DeadlineExceeded {
		return errors.WrapWithSuggestion(ctx.Err(), errors.ErrUnavailable,
			fmt.Sprintf("%s %s timed out after %s", c.binary, subcommand, c.timeout),
			"Check that the PipeWire and WirePlumber services are responsive.")
	}
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
		return errors.WrapWithSuggestion(err, errors.ErrUnavailable,
			fmt.Sprintf("failed to launch %s", c.binary),
			"Install WirePlumber or set commands.wpctl to the wpctl path.")
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return errors.Wrap(err, errors.ErrUnavailable,
			fmt.Sprintf("%s %s exited with code %d", c.binary, subcommand, exitErr.ExitCode()))
	}
	return errors.Wrap(err, errors.ErrUnavailable, fmt.Sprintf("%s %s failed", c.binary, subcommand))
}
