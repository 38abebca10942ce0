package monitor

import (
	"context"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/audiolibrelab/wpstatus/internal/errors"
)

// ProcessSource runs an event stream command such as `pw-mon --no-colors`
type ProcessSource struct {
	Command string
	Args    []string
	// LineBuffered wraps the command in `stdbuf -oL` when stdbuf is
	// installed, so events are not held back by stdio's pipe buffering.
	LineBuffered bool
}

// Start launches the command in its own process group
func (s *ProcessSource) Start(ctx context.Context) (Stream, error) {
	name, args := s.Command, s.Args
	if s.LineBuffered {
		if stdbuf, err := exec.LookPath("stdbuf"); err == nil {
			args = append([]string{"-oL", name}, args...)
			name = stdbuf
		}
	}

	cmd := exec.Command(name, args...)
	cmd.SysProcAttr = sysProcAttr()
	cmd.Stderr = stderrLogger{command: s.Command}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrUnavailable, "failed to create stdout pipe")
	}

	if err := cmd.Start(); err != nil {
		return nil, errors.WrapWithSuggestion(err, errors.ErrUnavailable,
			"failed to launch "+s.Command,
			"Install PipeWire tools or set commands.monitor to the pw-mon path.")
	}

	slog.Debug("Started event stream process", "command", strings.Join(cmd.Args, " "), "pid", cmd.Process.Pid)
	return &processStream{cmd: cmd, stdout: stdout}, nil
}

type processStream struct {
	cmd    *exec.Cmd
	stdout io.Reader

	stopOnce sync.Once
	stopErr  error
}

func (p *processStream) Lines() io.Reader {
	return p.stdout
}

func (p *processStream) Wait() error {
	return p.cmd.Wait()
}

// Stop sends SIGTERM to the whole process group, so a stdbuf wrapper and
// anything pw-mon spawned go away with it.
func (p *processStream) Stop() error {
	p.stopOnce.Do(func() {
		if p.cmd.Process == nil {
			return
		}
		err := unix.Kill(-p.cmd.Process.Pid, unix.SIGTERM)
		if err != nil && !errors.Is(err, unix.ESRCH) {
			p.stopErr = err
		}
	})
	return p.stopErr
}

// stderrLogger forwards the child's stderr to the debug log
type stderrLogger struct {
	command string
}

func (w stderrLogger) Write(b []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimRight(string(b), "\n"), "\n") {
		if line != "" {
			slog.Debug("Event stream stderr", "command", w.command, "line", line)
		}
	}
	return len(b), nil
}
