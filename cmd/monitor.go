package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/audiolibrelab/wpstatus/internal/debounce"
	"github.com/audiolibrelab/wpstatus/internal/errors"
	"github.com/audiolibrelab/wpstatus/internal/monitor"
	"github.com/audiolibrelab/wpstatus/internal/render"
	"github.com/audiolibrelab/wpstatus/internal/wpctl"

	"github.com/spf13/cobra"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Print the status line on every audio graph change",
	Long: `Follow pw-mon and print the default sink status line whenever the
PipeWire graph changes. This is what wpstatus runs without a subcommand.`,
	Args: cobra.NoArgs,
	RunE: runMonitor,
}

func runMonitor(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := wpctl.NewClient(nil, cfg.ClientOptions())
	renderer := render.New(cfg.RenderOptions())
	gate := debounce.NewGate(cfg.Monitor.DebounceWindow)

	loop := monitor.New(cfg.EventSource(), client, renderer, gate, cmd.OutOrStdout(), cfg.MonitorOptions())

	slog.Debug("Starting monitor",
		"command", cfg.Commands.Monitor,
		"debounce", cfg.Monitor.DebounceWindow,
		"settle", cfg.Monitor.SettleDelay,
		"restart_budget", cfg.Monitor.RestartBudget)

	if err := loop.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			slog.Debug("Monitor stopped by signal")
			return nil
		}
		return err
	}
	return nil
}
