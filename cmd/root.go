package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/audiolibrelab/wpstatus/internal/config"
	"github.com/audiolibrelab/wpstatus/internal/errors"

	"github.com/spf13/cobra"
)

var (
	cfg          *config.Config
	cfgFile      string
	verboseLevel int
)

var rootCmd = &cobra.Command{
	Use:   "wpstatus",
	Short: "PipeWire volume status and control for status bars",
	Long: `wpstatus prints the volume of the default PipeWire sink as a single
status line and reprints it whenever the audio graph changes.

Without a subcommand it runs the monitor: it follows pw-mon, debounces
bursts of graph events and queries wpctl for a fresh status after each one.

The control subcommands (up, down, mute-sink, next-sink, ...) are meant to
be bound to clicks and scrolls in the status bar.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging(verboseLevel)

		var err error
		if cfgFile == "" {
			// The default file is optional; an explicit --config is not
			cfg, err = config.LoadOptional(config.DefaultPath())
		} else {
			cfg, err = config.Load(cfgFile)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		return nil
	},
	RunE: runMonitor,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		code, w := exitStatus(err, os.Stdout, os.Stderr)
		fmt.Fprintln(w, err)
		os.Exit(code)
	}
}

// exitStatus picks the exit code and the stream the error is reported on.
// A missing device is an expected answer for status bar scripts, so it goes
// to stdout.
func exitStatus(err error, stdout, stderr io.Writer) (int, io.Writer) {
	if errors.IsCode(err, errors.ErrEmpty) {
		return 1, stdout
	}
	return 1, stderr
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/wpstatus.yaml)")
	rootCmd.PersistentFlags().IntVarP(&verboseLevel, "verbose", "v", 0, "verbose level: 0=info, 1=debug, 2=debug with PipeWire tracing")

	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(devicesCmd)
	for _, command := range controlCommands() {
		rootCmd.AddCommand(command)
	}
}

// setupLogging configures slog based on the verbose level
func setupLogging(level int) {
	slogLevel := slog.LevelInfo
	if level >= 1 {
		slogLevel = slog.LevelDebug
	}

	// Stdout carries the status line, so logs always go to stderr
	opts := &slog.HandlerOptions{
		Level: slogLevel,
	}
	handler := slog.NewTextHandler(os.Stderr, opts)
	slog.SetDefault(slog.New(handler))

	// pw-mon and wpctl inherit this and log to stderr
	if level >= 2 {
		os.Setenv("PIPEWIRE_DEBUG", "3")
	}
}
