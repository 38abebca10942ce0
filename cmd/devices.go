package cmd

import (
	"fmt"
	"io"

	"github.com/audiolibrelab/wpstatus/internal/wpctl"

	"github.com/spf13/cobra"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List audio sinks and sources",
	Long:  `List the audio sinks and sources wpctl reports, marking the defaults and muted devices.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := wpctl.NewClient(nil, cfg.ClientOptions())
		status, err := client.Query(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to query devices: %w", err)
		}

		printDevices(cmd.OutOrStdout(), status)
		return nil
	},
}

func printDevices(w io.Writer, status wpctl.Status) {
	printEntries(w, "SINKS", status.AudioSinks)
	fmt.Fprintln(w)
	printEntries(w, "SOURCES", status.AudioSources)
}

func printEntries(w io.Writer, title string, entries []wpctl.Entry) {
	fmt.Fprintf(w, "%s (%d found):\n", title, len(entries))
	for _, entry := range entries {
		marker := " "
		if entry.IsDefault {
			marker = "*"
		}
		muted := ""
		if entry.IsMuted {
			muted = " [muted]"
		}
		fmt.Fprintf(w, "  %s %3d. %s  %.0f%%%s\n", marker, entry.ID, entry.Name, 100*entry.Volume, muted)
	}
}
