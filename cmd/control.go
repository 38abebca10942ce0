package cmd

import (
	"github.com/audiolibrelab/wpstatus/internal/control"
	"github.com/audiolibrelab/wpstatus/internal/render"
	"github.com/audiolibrelab/wpstatus/internal/wpctl"

	"github.com/spf13/cobra"
)

// controlCommands builds one subcommand per control action
func controlCommands() []*cobra.Command {
	var commands []*cobra.Command
	for _, command := range control.Commands() {
		commands = append(commands, newControlCmd(command))
	}
	return commands
}

func newControlCmd(command control.Command) *cobra.Command {
	return &cobra.Command{
		Use:     command.String(),
		Short:   command.Description(),
		Args:    cobra.NoArgs,
		GroupID: controlGroup.ID,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := wpctl.NewClient(nil, cfg.ClientOptions())
			renderer := render.New(cfg.RenderOptions())
			ctrl := control.New(client, renderer, cfg.Control.VolumeStep, cmd.OutOrStdout())
			return ctrl.Execute(cmd.Context(), command)
		},
	}
}

var controlGroup = &cobra.Group{ID: "control", Title: "Control Commands:"}

func init() {
	rootCmd.AddGroup(controlGroup)
}
