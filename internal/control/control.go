// Package control implements the one-shot commands a status bar binds to
// clicks and scrolls: volume steps, mute toggles and default device switches.
package control

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/audiolibrelab/wpstatus/internal/wpctl"
)

// Command is one control action
type Command int

const (
	CommandUp Command = iota
	CommandDown
	CommandMuteSink
	CommandIsSinkMute
	CommandNextSink
	CommandMuteSource
	CommandIsSourceMute
	CommandNextSource
	CommandStatus

	commandCount
)

// Client is the subset of wpctl.Client the commands use
type Client interface {
	Query(ctx context.Context) (wpctl.Status, error)
	SetVolume(ctx context.Context, id int, volume float64) error
	ToggleMute(ctx context.Context, id int) error
	SetDefault(ctx context.Context, id int) error
}

// StatusRenderer formats the status line printed by the status command
type StatusRenderer interface {
	RenderStatus(status wpctl.Status) string
}

type handler func(c *Controller, ctx context.Context, status wpctl.Status) error

type commandSpec struct {
	name        string
	description string
	run         handler
}

var commands = map[Command]commandSpec{
	CommandUp:           {"up", "Raise the default sink volume by one step", (*Controller).up},
	CommandDown:         {"down", "Lower the default sink volume by one step", (*Controller).down},
	CommandMuteSink:     {"mute-sink", "Toggle mute on the default sink", (*Controller).muteSink},
	CommandIsSinkMute:   {"is-sink-mute", "Print 1 if the default sink is muted, 0 otherwise", (*Controller).isSinkMute},
	CommandNextSink:     {"next-sink", "Make the next sink the default", (*Controller).nextSink},
	CommandMuteSource:   {"mute-source", "Toggle mute on the default source", (*Controller).muteSource},
	CommandIsSourceMute: {"is-source-mute", "Print 1 if the default source is muted, 0 otherwise", (*Controller).isSourceMute},
	CommandNextSource:   {"next-source", "Make the next source the default", (*Controller).nextSource},
	CommandStatus:       {"status", "Print the status line for the default sink once", (*Controller).status},
}

// Commands lists every command in declaration order
func Commands() []Command {
	list := make([]Command, 0, commandCount)
	for c := Command(0); c < commandCount; c++ {
		list = append(list, c)
	}
	return list
}

// String returns the CLI name of the command
func (c Command) String() string {
	if spec, ok := commands[c]; ok {
		return spec.name
	}
	return fmt.Sprintf("Command(%d)", int(c))
}

// Description returns the one-line help text of the command
func (c Command) Description() string {
	return commands[c].description
}

// Controller runs commands against wpctl
type Controller struct {
	client   Client
	renderer StatusRenderer
	step     float64
	out      io.Writer
}

// New creates a controller. step is the volume change for up and down.
func New(client Client, renderer StatusRenderer, step float64, out io.Writer) *Controller {
	return &Controller{
		client:   client,
		renderer: renderer,
		step:     step,
		out:      out,
	}
}

// Execute queries a fresh status and runs the command against it
func (c *Controller) Execute(ctx context.Context, command Command) error {
	spec, ok := commands[command]
	if !ok {
		return fmt.Errorf("unknown command: %s", command)
	}

	status, err := c.client.Query(ctx)
	if err != nil {
		return err
	}

	slog.Debug("Running control command", "command", spec.name)
	return spec.run(c, ctx, status)
}

func (c *Controller) up(ctx context.Context, status wpctl.Status) error {
	return c.stepVolume(ctx, status, c.step)
}

func (c *Controller) down(ctx context.Context, status wpctl.Status) error {
	return c.stepVolume(ctx, status, -c.step)
}

func (c *Controller) stepVolume(ctx context.Context, status wpctl.Status, delta float64) error {
	sink, err := status.DefaultSink()
	if err != nil {
		return err
	}
	return c.client.SetVolume(ctx, sink.ID, sink.Volume+delta)
}

func (c *Controller) muteSink(ctx context.Context, status wpctl.Status) error {
	sink, err := status.DefaultSink()
	if err != nil {
		return err
	}
	return c.client.ToggleMute(ctx, sink.ID)
}

func (c *Controller) isSinkMute(ctx context.Context, status wpctl.Status) error {
	sink, err := status.DefaultSink()
	if err != nil {
		return err
	}
	return c.printMuted(sink)
}

func (c *Controller) nextSink(ctx context.Context, status wpctl.Status) error {
	if _, err := status.DefaultSink(); err != nil {
		return err
	}
	return c.switchDefault(ctx, status.AudioSinks)
}

func (c *Controller) muteSource(ctx context.Context, status wpctl.Status) error {
	source, err := status.DefaultSource()
	if err != nil {
		return err
	}
	return c.client.ToggleMute(ctx, source.ID)
}

func (c *Controller) isSourceMute(ctx context.Context, status wpctl.Status) error {
	source, err := status.DefaultSource()
	if err != nil {
		return err
	}
	return c.printMuted(source)
}

func (c *Controller) nextSource(ctx context.Context, status wpctl.Status) error {
	if _, err := status.DefaultSource(); err != nil {
		return err
	}
	return c.switchDefault(ctx, status.AudioSources)
}

func (c *Controller) status(ctx context.Context, status wpctl.Status) error {
	_, err := fmt.Fprintln(c.out, c.renderer.RenderStatus(status))
	return err
}

func (c *Controller) switchDefault(ctx context.Context, entries []wpctl.Entry) error {
	next, err := wpctl.NextEntry(entries)
	if err != nil {
		return err
	}
	slog.Debug("Switching default device", "id", next.ID, "name", next.Name)
	return c.client.SetDefault(ctx, next.ID)
}

func (c *Controller) printMuted(entry wpctl.Entry) error {
	value := 0
	if entry.IsMuted {
		value = 1
	}
	_, err := fmt.Fprintln(c.out, value)
	return err
}
