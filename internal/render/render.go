// Package render formats a device as the one-line text a status bar shows.
package render

import (
	"fmt"
	"math"
	"strings"

	"github.com/audiolibrelab/wpstatus/internal/wpctl"
)

// NoSinks is printed in place of a device line when wpctl reports no sinks
const NoSinks = "No sinks"

// Font Awesome glyphs, as shipped in Nerd Fonts
const (
	GlyphVolumeOff    = ""
	GlyphVolumeLow    = ""
	GlyphVolumeMedium = ""
	GlyphVolumeHigh   = ""
	GlyphVolumeMuted  = ""
	GlyphHeadphones   = ""
	GlyphMicrophone   = ""
)

// IconRule maps a substring of the device name to an icon
type IconRule struct {
	Match string `mapstructure:"match" yaml:"match"`
	Icon  string `mapstructure:"icon" yaml:"icon"`
}

// Options selects which parts are rendered and with which glyphs
type Options struct {
	Symbol      bool
	Percentage  bool
	Icon        bool
	Symbols     []string
	MutedSymbol string
	DefaultIcon string
	Icons       []IconRule
}

// DefaultSymbols is the volume glyph table, quietest first
func DefaultSymbols() []string {
	return []string{GlyphVolumeOff, GlyphVolumeLow, GlyphVolumeMedium, GlyphVolumeHigh}
}

// DefaultIcons is the built-in device icon table
func DefaultIcons() []IconRule {
	return []IconRule{{Match: "FIFINE", Icon: GlyphMicrophone}}
}

// DefaultOptions enables every part with the built-in glyphs
func DefaultOptions() Options {
	return Options{
		Symbol:      true,
		Percentage:  true,
		Icon:        true,
		Symbols:     DefaultSymbols(),
		MutedSymbol: GlyphVolumeMuted,
		DefaultIcon: GlyphHeadphones,
		Icons:       DefaultIcons(),
	}
}

// Renderer formats entries according to its options
type Renderer struct {
	opts Options
}

// New creates a renderer
func New(opts Options) *Renderer {
	return &Renderer{opts: opts}
}

// Render joins the enabled parts with single spaces
func (r *Renderer) Render(entry wpctl.Entry) string {
	var parts []string
	if r.opts.Symbol {
		if symbol := r.VolumeSymbol(entry); symbol != "" {
			parts = append(parts, symbol)
		}
	}
	if r.opts.Percentage {
		parts = append(parts, fmt.Sprintf("%.1f%%", 100*entry.Volume))
	}
	if r.opts.Icon {
		parts = append(parts, r.DeviceIcon(entry.Name))
	}
	return strings.Join(parts, " ")
}

// RenderStatus renders the default sink, or NoSinks when there is none
func (r *Renderer) RenderStatus(status wpctl.Status) string {
	sink, err := status.DefaultSink()
	if err != nil {
		return NoSinks
	}
	return r.Render(sink)
}

// VolumeSymbol picks symbols[ceil(volume*(n-1))], or the muted glyph.
// Volumes outside [0, 1] (wpctl allows boosting past 100%) are clamped
// to the ends of the table.
func (r *Renderer) VolumeSymbol(entry wpctl.Entry) string {
	if entry.IsMuted {
		return r.opts.MutedSymbol
	}
	n := len(r.opts.Symbols)
	if n == 0 {
		return ""
	}
	index := int(math.Ceil(entry.Volume * float64(n-1)))
	index = max(min(index, n-1), 0)
	return r.opts.Symbols[index]
}

// DeviceIcon returns the icon of the first rule matching name
func (r *Renderer) DeviceIcon(name string) string {
	for _, rule := range r.opts.Icons {
		if rule.Match != "" && strings.Contains(name, rule.Match) {
			return rule.Icon
		}
	}
	return r.opts.DefaultIcon
}
