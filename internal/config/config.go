package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/audiolibrelab/wpstatus/internal/debounce"
	"github.com/audiolibrelab/wpstatus/internal/errors"
	"github.com/audiolibrelab/wpstatus/internal/monitor"
	"github.com/audiolibrelab/wpstatus/internal/render"
	"github.com/audiolibrelab/wpstatus/internal/wpctl"
)

// EnvPrefix is prepended to every environment override, e.g. WPSTATUS_QUERY_TIMEOUT
const EnvPrefix = "WPSTATUS"

type Config struct {
	Commands CommandsConfig `mapstructure:"commands" yaml:"commands"`
	Render   RenderConfig   `mapstructure:"render" yaml:"render"`
	Control  ControlConfig  `mapstructure:"control" yaml:"control"`
	Monitor  MonitorConfig  `mapstructure:"monitor" yaml:"monitor"`
	Query    QueryConfig    `mapstructure:"query" yaml:"query"`
	Parser   ParserConfig   `mapstructure:"parser" yaml:"parser"`
}

type CommandsConfig struct {
	Wpctl        string   `mapstructure:"wpctl" yaml:"wpctl"`
	Monitor      string   `mapstructure:"monitor" yaml:"monitor"`
	MonitorArgs  []string `mapstructure:"monitor_args" yaml:"monitor_args"`
	LineBuffered bool     `mapstructure:"line_buffered" yaml:"line_buffered"` // wrap the monitor in stdbuf -oL
}

type RenderConfig struct {
	Symbol      bool              `mapstructure:"symbol" yaml:"symbol"`
	Percentage  bool              `mapstructure:"percentage" yaml:"percentage"`
	Icon        bool              `mapstructure:"icon" yaml:"icon"`
	Symbols     []string          `mapstructure:"symbols" yaml:"symbols"` // quietest first
	MutedSymbol string            `mapstructure:"muted_symbol" yaml:"muted_symbol"`
	DefaultIcon string            `mapstructure:"default_icon" yaml:"default_icon"`
	Icons       []render.IconRule `mapstructure:"icons" yaml:"icons"`
}

type ControlConfig struct {
	VolumeStep float64 `mapstructure:"volume_step" yaml:"volume_step"`
}

type MonitorConfig struct {
	DebounceWindow time.Duration `mapstructure:"debounce_window" yaml:"debounce_window"`
	SettleDelay    time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	RestartBudget  int           `mapstructure:"restart_budget" yaml:"restart_budget"`
}

type QueryConfig struct {
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"` // 0 disables the bound
}

type ParserConfig struct {
	Strict bool `mapstructure:"strict" yaml:"strict"`
}

// symbolCount is the size of the volume glyph table
const symbolCount = 4

// DefaultPath returns the config file used when --config is not given
func DefaultPath() string {
	return os.ExpandEnv("$HOME/.config/wpstatus.yaml")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("commands.wpctl", "wpctl")
	v.SetDefault("commands.monitor", "pw-mon")
	v.SetDefault("commands.monitor_args", []string{"--no-colors"})
	v.SetDefault("commands.line_buffered", true)

	v.SetDefault("render.symbol", true)
	v.SetDefault("render.percentage", true)
	v.SetDefault("render.icon", true)
	v.SetDefault("render.symbols", render.DefaultSymbols())
	v.SetDefault("render.muted_symbol", render.GlyphVolumeMuted)
	v.SetDefault("render.default_icon", render.GlyphHeadphones)
	icons := make([]map[string]any, 0)
	for _, rule := range render.DefaultIcons() {
		icons = append(icons, map[string]any{"match": rule.Match, "icon": rule.Icon})
	}
	v.SetDefault("render.icons", icons)

	v.SetDefault("control.volume_step", 0.05)

	v.SetDefault("monitor.debounce_window", debounce.DefaultWindow)
	v.SetDefault("monitor.settle_delay", monitor.DefaultSettleDelay)
	v.SetDefault("monitor.restart_budget", monitor.DefaultRestartBudget)

	v.SetDefault("query.timeout", 5*time.Second)

	v.SetDefault("parser.strict", false)
}

// Load reads configFile on top of the built-in defaults and WPSTATUS_*
// environment overrides. An empty path loads defaults and environment only.
func Load(configFile string) (*Config, error) {
	return load(configFile, false)
}

// LoadOptional is like Load but a missing file is not an error
func LoadOptional(configFile string) (*Config, error) {
	return load(configFile, true)
}

func load(configFile string, optional bool) (*Config, error) {
	// A private viper instance keeps tests and commands from sharing state
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		configFile = expandPath(configFile)
		_, statErr := os.Stat(configFile)
		switch {
		case statErr == nil:
			v.SetConfigFile(configFile)
			if err := v.ReadInConfig(); err != nil {
				return nil, errors.Wrap(err, errors.ErrConfig, fmt.Sprintf("error reading config file %s", configFile))
			}
		case optional && os.IsNotExist(statErr):
			// defaults and environment only
		default:
			return nil, errors.Wrap(statErr, errors.ErrConfig, fmt.Sprintf("error reading config file %s", configFile))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfig, "error unmarshaling config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks every value the rest of the program relies on
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Commands.Wpctl) == "" {
		return invalid("commands.wpctl must not be empty")
	}
	if strings.TrimSpace(c.Commands.Monitor) == "" {
		return invalid("commands.monitor must not be empty")
	}

	if len(c.Render.Symbols) != symbolCount {
		return invalid(fmt.Sprintf("render.symbols must list exactly %d glyphs, got %d", symbolCount, len(c.Render.Symbols)))
	}
	for i, rule := range c.Render.Icons {
		if rule.Match == "" {
			return invalid(fmt.Sprintf("render.icons[%d]: 'match' is required", i))
		}
	}

	if c.Control.VolumeStep <= 0 || c.Control.VolumeStep > 1 {
		return invalid(fmt.Sprintf("control.volume_step must be in (0, 1], got: %.3f", c.Control.VolumeStep))
	}

	if c.Monitor.DebounceWindow <= 0 {
		return invalid(fmt.Sprintf("monitor.debounce_window must be > 0, got: %s", c.Monitor.DebounceWindow))
	}
	if c.Monitor.SettleDelay < 0 {
		return invalid(fmt.Sprintf("monitor.settle_delay must be >= 0, got: %s", c.Monitor.SettleDelay))
	}
	if c.Monitor.RestartBudget < 1 {
		return invalid(fmt.Sprintf("monitor.restart_budget must be >= 1, got: %d", c.Monitor.RestartBudget))
	}

	if c.Query.Timeout < 0 {
		return invalid(fmt.Sprintf("query.timeout must be >= 0, got: %s", c.Query.Timeout))
	}

	return nil
}

func invalid(message string) error {
	return errors.New(errors.ErrConfig, message, "")
}

// RenderOptions converts the render section for the renderer
func (c *Config) RenderOptions() render.Options {
	return render.Options{
		Symbol:      c.Render.Symbol,
		Percentage:  c.Render.Percentage,
		Icon:        c.Render.Icon,
		Symbols:     c.Render.Symbols,
		MutedSymbol: c.Render.MutedSymbol,
		DefaultIcon: c.Render.DefaultIcon,
		Icons:       c.Render.Icons,
	}
}

// ClientOptions converts the command, query and parser sections for wpctl
func (c *Config) ClientOptions() wpctl.Options {
	return wpctl.Options{
		Binary:  c.Commands.Wpctl,
		Timeout: c.Query.Timeout,
		Strict:  c.Parser.Strict,
	}
}

// MonitorOptions converts the monitor section for the monitor loop
func (c *Config) MonitorOptions() monitor.Options {
	return monitor.Options{
		SettleDelay:   c.Monitor.SettleDelay,
		RestartBudget: c.Monitor.RestartBudget,
	}
}

// EventSource builds the pw-mon process source
func (c *Config) EventSource() *monitor.ProcessSource {
	return &monitor.ProcessSource{
		Command:      c.Commands.Monitor,
		Args:         c.Commands.MonitorArgs,
		LineBuffered: c.Commands.LineBuffered,
	}
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[2:])
	}
	return path
}
