// Package config loads and saves midiplug settings.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/james-see/midiplug/pkg/event"
)

var ErrInvalid = errors.New("invalid config")

// InputConfig selects the input port and its decoding limits
type InputConfig struct {
	Port            string `yaml:"port,omitempty"`
	Channel         int    `yaml:"channel"`
	Kind            string `yaml:"kind"`
	MaxSysexSize    int    `yaml:"max_sysex_size"`
	SysexBufferSize uint32 `yaml:"sysex_buffer_size"`
}

// OutputConfig selects an output port for MIDI thru
type OutputConfig struct {
	ThruPort string `yaml:"thru_port,omitempty"`
}

// ServerConfig configures the REST API
type ServerConfig struct {
	Port      int `yaml:"port"`
	EventsLog int `yaml:"events_log"`
}

// LogConfig configures the logger
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// RecordConfig configures Standard MIDI File output
type RecordConfig struct {
	Resolution uint16  `yaml:"resolution"`
	Tempo      float64 `yaml:"tempo"`
}

// Config is the main configuration structure
type Config struct {
	Input  InputConfig  `yaml:"input"`
	Output OutputConfig `yaml:"output"`
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
	Record RecordConfig `yaml:"record"`
}

// Default returns a config with sensible defaults
func Default() *Config {
	return &Config{
		Input: InputConfig{
			Channel:         -1,
			Kind:            "any",
			MaxSysexSize:    64 * 1024,
			SysexBufferSize: 4096,
		},
		Server: ServerConfig{
			Port:      8080,
			EventsLog: 256,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Record: RecordConfig{
			Resolution: 480,
			Tempo:      120,
		},
	}
}

// Dir returns the config directory path
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "midiplug"), nil
}

// Path returns the full path to config.yaml
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads the config at path, or the default path when path is empty.
// A missing file yields the defaults. Fields absent from the file keep their defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := Path()
		if err != nil {
			return Default(), nil
		}
		path = p
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to path, or the default path when path is empty
func (c *Config) Save(path string) error {
	if path == "" {
		p, err := Path()
		if err != nil {
			return err
		}
		path = p
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks value ranges
func (c *Config) Validate() error {
	var errs []error
	if c.Input.Channel < -1 || c.Input.Channel > 15 {
		errs = append(errs, fmt.Errorf("input.channel %d out of range -1..15", c.Input.Channel))
	}
	if _, err := c.Input.KindFilter(); err != nil {
		errs = append(errs, err)
	}
	if c.Input.MaxSysexSize < 0 {
		errs = append(errs, errors.New("input.max_sysex_size must not be negative"))
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be text or json", c.Log.Format))
	}
	if c.Record.Tempo < 0 {
		errs = append(errs, errors.New("record.tempo must not be negative"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// KindFilter returns the event kind subscribers are registered for
func (c InputConfig) KindFilter() (event.Kind, error) {
	if c.Kind == "" {
		return event.KindAny, nil
	}
	kind, ok := event.ParseKind(c.Kind)
	if !ok {
		return 0, fmt.Errorf("input.kind %q is not one of any, note-on, note-off, controller, program-change, sysex", c.Kind)
	}
	return kind, nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("log.level %q: %w", s, err)
	}
	return level, nil
}

// NewLogger builds the logger described by the log section
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
