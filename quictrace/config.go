package quictrace

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ghodss/yaml"
)

// Environment variables read by LoadConfig. They override the file.
const (
	EnvParseMode       = "QUICTRACE_PARSE_MODE"
	EnvLogLevel        = "QUICTRACE_LOG_LEVEL"
	EnvLogSampleBurst  = "QUICTRACE_LOG_SAMPLE_BURST"
	EnvLogSampleWindow = "QUICTRACE_LOG_SAMPLE_WINDOW"
)

// Duration is a time.Duration written as "10s" in config files.
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

type LogConfig struct {
	Level string `json:"level"`
	// SampleBurst lets every n-th repeated message through inside a window,
	// 1 logs each key once per window.
	SampleBurst  int      `json:"sample_burst"`
	SampleWindow Duration `json:"sample_window"`
}

// Config is fixed for the whole run.
type Config struct {
	ParseMode ParseMode `json:"parse_mode"`
	// FullOnlyEvents replaces FullOnlyEventsV1 when set.
	FullOnlyEvents []EventID `json:"full_only_events,omitempty"`
	Log            LogConfig `json:"log"`
}

func DefaultConfig() Config {
	return Config{
		ParseMode: ParseModeFast,
		Log: LogConfig{
			Level:        "info",
			SampleBurst:  1,
			SampleWindow: Duration(10 * time.Second),
		},
	}
}

// LoadConfig reads the YAML file at path over the defaults, then applies the
// environment. An empty path only applies the environment.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// ApplyEnv overrides fields from the Env* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvParseMode); ok {
		if err := c.ParseMode.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("%s: %w", EnvParseMode, err)
		}
	}
	if v, ok := lookup(EnvLogLevel); ok {
		c.Log.Level = v
	}
	if v, ok := lookup(EnvLogSampleBurst); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvLogSampleBurst, err)
		}
		c.Log.SampleBurst = n
	}
	if v, ok := lookup(EnvLogSampleWindow); ok {
		if err := c.Log.SampleWindow.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("%s: %w", EnvLogSampleWindow, err)
		}
	}
	return nil
}

func (c *Config) Validate() error {
	if c.ParseMode != ParseModeFast && c.ParseMode != ParseModeFull {
		return fmt.Errorf("%w: %d", ErrInvalidParseMode, c.ParseMode)
	}
	if c.Log.SampleBurst < 1 {
		return fmt.Errorf("log sample burst must be at least 1, got %d", c.Log.SampleBurst)
	}
	if c.Log.SampleWindow < 0 {
		return fmt.Errorf("log sample window must not be negative, got %s", time.Duration(c.Log.SampleWindow))
	}
	return nil
}

func (c *Config) decoderOptions() []DecoderOption {
	opts := []DecoderOption{WithParseMode(c.ParseMode)}
	if len(c.FullOnlyEvents) > 0 {
		opts = append(opts, WithFullOnlyEvents(c.FullOnlyEvents...))
	}
	return opts
}
