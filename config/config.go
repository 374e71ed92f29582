// Package config loads rely's on-disk configuration and exposes a
// functional-options layer for overriding it at construction time. File
// loading is grounded on the feeder project's config.Load (TOML via
// go-toml/v2, read-whole-file-then-unmarshal); the Option type is grounded
// on the framer package's Options/Option pattern, adapted from byte-order
// and protocol knobs to window size, timeout, and endpoint settings.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// File is the on-disk shape of a rely config file.
type File struct {
	Window       int           `toml:"window"`
	Timeout      Duration      `toml:"timeout"`
	TickInterval Duration      `toml:"tick_interval"`
	Listen       string        `toml:"listen"`
	// SingleConnection is a server hint: terminate the process after the
	// first admitted session tears down, instead of continuing to serve
	// later peers.
	SingleConnection bool          `toml:"single_connection"`
	Metrics          MetricsConfig `toml:"metrics"`
	Log              LogConfig     `toml:"log"`
}

// MetricsConfig configures the Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Listen  string `toml:"listen"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level string `toml:"level"`
	JSON  bool   `toml:"json"`
}

// Duration wraps time.Duration so it can be expressed as a TOML string
// ("500ms", "2s") rather than a raw nanosecond integer.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler, which go-toml/v2 uses
// for scalar string values.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

// Default returns the built-in configuration used when no file is
// supplied, matching the reference implementation's compiled-in defaults
// (window 1 MiB worth of 500-byte packets capped down to a conservative
// default, 5 second retransmission timeout).
func Default() File {
	return File{
		Window:       16,
		Timeout:      Duration(5 * time.Second),
		TickInterval: Duration(100 * time.Millisecond),
		Listen:       ":7944",
		Log:          LogConfig{Level: "info"},
	}
}

// Load reads and parses a TOML config file at path, starting from
// Default() so a partial file only overrides the fields it sets.
func Load(path string) (File, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return File{}, err
	}
	if err := toml.Unmarshal(b, &cfg); err != nil {
		return File{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}

// Option customizes a File after it has been loaded (or defaulted),
// typically from command-line flags that should take precedence over the
// config file.
type Option func(*File)

// WithWindow overrides the flow-control window size.
func WithWindow(n int) Option {
	return func(f *File) { f.Window = n }
}

// WithTimeout overrides the retransmission timeout.
func WithTimeout(d time.Duration) Option {
	return func(f *File) { f.Timeout = Duration(d) }
}

// WithListen overrides the UDP listen address.
func WithListen(addr string) Option {
	return func(f *File) { f.Listen = addr }
}

// WithSingleConnection overrides the single-connection server hint.
func WithSingleConnection(single bool) Option {
	return func(f *File) { f.SingleConnection = single }
}

// WithMetrics enables (or disables) the Prometheus endpoint and sets its
// listen address.
func WithMetrics(enabled bool, listen string) Option {
	return func(f *File) {
		f.Metrics.Enabled = enabled
		f.Metrics.Listen = listen
	}
}

// Apply runs every opt against cfg in order and returns the result.
func Apply(cfg File, opts ...Option) File {
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
