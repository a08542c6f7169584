// Package config defines process configuration and loading hooks.
//
// Conventions:
// - New() builds a Config with defaults.
// - Load(ctx) layers defaults, an optional YAML file and environment variables.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"time"
)

// Input formats understood by the source layer.
const (
	FormatCBOR = "cbor"
	FormatText = "text"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address; empty disables the server.
	Addr string `koanf:"addr"`

	// SensorWidth and SensorHeight give the sensor resolution in pixels.
	SensorWidth  int `koanf:"sensor_width"`
	SensorHeight int `koanf:"sensor_height"`

	// MaxScale scales the border margin (margin = MaxScale * 4).
	MaxScale int `koanf:"max_scale"`

	// Input is the path of the event stream to replay.
	Input string `koanf:"input"`

	// InputFormat selects the decoder: cbor or text.
	InputFormat string `koanf:"input_format"`

	// TextPacketSize groups text-format events into packets of this many events.
	TextPacketSize int `koanf:"text_packet_size"`

	// QueueSize bounds the in-memory packet queue.
	QueueSize int `koanf:"queue_size"`

	// FeatureSetSize bounds the active feature set; <= 0 is unbounded.
	FeatureSetSize int `koanf:"feature_set_size"`

	// FeatureLog is a SQLite path for the feature log; empty disables it.
	FeatureLog string `koanf:"feature_log"`

	// TextLog is a plain-text feature log path; empty disables it.
	TextLog string `koanf:"text_log"`

	// FrameIntervalUS is the event-time span of one rendered frame in microseconds.
	FrameIntervalUS int64 `koanf:"frame_interval_us"`

	// FrameDir receives PNG frames; empty disables frame dumps.
	FrameDir string `koanf:"frame_dir"`

	// MarkRadius is the arm length of the cross drawn on each feature.
	MarkRadius int `koanf:"mark_radius"`

	// Live enables the websocket live view on Addr.
	Live bool `koanf:"live"`

	// MetricsInterval is how often system metrics are refreshed.
	MetricsInterval time.Duration `koanf:"metrics_interval"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:        "info",
		LogFormat:       "text",
		Addr:            ":9080",
		SensorWidth:     346,
		SensorHeight:    260,
		MaxScale:        1,
		InputFormat:     FormatCBOR,
		TextPacketSize:  1024,
		QueueSize:       1024,
		FeatureSetSize:  0,
		FrameIntervalUS: 1_000_000 / 60,
		MarkRadius:      2,
		Live:            false,
		MetricsInterval: 10 * time.Second,
	}
}

// Validate checks the invariants the pipeline relies on.
func (c *Config) Validate() error {
	switch {
	case c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("%w: unknown log_format %q", ErrInvalidConfig, c.LogFormat)
	case c.SensorWidth <= 0 || c.SensorHeight <= 0:
		return fmt.Errorf("%w: sensor dimensions must be positive, got %dx%d", ErrInvalidConfig, c.SensorWidth, c.SensorHeight)
	case c.SensorWidth > 1<<16 || c.SensorHeight > 1<<16:
		return fmt.Errorf("%w: sensor dimensions exceed 16-bit coordinates", ErrInvalidConfig)
	case c.MaxScale < 1:
		return fmt.Errorf("%w: max_scale must be >= 1, got %d", ErrInvalidConfig, c.MaxScale)
	case c.InputFormat != FormatCBOR && c.InputFormat != FormatText:
		return fmt.Errorf("%w: unknown input_format %q", ErrInvalidConfig, c.InputFormat)
	case c.QueueSize < 1:
		return fmt.Errorf("%w: queue_size must be >= 1, got %d", ErrInvalidConfig, c.QueueSize)
	case c.TextPacketSize < 1:
		return fmt.Errorf("%w: text_packet_size must be >= 1, got %d", ErrInvalidConfig, c.TextPacketSize)
	case c.FrameIntervalUS <= 0:
		return fmt.Errorf("%w: frame_interval_us must be positive, got %d", ErrInvalidConfig, c.FrameIntervalUS)
	case c.MarkRadius < 0:
		return fmt.Errorf("%w: mark_radius must not be negative", ErrInvalidConfig)
	case c.Live && c.Addr == "":
		return fmt.Errorf("%w: live view requires addr", ErrInvalidConfig)
	}
	return nil
}
