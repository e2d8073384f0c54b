package config

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vango-dev/rxbind/internal/errors"
	"github.com/vango-dev/rxbind/pkg/datasource"
)

// ConfigFileNames are the files Load looks for, in order.
var ConfigFileNames = []string{"rxbind.json", "rxbind.yaml", "rxbind.yml"}

const (
	// DefaultThrottleMS is the default render throttle window.
	DefaultThrottleMS = 50

	// DefaultMaxWaitMS is the default bound on how long a continuous burst
	// may postpone a render.
	DefaultMaxWaitMS = 250

	// DefaultAddress is the default listen address of the live server.
	DefaultAddress = ":8080"

	// DefaultReadBuffer is the default websocket read buffer size.
	DefaultReadBuffer = 1024

	// DefaultWriteBuffer is the default websocket write buffer size.
	DefaultWriteBuffer = 4096

	// DefaultWriteTimeoutMS is the default websocket write deadline.
	DefaultWriteTimeoutMS = 5000

	// DefaultDispatchQueue is the default per-session dispatch queue size.
	DefaultDispatchQueue = 256

	// DefaultNamespace is the default metrics namespace.
	DefaultNamespace = "rxbind"
)

// Config is the complete configuration.
type Config struct {
	// ThrottleMS is the render throttle window in milliseconds.
	ThrottleMS int `json:"throttle_ms,omitempty" yaml:"throttle_ms,omitempty"`

	// MaxWaitMS bounds how long a continuous burst may postpone a render.
	// Unset means DefaultMaxWaitMS; an explicit zero disables the bound.
	MaxWaitMS *int `json:"max_wait_ms,omitempty" yaml:"max_wait_ms,omitempty"`

	// Source configures the random data source.
	Source SourceConfig `json:"source,omitempty" yaml:"source,omitempty"`

	// Server configures the live websocket server.
	Server ServerConfig `json:"server,omitempty" yaml:"server,omitempty"`

	// Log configures structured logging.
	Log LogConfig `json:"log,omitempty" yaml:"log,omitempty"`

	// Metrics configures Prometheus collectors.
	Metrics MetricsConfig `json:"metrics,omitempty" yaml:"metrics,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// SourceConfig configures generated data.
type SourceConfig struct {
	// BatchSize is the number of values per refill.
	BatchSize int `json:"batch_size,omitempty" yaml:"batch_size,omitempty"`

	// Min is the inclusive lower bound of generated values.
	Min *int `json:"min,omitempty" yaml:"min,omitempty"`

	// Max is the exclusive upper bound of generated values.
	Max *int `json:"max,omitempty" yaml:"max,omitempty"`

	// IntervalMS is the interval-mode period in milliseconds.
	IntervalMS int `json:"interval_ms,omitempty" yaml:"interval_ms,omitempty"`
}

// ServerConfig configures the live server.
type ServerConfig struct {
	// Address is the listen address.
	Address string `json:"address,omitempty" yaml:"address,omitempty"`

	// ReadBuffer is the websocket read buffer size in bytes.
	ReadBuffer int `json:"read_buffer,omitempty" yaml:"read_buffer,omitempty"`

	// WriteBuffer is the websocket write buffer size in bytes.
	WriteBuffer int `json:"write_buffer,omitempty" yaml:"write_buffer,omitempty"`

	// WriteTimeoutMS is the deadline for one websocket write.
	WriteTimeoutMS int `json:"write_timeout_ms,omitempty" yaml:"write_timeout_ms,omitempty"`

	// DispatchQueue is the per-session dispatch queue size.
	DispatchQueue int `json:"dispatch_queue,omitempty" yaml:"dispatch_queue,omitempty"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level,omitempty" yaml:"level,omitempty"`

	// Format is text or json.
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

// MetricsConfig configures metrics.
type MetricsConfig struct {
	// Namespace prefixes every metric name.
	Namespace string `json:"namespace,omitempty" yaml:"namespace,omitempty"`
}

// New creates a Config with default values.
func New() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func intPtr(n int) *int { return &n }

func (c *Config) applyDefaults() {
	defaults := datasource.DefaultConfig()

	if c.ThrottleMS == 0 {
		c.ThrottleMS = DefaultThrottleMS
	}
	if c.MaxWaitMS == nil {
		c.MaxWaitMS = intPtr(DefaultMaxWaitMS)
	}
	if c.Source.BatchSize == 0 {
		c.Source.BatchSize = defaults.BatchSize
	}
	if c.Source.Min == nil {
		c.Source.Min = intPtr(defaults.Min)
	}
	if c.Source.Max == nil {
		c.Source.Max = intPtr(defaults.Max)
	}
	if c.Source.IntervalMS == 0 {
		c.Source.IntervalMS = int(defaults.Period / time.Millisecond)
	}
	if c.Server.Address == "" {
		c.Server.Address = DefaultAddress
	}
	if c.Server.ReadBuffer == 0 {
		c.Server.ReadBuffer = DefaultReadBuffer
	}
	if c.Server.WriteBuffer == 0 {
		c.Server.WriteBuffer = DefaultWriteBuffer
	}
	if c.Server.WriteTimeoutMS == 0 {
		c.Server.WriteTimeoutMS = DefaultWriteTimeoutMS
	}
	if c.Server.DispatchQueue == 0 {
		c.Server.DispatchQueue = DefaultDispatchQueue
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultNamespace
	}
}

// Load reads the first configuration file found in dir. A directory with
// no configuration file yields the defaults.
func Load(dir string) (*Config, error) {
	for _, name := range ConfigFileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}
	return New(), nil
}

// LoadFile reads configuration from the specified file path. The format is
// chosen by extension: .yaml and .yml are YAML, anything else JSON.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("R031").
				WithDetail("No configuration file at " + path)
		}
		return nil, errors.New("R031").Wrap(err)
	}

	cfg := &Config{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, errors.New("R032").
			WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error())
	}

	cfg.configPath = path
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	invalid := func(detail, hint string) error {
		return errors.New("R030").WithDetail(detail).WithSuggestion(hint)
	}

	if c.ThrottleMS < 0 {
		return invalid("throttle_ms must not be negative", "Remove throttle_ms to use the default of 50")
	}
	if c.MaxWaitMS != nil && *c.MaxWaitMS < 0 {
		return invalid("max_wait_ms must not be negative", "Use 0 to disable the bound")
	}
	if err := c.SourceConfig().Validate(); err != nil {
		return errors.New("R030").WithDetail(err.Error())
	}
	if c.Server.ReadBuffer < 0 || c.Server.WriteBuffer < 0 {
		return invalid("server buffers must not be negative", "Remove them to use the defaults")
	}
	if c.Server.DispatchQueue < 0 {
		return invalid("server.dispatch_queue must not be negative", "Remove it to use the default of 256")
	}
	if _, ok := levels[strings.ToLower(c.Log.Level)]; !ok {
		return invalid("unknown log level "+c.Log.Level, "Use one of debug, info, warn, error")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return invalid("unknown log format "+c.Log.Format, "Use text or json")
	}
	return nil
}

// Throttle returns the render throttle window.
func (c *Config) Throttle() time.Duration {
	return time.Duration(c.ThrottleMS) * time.Millisecond
}

// MaxWait returns the burst bound, zero when disabled.
func (c *Config) MaxWait() time.Duration {
	if c.MaxWaitMS == nil {
		return DefaultMaxWaitMS * time.Millisecond
	}
	return time.Duration(*c.MaxWaitMS) * time.Millisecond
}

// WriteTimeout returns the websocket write deadline.
func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.Server.WriteTimeoutMS) * time.Millisecond
}

// SourceConfig converts the source section to generator settings.
func (c *Config) SourceConfig() datasource.Config {
	out := datasource.DefaultConfig()
	out.BatchSize = c.Source.BatchSize
	if c.Source.Min != nil {
		out.Min = *c.Source.Min
	}
	if c.Source.Max != nil {
		out.Max = *c.Source.Max
	}
	out.Period = time.Duration(c.Source.IntervalMS) * time.Millisecond
	return out
}

var levels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// LogLevel returns the configured slog level.
func (c *Config) LogLevel() slog.Level {
	if l, ok := levels[strings.ToLower(c.Log.Level)]; ok {
		return l
	}
	return slog.LevelInfo
}
