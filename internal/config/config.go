package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

const (
	DefaultDevice   = "/dev/ttyUSB0"
	DefaultProtocol = ProtocolV1
	DefaultTimeout  = time.Second
	DefaultFormat   = FormatText
	DefaultLogLevel = "warn"

	ProtocolV1 = "v1"
	ProtocolV2 = "v2"

	FormatText = "text"
	FormatYAML = "yaml"
	FormatJSON = "json"

	// StdoutOutput selects standard output as the export destination.
	StdoutOutput = "-"
)

// EnvPrefix is the prefix of environment variables overriding flags,
// e.g. GAMMASCOUT_DEVICE.
const EnvPrefix = "GAMMASCOUT"

// Config is the immutable configuration of a single invocation.
type Config struct {
	Device   string        `mapstructure:"device"`
	Protocol string        `mapstructure:"protocol"`
	Command  string        `mapstructure:"command"`
	Args     []string      `mapstructure:"args"`
	Timeout  string        `mapstructure:"timeout"` // parsed as duration
	Output   string        `mapstructure:"output"`
	Format   string        `mapstructure:"format"`
	Logging  LoggingConfig `mapstructure:"logging"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
	Debug bool   `mapstructure:"debug"`
}

// Load decodes v into a Config and validates it.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unable to decode configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that flag parsing cannot.
func (c Config) Validate() error {
	switch c.GetProtocol() {
	case ProtocolV1, ProtocolV2:
	default:
		return fmt.Errorf("unsupported protocol %q (expected %s or %s)", c.Protocol, ProtocolV1, ProtocolV2)
	}

	switch c.GetFormat() {
	case FormatText, FormatYAML, FormatJSON:
	default:
		return fmt.Errorf("unsupported output format %q", c.Format)
	}

	if strings.TrimSpace(c.Timeout) != "" {
		d, err := time.ParseDuration(c.Timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout %q: %w", c.Timeout, err)
		}
		if d <= 0 {
			return fmt.Errorf("timeout must be positive, got %s", d)
		}
	}

	if _, err := c.Logging.GetLevel(); err != nil {
		return err
	}
	return nil
}

func (c Config) GetDevice() string {
	if strings.TrimSpace(c.Device) == "" {
		return DefaultDevice
	}
	return c.Device
}

func (c Config) GetProtocol() string {
	if c.Protocol == "" {
		return DefaultProtocol
	}
	return strings.ToLower(c.Protocol)
}

func (c Config) GetFormat() string {
	if c.Format == "" {
		return DefaultFormat
	}
	return strings.ToLower(c.Format)
}

func (c Config) GetOutput() string {
	if c.Output == "" {
		return StdoutOutput
	}
	return c.Output
}

// GetTimeout returns the time to wait for a single datagram.
func (c Config) GetTimeout() time.Duration {
	return parseDurationWithDefault(c.Timeout, DefaultTimeout)
}

// GetLevel returns the configured log level. Debug mode always wins.
func (l LoggingConfig) GetLevel() (zerolog.Level, error) {
	if l.Debug {
		return zerolog.DebugLevel, nil
	}
	level := strings.TrimSpace(l.Level)
	if level == "" {
		level = DefaultLogLevel
	}
	parsed, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q", l.Level)
	}
	return parsed, nil
}

func parseDurationWithDefault(value string, defaultDuration time.Duration) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return defaultDuration
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return defaultDuration
	}
	return d
}
