// Package config loads and validates the application-level configuration:
// where sessions are stored, how the process logs, and whether tracing is
// enabled. Mission files are a separate layer, handled by the mission
// resolver; this package only configures the runtime around them.
package config

import "time"

// Config is the root configuration for the helmsman runtime.
type Config struct {
	Core    CoreConfig    `mapstructure:"core" yaml:"core" validate:"required"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Tracing TracingConfig `mapstructure:"tracing" yaml:"tracing"`
}

// CoreConfig contains core application settings.
type CoreConfig struct {
	// HomeDir is the helmsman home directory. Defaults to ~/.helmsman.
	HomeDir string `mapstructure:"home_dir" yaml:"home_dir"`

	// SessionsDir is the root under which recording sessions are created
	// when a mission does not name its own log folder.
	SessionsDir string `mapstructure:"sessions_dir" yaml:"sessions_dir"`

	// IOTimeout bounds blocking vehicle interface operations.
	IOTimeout time.Duration `mapstructure:"io_timeout" yaml:"io_timeout" validate:"min=1ms"`

	Debug bool `mapstructure:"debug" yaml:"debug"`
}

// LoggingConfig contains structured logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"omitempty,oneof=json text"`
}

// TracingConfig contains tracing configuration. The stdout exporter
// writes completed spans to stderr for offline inspection.
type TracingConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Exporter string `mapstructure:"exporter" yaml:"exporter" validate:"omitempty,oneof=stdout noop"`
}
