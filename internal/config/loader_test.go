package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoaderLoad(t *testing.T) {
	loader := NewLoader(NewValidator())

	t.Run("loads values from file", func(t *testing.T) {
		path := writeConfig(t, `
core:
  home_dir: /opt/helmsman
  sessions_dir: /opt/helmsman/runs
  io_timeout: 250ms
  debug: true
logging:
  level: debug
  format: json
tracing:
  enabled: true
  exporter: stdout
`)
		cfg, err := loader.Load(path)
		require.NoError(t, err)
		assert.Equal(t, "/opt/helmsman", cfg.Core.HomeDir)
		assert.Equal(t, "/opt/helmsman/runs", cfg.Core.SessionsDir)
		assert.Equal(t, 250*time.Millisecond, cfg.Core.IOTimeout)
		assert.True(t, cfg.Core.Debug)
		assert.Equal(t, "debug", cfg.Logging.Level)
		assert.Equal(t, "json", cfg.Logging.Format)
		assert.True(t, cfg.Tracing.Enabled)
		assert.Equal(t, "stdout", cfg.Tracing.Exporter)
	})

	t.Run("defaults fill omitted fields", func(t *testing.T) {
		path := writeConfig(t, `
logging:
  level: warn
`)
		cfg, err := loader.Load(path)
		require.NoError(t, err)
		assert.Equal(t, "warn", cfg.Logging.Level)
		assert.Equal(t, "text", cfg.Logging.Format)
		assert.Equal(t, 500*time.Millisecond, cfg.Core.IOTimeout)
		assert.Equal(t, "noop", cfg.Tracing.Exporter)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := loader.Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read config file")
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := writeConfig(t, "core: [unterminated")
		_, err := loader.Load(path)
		assert.Error(t, err)
	})

	t.Run("invalid logging level fails validation", func(t *testing.T) {
		path := writeConfig(t, `
logging:
  level: verbose
`)
		_, err := loader.Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "logging.level")
	})

	t.Run("invalid tracing exporter fails validation", func(t *testing.T) {
		path := writeConfig(t, `
tracing:
  exporter: jaeger
`)
		_, err := loader.Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "tracing.exporter")
	})
}

func TestLoaderEnvInterpolation(t *testing.T) {
	loader := NewLoader(NewValidator())

	t.Run("set variables are substituted", func(t *testing.T) {
		t.Setenv("HELMSMAN_TEST_ROOT", "/data/av")
		path := writeConfig(t, `
core:
  home_dir: ${HELMSMAN_TEST_ROOT}/home
  sessions_dir: ${HELMSMAN_TEST_ROOT}/sessions
`)
		cfg, err := loader.Load(path)
		require.NoError(t, err)
		assert.Equal(t, "/data/av/home", cfg.Core.HomeDir)
		assert.Equal(t, "/data/av/sessions", cfg.Core.SessionsDir)
	})

	t.Run("unset variables leave the placeholder", func(t *testing.T) {
		path := writeConfig(t, `
core:
  home_dir: ${HELMSMAN_TEST_UNSET_VAR}/home
`)
		cfg, err := loader.Load(path)
		require.NoError(t, err)
		assert.Equal(t, "${HELMSMAN_TEST_UNSET_VAR}/home", cfg.Core.HomeDir)
	})
}

func TestLoadWithDefaults(t *testing.T) {
	loader := NewLoader(NewValidator())

	t.Run("missing file returns defaults", func(t *testing.T) {
		cfg, err := loader.LoadWithDefaults(filepath.Join(t.TempDir(), "absent.yaml"))
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("existing file is loaded", func(t *testing.T) {
		path := writeConfig(t, `
core:
  debug: true
`)
		cfg, err := loader.LoadWithDefaults(path)
		require.NoError(t, err)
		assert.True(t, cfg.Core.Debug)
	})
}

func TestValidator(t *testing.T) {
	v := NewValidator()

	t.Run("defaults are valid", func(t *testing.T) {
		assert.NoError(t, v.Validate(DefaultConfig()))
	})

	t.Run("nil config", func(t *testing.T) {
		assert.Error(t, v.Validate(nil))
	})

	t.Run("io_timeout below the minimum", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Core.IOTimeout = time.Microsecond
		err := v.Validate(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "core.i_o_timeout")
	})

	t.Run("multiple errors are all reported", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Logging.Level = "loud"
		cfg.Logging.Format = "xml"
		err := v.Validate(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "logging.level")
		assert.Contains(t, err.Error(), "logging.format")
	})
}

func TestCamelToSnake(t *testing.T) {
	assert.Equal(t, "core", camelToSnake("Core"))
	assert.Equal(t, "i_o_timeout", camelToSnake("IOTimeout"))
	assert.Equal(t, "sessions_dir", camelToSnake("SessionsDir"))
}
