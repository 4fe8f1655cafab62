package config

import (
	"os"
	"path/filepath"
	"time"
)

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	homeDir := getDefaultHomeDir()

	return &Config{
		Core: CoreConfig{
			HomeDir:     homeDir,
			SessionsDir: filepath.Join(homeDir, "sessions"),
			IOTimeout:   500 * time.Millisecond,
			Debug:       false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Tracing: TracingConfig{
			Enabled:  false,
			Exporter: "noop",
		},
	}
}

// getDefaultHomeDir returns the default helmsman home directory. It uses
// ~/.helmsman, or a temporary directory if user home cannot be determined.
func getDefaultHomeDir() string {
	userHome, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".helmsman")
	}
	return filepath.Join(userHome, ".helmsman")
}
