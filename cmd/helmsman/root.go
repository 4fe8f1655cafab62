package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/avstack-io/helmsman/internal/config"
)

var (
	configFile string
	appConfig  *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "helmsman",
	Short: "Helmsman - mission execution orchestrator for autonomous vehicles",
	Long: `Helmsman resolves a declarative mission document into a computation
graph of perception, planning and control components and drives it on a
fixed cadence against a vehicle interface, with per-stage fault recovery
and record/replay of selected data streams.`,
	PersistentPreRunE: loadConfig,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

// Execute runs the root command with signal handling. SIGINT and SIGTERM
// cancel the command context; the run command finishes its current cycle
// and flushes the recording session before returning.
func Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return rootCmd.ExecuteContext(ctx)
}

// loadConfig is called before any command runs to load the application
// configuration. A missing config file falls back to defaults.
func loadConfig(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = os.Getenv("HELMSMAN_CONFIG")
	}
	if path == "" {
		home := os.Getenv("HELMSMAN_HOME")
		if home == "" {
			home = config.DefaultConfig().Core.HomeDir
		}
		path = filepath.Join(home, "config.yaml")
	}

	loader := config.NewLoader(config.NewValidator())
	cfg, err := loader.LoadWithDefaults(path)
	if err != nil {
		return err
	}
	appConfig = cfg
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"Path to the helmsman config file (default $HELMSMAN_HOME/config.yaml)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println("helmsman v0.1.0")
	},
}
