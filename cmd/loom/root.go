package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/loomhost/loom/internal/config"
)

var cfgFile string

// rootCmd is the application entry point.
var rootCmd = &cobra.Command{
	Use:   "loom",
	Short: "A secure dynamic host for WebAssembly Components",
	Long: `loom discovers, compiles, caches, registers, and invokes sandboxed
WebAssembly components on demand, exposing each component's exported
functions as callable tools under a per-component capability policy.`,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		if err := config.InitViper(cfgFile); err != nil {
			return err
		}
		setupLogging(config.Load().LogLevel)
		return nil
	},
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $XDG_CONFIG_HOME/loom/config.yaml)")
	config.BindFlags(rootCmd)
}

func setupLogging(level string) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(level)}))
	slog.SetDefault(logger)
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
