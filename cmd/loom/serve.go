package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newServeCmd())
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "serve",
		Short:   "Run loom as a long-running host, loading and serving components on demand",
		Example: `  loom serve`,
		Args:    cobra.NoArgs,
		RunE: withContainer(func(cmdCtx *CommandContext, _ *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmdCtx.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			loader := cmdCtx.Container.StartupLoader()
			if err := loader.Run(ctx); err != nil {
				return fmt.Errorf("failed to start components: %w", err)
			}

			cmdCtx.Logger.Info("loom host started", "plugin_dir", cmdCtx.Container.Config().PluginDir)
			<-ctx.Done()
			cmdCtx.Logger.Info("shutting down")

			if err := cmdCtx.Container.Close(); err != nil {
				return fmt.Errorf("failed to close container: %w", err)
			}
			return nil
		}),
	}
}
