package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newLoadCmd())
}

func newLoadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load <uri>",
		Short: "Load a component from file://, http(s)://, or oci://",
		Example: `  loom load file:///path/to/tool.wasm
  loom load oci://ghcr.io/example/tool:1.0.0`,
		Args: cobra.ExactArgs(1),
		RunE: withContainer(func(ctx *CommandContext, _ *cobra.Command, args []string) error {
			result, err := ctx.Container.LifecycleManager().Load(ctx.Context, args[0])
			if err != nil {
				return fmt.Errorf("failed to load component: %w", err)
			}
			fmt.Printf("component %s %s\n", result.ID, result.Outcome)
			return nil
		}),
	}
	return cmd
}
