package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loomhost/loom/internal/domain/component"
)

func init() {
	rootCmd.AddCommand(newUnloadCmd())
}

func newUnloadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "unload <id>",
		Short:   "Unload a component and remove its on-disk files",
		Example: `  loom unload my-tool`,
		Args:    cobra.ExactArgs(1),
		RunE: withContainer(func(ctx *CommandContext, _ *cobra.Command, args []string) error {
			if err := ctx.Container.LifecycleManager().Unload(ctx.Context, component.ID(args[0])); err != nil {
				return fmt.Errorf("failed to unload component: %w", err)
			}
			fmt.Printf("component %s unloaded\n", args[0])
			return nil
		}),
	}
	return cmd
}
