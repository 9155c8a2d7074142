package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loomhost/loom/internal/domain/component"
)

func init() {
	rootCmd.AddCommand(newCallCmd())
}

func newCallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "call <id> <tool> [json-args]",
		Short:   "Invoke one tool exported by a loaded component",
		Example: `  loom call my-tool add '{"a": 1, "b": 2}'`,
		Args:    cobra.RangeArgs(2, 3),
		RunE: withContainer(func(ctx *CommandContext, _ *cobra.Command, args []string) error {
			argsJSON := ""
			if len(args) == 3 {
				argsJSON = args[2]
			}
			result, err := ctx.Container.LifecycleManager().Execute(ctx.Context, component.ID(args[0]), args[1], argsJSON)
			if err != nil {
				return fmt.Errorf("call failed: %w", err)
			}
			fmt.Println(result)
			return nil
		}),
	}
	return cmd
}
