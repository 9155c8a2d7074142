package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loomhost/loom/internal/domain/component"
)

func init() {
	rootCmd.AddCommand(newPolicyCmd())
}

func newPolicyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Attach or detach a component's capability policy",
	}
	cmd.AddCommand(newPolicyAttachCmd())
	cmd.AddCommand(newPolicyDetachCmd())
	return cmd
}

func newPolicyAttachCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "attach <id> <uri>",
		Short:   "Attach a policy document to a component",
		Example: `  loom policy attach my-tool file:///path/to/policy.yaml`,
		Args:    cobra.ExactArgs(2),
		RunE: withContainer(func(ctx *CommandContext, _ *cobra.Command, args []string) error {
			id := component.ID(args[0])
			if err := ctx.Container.LifecycleManager().AttachPolicy(ctx.Context, id, args[1]); err != nil {
				return fmt.Errorf("failed to attach policy: %w", err)
			}
			fmt.Printf("policy attached to %s\n", id)
			return nil
		}),
	}
}

func newPolicyDetachCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "detach <id>",
		Short:   "Detach a component's policy, reverting it to the empty policy",
		Example: `  loom policy detach my-tool`,
		Args:    cobra.ExactArgs(1),
		RunE: withContainer(func(ctx *CommandContext, _ *cobra.Command, args []string) error {
			id := component.ID(args[0])
			if err := ctx.Container.LifecycleManager().DetachPolicy(id); err != nil {
				return fmt.Errorf("failed to detach policy: %w", err)
			}
			fmt.Printf("policy detached from %s\n", id)
			return nil
		}),
	}
}
