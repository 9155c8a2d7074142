package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/loomhost/loom/internal/domain/component"
)

func init() {
	rootCmd.AddCommand(newSecretsCmd())
}

func newSecretsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secrets",
		Short: "List, set, or delete a component's secret values",
	}
	cmd.AddCommand(newSecretsListCmd())
	cmd.AddCommand(newSecretsSetCmd())
	cmd.AddCommand(newSecretsDeleteCmd())
	return cmd
}

func newSecretsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list <id>",
		Short:   "List the secret keys set for a component",
		Example: `  loom secrets list my-tool`,
		Args:    cobra.ExactArgs(1),
		RunE: withContainer(func(ctx *CommandContext, _ *cobra.Command, args []string) error {
			keys, err := ctx.Container.LifecycleManager().ListComponentSecrets(component.ID(args[0]))
			if err != nil {
				return fmt.Errorf("failed to list secrets: %w", err)
			}
			if len(keys) == 0 {
				fmt.Println("No secrets set.")
				return nil
			}
			for _, k := range keys {
				fmt.Println(k)
			}
			return nil
		}),
	}
}

func newSecretsSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "set <id> <key>=<value> [<key>=<value> ...]",
		Short:   "Set one or more secret values for a component",
		Example: `  loom secrets set my-tool API_KEY=s3cr3t OTHER=value`,
		Args:    cobra.MinimumNArgs(2),
		RunE: withContainer(func(ctx *CommandContext, _ *cobra.Command, args []string) error {
			id := component.ID(args[0])
			values := make(map[string]string, len(args)-1)
			for _, kv := range args[1:] {
				key, value, ok := strings.Cut(kv, "=")
				if !ok {
					return fmt.Errorf("invalid key=value pair: %q", kv)
				}
				values[key] = value
			}
			if err := ctx.Container.LifecycleManager().SetComponentSecrets(id, values); err != nil {
				return fmt.Errorf("failed to set secrets: %w", err)
			}
			fmt.Printf("secrets updated for %s\n", id)
			return nil
		}),
	}
}

func newSecretsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id> <key> [<key> ...]",
		Short:   "Delete one or more secret keys from a component",
		Example: `  loom secrets delete my-tool API_KEY`,
		Args:    cobra.MinimumNArgs(2),
		RunE: withContainer(func(ctx *CommandContext, _ *cobra.Command, args []string) error {
			id := component.ID(args[0])
			if err := ctx.Container.LifecycleManager().DeleteComponentSecrets(id, args[1:]); err != nil {
				return fmt.Errorf("failed to delete secrets: %w", err)
			}
			fmt.Printf("secrets deleted for %s\n", id)
			return nil
		}),
	}
}
