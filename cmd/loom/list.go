package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newListCmd())
}

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List known components and their tools",
		Example: `  loom list`,
		Args:    cobra.NoArgs,
		RunE: withContainer(func(ctx *CommandContext, _ *cobra.Command, _ []string) error {
			manager := ctx.Container.LifecycleManager()

			ids, err := manager.ListComponentsKnown()
			if err != nil {
				return fmt.Errorf("failed to list components: %w", err)
			}
			if len(ids) == 0 {
				fmt.Println("No components found.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			if _, err := fmt.Fprintln(w, "COMPONENT\tTOOL"); err != nil {
				return fmt.Errorf("failed to write header: %w", err)
			}
			for _, id := range ids {
				entries := manager.GetComponentSchema(id)
				if len(entries) == 0 {
					if _, err := fmt.Fprintf(w, "%s\t-\n", id); err != nil {
						return fmt.Errorf("failed to write row: %w", err)
					}
					continue
				}
				for _, e := range entries {
					if _, err := fmt.Fprintf(w, "%s\t%s\n", id, e.ToolName); err != nil {
						return fmt.Errorf("failed to write row: %w", err)
					}
				}
			}
			return w.Flush()
		}),
	}
	return cmd
}
