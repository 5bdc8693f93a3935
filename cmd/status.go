// -- cmd/status.go --
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/failcase/repro-cli/api/schemas"
	"github.com/failcase/repro-cli/internal/bugstore"
)

// newStatusCmd creates and configures the `status` command.
func newStatusCmd(a *app) *cobra.Command {
	statusCmd := &cobra.Command{
		Use:   "status <bug-id> <status>",
		Short: "Set a bug's lifecycle status in the bug store",
		Long: `Status writes a lifecycle state straight to the bug store. Valid states
are Open, In Progress, Fixed, Verified and Closed; input is matched
case-insensitively and in_progress/in-progress spellings are accepted.`,
		Example: `  repro-cli status BUG-123 fixed
  repro-cli status BUG-123 in_progress --note "reproduces on staging"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			note, _ := cmd.Flags().GetString("note")

			status, err := schemas.ParseBugStatus(args[1])
			if err != nil {
				return err
			}

			store, err := bugstore.New(ctx, a.cfg.BugStore, a.logger)
			if err != nil {
				return fmt.Errorf("failed to initialize bug store: %w", err)
			}
			defer func() {
				if err := store.Close(context.Background()); err != nil {
					a.logger.Warn("Error closing bug store", zap.Error(err))
				}
			}()

			if err := store.UpdateStatus(ctx, args[0], status, note); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", args[0], status)
			return nil
		},
	}

	statusCmd.Flags().String("note", "", "Free-text note stored next to the status")
	return statusCmd
}
