// -- cmd/watch.go --
package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/failcase/repro-cli/api/schemas"
	"github.com/failcase/repro-cli/internal/config"
	"github.com/failcase/repro-cli/internal/watchqueue"
)

// newWatchCmd creates and configures the `watch` command.
func newWatchCmd(a *app) *cobra.Command {
	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow a queue file and run every bug ID appended to it",
		Long: `Watch tails the queue file and runs each appended line as a bug ID.
Anything that can append a line (a webhook script, or a teammate with echo)
can enqueue work. Reports are attached to the bug store; the terminal gets
one outcome line per run. Stop with Ctrl-C.`,
		Example: `  repro-cli watch
  repro-cli watch --queue /var/run/repro-queue --mode verify --update-status
  echo BUG-123 >> ./repro-queue`,
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind the flag to its viper key so the command-line value
			// overrides the config file with the right precedence.
			return a.v.BindPFlag("watch.queue_file", cmd.Flags().Lookup("queue"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			modeFlag, _ := cmd.Flags().GetString("mode")
			updateStatus, _ := cmd.Flags().GetBool("update-status")

			mode, err := parseRunMode(modeFlag)
			if err != nil {
				return err
			}

			// Re-unmarshal so the --queue override lands in the config.
			cfg, err := config.NewConfigFromViper(a.v)
			if err != nil {
				return err
			}

			session, err := newRunSession(ctx, cfg, a.logger)
			if err != nil {
				return err
			}
			defer session.Close(context.Background())

			handler := func(ctx context.Context, bugID string) error {
				return session.runQueuedBug(ctx, bugID, mode, updateStatus)
			}
			watcher, err := watchqueue.New(cfg.Watch, handler, a.logger)
			if err != nil {
				return err
			}
			return watcher.Run(ctx)
		},
	}

	watchCmd.Flags().String("queue", "", "Queue file to follow (defaults to watch.queue_file)")
	watchCmd.Flags().String("mode", "reproduce", "Run mode for queued bugs: reproduce or verify")
	watchCmd.Flags().Bool("update-status", false, "Update bug status after a green run")
	return watchCmd
}

// parseRunMode maps the --mode flag onto a run mode.
func parseRunMode(s string) (schemas.RunMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "reproduce":
		return schemas.ModeReproduce, nil
	case "verify":
		return schemas.ModeVerify, nil
	default:
		return "", fmt.Errorf("unknown mode %q (want reproduce or verify)", s)
	}
}
