// -- cmd/reproduce.go --
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/failcase/repro-cli/api/schemas"
)

// newReproduceCmd creates and configures the `reproduce` command.
func newReproduceCmd(a *app) *cobra.Command {
	reproduceCmd := &cobra.Command{
		Use:   "reproduce [bug-id...]",
		Short: "Run a bug's steps in a browser and report what actually happened",
		Long: `Reproduce loads the named bugs from the bug store (or raw steps from
--steps-file), replays their steps in a fresh browser context, and writes a
report per run. The first failing step halts its run; every executed step
carries a screenshot reference.

With --update-status, a run that completes green moves the bug to
"In Progress": the written steps demonstrably reproduce on the current
build.`,
		Example: `  repro-cli reproduce BUG-123
  repro-cli reproduce BUG-1 BUG-2 --format junit -o runs.xml
  repro-cli reproduce --url https://app.test/login --steps-file steps.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSteps(cmd, args, schemas.ModeReproduce)
		},
	}

	addRunFlags(reproduceCmd)
	return reproduceCmd
}
