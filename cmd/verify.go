// -- cmd/verify.go --
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/failcase/repro-cli/api/schemas"
)

// newVerifyCmd creates and configures the `verify` command.
func newVerifyCmd(a *app) *cobra.Command {
	verifyCmd := &cobra.Command{
		Use:   "verify [bug-id...]",
		Short: "Replay a bug's steps against a fixed build and check they all pass",
		Long: `Verify replays the same steps as reproduce but with the opposite intent:
after a fix has shipped, a fully green run means the bug no longer occurs.
The exit code reflects the result, so verify slots directly into CI.

With --update-status, a green run moves the bug to "Verified".`,
		Example: `  repro-cli verify BUG-123 --update-status
  repro-cli verify BUG-1 BUG-2 BUG-3 --format junit -o verified.xml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSteps(cmd, args, schemas.ModeVerify)
		},
	}

	addRunFlags(verifyCmd)
	return verifyCmd
}
