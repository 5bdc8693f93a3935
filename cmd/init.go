// -- cmd/init.go --
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// starterConfig mirrors the defaults in internal/config.SetDefaults.
// Secrets never live here; they come from the environment.
const starterConfig = `# repro-cli configuration.
# Search order: --config flag, ./repro-cli.yaml, $HOME/.repro-cli/repro-cli.yaml.
# Every key can also be set via environment, e.g. REPRO_BROWSER_HEADLESS=false.

logger:
  level: info        # debug, info, warn, error
  format: console    # console or json
  log_file: ""       # optional rotating JSON log file
  max_size: 50       # megabytes per log file
  max_backups: 3
  max_age: 14        # days
  compress: true

browser:
  headless: true
  no_sandbox: true
  window_width: 1280
  window_height: 720
  concurrency: 2     # max browser contexts alive at once
  extra_args: []     # extra Chrome flags, e.g. ["proxy-server=localhost:8080"]

timeouts:
  navigation: 30s
  step: 60s
  wait_for: 10s
  element: 5s

artifacts:
  dir: ./artifacts   # step screenshots land here, one directory per run

bugstore:
  type: none         # none, postgres or sheets
  postgres:
    dsn: ""          # or REPRO_BUGSTORE_POSTGRES_DSN
  sheets:
    base_url: ""     # spreadsheet API endpoint
    spreadsheet_id: ""
    sheet: Bugs
    sa_email: ""     # service account email for the bearer grant
    key_file: ""     # PEM-encoded RSA key of the service account
    rate_limit: 1.0  # requests per second

vcs:
  repo_path: .
  remote: origin
  base_branch: main
  author_name: repro-cli
  author_email: repro-cli@localhost
  github:
    owner: ""
    repo: ""
    # token comes from REPRO_VCS_GITHUB_TOKEN

summary:
  provider: template # template or gemini
  model: gemini-2.0-flash
  # API key comes from REPRO_SUMMARY_GEMINI_API_KEY

watch:
  queue_file: ./repro-queue
  concurrency: 1     # queued bugs run in parallel up to this bound
`

// newInitCmd creates and configures the `init` command.
func newInitCmd() *cobra.Command {
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter configuration file",
		Long: `Init writes a commented configuration file with every key at its
default. Edit it in place; delete anything you keep at the default.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("path")
			force, _ := cmd.Flags().GetBool("force")

			if !force {
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("%s already exists (use --force to overwrite)", path)
				}
			}
			if err := os.WriteFile(path, []byte(starterConfig), 0644); err != nil {
				return fmt.Errorf("failed to write config file: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}

	initCmd.Flags().String("path", "repro-cli.yaml", "Where to write the config file")
	initCmd.Flags().Bool("force", false, "Overwrite an existing file")
	return initCmd
}
