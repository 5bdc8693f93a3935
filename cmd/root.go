// -- cmd/root.go --
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/failcase/repro-cli/internal/config"
	"github.com/failcase/repro-cli/internal/observability"
)

// app carries the per-invocation state every subcommand closes over: the
// viper instance flags bind to, the resolved configuration, and the logger.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	logger  *zap.Logger
}

// NewRootCommand builds the repro-cli command tree. Each call returns a
// fresh, isolated instance so tests and interactive callers never share
// flag state.
func NewRootCommand() *cobra.Command {
	rootCmd, _ := newRootCmd()
	return rootCmd
}

// newRootCmd builds the tree and exposes the app state; tests assert on the
// resolved configuration through it.
func newRootCmd() (*cobra.Command, *app) {
	a := &app{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:   "repro-cli",
		Short: "Reproduce and verify browser bug reports from their written steps.",
		Long: `repro-cli reads the reproduction steps of a bug report, written in plain
language, and replays them in a real browser. Every step is screenshotted
and classified, and the run is folded into a report you can print, ship to
CI as JUnit XML, or attach back to the bug record.`,
		// Version is dynamically set at build time. See cmd/version.go.
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// This runs before any command, setting up config and logging.
			return a.initialize()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "",
		"config file (default ./repro-cli.yaml, then $HOME/.repro-cli/repro-cli.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(
		newReproduceCmd(a),
		newVerifyCmd(a),
		newStatusCmd(a),
		newCommitFixCmd(a),
		newWatchCmd(a),
		newInitCmd(),
		newVersionCmd(),
	)

	return rootCmd, a
}

// Execute runs the CLI under a signal-aware context. The caller owns the
// process exit code; Execute reports the error after printing it once.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

// initialize reads the config sources and brings up the global logger.
func (a *app) initialize() error {
	if err := a.loadConfig(); err != nil {
		return err
	}

	cfg, err := config.NewConfigFromViper(a.v)
	if err != nil {
		// Initialize a fallback logger so the error itself gets reported.
		observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console"})
		return err
	}
	a.cfg = cfg

	observability.InitializeLogger(cfg.Logger)
	a.logger = observability.GetLogger()
	a.logger.Debug("Starting repro-cli", zap.String("version", Version))
	return nil
}

// loadConfig installs defaults and reads the config file and REPRO_*
// environment variables into the command's viper instance.
func (a *app) loadConfig() error {
	config.SetDefaults(a.v)

	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		a.v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			a.v.AddConfigPath(filepath.Join(home, ".repro-cli"))
		}
		a.v.SetConfigName("repro-cli")
		a.v.SetConfigType("yaml")
	}

	a.v.SetEnvPrefix("REPRO")
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	a.v.AutomaticEnv()

	if err := a.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; proceed with defaults/env vars.
	}
	return nil
}
