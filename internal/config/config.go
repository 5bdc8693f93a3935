// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/failcase/repro-cli/api/schemas"
)

// Config holds the entire application configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Browser   BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	Timeouts  TimeoutsConfig  `mapstructure:"timeouts" yaml:"timeouts"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts" yaml:"artifacts"`
	BugStore  BugStoreConfig  `mapstructure:"bugstore" yaml:"bugstore"`
	VCS       VCSConfig       `mapstructure:"vcs" yaml:"vcs"`
	Summary   SummaryConfig   `mapstructure:"summary" yaml:"summary"`
	Watch     WatchConfig     `mapstructure:"watch" yaml:"watch"`
}

// LoggerConfig controls the console and file logging cores.
type LoggerConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"`
	LogFile    string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size"` // megabytes
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"` // days
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// BrowserConfig controls the Chrome allocator shared by all runs.
type BrowserConfig struct {
	Headless     bool     `mapstructure:"headless" yaml:"headless"`
	NoSandbox    bool     `mapstructure:"no_sandbox" yaml:"no_sandbox"`
	WindowWidth  int      `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight int      `mapstructure:"window_height" yaml:"window_height"`
	// Concurrency caps how many browser contexts may be live at once.
	Concurrency int      `mapstructure:"concurrency" yaml:"concurrency"`
	ExtraArgs   []string `mapstructure:"extra_args" yaml:"extra_args"`
}

// TimeoutsConfig bounds every page-observing wait the engine performs.
type TimeoutsConfig struct {
	Navigation time.Duration `mapstructure:"navigation" yaml:"navigation"`
	Step       time.Duration `mapstructure:"step" yaml:"step"`
	WaitFor    time.Duration `mapstructure:"wait_for" yaml:"wait_for"`
	Element    time.Duration `mapstructure:"element" yaml:"element"`
}

// Schemas converts the section into the engine-facing value type.
func (t TimeoutsConfig) Schemas() schemas.Timeouts {
	return schemas.Timeouts{
		Navigation: t.Navigation,
		Step:       t.Step,
		WaitFor:    t.WaitFor,
		Element:    t.Element,
	}
}

// ArtifactsConfig locates the screenshot store on disk.
type ArtifactsConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// BugStoreConfig selects and configures the bug-record backend.
type BugStoreConfig struct {
	// Type is one of "none", "postgres", "sheets".
	Type     string         `mapstructure:"type" yaml:"type"`
	Postgres PostgresConfig `mapstructure:"postgres" yaml:"postgres"`
	Sheets   SheetsConfig   `mapstructure:"sheets" yaml:"sheets"`
}

// PostgresConfig holds the pgx pool settings for the postgres backend.
type PostgresConfig struct {
	DSN string `mapstructure:"dsn" yaml:"dsn"`
}

// SheetsConfig holds the spreadsheet REST backend settings. The service
// account key signs the bearer-grant JWT; rate limiting keeps the client a
// polite API citizen.
type SheetsConfig struct {
	BaseURL       string  `mapstructure:"base_url" yaml:"base_url"`
	SpreadsheetID string  `mapstructure:"spreadsheet_id" yaml:"spreadsheet_id"`
	Sheet         string  `mapstructure:"sheet" yaml:"sheet"`
	SAEmail       string  `mapstructure:"sa_email" yaml:"sa_email"`
	KeyFile       string  `mapstructure:"key_file" yaml:"key_file"`
	RateLimit     float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// VCSConfig drives the commit-fix flow: local branch and commit via go-git,
// pull request via the GitHub API.
type VCSConfig struct {
	RepoPath    string       `mapstructure:"repo_path" yaml:"repo_path"`
	Remote      string       `mapstructure:"remote" yaml:"remote"`
	BaseBranch  string       `mapstructure:"base_branch" yaml:"base_branch"`
	AuthorName  string       `mapstructure:"author_name" yaml:"author_name"`
	AuthorEmail string       `mapstructure:"author_email" yaml:"author_email"`
	GitHub      GitHubConfig `mapstructure:"github" yaml:"github"`
}

// GitHubConfig identifies the repository PRs are opened against. The token
// is taken from the environment, never the config file.
type GitHubConfig struct {
	Owner string `mapstructure:"owner" yaml:"owner"`
	Repo  string `mapstructure:"repo" yaml:"repo"`
	Token string `mapstructure:"token" yaml:"token"`
}

// SummaryConfig selects the run-summary renderer.
type SummaryConfig struct {
	// Provider is "template" or "gemini".
	Provider string `mapstructure:"provider" yaml:"provider"`
	Model    string `mapstructure:"model" yaml:"model"`
	APIKey   string `mapstructure:"api_key" yaml:"api_key"`
}

// WatchConfig controls the queue-file watcher.
type WatchConfig struct {
	QueueFile   string `mapstructure:"queue_file" yaml:"queue_file"`
	Concurrency int    `mapstructure:"concurrency" yaml:"concurrency"`
}

// NewDefaultConfig returns a Config populated with the same defaults
// SetDefaults installs into viper.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := NewConfigFromViper(v)
	if err != nil {
		// Defaults must always validate; a failure here is a programming error.
		panic(fmt.Sprintf("default configuration invalid: %v", err))
	}
	return cfg
}

// SetDefaults installs every default value on the given viper instance.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.no_sandbox", true)
	v.SetDefault("browser.window_width", 1280)
	v.SetDefault("browser.window_height", 720)
	v.SetDefault("browser.concurrency", 2)
	v.SetDefault("browser.extra_args", []string{})

	// -- Timeouts --
	v.SetDefault("timeouts.navigation", "30s")
	v.SetDefault("timeouts.step", "60s")
	v.SetDefault("timeouts.wait_for", "10s")
	v.SetDefault("timeouts.element", "5s")

	// -- Artifacts --
	v.SetDefault("artifacts.dir", "./artifacts")

	// -- Bug store --
	v.SetDefault("bugstore.type", "none")
	v.SetDefault("bugstore.postgres.dsn", "")
	v.SetDefault("bugstore.sheets.base_url", "")
	v.SetDefault("bugstore.sheets.spreadsheet_id", "")
	v.SetDefault("bugstore.sheets.sheet", "Bugs")
	v.SetDefault("bugstore.sheets.sa_email", "")
	v.SetDefault("bugstore.sheets.key_file", "")
	v.SetDefault("bugstore.sheets.rate_limit", 1.0)

	// -- VCS --
	v.SetDefault("vcs.repo_path", ".")
	v.SetDefault("vcs.remote", "origin")
	v.SetDefault("vcs.base_branch", "main")
	v.SetDefault("vcs.author_name", "repro-cli")
	v.SetDefault("vcs.author_email", "repro-cli@localhost")
	v.SetDefault("vcs.github.owner", "")
	v.SetDefault("vcs.github.repo", "")

	// -- Summary --
	v.SetDefault("summary.provider", "template")
	v.SetDefault("summary.model", "gemini-2.0-flash")

	// -- Watch --
	v.SetDefault("watch.queue_file", "./repro-queue")
	v.SetDefault("watch.concurrency", 1)
}

// NewConfigFromViper binds secrets from the environment, unmarshals and
// validates the configuration.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data.
	v.BindEnv("bugstore.postgres.dsn", "REPRO_BUGSTORE_POSTGRES_DSN")
	v.BindEnv("vcs.github.token", "REPRO_VCS_GITHUB_TOKEN")
	v.BindEnv("summary.api_key", "REPRO_SUMMARY_GEMINI_API_KEY")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Fall back to the raw environment if Unmarshal didn't pick the token up.
	if cfg.VCS.GitHub.Token == "" {
		cfg.VCS.GitHub.Token = os.Getenv("REPRO_VCS_GITHUB_TOKEN")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Browser.Concurrency <= 0 {
		return fmt.Errorf("browser.concurrency must be a positive integer")
	}
	if c.Browser.WindowWidth <= 0 || c.Browser.WindowHeight <= 0 {
		return fmt.Errorf("browser window dimensions must be positive")
	}
	if c.Timeouts.Navigation <= 0 || c.Timeouts.Step <= 0 ||
		c.Timeouts.WaitFor <= 0 || c.Timeouts.Element <= 0 {
		return fmt.Errorf("every timeout must be a positive duration")
	}
	if c.Artifacts.Dir == "" {
		return fmt.Errorf("artifacts.dir must not be empty")
	}
	if c.Watch.Concurrency <= 0 {
		return fmt.Errorf("watch.concurrency must be a positive integer")
	}
	if err := c.BugStore.Validate(); err != nil {
		return fmt.Errorf("bugstore configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the bug-store section.
func (b *BugStoreConfig) Validate() error {
	switch b.Type {
	case "none":
		return nil
	case "postgres":
		if b.Postgres.DSN == "" {
			return fmt.Errorf("postgres backend needs bugstore.postgres.dsn (or REPRO_BUGSTORE_POSTGRES_DSN)")
		}
		return nil
	case "sheets":
		if b.Sheets.BaseURL == "" || b.Sheets.SpreadsheetID == "" {
			return fmt.Errorf("sheets backend needs bugstore.sheets.base_url and spreadsheet_id")
		}
		if b.Sheets.SAEmail == "" || b.Sheets.KeyFile == "" {
			return fmt.Errorf("sheets backend needs bugstore.sheets.sa_email and key_file")
		}
		if b.Sheets.RateLimit <= 0 {
			return fmt.Errorf("bugstore.sheets.rate_limit must be positive")
		}
		return nil
	default:
		return fmt.Errorf("unknown bugstore.type %q (want none, postgres or sheets)", b.Type)
	}
}

// Validate checks the VCS section. Called only by the commit-fix flow; every
// other command works without VCS settings.
func (v *VCSConfig) Validate() error {
	if v.RepoPath == "" {
		return fmt.Errorf("vcs.repo_path must not be empty")
	}
	if v.GitHub.Owner == "" || v.GitHub.Repo == "" {
		return fmt.Errorf("vcs.github.owner and vcs.github.repo are required")
	}
	if v.GitHub.Token == "" {
		return fmt.Errorf("GitHub token not found; set REPRO_VCS_GITHUB_TOKEN")
	}
	return nil
}
