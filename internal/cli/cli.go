// Package cli implements the diagramctl command-line interface.
//
// Commands:
//   - convert: translate a diagram between native, light, readable and llm
//   - detect: report which format a file is in
//   - validate: check a document without converting it
//   - vars: list the {{placeholders}} used by prompt-bearing nodes
//   - serve: run the HTTP service
//
// Every command accepts --verbose (-v) and --config (-c). The config file
// is YAML, JSON or TOML; see config.LoadSettings for the keys.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/randalmurphal/diagramkit/pkg/diagramkit/config"
	"github.com/randalmurphal/diagramkit/pkg/diagramkit/format"
	"github.com/randalmurphal/diagramkit/pkg/diagramkit/observability"
	"github.com/randalmurphal/diagramkit/pkg/diagramkit/store"
)

const appName = "diagramctl"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

var (
	version = "dev"
	commit  string
	date    string
)

// SetVersion sets the version information displayed by --version.
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

// CLI holds shared state for all commands.
type CLI struct {
	Logger   *log.Logger
	Settings config.Settings

	configPath string
	verbose    bool
}

// New creates a CLI logging to w at level.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger:   newLogger(w, level),
		Settings: config.DefaultSettings(),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// slog returns the CLI logger as a *slog.Logger for the library packages.
func (c *CLI) slog() *slog.Logger {
	return slog.New(c.Logger)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           appName,
		Short:         "Convert, validate and serve workflow diagrams",
		Long:          `diagramctl converts workflow diagrams between the native JSON, light YAML, readable and LLM-friendly formats, and serves the same operations over HTTP.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd.Context())
		},
	}
	root.SetVersionTemplate(fmt.Sprintf("%s %s\ncommit: %s\nbuilt: %s\n", appName, version, commit, date))

	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "settings file (.yaml, .json or .toml)")

	root.AddCommand(c.convertCommand())
	root.AddCommand(c.detectCommand())
	root.AddCommand(c.validateCommand())
	root.AddCommand(c.varsCommand())
	root.AddCommand(c.serveCommand())

	return root
}

// setup loads settings and applies the log level. --verbose wins over
// log.level from the file.
func (c *CLI) setup(_ context.Context) error {
	settings, err := config.LoadSettingsFile(c.configPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	c.Settings = settings

	level, err := log.ParseLevel(settings.LogLevel)
	if err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.verbose {
		level = log.DebugLevel
	}
	c.SetLogLevel(level)
	if c.configPath != "" {
		c.Logger.Debug("settings loaded", "path", c.configPath)
	}
	return nil
}

// registry builds the converter registry configured by the settings.
func (c *CLI) registry(metrics observability.MetricsRecorder) (*format.Registry, error) {
	policy, err := store.ParseDuplicatePolicy(c.Settings.DuplicatePolicy)
	if err != nil {
		return nil, err
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return format.NewRegistry(
		format.WithLogger(c.slog()),
		format.WithMetrics(metrics),
		format.WithPositionGrid(c.Settings.Export.PositionGrid),
		format.WithDuplicatePolicy(policy),
	), nil
}

// Execute runs diagramctl with args and returns the first error.
func Execute(ctx context.Context, stdout, stderr io.Writer, args []string) error {
	c := New(stderr, LogInfo)
	root := c.RootCommand()
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}
