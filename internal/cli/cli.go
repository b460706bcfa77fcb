// Package cli implements the orgraph command-line interface.
//
// The main commands are:
//   - scan: crawl the organization and write the dependency graph
//   - graph: rebuild the graph from the checkpoint without network access
//   - repos: list the repositories a scan would visit
//   - whoami: show the account the GitHub token authenticates as
//   - checkpoint: inspect or reset scan progress
//   - cache: manage the content cache
//   - serve: expose the graph document over HTTP
//
// Configuration comes from an optional file (--config), ORGRAPH_* environment
// variables and command flags, in increasing precedence. All commands support
// --verbose (-v) for debug-level logging.
package cli

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/orgraph/pkg/buildinfo"
	"github.com/matzehuels/orgraph/pkg/config"
	"github.com/matzehuels/orgraph/pkg/observability"
)

const appName = "orgraph"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// Config is loaded before any command runs.
	Config *config.Config

	out        io.Writer
	configPath string
	verbose    bool
	logFormat  string
	org        string
}

// New creates a new CLI instance logging to w.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level, config.LogText),
		out:    os.Stdout,
	}
}

// SetOutput redirects command output (not logs) to w.
func (c *CLI) SetOutput(w io.Writer) {
	c.out = w
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "orgraph maps internal package dependencies across a GitHub organization",
		Long: `orgraph crawls every repository of a GitHub organization, collects the
dependencies declared in its manifests (including monorepo workspaces) and
builds a graph of how the organization's internal packages depend on each other.`,
		Version:           buildinfo.Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
	}
	root.SetVersionTemplate(buildinfo.Template())

	flags := root.PersistentFlags()
	flags.StringVarP(&c.configPath, "config", "c", "", "config file (YAML, TOML or JSON)")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")
	flags.StringVar(&c.logFormat, "log-format", config.LogText, "log format: text or json")
	flags.StringVar(&c.org, "org", "", "GitHub organization (overrides github.org)")

	root.AddCommand(c.scanCommand())
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.statsCommand())
	root.AddCommand(c.reposCommand())
	root.AddCommand(c.whoamiCommand())
	root.AddCommand(c.checkpointCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// setup loads the configuration and applies the global flags. It runs before
// every command.
func (c *CLI) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if c.org != "" {
		cfg.GitHub.Org = c.org
	}
	if c.verbose {
		cfg.Log.Level = "debug"
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = c.logFormat
	}

	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	c.Logger.SetLevel(level)
	if cfg.Log.Format == config.LogJSON {
		c.Logger.SetFormatter(log.JSONFormatter)
	}
	if level == log.DebugLevel {
		observability.NewLogHooks(c.Logger).Register()
	}

	c.Config = cfg
	cmd.SetContext(withLogger(cmd.Context(), c.Logger))
	c.Logger.Debug("loaded configuration", "config", cfg.String())
	return nil
}
