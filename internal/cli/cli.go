// Package cli implements the flowsketch command-line interface.
//
// # Commands
//
//   - repl: interactive editor; type commands, watch the diagram settle
//   - run: execute scripts non-interactively and export the result
//   - serve: HTTP API with a WebSocket snapshot stream
//   - completion: shell completion scripts
//
// # Configuration
//
// Every command reads the TOML configuration (see pkg/config) from
// --config or the default location. --verbose forces debug logging;
// otherwise [log] level applies.
//
// # Logging
//
// Loggers write to stderr and travel through the command context.
package cli

import (
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/flowsketch/pkg/buildinfo"
	"github.com/matzehuels/flowsketch/pkg/cache"
	"github.com/matzehuels/flowsketch/pkg/clipboard"
	"github.com/matzehuels/flowsketch/pkg/config"
	"github.com/matzehuels/flowsketch/pkg/session"
)

const appName = "flowsketch"

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
	verbose    bool
	cfg        config.Config
}

// New creates a CLI logging to w.
func New(w io.Writer) *CLI {
	return &CLI{
		Logger: newLogger(w, log.InfoLevel),
		cfg:    config.Default(),
	}
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "flowsketch draws diagrams from a tiny command language",
		Long: `flowsketch is a diagram editor driven by one-line commands such as
"add", "link" and "color". Nodes are arranged automatically by a
force-directed or hierarchical layout as the diagram changes.`,
		Version:           buildinfo.Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
	}
	root.SetVersionTemplate(buildinfo.Template())

	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/flowsketch/config.toml)")

	root.AddCommand(c.replCommand())
	root.AddCommand(c.runCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// setup loads configuration and attaches the logger to the command context.
func (c *CLI) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.Logger.SetLevel(logLevel(cfg, c.verbose))
	cmd.SetContext(withLogger(cmd.Context(), c.Logger))
	c.Logger.Debug("configuration loaded", "path", c.configPath, "engine", cfg.Layout.Engine, "clipboard", cfg.Clipboard.Backend)
	return nil
}

// renderCache opens the configured artifact cache.
func (c *CLI) renderCache(logger *log.Logger, disabled bool) (*cache.Memo, error) {
	if disabled {
		return cache.NewMemo(cache.NullCache{}, 0, logger), nil
	}
	store, err := cache.New(c.cfg.CacheOptions())
	if err != nil {
		return nil, err
	}
	return cache.NewMemo(store, c.cfg.Cache.TTL, logger), nil
}

// sessionOptions builds session options from the loaded configuration.
func (c *CLI) sessionOptions(logger *log.Logger, clip clipboard.Clipboard) session.Options {
	opts := c.cfg.SessionOptions()
	opts.Logger = logger
	opts.Clipboard = clip
	return opts
}
