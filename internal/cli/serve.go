package cli

import (
	"context"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/flowsketch/internal/server"
	"github.com/matzehuels/flowsketch/pkg/clipboard"
	"github.com/matzehuels/flowsketch/pkg/notify"
	"github.com/matzehuels/flowsketch/pkg/session"
)

const cleanupInterval = time.Minute

func (c *CLI) serveCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the diagram API over HTTP",
		Long: `Serve sessions over HTTP. Clients create a session, post command
batches to it and follow the diagram over a WebSocket stream.

When [notify] nats_url is configured every change is also published to
<subject_prefix>.<session>.graph.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = c.cfg.Server.Addr
			}
			return c.serve(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from [server] addr)")
	return cmd
}

func (c *CLI) serve(ctx context.Context, addr string) error {
	logger := loggerFromContext(ctx)

	clipCfg := c.cfg.ClipboardOptions()
	if clipCfg.Backend == "" || strings.EqualFold(clipCfg.Backend, clipboard.BackendOSC52) {
		// There is no terminal on the other end of an HTTP request.
		logger.Warn("terminal clipboard is unavailable when serving, using memory", "configured", clipCfg.Backend)
		clipCfg.Backend = clipboard.BackendMemory
	}
	clip, err := clipboard.New(clipCfg)
	if err != nil {
		return err
	}
	defer clip.Close()

	opts := c.sessionOptions(logger, clip)
	if url := c.cfg.Notify.NATSURL; url != "" {
		nc, err := notify.Connect(url)
		if err != nil {
			return err
		}
		defer nc.Drain()
		opts.Publisher = nc
		logger.Info("publishing changes", "url", url, "prefix", c.cfg.Notify.SubjectPrefix)
	}

	renders, err := c.renderCache(logger, false)
	if err != nil {
		return err
	}
	defer renders.Close()

	sessions := session.NewManager(opts, c.cfg.Server.IdleTTL)
	go sessions.RunCleanup(ctx, cleanupInterval)

	srv := server.New(sessions, server.WithLogger(logger), server.WithRenderCache(renders))
	return srv.ListenAndServe(ctx, addr)
}
