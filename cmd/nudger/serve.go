package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hylla/nudger/internal/adapters/server"
	"github.com/hylla/nudger/internal/config"
	"github.com/hylla/nudger/internal/domain"
	"github.com/hylla/nudger/internal/tui"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// serveOptions holds serve command flags that override [server] config.
type serveOptions struct {
	httpBind    string
	apiEndpoint string
	mcpEndpoint string
}

func newServeCommand(opts *rootOptions, stderr io.Writer) *cobra.Command {
	var so serveOptions
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and MCP tools while refreshing in the background",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts, so, stderr)
		},
	}
	cmd.Flags().StringVar(&so.httpBind, "http", "", "listen address (defaults to server.http_bind)")
	cmd.Flags().StringVar(&so.apiEndpoint, "api-endpoint", "", "HTTP API base path (defaults to server.api_endpoint)")
	cmd.Flags().StringVar(&so.mcpEndpoint, "mcp-endpoint", "", "MCP endpoint path (defaults to server.mcp_endpoint)")
	return cmd
}

func newWatchCommand(opts *rootOptions, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Open the live worklist dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd.Context(), opts, stderr)
		},
	}
}

// runServe wires the controller, listener, config watcher, and compaction under one errgroup.
func runServe(ctx context.Context, opts *rootOptions, so serveOptions, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := openRuntime(ctx, opts, "serve", stderr, true)
	if err != nil {
		return err
	}
	defer rt.Close()

	serverCfg := server.Config{
		HTTPBind:      firstNonEmpty(so.httpBind, rt.cfg.Server.HTTPBind),
		APIEndpoint:   firstNonEmpty(so.apiEndpoint, rt.cfg.Server.APIEndpoint),
		MCPEndpoint:   firstNonEmpty(so.mcpEndpoint, rt.cfg.Server.MCPEndpoint),
		ServerName:    opts.appName,
		ServerVersion: version,
	}
	deps := server.Dependencies{Nudges: rt.service, Readiness: rt.readiness}

	return runCommandFlow(rt, "serve", func() error {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return ignoreCanceled(rt.controller.Run(gctx))
		})
		g.Go(func() error {
			rt.logger.Info("serving", "http", serverCfg.HTTPBind, "api", serverCfg.APIEndpoint, "mcp", serverCfg.MCPEndpoint)
			return serveCommandRunner(gctx, serverCfg, deps)
		})
		startBackground(gctx, g, rt)
		return g.Wait()
	})
}

// runWatch runs the dashboard over a live controller. Console logs are muted while it owns the terminal.
func runWatch(ctx context.Context, opts *rootOptions, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := openRuntime(ctx, opts, "watch", stderr, false)
	if err != nil {
		return err
	}
	defer rt.Close()

	loc, err := rt.cfg.Location()
	if err != nil {
		return err
	}
	model := tui.NewModel(rt.controller,
		tui.WithLocation(loc),
		tui.WithSnoozePreset(presetNameFor(rt.cfg)),
	)

	return runCommandFlow(rt, "watch", func() error {
		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		g, gctx := errgroup.WithContext(runCtx)
		g.Go(func() error {
			return ignoreCanceled(rt.controller.Run(gctx))
		})
		startBackground(gctx, g, rt)

		rt.logger.Info("starting tui program loop")
		_, runErr := programFactory(model).Run()
		cancel()
		waitErr := g.Wait()
		if runErr != nil {
			rt.logger.Error("tui program terminated with error", "err", runErr)
			return fmt.Errorf("run tui program: %w", runErr)
		}
		return waitErr
	})
}

// startBackground adds the config watcher and compaction schedule to g.
func startBackground(ctx context.Context, g *errgroup.Group, rt *nudgerRuntime) {
	g.Go(func() error {
		if err := config.EnsureConfigDir(rt.configPath); err != nil {
			rt.logger.Warn("config dir unavailable; settings hot reload disabled", "path", rt.configPath, "err", err)
			return nil
		}
		if err := rt.watcher.Watch(ctx); err != nil {
			rt.logger.Warn("config watcher stopped; settings hot reload disabled", "path", rt.configPath, "err", err)
		}
		return nil
	})
	g.Go(func() error {
		return runCompaction(ctx, rt)
	})
}

// presetNameFor picks the dashboard preset matching snooze.default_duration, falling back to tomorrow.
func presetNameFor(cfg config.Config) string {
	for _, p := range domain.SnoozePresets() {
		if p.Duration == cfg.Snooze.DefaultDuration.Duration {
			return p.Name
		}
	}
	return "tomorrow"
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
