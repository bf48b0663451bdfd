package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/tuindex/internal/server"
)

type serveFlags struct {
	network string
	addr    string
	watch   bool
	idle    time.Duration
}

func (c *cli) serveCmd() *cobra.Command {
	var f serveFlags
	cmd := &cobra.Command{
		Use:   "serve [path]",
		Short: "Index a directory and serve queries over a socket",
		Long:  "Indexes path (default: current directory), then answers line-delimited JSON requests until interrupted.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd, args, f)
		},
	}
	cmd.Flags().StringVar(&f.network, "network", "", "listener network: tcp|unix (default: from config)")
	cmd.Flags().StringVar(&f.addr, "addr", "", "listen address (default: from config)")
	cmd.Flags().BoolVar(&f.watch, "watch", false, "reload when indexed files change")
	cmd.Flags().DurationVar(&f.idle, "idle-timeout", 0, "close connections idle this long (default: from config)")
	return cmd
}

func (c *cli) runServe(cmd *cobra.Command, args []string, f serveFlags) error {
	target, err := resolveTargetDir(args)
	if err != nil {
		return err
	}
	cfg, err := c.loadConfig(target)
	if err != nil {
		return err
	}
	if f.network != "" {
		cfg.Server.Network = f.network
	}
	if f.addr != "" {
		cfg.Server.Addr = f.addr
	}
	if cmd.Flags().Changed("watch") {
		cfg.Server.Watch = f.watch
	}
	if f.idle > 0 {
		cfg.Server.IdleTimeout = f.idle
	}

	engine, err := c.openEngine(cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := engine.IndexDirectory(ctx, target, cfg.DiscoverOptions(), cfg.Build.Flags)
	if err != nil {
		return fmt.Errorf("initial index: %w", err)
	}
	c.logger.Info("serve.indexed", "files", res.Files, "parsed", res.Parsed, "symbols", res.Symbols)

	opts := []server.Option{
		server.WithLogger(c.logger),
		server.WithRoot(target),
		server.WithIdleTimeout(cfg.Server.IdleTimeout),
	}
	if cfg.Server.Watch {
		opts = append(opts, server.WithWatch(cfg.Server.WatchDebounce))
	}
	srv := server.New(engine, opts...)

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe(cfg.Server.Network, cfg.Server.Addr) }()
	fmt.Fprintf(cmd.ErrOrStderr(), "Serving %s on %s %s\n", target, cfg.Server.Network, cfg.Server.Addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, server.ErrServerClosed) {
		return err
	}
	return nil
}
