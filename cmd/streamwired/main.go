package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/streamwire/internal/config"
	"github.com/danmuck/streamwire/internal/observability"
	"github.com/danmuck/streamwire/internal/protocol/session"
	"github.com/danmuck/streamwire/internal/server"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "streamwired: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var opts options
	fs := newFlagSet(&opts)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if opts.help {
		fmt.Fprintf(os.Stderr, "Usage: streamwired [flags]\n\n%s", fs.FlagUsages())
		return nil
	}
	if opts.writeConfig != "" {
		return config.WriteTemplate(opts.writeConfig, "server", opts.force)
	}

	logger := observability.InitLogger("streamwired")
	cfg, err := resolveConfig(opts, fs)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Enabled {
		go func() {
			if err := observability.ServeMetrics(ctx, cfg.Metrics.Addr, cfg.Metrics.Path); err != nil {
				logger.Error().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	ln, err := session.Listen(cfg.Server.ListenAddr, cfg.Session)
	if err != nil {
		return err
	}
	logger.Info().Str("addr", ln.Addr().String()).Bool("tls", cfg.Session.TLS.Enabled).
		Uint32("chunk_size", cfg.Session.ChunkSize).Msg("streamwired starting")
	return server.NewService(cfg.Session, logger).Serve(ctx, ln)
}
