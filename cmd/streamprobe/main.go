package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danmuck/streamwire/internal/config"
	"github.com/danmuck/streamwire/internal/observability"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "streamprobe: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var (
		configPath string
		addr       string
		app        string
		unsigned   bool
		pings      int
		timeout    time.Duration
	)
	fs := pflag.NewFlagSet("streamprobe", pflag.ContinueOnError)
	fs.StringVarP(&configPath, "config", "c", "", "path to config.toml (defaults apply when empty)")
	fs.StringVarP(&addr, "addr", "a", "", "responder address, overrides client.addr")
	fs.StringVar(&app, "app", "", "application name sent with connect")
	fs.BoolVar(&unsigned, "unsigned", false, "use the plain handshake without digests")
	fs.IntVar(&pings, "pings", 3, "ping round trips to measure after connect")
	fs.DurationVar(&timeout, "timeout", 15*time.Second, "overall probe deadline")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	logger := observability.InitLogger("streamprobe")
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if fs.Changed("addr") {
		cfg.Client.Addr = addr
	}
	if fs.Changed("app") {
		cfg.Client.App = app
	}
	if unsigned {
		cfg.Session.Signed = false
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rep, err := probe(ctx, cfg, pings, logger)
	if err != nil {
		return err
	}
	ev := logger.Info().Str("conn", rep.ConnID).Bool("signed", rep.Signed).Str("reply", rep.Reply).
		Str("code", rep.Code).Uint32("chunk_size", rep.ChunkSize)
	for i, d := range rep.Pings {
		ev = ev.Dur(fmt.Sprintf("ping_%d", i+1), d)
	}
	ev.Msg("probe complete")
	if rep.Reply != "_result" {
		return fmt.Errorf("connect rejected: %s %s", rep.Reply, rep.Code)
	}
	return nil
}
