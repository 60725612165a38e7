package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/danmuck/streamwire/internal/config"
	"github.com/danmuck/streamwire/internal/observability"
	"github.com/danmuck/streamwire/internal/protocol/session"
	"github.com/spf13/pflag"
)

func defaultPath(kind string) (string, error) {
	switch kind {
	case "server":
		return "cmd/streamwired/config.toml", nil
	case "probe":
		return "cmd/streamprobe/config.toml", nil
	default:
		return "", fmt.Errorf("unknown kind: %s", kind)
	}
}

func main() {
	fs := pflag.NewFlagSet("configgen", pflag.ContinueOnError)
	kind := fs.String("kind", "server", "config kind: server|probe")
	output := fs.StringP("output", "o", "", "output path for config template")
	validate := fs.Bool("validate", false, "validate an existing config file")
	input := fs.StringP("input", "i", "", "config path for validation (defaults to per-kind cmd path)")
	force := fs.Bool("force", false, "overwrite existing config file")
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "configgen: %v\n", err)
		os.Exit(2)
	}
	logger := observability.InitLogger("configgen")

	if *validate {
		path := *input
		if path == "" {
			p, err := defaultPath(*kind)
			if err != nil {
				logger.Fatal().Err(err).Send()
			}
			path = p
		}
		cfg, err := config.Load(path)
		if err != nil {
			logger.Fatal().Err(err).Str("path", path).Msg("invalid config")
		}
		if err := validateTransport(*kind, cfg.Session); err != nil {
			logger.Fatal().Err(err).Str("path", path).Msg("invalid transport settings")
		}
		logger.Info().Str("kind", *kind).Str("path", path).Msg("validated config")
		return
	}

	target := *output
	if target == "" {
		p, err := defaultPath(*kind)
		if err != nil {
			logger.Fatal().Err(err).Send()
		}
		target = p
	}
	if err := config.WriteTemplate(target, *kind, *force); err != nil {
		logger.Fatal().Err(err).Send()
	}
	logger.Info().Str("kind", *kind).Str("path", target).Msg("wrote config template")
}

func validateTransport(kind string, cfg session.Config) error {
	if kind == "probe" {
		return cfg.ValidateClientTransport()
	}
	return cfg.ValidateServerTransport()
}
