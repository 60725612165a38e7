package main

import (
	"github.com/danmuck/streamwire/internal/config"
	"github.com/spf13/pflag"
)

type options struct {
	configPath  string
	listen      string
	chunkSize   uint32
	metrics     bool
	metricsAddr string
	writeConfig string
	force       bool
	help        bool
}

func newFlagSet(opts *options) *pflag.FlagSet {
	fs := pflag.NewFlagSet("streamwired", pflag.ContinueOnError)
	fs.StringVarP(&opts.configPath, "config", "c", "", "path to config.toml (defaults apply when empty)")
	fs.StringVarP(&opts.listen, "listen", "l", "", "listen address, overrides server.listen_addr")
	fs.Uint32Var(&opts.chunkSize, "chunk-size", 0, "outbound chunk size announced after the handshake")
	fs.BoolVar(&opts.metrics, "metrics", false, "serve prometheus metrics")
	fs.StringVar(&opts.metricsAddr, "metrics-addr", "", "metrics listen address, overrides metrics.addr")
	fs.StringVar(&opts.writeConfig, "write-config", "", "write a starter config to this path and exit")
	fs.BoolVar(&opts.force, "force", false, "overwrite an existing file with --write-config")
	fs.BoolVarP(&opts.help, "help", "h", false, "show help")
	return fs
}

// resolveConfig loads the config file, if any, and applies flags the user
// set explicitly.
func resolveConfig(opts options, fs *pflag.FlagSet) (config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}
	if fs.Changed("listen") {
		cfg.Server.ListenAddr = opts.listen
	}
	if fs.Changed("chunk-size") {
		cfg.Session.ChunkSize = opts.chunkSize
	}
	if fs.Changed("metrics") {
		cfg.Metrics.Enabled = opts.metrics
	}
	if fs.Changed("metrics-addr") {
		cfg.Metrics.Addr = opts.metricsAddr
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}
