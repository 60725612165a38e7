package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/streamwire/internal/protocol/chunk"
	"github.com/danmuck/streamwire/internal/protocol/session"
)

var ErrInvalid = errors.New("config: invalid")

type ServerConfig struct {
	ListenAddr string
}

type ClientConfig struct {
	Addr string
	// App is the application name sent in the probe's connect command.
	App string
}

type MetricsConfig struct {
	Enabled bool
	Addr    string
	Path    string
}

// Config is the runtime configuration shared by streamwired and streamprobe.
type Config struct {
	Server  ServerConfig
	Client  ClientConfig
	Session session.Config
	Metrics MetricsConfig
}

func Default() Config {
	return Config{
		Server:  ServerConfig{ListenAddr: ":1935"},
		Client:  ClientConfig{Addr: "127.0.0.1:1935", App: "live"},
		Session: session.DefaultConfig(),
		Metrics: MetricsConfig{Addr: ":9935", Path: "/metrics"},
	}
}

// config.toml key mapping. Durations are strings in time.ParseDuration form.
type fileConfig struct {
	Server struct {
		ListenAddr string `toml:"listen_addr"`
	} `toml:"server"`
	Client struct {
		Addr         string `toml:"addr"`
		App          string `toml:"app"`
		Signed       bool   `toml:"signed"`
		DialAttempts int    `toml:"dial_attempts"`
	} `toml:"client"`
	Session struct {
		HandshakeTimeout   string `toml:"handshake_timeout"`
		ReadTimeout        string `toml:"read_timeout"`
		WriteTimeout       string `toml:"write_timeout"`
		ChunkSize          uint32 `toml:"chunk_size"`
		WindowAckSize      uint32 `toml:"window_ack_size"`
		PeerBandwidth      uint32 `toml:"peer_bandwidth"`
		SecurityMode       string `toml:"security_mode"`
		TLSEnabled         bool   `toml:"tls_enabled"`
		TLSMutual          bool   `toml:"tls_mutual"`
		TLSCertFile        string `toml:"tls_cert_file"`
		TLSKeyFile         string `toml:"tls_key_file"`
		TLSCAFile          string `toml:"tls_ca_file"`
		TLSServerName      string `toml:"tls_server_name"`
		InsecureSkipVerify bool   `toml:"tls_insecure_skip_verify"`
	} `toml:"session"`
	Limits struct {
		MaxMessageLength    uint32 `toml:"max_message_length"`
		MaxPendingPerStream int    `toml:"max_pending_per_stream"`
		MaxPendingStreams   int    `toml:"max_pending_streams"`
	} `toml:"limits"`
	Metrics struct {
		Enabled bool   `toml:"enabled"`
		Addr    string `toml:"addr"`
		Path    string `toml:"path"`
	} `toml:"metrics"`
}

// Load decodes path and overlays the keys it defines on Default.
func Load(path string) (Config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("%w: unknown key %q in %s", ErrInvalid, undecoded[0].String(), path)
	}
	cfg, err := overlay(Default(), raw, meta)
	if err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func overlay(cfg Config, raw fileConfig, meta toml.MetaData) (Config, error) {
	if meta.IsDefined("server", "listen_addr") {
		cfg.Server.ListenAddr = strings.TrimSpace(raw.Server.ListenAddr)
	}
	if meta.IsDefined("client", "addr") {
		cfg.Client.Addr = strings.TrimSpace(raw.Client.Addr)
	}
	if meta.IsDefined("client", "app") {
		cfg.Client.App = strings.TrimSpace(raw.Client.App)
	}
	if meta.IsDefined("client", "signed") {
		cfg.Session.Signed = raw.Client.Signed
	}
	if meta.IsDefined("client", "dial_attempts") {
		cfg.Session.Backoff.MaxAttempts = raw.Client.DialAttempts
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"handshake_timeout", raw.Session.HandshakeTimeout, &cfg.Session.HandshakeTimeout},
		{"read_timeout", raw.Session.ReadTimeout, &cfg.Session.ReadTimeout},
		{"write_timeout", raw.Session.WriteTimeout, &cfg.Session.WriteTimeout},
	}
	for _, d := range durations {
		if !meta.IsDefined("session", d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return Config{}, fmt.Errorf("%w: session.%s: %w", ErrInvalid, d.key, err)
		}
		*d.dst = v
	}

	if meta.IsDefined("session", "chunk_size") {
		cfg.Session.ChunkSize = raw.Session.ChunkSize
	}
	if meta.IsDefined("session", "window_ack_size") {
		cfg.Session.WindowAckSize = raw.Session.WindowAckSize
	}
	if meta.IsDefined("session", "peer_bandwidth") {
		cfg.Session.PeerBandwidth = raw.Session.PeerBandwidth
	}
	if meta.IsDefined("session", "security_mode") {
		cfg.Session.SecurityMode = session.SecurityMode(strings.TrimSpace(raw.Session.SecurityMode))
	}
	if meta.IsDefined("session", "tls_enabled") {
		cfg.Session.TLS.Enabled = raw.Session.TLSEnabled
	}
	if meta.IsDefined("session", "tls_mutual") {
		cfg.Session.TLS.Mutual = raw.Session.TLSMutual
	}
	if meta.IsDefined("session", "tls_cert_file") {
		cfg.Session.TLS.CertFile = strings.TrimSpace(raw.Session.TLSCertFile)
	}
	if meta.IsDefined("session", "tls_key_file") {
		cfg.Session.TLS.KeyFile = strings.TrimSpace(raw.Session.TLSKeyFile)
	}
	if meta.IsDefined("session", "tls_ca_file") {
		cfg.Session.TLS.CAFile = strings.TrimSpace(raw.Session.TLSCAFile)
	}
	if meta.IsDefined("session", "tls_server_name") {
		cfg.Session.TLS.ServerName = strings.TrimSpace(raw.Session.TLSServerName)
	}
	if meta.IsDefined("session", "tls_insecure_skip_verify") {
		cfg.Session.TLS.InsecureSkipVerify = raw.Session.InsecureSkipVerify
	}

	if meta.IsDefined("limits", "max_message_length") {
		cfg.Session.Limits.MaxMessageLength = raw.Limits.MaxMessageLength
	}
	if meta.IsDefined("limits", "max_pending_per_stream") {
		cfg.Session.Limits.MaxPendingPerStream = raw.Limits.MaxPendingPerStream
	}
	if meta.IsDefined("limits", "max_pending_streams") {
		cfg.Session.Limits.MaxPendingStreams = raw.Limits.MaxPendingStreams
	}

	if meta.IsDefined("metrics", "enabled") {
		cfg.Metrics.Enabled = raw.Metrics.Enabled
	}
	if meta.IsDefined("metrics", "addr") {
		cfg.Metrics.Addr = strings.TrimSpace(raw.Metrics.Addr)
	}
	if meta.IsDefined("metrics", "path") {
		cfg.Metrics.Path = strings.TrimSpace(raw.Metrics.Path)
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail late at runtime.
// Transport settings are checked per role by the binaries.
func (c Config) Validate() error {
	s := c.Session
	switch {
	case s.ChunkSize == 0 || s.ChunkSize > chunk.MaxChunkSize:
		return fmt.Errorf("%w: session.chunk_size %d out of range 1..%d", ErrInvalid, s.ChunkSize, chunk.MaxChunkSize)
	case s.HandshakeTimeout <= 0:
		return fmt.Errorf("%w: session.handshake_timeout must be positive", ErrInvalid)
	case s.ReadTimeout < 0 || s.WriteTimeout < 0:
		return fmt.Errorf("%w: session timeouts must not be negative", ErrInvalid)
	case s.Limits.MaxMessageLength > chunk.MaxMessageLength:
		return fmt.Errorf("%w: limits.max_message_length exceeds %d", ErrInvalid, chunk.MaxMessageLength)
	case s.Limits.MaxPendingPerStream < 0 || s.Limits.MaxPendingStreams < 0:
		return fmt.Errorf("%w: limits must not be negative", ErrInvalid)
	case s.Backoff.MaxAttempts < 0:
		return fmt.Errorf("%w: client.dial_attempts must not be negative", ErrInvalid)
	}
	if c.Metrics.Enabled {
		if c.Metrics.Addr == "" {
			return fmt.Errorf("%w: metrics.addr required when metrics are enabled", ErrInvalid)
		}
		if !strings.HasPrefix(c.Metrics.Path, "/") {
			return fmt.Errorf("%w: metrics.path %q must start with /", ErrInvalid, c.Metrics.Path)
		}
	}
	return nil
}
