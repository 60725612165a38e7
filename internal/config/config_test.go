package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danmuck/streamwire/internal/protocol/chunk"
	"github.com/danmuck/streamwire/internal/protocol/session"
	"github.com/danmuck/streamwire/internal/testutil/testlog"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadOverlaysDefinedKeys(t *testing.T) {
	testlog.Start(t)
	path := writeConfig(t, `
[server]
listen_addr = "127.0.0.1:19350"

[client]
signed = false
dial_attempts = 2

[session]
handshake_timeout = "750ms"
chunk_size = 60000
security_mode = "Production"
tls_enabled = true
tls_cert_file = " /etc/streamwire/server.crt "

[limits]
max_pending_streams = 8

[metrics]
enabled = true
path = "/m"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	def := Default()
	if cfg.Server.ListenAddr != "127.0.0.1:19350" {
		t.Fatalf("listen addr=%q", cfg.Server.ListenAddr)
	}
	if cfg.Client.Addr != def.Client.Addr || cfg.Client.App != def.Client.App {
		t.Fatalf("undefined client keys changed: %+v", cfg.Client)
	}
	if cfg.Session.Signed {
		t.Fatalf("signed should be overridden to false")
	}
	if cfg.Session.Backoff.MaxAttempts != 2 || cfg.Session.Backoff.InitialDelay != def.Session.Backoff.InitialDelay {
		t.Fatalf("backoff=%+v", cfg.Session.Backoff)
	}
	if cfg.Session.HandshakeTimeout != 750*time.Millisecond || cfg.Session.ReadTimeout != def.Session.ReadTimeout {
		t.Fatalf("timeouts hs=%v read=%v", cfg.Session.HandshakeTimeout, cfg.Session.ReadTimeout)
	}
	if cfg.Session.ChunkSize != 60000 {
		t.Fatalf("chunk size=%d", cfg.Session.ChunkSize)
	}
	if session.NormalizeSecurityMode(cfg.Session.SecurityMode) != session.SecurityModeProduction {
		t.Fatalf("security mode=%q", cfg.Session.SecurityMode)
	}
	if !cfg.Session.TLS.Enabled || cfg.Session.TLS.CertFile != "/etc/streamwire/server.crt" {
		t.Fatalf("tls=%+v", cfg.Session.TLS)
	}
	want := chunk.DefaultLimits()
	want.MaxPendingStreams = 8
	if cfg.Session.Limits != want {
		t.Fatalf("limits=%+v", cfg.Session.Limits)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Path != "/m" || cfg.Metrics.Addr != def.Metrics.Addr {
		t.Fatalf("metrics=%+v", cfg.Metrics)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	testlog.Start(t)
	cases := map[string]string{
		"duration":     "[session]\nread_timeout = \"soon\"\n",
		"chunk size":   "[session]\nchunk_size = 0\n",
		"unknown key":  "[session]\nchunk_sise = 128\n",
		"metrics path": "[metrics]\nenabled = true\npath = \"metrics\"\n",
		"limits":       "[limits]\nmax_message_length = 16777216\n",
	}
	for name, content := range cases {
		if _, err := Load(writeConfig(t, content)); !errors.Is(err, ErrInvalid) {
			t.Fatalf("%s: expected ErrInvalid, got %v", name, err)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	testlog.Start(t)
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestTemplatesLoad(t *testing.T) {
	testlog.Start(t)
	for _, kind := range []string{"server", "probe"} {
		path := filepath.Join(t.TempDir(), kind+".toml")
		if err := WriteTemplate(path, kind, false); err != nil {
			t.Fatalf("%s: write template: %v", kind, err)
		}
		if err := WriteTemplate(path, kind, false); err == nil {
			t.Fatalf("%s: expected refusal to overwrite", kind)
		}
		if _, err := Load(path); err != nil {
			t.Fatalf("%s: template does not load: %v", kind, err)
		}
	}
	if _, err := Template("mirage"); err == nil {
		t.Fatalf("expected unknown kind error")
	}
}
