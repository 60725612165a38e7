package config

import (
	"fmt"
	"os"
	"strings"
)

// Template returns a commented starter config for a binary.
func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "server", "streamwired":
		return serverTemplate, nil
	case "probe", "streamprobe":
		return probeTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const serverTemplate = `[server]
listen_addr = ":1935"

[session]
handshake_timeout = "5s"
read_timeout = "30s"
write_timeout = "15s"
chunk_size = 4096
window_ack_size = 2500000
peer_bandwidth = 2500000
security_mode = "development"
tls_enabled = false
# tls_cert_file = "/etc/streamwire/server.crt"
# tls_key_file = "/etc/streamwire/server.key"

[limits]
max_message_length = 16777215
max_pending_streams = 64

[metrics]
enabled = true
addr = ":9935"
path = "/metrics"
`

const probeTemplate = `[client]
addr = "127.0.0.1:1935"
app = "live"
signed = true
dial_attempts = 5

[session]
handshake_timeout = "5s"
read_timeout = "10s"
chunk_size = 4096
security_mode = "development"
tls_enabled = false
# tls_ca_file = "/etc/streamwire/ca.crt"
# tls_server_name = "localhost"
`
