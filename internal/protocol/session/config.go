package session

import (
	"time"

	"github.com/danmuck/streamwire/internal/protocol/chunk"
)

// BackoffConfig defines dial retry behavior.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
	MaxAttempts  int
}

type SecurityMode string

const (
	SecurityModeDevelopment SecurityMode = "development"
	SecurityModeProduction  SecurityMode = "production"
)

// TLSConfig wraps the connection in TLS before the handshake.
type TLSConfig struct {
	Enabled            bool
	Mutual             bool
	CertFile           string
	KeyFile            string
	CAFile             string
	ServerName         string
	InsecureSkipVerify bool
}

// Config defines connection defaults for both roles.
type Config struct {
	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	// Signed selects the digest-carrying handshake when initiating.
	Signed bool
	// ChunkSize is announced to the peer after the handshake.
	ChunkSize     uint32
	WindowAckSize uint32
	PeerBandwidth uint32
	Limits        chunk.Limits
	Backoff       BackoffConfig
	SecurityMode  SecurityMode
	TLS           TLSConfig
}

func DefaultConfig() Config {
	return Config{
		HandshakeTimeout: 5 * time.Second,
		ReadTimeout:      30 * time.Second,
		WriteTimeout:     15 * time.Second,
		Signed:           true,
		ChunkSize:        4096,
		WindowAckSize:    chunk.DefaultWindowAckSize,
		PeerBandwidth:    chunk.DefaultPeerBandwidth,
		Limits:           chunk.DefaultLimits(),
		Backoff: BackoffConfig{
			InitialDelay: 250 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     5 * time.Second,
			Jitter:       true,
			MaxAttempts:  5,
		},
		SecurityMode: SecurityModeDevelopment,
	}
}

// WithDefaults fills zero fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = def.ReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = def.ChunkSize
	}
	if c.WindowAckSize == 0 {
		c.WindowAckSize = def.WindowAckSize
	}
	if c.PeerBandwidth == 0 {
		c.PeerBandwidth = def.PeerBandwidth
	}
	if c.Limits == (chunk.Limits{}) {
		c.Limits = def.Limits
	}
	if c.Backoff == (BackoffConfig{}) {
		c.Backoff = def.Backoff
	}
	c.SecurityMode = NormalizeSecurityMode(c.SecurityMode)
	return c
}
