package session

import (
	"context"
	"crypto/tls"
	"fmt"
	"math"
	"math/rand"
	"net"
	"time"

	"github.com/rs/zerolog"
)

// NextBackoffDelay returns the retry delay for attempt N (1-based).
func NextBackoffDelay(cfg BackoffConfig, attempt int, rng *rand.Rand) time.Duration {
	if attempt <= 1 || cfg.InitialDelay <= 0 {
		return max(cfg.InitialDelay, 0)
	}
	mult := math.Max(cfg.Multiplier, 1.0)
	delay := float64(cfg.InitialDelay) * math.Pow(mult, float64(attempt-1))
	if cfg.MaxDelay > 0 {
		delay = math.Min(delay, float64(cfg.MaxDelay))
	}
	if cfg.Jitter {
		f := 0.5
		if rng != nil {
			f += rng.Float64()
		}
		delay *= f
	}
	return time.Duration(delay)
}

// Dial connects to addr as the initiator, retrying per cfg.Backoff. TLS is
// layered on when enabled. The handshake is left to the caller.
func Dial(ctx context.Context, addr string, cfg Config, logger zerolog.Logger) (*Conn, error) {
	cfg = cfg.WithDefaults()
	tlsCfg, err := cfg.ClientTLS()
	if err != nil {
		return nil, err
	}
	attempts := max(cfg.Backoff.MaxAttempts, 1)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	dialer := &net.Dialer{Timeout: cfg.HandshakeTimeout}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		nc, err := dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			if tlsCfg != nil {
				nc = tls.Client(nc, tlsCfg)
			}
			return NewConn(nc, RoleClient, cfg, logger), nil
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		delay := NextBackoffDelay(cfg.Backoff, attempt, rng)
		logger.Warn().Err(err).Str("addr", addr).Int("attempt", attempt).Dur("retry_in", delay).Msg("session dial failed")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, fmt.Errorf("session: dial %s after %d attempts: %w", addr, attempts, lastErr)
}

// Listen opens a responder listener, wrapped in TLS when enabled.
func Listen(addr string, cfg Config) (net.Listener, error) {
	tlsCfg, err := cfg.WithDefaults().ServerTLS()
	if err != nil {
		return nil, err
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	if tlsCfg != nil {
		ln = tls.NewListener(ln, tlsCfg)
	}
	return ln, nil
}
