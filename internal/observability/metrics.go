package observability

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	registerOnce sync.Once

	handshakes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "streamwire",
			Subsystem: "handshake",
			Name:      "total",
			Help:      "Completed or failed handshakes.",
		},
		[]string{"role", "signed", "result"},
	)
	handshakeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "streamwire",
			Subsystem: "handshake",
			Name:      "duration_seconds",
			Help:      "Handshake duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"role"},
	)
	messages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "streamwire",
			Subsystem: "chunk",
			Name:      "messages_total",
			Help:      "Messages reassembled or disassembled.",
		},
		[]string{"direction", "type"},
	)
	messageBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "streamwire",
			Subsystem: "chunk",
			Name:      "payload_bytes_total",
			Help:      "Message payload bytes.",
		},
		[]string{"direction"},
	)
	protocolErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "streamwire",
			Subsystem: "session",
			Name:      "protocol_errors_total",
			Help:      "Connections closed on a protocol error.",
		},
		[]string{"kind"},
	)
	acknowledgements = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "streamwire",
			Subsystem: "session",
			Name:      "acknowledgements_sent_total",
			Help:      "Acknowledgement messages sent after a full receive window.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(handshakes, handshakeDuration, messages, messageBytes, protocolErrors, acknowledgements)
	})
}

func RecordHandshake(role string, signed bool, err error, duration time.Duration) {
	RegisterMetrics()
	result := "ok"
	if err != nil {
		result = "error"
	}
	handshakes.WithLabelValues(role, strconv.FormatBool(signed), result).Inc()
	handshakeDuration.WithLabelValues(role).Observe(duration.Seconds())
}

// RecordMessage counts one message. direction is "in" or "out".
func RecordMessage(direction, messageType string, size int) {
	RegisterMetrics()
	messages.WithLabelValues(direction, messageType).Inc()
	messageBytes.WithLabelValues(direction).Add(float64(size))
}

func RecordProtocolError(kind string) {
	RegisterMetrics()
	protocolErrors.WithLabelValues(kind).Inc()
}

func RecordAcknowledgement() {
	RegisterMetrics()
	acknowledgements.Inc()
}

// ServeMetrics exposes the default registry on addr until ctx is done.
func ServeMetrics(ctx context.Context, addr, path string) error {
	RegisterMetrics()
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Str("path", path).Msg("metrics listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
