package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PEEL_TIME         = "envelopePeelTime"
	ENVELOPE_COUNT    = "envelopeCounter"
	ENVELOPE_SIZE     = "envelopeSize"
	MESSAGES_SENT     = "messagesSent"
	MESSAGES_RECEIVED = "messagesReceived"
)

// Outcomes of a relay processing one envelope, used as the ENVELOPE_COUNT label.
const (
	FORWARDED    = "forwarded"
	MALFORMED    = "malformed"
	UNRESOLVABLE = "unresolvable"
)

var collectors = map[string]prometheus.Collector{
	PEEL_TIME: prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    PEEL_TIME,
		Help:    "Time taken by a relay to peel one envelope layer, in seconds",
		Buckets: prometheus.DefBuckets,
	}),
	ENVELOPE_COUNT: prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: ENVELOPE_COUNT,
			Help: "Number of envelopes processed by relays, labeled by outcome",
		},
		[]string{"outcome"},
	),
	ENVELOPE_SIZE: prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    ENVELOPE_SIZE,
		Help:    "Size in bytes of envelopes sent over the wire",
		Buckets: prometheus.ExponentialBuckets(256, 2, 10),
	}),
	MESSAGES_SENT: prometheus.NewCounter(prometheus.CounterOpts{
		Name: MESSAGES_SENT,
		Help: "Number of onion messages sent by users",
	}),
	MESSAGES_RECEIVED: prometheus.NewCounter(prometheus.CounterOpts{
		Name: MESSAGES_RECEIVED,
		Help: "Number of plaintext messages delivered to users",
	}),
}

func Observe(id string, value float64) {
	if collector, ok := collectors[id].(prometheus.Observer); ok {
		collector.Observe(value)
	} else {
		slog.Error("Failed to find observer", "id", id)
	}
}

func Inc(id string, labels ...string) {
	if len(labels) == 0 {
		if collector, ok := collectors[id].(prometheus.Counter); ok {
			collector.Inc()
		} else {
			slog.Error("Failed to find counter", "id", id)
		}
		return
	}
	if collector, ok := collectors[id].(*prometheus.CounterVec); ok {
		collector.WithLabelValues(labels...).Inc()
	} else {
		slog.Error("Failed to find counterVec", "id", id)
	}
}

// Register adds the given collectors to the default registry. Registering the same
// collector twice (several parties in one process) is not an error.
func Register(collectorIds ...string) {
	for _, id := range collectorIds {
		collector, ok := collectors[id]
		if !ok {
			slog.Error("Failed to find collector", "id", id)
			continue
		}
		if err := prometheus.Register(collector); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				slog.Error("Failed to register collector", "id", id, "err", err)
			}
		}
	}
}

// ServeMetrics exposes /metrics on prometheusPort and returns a function that shuts the
// server down.
func ServeMetrics(prometheusPort int, collectorIds ...string) (shutdown func()) {
	Register(collectorIds...)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", prometheusPort),
		Handler: mux,
	}

	go func(server *http.Server) {
		slog.Info("Starting Prometheus server", "Addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Failed to start Prometheus server", "err", err)
		}
	}(server)

	return func() {
		slog.Info("Shutting down Prometheus server...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			slog.Error("Prometheus server forced to shutdown", "err", err)
		} else {
			slog.Info("Prometheus server gracefully stopped")
		}
	}
}
