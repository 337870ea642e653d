package metrics

import (
	"log"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	RegisterRequestsTotal metric.Int64Counter
	AuthRequestsTotal     metric.Int64Counter
	WineOpsTotal          metric.Int64Counter
	LiveConnections       metric.Int64UpDownCounter
	BroadcastsTotal       metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// Get returns the global metric instruments, creating them on first use from
// the globally configured MeterProvider.
func Get() *AppMetrics {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("wine-rater")
		var err error
		m := &AppMetrics{}

		m.RegisterRequestsTotal, err = meter.Int64Counter(
			"register_requests_total",
			metric.WithDescription("Total number of register requests completed"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create register_requests_total: %v", err)
		}

		m.AuthRequestsTotal, err = meter.Int64Counter(
			"auth_requests_total",
			metric.WithDescription("Total number of authenticate requests completed"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create auth_requests_total: %v", err)
		}

		m.WineOpsTotal, err = meter.Int64Counter(
			"wine_operations_total",
			metric.WithDescription("Total number of wine collection operations"),
			metric.WithUnit("{operation}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create wine_operations_total: %v", err)
		}

		m.LiveConnections, err = meter.Int64UpDownCounter(
			"session_live_connections",
			metric.WithDescription("Currently open tasting session websocket connections"),
			metric.WithUnit("{connection}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create session_live_connections: %v", err)
		}

		m.BroadcastsTotal, err = meter.Int64Counter(
			"session_broadcasts_total",
			metric.WithDescription("Total number of session events broadcast to live connections"),
			metric.WithUnit("{event}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create session_broadcasts_total: %v", err)
		}

		appMetrics = m
	})
	return appMetrics
}

// InitProvider wires the Prometheus exporter into the global MeterProvider and
// returns an HTTP server exposing /metrics on addr. The caller owns the
// server's lifecycle.
func InitProvider(addr string, logger *slog.Logger) (*http.Server, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, err
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(mp)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Info("Prometheus metrics endpoint configured", slog.String("address", addr))
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}, nil
}
