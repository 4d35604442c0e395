// Package metrics provides Prometheus instrumentation for the deck engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// DrawsTotal counts cards drawn, partitioned by tier and source.
	DrawsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sdc_draws_total",
		Help: "Total number of cards drawn",
	}, []string{"tier", "source"})

	// DrawLatency tracks draw execution latency by source.
	DrawLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sdc_draw_latency_seconds",
		Help:    "Draw execution latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"source"})

	// ScoreGained accumulates score awarded across all draws.
	ScoreGained = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sdc_score_gained_total",
		Help: "Cumulative score awarded by draws",
	})

	// UpgradePurchases counts upgrade purchases by type.
	UpgradePurchases = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sdc_upgrade_purchases_total",
		Help: "Total upgrade purchases",
	}, []string{"type"})

	// OfflineClaims counts offline progression claims.
	OfflineClaims = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sdc_offline_claims_total",
		Help: "Total offline progression claims",
	})

	// OfflineDecksOpened counts decks consumed by offline progression.
	OfflineDecksOpened = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sdc_offline_decks_opened_total",
		Help: "Decks opened by the offline simulator",
	})

	// CatalogReloads counts successful catalog hot reloads.
	CatalogReloads = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sdc_catalog_reloads_total",
		Help: "Successful card catalog reloads",
	})

	// RateLimitRejections counts draws rejected by the per-player limiter.
	RateLimitRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sdc_rate_limit_rejections_total",
		Help: "Draw requests rejected by the rate limiter",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sdc_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sdc_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sdc_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the route pattern for the path label; player IDs in raw
		// paths would blow up cardinality.
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
