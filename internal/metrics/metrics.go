// Package metrics provides Prometheus instrumentation for the commitment engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CommitmentsTotal counts placed commitments, partitioned by side.
	CommitmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "openlobby_commitments_total",
		Help: "Total number of commitments placed",
	}, []string{"side"})

	// CommitmentRejections counts rejected placements by reason.
	CommitmentRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "openlobby_commitment_rejections_total",
		Help: "Commitments rejected, by reason",
	}, []string{"reason"})

	// ResolutionsTotal counts bill resolutions by outcome.
	ResolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "openlobby_resolutions_total",
		Help: "Bills resolved, by outcome",
	}, []string{"outcome"})

	// SettlementsTotal counts completed settlements.
	SettlementsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "openlobby_settlements_total",
		Help: "Bills settled",
	})

	// ClaimsTotal counts successful claim payouts.
	ClaimsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "openlobby_claims_total",
		Help: "Claims paid out",
	})

	// ClaimFailures counts failed payout transfers during claims.
	ClaimFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "openlobby_claim_failures_total",
		Help: "Claim payouts that failed and remain retryable",
	})

	// EscrowedPool tracks the total value currently held in escrow.
	EscrowedPool = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "openlobby_escrowed_pool_base_units",
		Help: "Total value held in the escrow pool, in base units",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "openlobby_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "openlobby_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "openlobby_http_request_duration_seconds",
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

		// Use the raw path for the label; the API surface is small enough
		// that cardinality stays bounded.
		path := r.URL.Path
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
