// Package metrics exposes Prometheus instrumentation for the pharmacy service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ReceiptsTotal counts stock receipt operations.
	ReceiptsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pharmacy_stock_receipts_total",
			Help: "Total number of stock receipt operations",
		},
	)

	// ConsumptionsTotal counts recorded consumption events by kind.
	ConsumptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pharmacy_stock_consumptions_total",
			Help: "Total number of recorded consumption events",
		},
		[]string{"kind"},
	)

	// InsufficientStockTotal counts decrements rejected for insufficient stock.
	InsufficientStockTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pharmacy_stock_insufficient_total",
			Help: "Total number of decrements rejected for insufficient stock",
		},
	)

	// ExpiryFlaggedTotal counts batches moved to the expiry register by sweeps.
	ExpiryFlaggedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pharmacy_expiry_flagged_total",
			Help: "Total number of batches flagged into the expiry register",
		},
	)

	// ArchivedTotal counts exhausted batches archived into stock history.
	ArchivedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pharmacy_stock_archived_total",
			Help: "Total number of exhausted batches archived",
		},
	)

	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pharmacy_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		ReceiptsTotal,
		ConsumptionsTotal,
		InsufficientStockTotal,
		ExpiryFlaggedTotal,
		ArchivedTotal,
		requestDuration,
	)
}

// Middleware records request durations for all HTTP handlers.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		requestDuration.
			WithLabelValues(r.Method, strconv.Itoa(wrapped.statusCode)).
			Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	statusCode int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.statusCode = code
	sw.ResponseWriter.WriteHeader(code)
}
