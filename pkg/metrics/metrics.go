package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lens_build_info",
			Help: "Build information of the mortality analytics API",
		},
		[]string{"version", "commit", "date"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lens_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lens_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lens_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	DatasetRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lens_dataset_refresh_total",
			Help: "Total number of dataset refreshes",
		},
		[]string{"status"},
	)

	DatasetRefreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lens_dataset_refresh_duration_seconds",
			Help:    "Duration of dataset refreshes",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~41s
		},
	)

	DatasetRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lens_dataset_records",
			Help: "Number of records in the currently loaded dataset",
		},
	)
)

// Middleware returns a chi middleware that records HTTP metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		HTTPRequestsInFlight.Inc()
		defer HTTPRequestsInFlight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		// Use the route pattern if available so per-path label cardinality
		// stays bounded.
		path := chi.RouteContext(r.Context()).RoutePattern()
		if path == "" {
			path = r.URL.Path
		}

		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(ww.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// RecordDatasetRefresh records the outcome of a dataset refresh.
func RecordDatasetRefresh(duration time.Duration, records int, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	DatasetRefreshTotal.WithLabelValues(status).Inc()
	DatasetRefreshDuration.Observe(duration.Seconds())
	if err == nil {
		DatasetRecords.Set(float64(records))
	}
}
