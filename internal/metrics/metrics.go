// Package metrics exposes Prometheus instrumentation for HTTP traffic,
// catalog size, and storage footprint.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apkvault_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "apkvault_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		},
		[]string{"method", "path"},
	)

	appsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "apkvault_apps_total",
		Help: "Total number of packages in the catalog",
	})

	appVersionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "apkvault_app_versions_total",
		Help: "Total number of versions across the catalog",
	})

	storageBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "homelab_storage_bytes",
			Help: "Storage usage in bytes",
		},
		[]string{"service", "path"},
	)
)

// Middleware records per-request counters and latency histograms,
// labelled with the request path as templated by normalizePath (not the
// router's matched route). cmd/server wraps the router with it, inside
// the logging middleware.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusCapturingWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		path := normalizePath(r.URL.Path)

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rw.status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration.Seconds())
	})
}

type statusCapturingWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusCapturingWriter) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusCapturingWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

// normalizePath collapses path parameters into their route template so
// high-cardinality labels (package names, version codes) never reach
// Prometheus: /apps/com.example.app/versions/42/download becomes
// /apps/:package_name/versions/:version_code/download.
func normalizePath(path string) string {
	segments := strings.Split(path, "/")
	result := make([]string, 0, len(segments))

	for i := 0; i < len(segments); i++ {
		segment := segments[i]

		if segment == "apps" && i+1 < len(segments) {
			result = append(result, "apps")
			next := segments[i+1]
			if next != "" && next != "admin" {
				result = append(result, ":package_name")
				i++
				continue
			}
		}

		if segment == "versions" && i+1 < len(segments) {
			result = append(result, "versions")
			next := segments[i+1]
			if next != "" && isDigits(next) {
				result = append(result, ":version_code")
				i++
				continue
			}
		}

		result = append(result, segment)
	}

	return strings.Join(result, "/")
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Handler serves the registered collectors in the Prometheus text
// exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
