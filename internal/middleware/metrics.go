package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"waba-admin/internal/metrics"
)

// statusWriter wraps http.ResponseWriter to capture status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

// Metrics returns middleware that records Prometheus metrics. apiRoutes are
// the paths served under /api; other /api paths share one label.
func Metrics(apiRoutes []string) func(http.Handler) http.Handler {
	known := make(map[string]bool, len(apiRoutes))
	for _, p := range apiRoutes {
		known[strings.TrimSuffix(strings.ToLower(p), "/")] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			path := normalizePath(r.URL.Path, known)
			metrics.HTTPRequestsTotal.WithLabelValues(
				r.Method, path, strconv.Itoa(wrapped.status),
			).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(
				r.Method, path,
			).Observe(time.Since(start).Seconds())
		})
	}
}

// normalizePath keeps the metric label set bounded.
func normalizePath(path string, apiRoutes map[string]bool) string {
	path = strings.TrimSuffix(strings.ToLower(path), "/")
	switch {
	case path == "":
		return "/"
	case path == "/health" || path == "/metrics":
		return path
	case apiRoutes[path]:
		return path
	case path == "/api" || strings.HasPrefix(path, "/api/"):
		return "/api/:other"
	}
	return "/:other"
}
