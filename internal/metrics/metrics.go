package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waba_admin_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "waba_admin_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	// Upstream failures by route, counted where the handler maps them to 5xx.
	UpstreamErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waba_admin_upstream_errors_total",
			Help: "Total upstream failures surfaced to callers",
		},
		[]string{"route"},
	)

	// Inbox sync metrics
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waba_admin_inbox_cache_lookups_total",
			Help: "Inbox cache lookups",
		},
		[]string{"kind", "result"}, // kind: contacts|messages, result: hit|miss|expired
	)

	SendOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waba_admin_inbox_send_outcomes_total",
			Help: "Optimistic send outcomes",
		},
		[]string{"outcome"}, // confirmed|rolled_back
	)
)
