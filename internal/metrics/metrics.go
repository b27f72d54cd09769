// Package metrics holds the Prometheus metrics exported at /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the server
type Metrics struct {
	registry *prometheus.Registry

	SignIns        *prometheus.CounterVec
	TokenRefreshes *prometheus.CounterVec
	AdminDecisions *prometheus.CounterVec
	JobsEnqueued   *prometheus.CounterVec
	HTTPRequests   *prometheus.CounterVec
	HTTPDuration   *prometheus.HistogramVec
	StorageUploads *prometheus.CounterVec
}

// New creates the metrics on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		SignIns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "schoolhub_sign_ins_total",
			Help: "Password sign-in attempts by result",
		}, []string{"result"}),
		TokenRefreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "schoolhub_token_refreshes_total",
			Help: "Refresh token exchanges by result",
		}, []string{"result"}),
		AdminDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "schoolhub_admin_decisions_total",
			Help: "Admin flag resolutions on the admin API by source and outcome",
		}, []string{"source", "allowed"}),
		JobsEnqueued: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "schoolhub_jobs_enqueued_total",
			Help: "Background jobs enqueued by type and result",
		}, []string{"type", "result"}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "schoolhub_http_requests_total",
			Help: "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "schoolhub_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		StorageUploads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "schoolhub_storage_uploads_total",
			Help: "Object uploads by bucket",
		}, []string{"bucket"}),
	}
}

// Result label values
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Result maps an error to a result label
func Result(err error) string {
	if err != nil {
		return ResultFailure
	}
	return ResultSuccess
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
