package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "mediabridge"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, route and status code.",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds, excluding byte relays.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10, 30},
	}, []string{"method", "route"})

	BackendCallsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "backend_calls_total",
		Help:      "Media server calls by backend kind, operation and outcome.",
	}, []string{"kind", "operation", "outcome"})

	BackendCallDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "backend_call_duration_seconds",
		Help:      "Media server call duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30},
	}, []string{"kind", "operation"})

	AuthAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "auth_attempts_total",
		Help:      "Credential shape attempts by backend kind, shape and result.",
	}, []string{"kind", "shape", "result"})

	ProxyActiveRelays = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "proxy_active_relays",
		Help:      "Number of byte relays currently streaming.",
	})

	ProxyBytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "proxy_bytes_total",
		Help:      "Total bytes relayed from media servers to clients.",
	})

	ProxyStreamErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "proxy_stream_errors_total",
		Help:      "Relays that failed, by phase (connect or stream).",
	}, []string{"phase"})

	ActiveSessionRecords = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "active_session_records",
		Help:      "Active session records remaining after the last sweep.",
	})

	SessionsSweptTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "sessions_swept_total",
		Help:      "Session records deleted for inactivity.",
	})
)

// RegisterMetrics registers all collectors with reg.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		BackendCallsTotal,
		BackendCallDuration,
		AuthAttemptsTotal,
		ProxyActiveRelays,
		ProxyBytesTotal,
		ProxyStreamErrorsTotal,
		ActiveSessionRecords,
		SessionsSweptTotal,
	)
}
