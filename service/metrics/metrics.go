package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the relay.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Webhook intake
	webhookPayloadsTotal *prometheus.CounterVec

	// Alert delivery
	alertsDispatchedTotal *prometheus.CounterVec
	alertDispatchDuration *prometheus.HistogramVec

	// Mirrors
	mirrorPublishTotal    *prometheus.CounterVec
	mirrorPublishDuration *prometheus.HistogramVec

	// HTTP
	httpRequestDuration *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		webhookPayloadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webhook_payloads_total",
				Help: "Total number of inbound webhook payloads by recognized shape",
			},
			[]string{"shape"},
		),

		alertsDispatchedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alerts_dispatched_total",
				Help: "Total number of alert delivery attempts by kind and outcome",
			},
			[]string{"kind", "status"},
		),
		alertDispatchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "alert_dispatch_duration_seconds",
				Help:    "Duration of alert delivery attempts in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"kind"},
		),

		mirrorPublishTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mirror_publish_total",
				Help: "Total number of relay events published to mirrors",
			},
			[]string{"mirror", "status"},
		),
		mirrorPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mirror_publish_duration_seconds",
				Help:    "Duration of mirror publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"mirror"},
		),

		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 10.0},
			},
			[]string{"handler", "method", "status"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),
	}
}

// RecordWebhookPayload records an inbound payload and the shape it was recognized as.
func (m *Metrics) RecordWebhookPayload(shape string) {
	if m == nil {
		return
	}
	m.webhookPayloadsTotal.WithLabelValues(shape).Inc()
}

// RecordAlertDispatch records one alert delivery attempt.
// Status is "success", "error" or "skipped".
func (m *Metrics) RecordAlertDispatch(kind, status string, duration float64) {
	if m == nil {
		return
	}
	m.alertsDispatchedTotal.WithLabelValues(kind, status).Inc()
	m.alertDispatchDuration.WithLabelValues(kind).Observe(duration)
}

// RecordMirrorPublish records a mirror publish operation.
func (m *Metrics) RecordMirrorPublish(mirror string, err error, duration float64) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.mirrorPublishTotal.WithLabelValues(mirror, status).Inc()
	m.mirrorPublishDuration.WithLabelValues(mirror).Observe(duration)
}

// RecordHTTPRequest records an HTTP request with duration.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	if m == nil {
		return
	}
	status := statusCodeToString(statusCode)
	m.httpRequestDuration.WithLabelValues(handler, method, status).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
}

func statusCodeToString(code int) string {
	// Group status codes by class
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "unknown"
	}
}
