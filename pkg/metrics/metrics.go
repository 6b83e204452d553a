package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sos"

// Metrics holds every collector of the process. All methods are safe on a nil
// receiver so collaborators can be built without instrumentation.
type Metrics struct {
	registry *prometheus.Registry

	// device side
	dispatchTotal    *prometheus.CounterVec
	dispatchDuration prometheus.Histogram
	fallbackTotal    *prometheus.CounterVec
	locationTotal    *prometheus.CounterVec
	queueSize        prometheus.Gauge
	queueDrained     *prometheus.CounterVec

	// backend
	alertsReceived      *prometheus.CounterVec
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	operatorsConnected  prometheus.Gauge
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		dispatchTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatch_total",
				Help:      "SOS dispatch attempts by outcome",
			},
			[]string{"outcome"},
		),
		dispatchDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "dispatch_duration_seconds",
				Help:      "Time from SOS trigger to sent or queued",
				Buckets:   []float64{0.5, 1, 2, 4, 8, 12, 16, 24, 32},
			},
		),
		fallbackTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fallback_total",
				Help:      "Local fallbacks fired after a failed dispatch",
			},
			[]string{"kind", "outcome"},
		),
		locationTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "location_resolutions_total",
				Help:      "Emergency location resolutions by source",
			},
			[]string{"source"},
		),
		queueSize: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "offline_queue_size",
				Help:      "Alerts waiting in the offline queue",
			},
		),
		queueDrained: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "offline_queue_drained_total",
				Help:      "Queued alerts processed by drain passes",
			},
			[]string{"outcome"},
		),

		alertsReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alerts_received_total",
				Help:      "SOS alerts accepted by the backend",
			},
			[]string{"emergency_type", "duplicate"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		operatorsConnected: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "operators_connected",
				Help:      "Operator consoles attached to the alert stream",
			},
		),
	}
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordDispatch(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dispatchTotal.WithLabelValues(outcome).Inc()
	m.dispatchDuration.Observe(duration.Seconds())
}

func (m *Metrics) RecordFallback(kind string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.fallbackTotal.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) RecordLocation(source string) {
	if m == nil {
		return
	}
	m.locationTotal.WithLabelValues(source).Inc()
}

func (m *Metrics) SetQueueSize(size int) {
	if m == nil {
		return
	}
	m.queueSize.Set(float64(size))
}

func (m *Metrics) RecordDrain(delivered, failed int) {
	if m == nil {
		return
	}
	m.queueDrained.WithLabelValues("delivered").Add(float64(delivered))
	m.queueDrained.WithLabelValues("failed").Add(float64(failed))
}

func (m *Metrics) RecordAlertReceived(emergencyType string, duplicate bool) {
	if m == nil {
		return
	}
	m.alertsReceived.WithLabelValues(emergencyType, strconv.FormatBool(duplicate)).Inc()
}

func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func (m *Metrics) SetOperatorsConnected(count int) {
	if m == nil {
		return
	}
	m.operatorsConnected.Set(float64(count))
}
