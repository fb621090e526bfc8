package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Transform outcomes.
const (
	OutcomeForwarded = "forwarded"
	OutcomeDropped   = "dropped"
	OutcomeInvalid   = "invalid"
	OutcomeFailed    = "failed"
)

// Consumer outcomes.
const (
	OutcomeHandled  = "handled"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
	OutcomePanic    = "panic"
)

// Registry encapsulates all metrics and provides a clean interface
// for recording metrics without global state
type Registry struct {
	registry *prometheus.Registry

	// Publisher metrics
	publishTotal    *prometheus.CounterVec
	publishDuration *prometheus.HistogramVec
	eventDuration   *prometheus.HistogramVec

	// Generator metrics
	generatedTotal *prometheus.CounterVec

	// Transform metrics
	transformTotal *prometheus.CounterVec
	windowUpdates  *prometheus.CounterVec

	// Consumer metrics
	consumeTotal    *prometheus.CounterVec
	consumeDuration *prometheus.HistogramVec

	// Window store metrics
	databaseOperationTotal    *prometheus.CounterVec
	databaseOperationDuration *prometheus.HistogramVec

	// HTTP API metrics
	httpRequestsTotal *prometheus.CounterVec

	// System health metrics
	systemInfo *prometheus.GaugeVec
	startTime  prometheus.Gauge
}

// NewRegistry creates a new metrics registry with all metrics initialized
func NewRegistry() *Registry {
	registry := prometheus.NewRegistry()

	r := &Registry{
		registry: registry,

		publishTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pageflow_publisher_publish_total",
				Help: "Total number of publish operations",
			},
			[]string{"topic", "status"}, // status: success, error
		),

		publishDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pageflow_publisher_publish_duration_seconds",
				Help:    "Time spent waiting for the broker to acknowledge a publish",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"topic"},
		),

		eventDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pageflow_page_event_duration",
				Help:    "Duration values carried by published page events",
				Buckets: []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
			},
			[]string{"topic"},
		),

		generatedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pageflow_generator_events_total",
				Help: "Total number of events emitted by the periodic generator",
			},
			[]string{"status"}, // status: success, error
		),

		transformTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pageflow_transform_records_total",
				Help: "Total number of records seen by the transform stage",
			},
			[]string{"topic", "outcome"}, // outcome: forwarded, dropped, invalid, failed
		),

		windowUpdates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pageflow_window_updates_total",
				Help: "Total number of tumbling window updates",
			},
			[]string{"status"},
		),

		consumeTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pageflow_consumer_records_total",
				Help: "Total number of records handled by consumers",
			},
			[]string{"topic", "outcome"}, // outcome: handled, rejected, error, panic
		),

		consumeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pageflow_consumer_handle_duration_seconds",
				Help:    "Time spent handling a consumed record",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"topic"},
		),

		databaseOperationTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pageflow_database_operation_total",
				Help: "Total number of database operations",
			},
			[]string{"operation", "status"}, // operation: window_increment, window_get
		),

		databaseOperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pageflow_database_operation_duration_seconds",
				Help:    "Time spent on database operations",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"operation"},
		),

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pageflow_http_requests_total",
				Help: "Total number of HTTP API requests",
			},
			[]string{"path", "code"},
		),

		systemInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pageflow_system_info",
				Help: "System information (value is always 1, labels contain info)",
			},
			[]string{"version", "build_time"},
		),

		startTime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pageflow_start_time_seconds",
				Help: "Unix timestamp when the application started",
			},
		),
	}

	// add default Go metrics (memory, GC, goroutines, etc.)
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	registry.MustRegister(
		r.publishTotal,
		r.publishDuration,
		r.eventDuration,
		r.generatedTotal,
		r.transformTotal,
		r.windowUpdates,
		r.consumeTotal,
		r.consumeDuration,
		r.databaseOperationTotal,
		r.databaseOperationDuration,
		r.httpRequestsTotal,
		r.systemInfo,
		r.startTime,
	)

	r.startTime.SetToCurrentTime()

	return r
}

// Handler returns an HTTP handler for the Prometheus metrics endpoint
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		Registry:          r.registry,
	})
}

// Gatherer exposes the underlying registry, mostly for tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// RecordPublish records a publish operation and, on success, the event duration it carried.
func (r *Registry) RecordPublish(topic string, eventDuration int64, duration time.Duration, err error) {
	r.publishTotal.WithLabelValues(topic, status(err)).Inc()
	r.publishDuration.WithLabelValues(topic).Observe(duration.Seconds())
	if err == nil {
		r.eventDuration.WithLabelValues(topic).Observe(float64(eventDuration))
	}
}

// RecordGenerated records one generator tick.
func (r *Registry) RecordGenerated(err error) {
	r.generatedTotal.WithLabelValues(status(err)).Inc()
}

// RecordTransform records the outcome of one record passing through the transform stage.
func (r *Registry) RecordTransform(topic, outcome string) {
	r.transformTotal.WithLabelValues(topic, outcome).Inc()
}

// RecordWindowUpdate records one tumbling window update.
func (r *Registry) RecordWindowUpdate(err error) {
	r.windowUpdates.WithLabelValues(status(err)).Inc()
}

// RecordConsume records the outcome of handling a consumed record.
func (r *Registry) RecordConsume(topic, outcome string, duration time.Duration) {
	r.consumeTotal.WithLabelValues(topic, outcome).Inc()
	r.consumeDuration.WithLabelValues(topic).Observe(duration.Seconds())
}

// RecordDatabaseOperation records a database operation
func (r *Registry) RecordDatabaseOperation(operation string, duration time.Duration, err error) {
	r.databaseOperationTotal.WithLabelValues(operation, status(err)).Inc()
	r.databaseOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordHTTPRequest records a served API request.
func (r *Registry) RecordHTTPRequest(path string, code int) {
	r.httpRequestsTotal.WithLabelValues(path, http.StatusText(code)).Inc()
}

// SetSystemInfo sets system information metrics
func (r *Registry) SetSystemInfo(version, buildTime string) {
	r.systemInfo.WithLabelValues(version, buildTime).Set(1)
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
