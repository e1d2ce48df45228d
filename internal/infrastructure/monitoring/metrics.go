package monitoring

import (
	"net/http"
	"time"

	"github.com/GriffinCanCode/AdminConsole/backend/internal/shared/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics on a private registry
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Module metrics
	ModulesByState    *prometheus.GaugeVec
	Transitions       *prometheus.CounterVec
	Imports           *prometheus.CounterVec
	Exports           *prometheus.CounterVec
	ScanDuration      prometheus.Histogram
	ScanErrors        prometheus.Counter
	OperationDuration *prometheus.HistogramVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	startTime time.Time
}

// NewMetrics creates a metrics collector with its own registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "console_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "console_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		RequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "console_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "console_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),

		// Module metrics
		ModulesByState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "modules_by_state",
				Help: "Number of modules in each lifecycle state",
			},
			[]string{"state"},
		),
		Transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "module_transitions_total",
				Help: "Lifecycle transitions attempted, by outcome",
			},
			[]string{"from", "to", "result"},
		),
		Imports: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "module_imports_total",
				Help: "Package imports, by outcome",
			},
			[]string{"result"},
		),
		Exports: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "module_exports_total",
				Help: "Package exports, by outcome",
			},
			[]string{"result"},
		),
		ScanDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "module_scan_duration_seconds",
				Help:    "Duration of completed rediscovery scans",
				Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
		),
		ScanErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "module_scan_errors_total",
				Help: "Per-module errors reported by rediscovery scans",
			},
		),
		OperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "module_operation_duration_seconds",
				Help:    "Duration of registry operations",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 30},
			},
			[]string{"operation", "result"},
		),

		// WebSocket metrics
		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "console_ws_connections",
				Help: "Number of active event stream connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "console_ws_messages_total",
				Help: "Total number of event stream messages",
			},
			[]string{"direction", "type"},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "console_uptime_seconds",
			Help: "Process uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	for _, state := range types.States {
		m.ModulesByState.WithLabelValues(string(state)).Set(0)
	}
	return m
}

// Registry returns the registry metrics are registered on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))
}

// RecordOperation records the duration of one registry operation
func (m *Metrics) RecordOperation(operation, result string, duration time.Duration) {
	m.OperationDuration.WithLabelValues(operation, result).Observe(duration.Seconds())
}

// ObserveTransition counts one lifecycle transition attempt
func (m *Metrics) ObserveTransition(from, to types.State, result string) {
	m.Transitions.WithLabelValues(string(from), string(to), result).Inc()
}

// ObserveImport counts one import
func (m *Metrics) ObserveImport(result string) {
	m.Imports.WithLabelValues(result).Inc()
}

// ObserveExport counts one export
func (m *Metrics) ObserveExport(result string) {
	m.Exports.WithLabelValues(result).Inc()
}

// ObserveScan records a completed rediscovery
func (m *Metrics) ObserveScan(duration time.Duration, errors int) {
	m.ScanDuration.Observe(duration.Seconds())
	m.ScanErrors.Add(float64(errors))
}

// SetStateCounts publishes the number of modules per state
func (m *Metrics) SetStateCounts(counts map[types.State]int) {
	for state, n := range counts {
		m.ModulesByState.WithLabelValues(string(state)).Set(float64(n))
	}
}

// RecordWSMessage records an event stream message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments event stream connections
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
}

// DecWSConnections decrements event stream connections
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
}
