package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/GriffinCanCode/AdminConsole/backend/internal/domain/lifecycle"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/shared/types"
	"github.com/gin-gonic/gin"
	dto "github.com/prometheus/client_model/go"
)

// MetricsAggregator renders the Prometheus registry as a JSON summary for
// the console dashboard
type MetricsAggregator struct {
	metrics    *monitoring.Metrics
	controller *lifecycle.Controller
}

// NewMetricsAggregator creates a metrics aggregator
func NewMetricsAggregator(metrics *monitoring.Metrics, controller *lifecycle.Controller) *MetricsAggregator {
	return &MetricsAggregator{metrics: metrics, controller: controller}
}

// MetricsSnapshot is the JSON view of the registry and the console
type MetricsSnapshot struct {
	Timestamp time.Time           `json:"timestamp"`
	Modules   map[types.State]int `json:"modules"`
	Summary   MetricsSummary      `json:"summary"`
}

// MetricsSummary provides high-level metrics
type MetricsSummary struct {
	TotalRequests     float64 `json:"total_requests"`
	AverageLatencyMs  float64 `json:"average_latency_ms"`
	ErrorRate         float64 `json:"error_rate"`
	ActiveConnections float64 `json:"active_connections"`
	Transitions       float64 `json:"transitions"`
	FailedTransitions float64 `json:"failed_transitions"`
	Imports           float64 `json:"imports"`
	Exports           float64 `json:"exports"`
	ScanErrors        float64 `json:"scan_errors"`
	UptimeSeconds     float64 `json:"uptime_seconds"`
}

// GetAggregatedMetrics returns the summary snapshot
func (ma *MetricsAggregator) GetAggregatedMetrics(c *gin.Context) {
	families, err := ma.metrics.Registry().Gather()
	if err != nil {
		respondError(c, err)
		return
	}
	byName := make(map[string]*dto.MetricFamily, len(families))
	for _, mf := range families {
		byName[mf.GetName()] = mf
	}

	c.JSON(http.StatusOK, MetricsSnapshot{
		Timestamp: time.Now(),
		Modules:   ma.controller.Store().Counts(),
		Summary:   summarize(byName),
	})
}

func summarize(byName map[string]*dto.MetricFamily) MetricsSummary {
	total := sum(byName["console_http_requests_total"], nil)
	failed := sum(byName["console_http_requests_total"], func(labels map[string]string) bool {
		return strings.HasPrefix(labels["status"], "5")
	})

	var s MetricsSummary
	s.TotalRequests = total
	if total > 0 {
		s.ErrorRate = failed / total
	}
	if count, seconds := histogram(byName["console_http_request_duration_seconds"]); count > 0 {
		s.AverageLatencyMs = seconds / float64(count) * 1000
	}
	s.ActiveConnections = sum(byName["console_ws_connections"], nil)
	s.Transitions = sum(byName["module_transitions_total"], nil)
	s.FailedTransitions = sum(byName["module_transitions_total"], func(labels map[string]string) bool {
		return labels["result"] != lifecycle.ResultOK
	})
	s.Imports = sum(byName["module_imports_total"], nil)
	s.Exports = sum(byName["module_exports_total"], nil)
	s.ScanErrors = sum(byName["module_scan_errors_total"], nil)
	s.UptimeSeconds = sum(byName["console_uptime_seconds"], nil)
	return s
}

// sum adds counter and gauge samples whose labels pass keep (nil keeps all)
func sum(mf *dto.MetricFamily, keep func(map[string]string) bool) float64 {
	if mf == nil {
		return 0
	}
	var total float64
	for _, m := range mf.GetMetric() {
		if keep != nil && !keep(labelMap(m)) {
			continue
		}
		switch {
		case m.GetCounter() != nil:
			total += m.GetCounter().GetValue()
		case m.GetGauge() != nil:
			total += m.GetGauge().GetValue()
		}
	}
	return total
}

func histogram(mf *dto.MetricFamily) (uint64, float64) {
	if mf == nil {
		return 0, 0
	}
	var (
		count uint64
		total float64
	)
	for _, m := range mf.GetMetric() {
		if h := m.GetHistogram(); h != nil {
			count += h.GetSampleCount()
			total += h.GetSampleSum()
		}
	}
	return count, total
}

func labelMap(m *dto.Metric) map[string]string {
	out := make(map[string]string, len(m.GetLabel()))
	for _, lp := range m.GetLabel() {
		out[lp.GetName()] = lp.GetValue()
	}
	return out
}
