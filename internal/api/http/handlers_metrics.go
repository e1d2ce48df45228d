package http

import (
	"github.com/GriffinCanCode/AdminConsole/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/shared/types"
)

// HandlerMetrics times module operations served over HTTP
type HandlerMetrics struct {
	metrics *monitoring.Metrics
}

// NewHandlerMetrics creates a metrics wrapper. A nil metrics disables it.
func NewHandlerMetrics(metrics *monitoring.Metrics) *HandlerMetrics {
	return &HandlerMetrics{metrics: metrics}
}

// Track starts timing operation; the returned func records the outcome
func (hm *HandlerMetrics) Track(operation string) func(err error) {
	if hm == nil || hm.metrics == nil {
		return func(error) {}
	}
	timer := monitoring.NewTimer(hm.metrics, operation)
	return func(err error) {
		timer.Stop(resultLabel(err))
	}
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	if kind := types.KindOf(err); kind != "" {
		return string(kind)
	}
	return "error"
}
