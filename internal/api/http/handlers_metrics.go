package http

import (
	"github.com/GriffinCanCode/widgetkit/internal/infrastructure/monitoring"
)

const serviceName = "widget_manager"

// HandlerMetrics records widget operations performed through the API
type HandlerMetrics struct {
	metrics *monitoring.Metrics
}

// NewHandlerMetrics creates a metrics wrapper. A nil metrics records
// nothing.
func NewHandlerMetrics(metrics *monitoring.Metrics) *HandlerMetrics {
	return &HandlerMetrics{metrics: metrics}
}

// Track starts timing operation; call the result with the outcome
func (hm *HandlerMetrics) Track(operation string) func(err error) {
	var metrics *monitoring.Metrics
	if hm != nil {
		metrics = hm.metrics
	}
	timer := monitoring.NewTimer(metrics, serviceName, operation)
	return func(err error) {
		if err != nil {
			timer.Stop(errorType(err))
			return
		}
		timer.Stop("")
	}
}
