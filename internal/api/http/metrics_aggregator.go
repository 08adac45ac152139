package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sony/gobreaker/v2"

	"github.com/GriffinCanCode/widgetkit/internal/domain/widget"
	"github.com/GriffinCanCode/widgetkit/internal/infrastructure/monitoring"
)

// StatsSource reports component statistics, such as the runtime pool
type StatsSource interface {
	Stats() map[string]interface{}
}

// BreakerSource reports a circuit breaker, such as the bundle fetcher's
type BreakerSource interface {
	BreakerState() gobreaker.State
	BreakerCounts() gobreaker.Counts
}

// MetricsAggregator serves a JSON view of the process metrics
type MetricsAggregator struct {
	metrics *monitoring.Metrics
	manager *widget.Manager
	pool    StatsSource
	breaker BreakerSource
}

// NewMetricsAggregator creates an aggregator. pool and breaker may be nil.
func NewMetricsAggregator(metrics *monitoring.Metrics, manager *widget.Manager, pool StatsSource, breaker BreakerSource) *MetricsAggregator {
	return &MetricsAggregator{metrics: metrics, manager: manager, pool: pool, breaker: breaker}
}

// MetricsSnapshot is the aggregated metrics document
type MetricsSnapshot struct {
	Timestamp time.Time              `json:"timestamp"`
	Summary   MetricsSummary         `json:"summary"`
	Widgets   widget.Stats           `json:"widgets"`
	Pool      map[string]interface{} `json:"pool,omitempty"`
	Fetcher   *BreakerSummary        `json:"fetcher,omitempty"`
}

// MetricsSummary provides high-level metrics
type MetricsSummary struct {
	TotalRequests     int64   `json:"total_requests"`
	AverageLatencyMs  float64 `json:"average_latency_ms"`
	ErrorRate         float64 `json:"error_rate"`
	ActiveConnections int64   `json:"active_connections"`
	EventsPublished   int64   `json:"events_published"`
	UptimeSeconds     float64 `json:"uptime_seconds"`
}

// BreakerSummary describes the bundle fetch circuit breaker
type BreakerSummary struct {
	State               string `json:"state"`
	Requests            uint32 `json:"requests"`
	TotalFailures       uint32 `json:"total_failures"`
	ConsecutiveFailures uint32 `json:"consecutive_failures"`
}

// GetAggregatedMetrics returns the aggregated metrics document
func (ma *MetricsAggregator) GetAggregatedMetrics(c *gin.Context) {
	snapshot := MetricsSnapshot{
		Timestamp: time.Now(),
		Summary:   ma.summary(),
		Widgets:   ma.manager.Stats(),
	}
	if ma.pool != nil {
		snapshot.Pool = ma.pool.Stats()
	}
	if ma.breaker != nil {
		counts := ma.breaker.BreakerCounts()
		snapshot.Fetcher = &BreakerSummary{
			State:               ma.breaker.BreakerState().String(),
			Requests:            counts.Requests,
			TotalFailures:       counts.TotalFailures,
			ConsecutiveFailures: counts.ConsecutiveFailures,
		}
	}
	c.JSON(http.StatusOK, snapshot)
}

func (ma *MetricsAggregator) summary() MetricsSummary {
	if ma.metrics == nil {
		return MetricsSummary{}
	}
	snapshot := ma.metrics.Snapshot()

	var avgLatency float64
	if snapshot.RequestCount > 0 {
		avgLatency = (snapshot.TotalDuration / float64(snapshot.RequestCount)) * 1000
	}
	var errorRate float64
	if snapshot.TotalRequests > 0 {
		errorRate = float64(snapshot.TotalErrors) / float64(snapshot.TotalRequests)
	}

	return MetricsSummary{
		TotalRequests:     snapshot.TotalRequests,
		AverageLatencyMs:  avgLatency,
		ErrorRate:         errorRate,
		ActiveConnections: snapshot.ActiveConnections,
		EventsPublished:   snapshot.EventsPublished,
		UptimeSeconds:     ma.metrics.UptimeSeconds(),
	}
}
