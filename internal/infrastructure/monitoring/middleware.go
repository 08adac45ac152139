package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware records request count, latency and sizes per route. Routes
// are labelled by their pattern so widget ids do not explode cardinality.
func Middleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		reqSize := c.Request.ContentLength
		if reqSize < 0 {
			reqSize = 0
		}

		c.Next()

		respSize := int64(c.Writer.Size())
		if respSize < 0 {
			respSize = 0
		}
		metrics.RecordHTTPRequest(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start), reqSize, respSize)
	}
}

// Timer measures one service operation. A nil metrics records nothing.
type Timer struct {
	start   time.Time
	metrics *Metrics
	service string
	method  string
}

// NewTimer starts timing service.method
func NewTimer(metrics *Metrics, service, method string) *Timer {
	return &Timer{start: time.Now(), metrics: metrics, service: service, method: method}
}

// Stop records the call. A non-empty errType marks it failed and counts
// an error of that type.
func (t *Timer) Stop(errType string) time.Duration {
	elapsed := time.Since(t.start)
	if t.metrics == nil {
		return elapsed
	}
	status := "success"
	if errType != "" {
		status = "error"
		t.metrics.RecordServiceError(t.service, t.method, errType)
	}
	t.metrics.RecordServiceCall(t.service, t.method, status, elapsed)
	return elapsed
}
