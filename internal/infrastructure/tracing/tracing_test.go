package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/GriffinCanCode/widgetkit/internal/infrastructure/logging"
)

func newObservedTracer(t *testing.T) (*Tracer, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	tracer := New("test", logging.Wrap(zap.New(core)))
	t.Cleanup(tracer.Close)
	return tracer, logs
}

func TestStartSpan(t *testing.T) {
	tracer, _ := newObservedTracer(t)

	root, ctx := tracer.StartSpan(context.Background(), "root")
	assert.NotEmpty(t, root.TraceID)
	assert.Empty(t, root.ParentID)
	assert.Equal(t, root.TraceID, GetTraceID(ctx))
	assert.Equal(t, root.SpanID, GetSpanID(ctx))

	child, _ := tracer.StartSpan(ctx, "child")
	assert.Equal(t, root.TraceID, child.TraceID)
	assert.Equal(t, root.SpanID, child.ParentID)
	assert.NotEqual(t, root.SpanID, child.SpanID)
}

func TestInject(t *testing.T) {
	got := http.Header{}
	Inject(context.Background(), got.Set)
	assert.Empty(t, got)

	ctx := WithTrace(context.Background(), "trace-1", "span-1")
	Inject(ctx, got.Set)
	assert.Equal(t, "trace-1", got.Get(HeaderTraceID))
	assert.Equal(t, "span-1", got.Get(HeaderSpanID))
}

func TestHTTPMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tracer, logs := newObservedTracer(t)

	var seen TraceID
	router := gin.New()
	router.Use(HTTPMiddleware(tracer))
	router.GET("/widgets/:id", func(c *gin.Context) {
		seen = GetTraceID(c.Request.Context())
		c.Status(http.StatusNoContent)
	})
	router.GET("/fail", func(c *gin.Context) {
		_ = c.Error(errors.New("boom"))
		c.Status(http.StatusBadGateway)
	})

	t.Run("continues incoming trace", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/widgets/abc", nil)
		req.Header.Set(HeaderTraceID, "trace-in")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, TraceID("trace-in"), seen)
		assert.Equal(t, "trace-in", w.Header().Get(HeaderTraceID))
		assert.NotEmpty(t, w.Header().Get(HeaderSpanID))
	})

	t.Run("starts a trace", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/widgets/abc", nil))
		assert.Regexp(t, `^req_`, w.Header().Get(HeaderTraceID))
		assert.Equal(t, TraceID(w.Header().Get(HeaderTraceID)), seen)
	})

	t.Run("records errors", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fail", nil))
		assert.Equal(t, http.StatusBadGateway, w.Code)
	})

	tracer.Close()
	require.Eventually(t, func() bool {
		return logs.FilterMessage("Span completed").Len() == 2 &&
			logs.FilterMessage("Span completed with error").Len() == 1
	}, time.Second, 5*time.Millisecond)

	failed := logs.FilterMessage("Span completed with error").All()[0].ContextMap()
	assert.Equal(t, "GET /fail", failed["operation"])
	assert.Equal(t, int64(http.StatusBadGateway), failed["status"])
}

func TestSubmitAfterClose(t *testing.T) {
	tracer, logs := newObservedTracer(t)
	tracer.Close()

	span, _ := tracer.StartSpan(context.Background(), "late")
	span.Finish()
	tracer.Submit(span)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 0, logs.Len())
}
