package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/widgetkit/internal/infrastructure/tracing"
)

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(handlers...)
	ok := func(c *gin.Context) { c.String(http.StatusOK, "ok") }
	r.GET("/widgets", ok)
	r.GET("/widgets/:id/stream", ok)
	return r
}

func get(r http.Handler, path, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = ip + ":1234"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimit(t *testing.T) {
	now := time.Unix(1000, 0)
	set := newLimiterSet(RateLimitConfig{
		RequestsPerSecond: 1,
		Burst:             2,
		IdleTTL:           time.Minute,
		ExemptSuffixes:    []string{"/stream"},
	}, func() time.Time { return now })
	r := newRouter(rateLimit(set))

	assert.Equal(t, http.StatusOK, get(r, "/widgets", "10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, get(r, "/widgets", "10.0.0.1").Code)

	w := get(r, "/widgets", "10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	// other clients and exempt paths are unaffected
	assert.Equal(t, http.StatusOK, get(r, "/widgets", "10.0.0.2").Code)
	assert.Equal(t, http.StatusOK, get(r, "/widgets/abc/stream", "10.0.0.1").Code)

	now = now.Add(time.Second)
	assert.Equal(t, http.StatusOK, get(r, "/widgets", "10.0.0.1").Code)
}

func TestRateLimitForgetsIdleClients(t *testing.T) {
	now := time.Unix(1000, 0)
	set := newLimiterSet(RateLimitConfig{RequestsPerSecond: 1, Burst: 1, IdleTTL: time.Minute}, func() time.Time { return now })

	set.get("10.0.0.1")
	set.get("10.0.0.2")
	require.Equal(t, 2, set.len())

	now = now.Add(30 * time.Second)
	set.get("10.0.0.2")
	now = now.Add(40 * time.Second)
	set.get("10.0.0.3")
	assert.Equal(t, 2, set.len())
}

func TestCORS(t *testing.T) {
	r := newRouter(CORS(DefaultCORSConfig()))

	req := httptest.NewRequest(http.MethodOptions, "/widgets", nil)
	req.Header.Set("Origin", "http://overlay.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/widgets", nil)
	req.Header.Set("Origin", "http://overlay.local")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, strings.ToLower(w.Header().Get("Access-Control-Expose-Headers")), strings.ToLower(tracing.HeaderTraceID))
}
