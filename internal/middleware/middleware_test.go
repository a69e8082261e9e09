package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dmehra2102/prod-golang-projects/glucoflow/pkg/metrics"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequestIDGeneratedAndEchoed(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, GetRequestID(c)) })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	id := w.Header().Get(HeaderRequestID)
	require.NotEmpty(t, id)
	assert.Equal(t, id, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	w = serve(r, req)
	assert.Equal(t, "abc-123", w.Header().Get(HeaderRequestID))
}

func TestLoggerLevelFollowsStatus(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := gin.New()
	r.Use(RequestID(), Logger(zap.New(core)))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/bad", func(c *gin.Context) { c.Status(http.StatusBadRequest) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for _, p := range []string{"/ok", "/bad", "/boom"} {
		serve(r, httptest.NewRequest(http.MethodGet, p, nil))
	}

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zap.InfoLevel, entries[0].Level)
	assert.Equal(t, zap.WarnLevel, entries[1].Level)
	assert.Equal(t, zap.ErrorLevel, entries[2].Level)
	assert.Equal(t, "/bad", entries[1].ContextMap()["path"])
}

func TestMetricsUseRouteTemplate(t *testing.T) {
	c := metrics.NewCollector("mw_test", prometheus.NewRegistry())
	r := gin.New()
	r.Use(Metrics(c))
	r.GET("/v1/reading/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	serve(r, httptest.NewRequest(http.MethodGet, "/v1/reading/a", nil))
	serve(r, httptest.NewRequest(http.MethodGet, "/v1/reading/b", nil))
	serve(r, httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	assert.InDelta(t, 2, testutil.ToFloat64(c.RequestsTotal.WithLabelValues("GET", "/v1/reading/:id", "204")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.RequestsTotal.WithLabelValues("GET", "unmatched", "404")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(c.InFlightGauge), 0)
}

func TestRateLimiterPerClient(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	now := time.Now()

	assert.True(t, rl.allow("10.0.0.1", now))
	assert.True(t, rl.allow("10.0.0.1", now))
	assert.False(t, rl.allow("10.0.0.1", now))
	assert.True(t, rl.allow("10.0.0.2", now))
	assert.True(t, rl.allow("10.0.0.1", now.Add(1100*time.Millisecond)))
}

func TestRateLimiterHandler(t *testing.T) {
	r := gin.New()
	r.Use(NewRateLimiter(0.001, 1).Handler())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodGet, "/", nil)).Code)
	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestRateLimiterDisabled(t *testing.T) {
	r := gin.New()
	r.Use(NewRateLimiter(0, 0).Handler())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	for range 50 {
		require.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodGet, "/", nil)).Code)
	}
}

func TestRateLimiterSweep(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	rl.allow("10.0.0.1", time.Now().Add(-time.Hour))
	rl.allow("10.0.0.2", time.Now())

	rl.Sweep(time.Minute)

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.Len(t, rl.clients, 1)
	assert.Contains(t, rl.clients, "10.0.0.2")
}

func TestRecovery(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	r := gin.New()
	r.Use(Recovery(zap.New(core)))
	r.GET("/", func(*gin.Context) { panic("boom") })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, w.Body.String())
	assert.Equal(t, 1, logs.FilterMessage("panic recovered").Len())
}
