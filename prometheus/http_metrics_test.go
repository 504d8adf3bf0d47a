package prometheus

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vkrizan/insights-host-inventory/pkg/config"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPMetricsMiddleware(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)
	m := NewHTTPMetrics(cfg, "host-inventory")

	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/ping", func(c echo.Context) error {
		return c.String(http.StatusOK, "pong")
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, float64(1), testutil.ToFloat64(
		m.requestCounter.WithLabelValues("host-inventory", "GET", "/ping", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(
		m.statusCategory.WithLabelValues("host-inventory", "2xx", "GET", "/ping")))

	// The vectors carry the configured metric prefix
	assert.Equal(t, 1, testutil.CollectAndCount(
		m.requestCounter, cfg.Metrics.Prefix+"_http_requests_total"))
}
