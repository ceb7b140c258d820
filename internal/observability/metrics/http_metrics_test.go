package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestGinMiddlewareCountsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	registry := prometheus.NewRegistry()
	m := newHTTPMetrics(registry, Config{Environment: "test"})

	r := gin.New()
	r.Use(GinMiddleware(m))
	r.GET("/car/:deviceId/status", func(c *gin.Context) {
		c.Status(http.StatusNotFound)
	})

	for _, id := range []string{"car-1", "car-2"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/car/"+id+"/status", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	}

	assert.Equal(t, float64(2), testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "/car/:deviceId/status", "404")))
}

func TestGinMiddlewareNilMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware(nil))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
