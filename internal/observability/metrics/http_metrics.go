package metrics

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics records request counts and latency per route.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewHTTPMetrics(cfg Config) *HTTPMetrics {
	return newHTTPMetrics(prometheus.DefaultRegisterer, cfg)
}

func newHTTPMetrics(registerer prometheus.Registerer, cfg Config) *HTTPMetrics {
	constLabels := serviceLabels(cfg)
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "chargeplan_http_requests_total",
		Help:        "HTTP requests by method, route and status.",
		ConstLabels: constLabels,
	}, []string{"method", "route", "status_code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "chargeplan_http_request_duration_seconds",
		Help:        "HTTP request latency by method and route.",
		Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		ConstLabels: constLabels,
	}, []string{"method", "route"})

	return &HTTPMetrics{
		requests: registerOrReuse(registerer, requests),
		duration: registerOrReuse(registerer, duration),
	}
}

// GinMiddleware observes every request. A nil HTTPMetrics disables it.
func GinMiddleware(m *HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if strings.TrimSpace(route) == "" {
			route = "unknown"
		}
		method := c.Request.Method
		m.requests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.duration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

func serviceLabels(cfg Config) prometheus.Labels {
	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "chargeplan"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	return prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}
}

// registerOrReuse registers c, or returns the collector already registered
// under the same descriptor so repeated construction does not panic.
func registerOrReuse[T prometheus.Collector](registerer prometheus.Registerer, c T) T {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	if err := registerer.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}
