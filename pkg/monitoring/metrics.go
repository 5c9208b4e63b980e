package monitoring

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector holds the standard HTTP metrics for a service. Domain
// metrics live next to the code that records them.
type MetricsCollector struct {
	serviceName string

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	activeConnections   prometheus.Gauge
	serviceInfo         *prometheus.GaugeVec
}

// NewMetricsCollector registers HTTP metrics on reg. A nil reg uses the
// default registerer.
func NewMetricsCollector(reg prometheus.Registerer, serviceName, version, commit string) *MetricsCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	// Prometheus names cannot contain hyphens.
	name := strings.ReplaceAll(serviceName, "-", "_")

	mc := &MetricsCollector{
		serviceName: name,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: name + "_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    name + "_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		activeConnections: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: name + "_active_connections",
				Help: "Number of in-flight HTTP requests",
			},
		),
		serviceInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: name + "_service_info",
				Help: "Service information",
			},
			[]string{"version", "commit"},
		),
	}

	reg.MustRegister(mc.httpRequestsTotal, mc.httpRequestDuration, mc.activeConnections, mc.serviceInfo)
	mc.serviceInfo.WithLabelValues(version, commit).Set(1)
	return mc
}

// MetricsMiddleware returns middleware that collects HTTP metrics
func (mc *MetricsCollector) MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		mc.activeConnections.Inc()
		defer mc.activeConnections.Dec()

		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unknown"
		}
		mc.httpRequestsTotal.WithLabelValues(c.Request.Method, endpoint, strconv.Itoa(c.Writer.Status())).Inc()
		mc.httpRequestDuration.WithLabelValues(c.Request.Method, endpoint).Observe(time.Since(start).Seconds())
	}
}

// Handler returns the Prometheus metrics HTTP handler
func (mc *MetricsCollector) Handler() gin.HandlerFunc {
	handler := promhttp.Handler()
	return func(c *gin.Context) {
		handler.ServeHTTP(c.Writer, c.Request)
	}
}
