package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "crmassets"

var (
	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route, method and status.",
	}, []string{"route", "method", "status"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})

	readinessProbes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "storage_probes_total",
		Help:      "Storage readiness probes by result.",
	}, []string{"result"})

	provisionRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bucket_provision_total",
		Help:      "Bucket auto-fix attempts by result.",
	}, []string{"result"})

	uploads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "uploads_total",
		Help:      "Asset uploads by target kind and outcome.",
	}, []string{"kind", "outcome"})

	recordSyncs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "record_syncs_total",
		Help:      "User record synchronizations by result.",
	}, []string{"result"})

	initOnce sync.Once
)

// InitMetrics registers the collectors with the default registry. Safe to call more than once.
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, readinessProbes, provisionRuns, uploads, recordSyncs)
	})
}

// Middleware records request counts and latency per route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

// Register attaches the Prometheus metrics endpoint to the router.
func Register(router *gin.Engine, path string) {
	router.GET(path, gin.WrapH(promhttp.Handler()))
}

// ObserveProbe counts a readiness probe outcome.
func ObserveProbe(result string) {
	readinessProbes.WithLabelValues(result).Inc()
}

// ObserveProvision counts an auto-fix outcome.
func ObserveProvision(result string) {
	provisionRuns.WithLabelValues(result).Inc()
}

// ObserveUpload counts an upload outcome for a target kind.
func ObserveUpload(kind, outcome string) {
	uploads.WithLabelValues(kind, outcome).Inc()
}

// ObserveSync counts a record synchronization outcome.
func ObserveSync(result string) {
	recordSyncs.WithLabelValues(result).Inc()
}
