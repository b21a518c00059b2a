package middleware

import (
	"sync"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RedisErrors counts Redis errors by command name.
var RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "aurafeed_redis_errors_total",
	Help: "Total number of Redis errors by command",
}, []string{"command"})

// CacheLookups counts cache-aside reads by result: hit, miss or error.
var CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "aurafeed_cache_lookups_total",
	Help: "Total number of cache-aside lookups by result",
}, []string{"result"})

var (
	promOnce sync.Once
	prom     *fiberprometheus.FiberPrometheus
)

// InitMetrics creates the HTTP Prometheus middleware for the named service.
// Collectors register with the default registry once per process.
func InitMetrics(serviceName string) *fiberprometheus.FiberPrometheus {
	promOnce.Do(func() {
		prom = fiberprometheus.NewWithRegistry(prometheus.DefaultRegisterer, serviceName, "aurafeed", "http", nil)
	})
	return prom
}

// MetricsMiddleware returns the Fiber handler that records HTTP metrics.
func MetricsMiddleware(p *fiberprometheus.FiberPrometheus) fiber.Handler {
	return p.Middleware
}
