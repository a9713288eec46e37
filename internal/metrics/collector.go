package metrics

import (
	"recipe-swiper/internal/query"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "recipe_swiper"

// Collector exports query events as Prometheus metrics.
type Collector struct {
	calls   *prometheus.CounterVec
	errors  *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

// NewCollector registers the query metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		calls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "query_calls_total",
				Help:      "Recipe lookups by endpoint and source (cache or api)",
			},
			[]string{"endpoint", "source"},
		),
		errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "query_errors_total",
				Help:      "Failed upstream recipe API calls by endpoint",
			},
			[]string{"endpoint"},
		),
		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "query_latency_seconds",
				Help:      "Upstream recipe API latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
	}
}

// ObserveCall implements query.Observer.
func (c *Collector) ObserveCall(e query.CallEvent) {
	if e.Cached {
		c.calls.WithLabelValues(e.Endpoint, "cache").Inc()
		return
	}
	c.calls.WithLabelValues(e.Endpoint, "api").Inc()
	c.latency.WithLabelValues(e.Endpoint).Observe(e.Latency.Seconds())
	if e.Err != nil {
		c.errors.WithLabelValues(e.Endpoint).Inc()
	}
}
