// Package metricsvc records application metrics with Prometheus.
package metricsvc

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/teachhub/backend/core/assistant"
)

// Recorder holds the application collectors.
type Recorder struct {
	flowsTotal    *prometheus.CounterVec
	flowDuration  *prometheus.HistogramVec
	tokensTotal   *prometheus.CounterVec
	httpTotal     *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	throttleTotal *prometheus.CounterVec
	cacheTotal    *prometheus.CounterVec
}

var _ assistant.Metrics = (*Recorder)(nil)

// New registers the collectors with reg; use prometheus.DefaultRegisterer to expose them on /metrics.
func New(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		flowsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "teachhub_assistant_flows_total",
				Help: "Assistant flow runs by flow and status",
			},
			[]string{"flow", "status"},
		),
		flowDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "teachhub_assistant_flow_duration_seconds",
				Help:    "Duration of assistant flow runs in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20, 40, 60},
			},
			[]string{"flow"},
		),
		tokensTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "teachhub_assistant_tokens_total",
				Help: "Model tokens used by flow and type",
			},
			[]string{"flow", "type"},
		),
		httpTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "teachhub_http_requests_total",
				Help: "HTTP requests by method, route and status code",
			},
			[]string{"method", "route", "code"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "teachhub_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		throttleTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "teachhub_http_throttled_total",
				Help: "Requests rejected by the rate limiter by route",
			},
			[]string{"route"},
		),
		cacheTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "teachhub_cache_lookups_total",
				Help: "Cache lookups by cache and result",
			},
			[]string{"cache", "result"},
		),
	}
}

func (r *Recorder) ObserveFlow(flow, status string, elapsed time.Duration) {
	r.flowsTotal.WithLabelValues(flow, status).Inc()
	r.flowDuration.WithLabelValues(flow).Observe(elapsed.Seconds())
}

func (r *Recorder) AddTokens(flow string, prompt, completion int) {
	r.tokensTotal.WithLabelValues(flow, "prompt").Add(float64(prompt))
	r.tokensTotal.WithLabelValues(flow, "completion").Add(float64(completion))
}

func (r *Recorder) ObserveHTTP(method, route string, code int, elapsed time.Duration) {
	r.httpTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	r.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (r *Recorder) IncThrottled(route string) {
	r.throttleTotal.WithLabelValues(route).Inc()
}

// ObserveCache counts a cache hit or miss.
func (r *Recorder) ObserveCache(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheTotal.WithLabelValues(cache, result).Inc()
}
