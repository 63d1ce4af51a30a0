// Package metrics exposes Prometheus metrics for debates and the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "botdebate"

// Collector records debate and HTTP metrics. It satisfies the debate
// manager's Observer interface. A nil *Collector records nothing.
type Collector struct {
	completionsTotal   *prometheus.CounterVec
	completionDuration *prometheus.HistogramVec
	stepsTotal         *prometheus.CounterVec
	turnsTotal         *prometheus.CounterVec
	regenerationsTotal *prometheus.CounterVec
	convergencesTotal  prometheus.Counter
	turnRelevance      *prometheus.GaugeVec
	turnCoherence      *prometheus.GaugeVec

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewCollector registers all metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		completionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "completions_total",
			Help:      "Chat completion calls by bot and result.",
		}, []string{"bot", "status"}),
		completionDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "completion_duration_seconds",
			Help:      "Chat completion latency by bot.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"bot"}),
		stepsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Debate steps by outcome.",
		}, []string{"outcome"}),
		turnsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Accepted turns by bot.",
		}, []string{"bot"}),
		regenerationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "regenerations_total",
			Help:      "Replies regenerated because they repeated recent content.",
		}, []string{"bot"}),
		convergencesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "convergences_total",
			Help:      "Debates that ended in agreement.",
		}),
		turnRelevance: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "turn_relevance",
			Help:      "Topic relevance of the last turn by bot.",
		}, []string{"bot"}),
		turnCoherence: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "turn_coherence",
			Help:      "Coherence of the last turn with its predecessor by bot.",
		}, []string{"bot"}),
		httpRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// ObserveCompletion records one completion call.
func (c *Collector) ObserveCompletion(botName string, elapsed time.Duration, err error) {
	if c == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.completionsTotal.WithLabelValues(botName, status).Inc()
	c.completionDuration.WithLabelValues(botName).Observe(elapsed.Seconds())
}

// ObserveStep records the outcome of one step.
func (c *Collector) ObserveStep(outcome string) {
	if c == nil {
		return
	}
	c.stepsTotal.WithLabelValues(outcome).Inc()
}

// ObserveTurn records an accepted turn and its scores.
func (c *Collector) ObserveTurn(botName string, relevance, coherence float64) {
	if c == nil {
		return
	}
	c.turnsTotal.WithLabelValues(botName).Inc()
	c.turnRelevance.WithLabelValues(botName).Set(relevance)
	c.turnCoherence.WithLabelValues(botName).Set(coherence)
}

// ObserveRegeneration records one regeneration request.
func (c *Collector) ObserveRegeneration(botName string) {
	if c == nil {
		return
	}
	c.regenerationsTotal.WithLabelValues(botName).Inc()
}

// ObserveConvergence records a debate ending in agreement.
func (c *Collector) ObserveConvergence() {
	if c == nil {
		return
	}
	c.convergencesTotal.Inc()
}

// Middleware records request counts and latency labelled by the matched
// chi route pattern.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	if c == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		c.httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		c.httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
