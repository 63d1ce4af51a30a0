package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollector_DebateMetrics(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())

	c.ObserveCompletion("Bot1", 200*time.Millisecond, nil)
	c.ObserveCompletion("Bot1", time.Second, errors.New("boom"))
	c.ObserveStep("accepted")
	c.ObserveStep("accepted")
	c.ObserveStep("error")
	c.ObserveTurn("Bot2", 0.4, 0.9)
	c.ObserveRegeneration("Bot2")
	c.ObserveConvergence()

	assert.Equal(t, 1.0, testutil.ToFloat64(c.completionsTotal.WithLabelValues("Bot1", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.completionsTotal.WithLabelValues("Bot1", "error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.stepsTotal.WithLabelValues("accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.turnsTotal.WithLabelValues("Bot2")))
	assert.Equal(t, 0.4, testutil.ToFloat64(c.turnRelevance.WithLabelValues("Bot2")))
	assert.Equal(t, 0.9, testutil.ToFloat64(c.turnCoherence.WithLabelValues("Bot2")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.regenerationsTotal.WithLabelValues("Bot2")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.convergencesTotal))
	assert.Equal(t, 1, testutil.CollectAndCount(c.completionDuration))
}

func TestCollector_Nil(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.ObserveCompletion("Bot1", time.Second, nil)
		c.ObserveStep("accepted")
		c.ObserveTurn("Bot1", 1, 1)
		c.ObserveRegeneration("Bot1")
		c.ObserveConvergence()
	})
	h := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	assert.NotNil(t, c.Middleware(h))
}

func TestCollector_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector(reg)
	assert.Panics(t, func() { NewCollector(reg) })
}

func TestCollector_Middleware(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())
	r := chi.NewRouter()
	r.Use(c.Middleware)
	r.Get("/api/debates/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/debates/"+id, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(c.httpRequestsTotal.WithLabelValues("GET", "/api/debates/{id}", "404")))
}
