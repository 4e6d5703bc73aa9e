package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the service counters. Each instance owns its registry so
// tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	SessionsCreated   prometheus.Counter
	SessionsCompleted prometheus.Counter
	SessionsEvicted   *prometheus.CounterVec
	ActiveSessions    prometheus.Gauge
	Transitions       *prometheus.CounterVec
	Inputs            *prometheus.CounterVec
	LLMRequests       *prometheus.CounterVec
	HTTPRequests      *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		SessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "spark",
			Name:      "sessions_created_total",
			Help:      "Sessions started.",
		}),
		SessionsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "spark",
			Name:      "sessions_completed_total",
			Help:      "Sessions that reached the Completed stage.",
		}),
		SessionsEvicted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spark",
			Name:      "sessions_evicted_total",
			Help:      "Sessions removed from the live directory.",
		}, []string{"reason"}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "spark",
			Name:      "active_sessions",
			Help:      "Sessions currently held in the live directory.",
		}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spark",
			Name:      "stage_transitions_total",
			Help:      "Stage transitions by source and target stage.",
		}, []string{"from", "to"}),
		Inputs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spark",
			Name:      "inputs_total",
			Help:      "User inputs processed, by input type.",
		}, []string{"type"}),
		LLMRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spark",
			Name:      "llm_requests_total",
			Help:      "Coach LLM calls by outcome.",
		}, []string{"outcome"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spark",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status code.",
		}, []string{"method", "code"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.SessionsCreated,
		m.SessionsCompleted,
		m.SessionsEvicted,
		m.ActiveSessions,
		m.Transitions,
		m.Inputs,
		m.LLMRequests,
		m.HTTPRequests,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
