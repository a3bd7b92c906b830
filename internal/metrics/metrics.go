// Package metrics exposes the averager's Prometheus instruments.
//
// Each [Metrics] registers on its own registry so several instances can
// live in one process (tests, embedded SDK users).
package metrics

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "averager"

// Metrics holds the collectors updated by the poll loop and the store.
type Metrics struct {
	registry *prometheus.Registry

	outcomes *prometheus.CounterVec
	latency  prometheus.Histogram
	samples  prometheus.Gauge
	average  prometheus.Gauge
	state    *prometheus.GaugeVec

	stateMu sync.Mutex
}

// New creates the collectors and registers them on reg. A nil reg gets a
// fresh registry that also carries the Go runtime and process collectors.
func New(reg *prometheus.Registry) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	m := &Metrics{
		registry: reg,
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_outcomes_total",
			Help:      "Fetch attempts against the source, by classified outcome.",
		}, []string{"outcome"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_latency_seconds",
			Help:      "Round-trip latency of requests to the source.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		samples: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "samples",
			Help:      "Number of samples currently held in memory.",
		}),
		average: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "average",
			Help:      "Running average of the held samples (0 when empty).",
		}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "poller_state",
			Help:      "1 for the poller's current state, 0 otherwise.",
		}, []string{"state"}),
	}

	for _, c := range []prometheus.Collector{m.outcomes, m.latency, m.samples, m.average, m.state} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return m, nil
}

// ObserveOutcome counts one fetch attempt. Latency is recorded only when
// the request reached the network.
func (m *Metrics) ObserveOutcome(outcome string, latency time.Duration) {
	m.outcomes.WithLabelValues(outcome).Inc()
	if latency > 0 {
		m.latency.Observe(latency.Seconds())
	}
}

// SetSamples publishes the store size and average.
func (m *Metrics) SetSamples(count int, average float64) {
	m.samples.Set(float64(count))
	m.average.Set(average)
}

// SetState marks state as current and zeroes every other known state.
func (m *Metrics) SetState(state string, known ...string) {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	for _, s := range known {
		m.state.WithLabelValues(s).Set(0)
	}
	m.state.WithLabelValues(state).Set(1)
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
