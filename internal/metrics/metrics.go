// Package metrics owns the prometheus registry and the gateway's counters.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles every instrument the gateway exports. One instance per
// process, wired through the inspect service and the API.
type Metrics struct {
	registry *prometheus.Registry

	InspectionsTotal *prometheus.CounterVec
	QueueDepth       prometheus.Gauge
	ReadyBots        prometheus.Gauge
	InspectDuration  prometheus.Histogram
}

// Inspection outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
	OutcomeCached  = "cached"
	OutcomeTimeout = "timeout"
	OutcomeRetried = "retried"
)

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		InspectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_inspections_total",
			Help: "Inspect requests by outcome.",
		}, []string{"outcome"}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gateway_queue_depth",
			Help: "Requests currently held in the admission set.",
		}),
		ReadyBots: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gateway_ready_bots",
			Help: "Bots in READY state across all workers.",
		}),
		InspectDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gateway_inspect_duration_seconds",
			Help:    "Wall time of fresh inspections, successful ones only.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
	}

	m.registry.MustRegister(
		m.InspectionsTotal,
		m.QueueDepth,
		m.ReadyBots,
		m.InspectDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Pre-create the outcome series so dashboards see zeros, not gaps.
	for _, outcome := range []string{OutcomeSuccess, OutcomeFailed, OutcomeCached, OutcomeTimeout, OutcomeRetried} {
		m.InspectionsTotal.WithLabelValues(outcome)
	}
	return m
}

// Handler serves the /metrics endpoint off the private registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
