package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors on a private registry,
// so several instances can coexist in one process (tests).
type Metrics struct {
	reg *prometheus.Registry

	requests *prometheus.CounterVec
	failures *prometheus.CounterVec

	created   *prometheus.CounterVec
	reused    *prometheus.CounterVec
	removed   *prometheus.CounterVec
	live      *prometheus.GaugeVec
	recovered *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		reg: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "solo_admin_requests_total",
			Help: "Total admin requests handled",
		}, []string{"method"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "solo_admin_failures_total",
			Help: "Total admin requests answered with a 4xx or 5xx status",
		}, []string{"method"}),
		created: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "solo_resources_created_total",
			Help: "Resources constructed by the registry",
		}, []string{"scope", "kind"}),
		reused: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "solo_resources_reused_total",
			Help: "Show-or-create calls served by a live resource",
		}, []string{"scope", "kind"}),
		removed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "solo_resources_removed_total",
			Help: "Registry entries removed",
		}, []string{"scope", "kind"}),
		live: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "solo_resources_live",
			Help: "Registry entries currently held",
		}, []string{"scope", "kind"}),
		recovered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "solo_recovered_errors_total",
			Help: "Errors recovered inside the registry",
		}, []string{"handled"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests, m.failures,
		m.created, m.reused, m.removed, m.live, m.recovered,
	)
	return m
}

func (m *Metrics) IncRequests(method string) { m.requests.WithLabelValues(method).Inc() }
func (m *Metrics) IncFailures(method string) { m.failures.WithLabelValues(method).Inc() }

// ResourceCreated, ResourceReused and ResourceRemoved implement
// registry.Recorder.
func (m *Metrics) ResourceCreated(scope, kind string) {
	m.created.WithLabelValues(scope, kind).Inc()
	m.live.WithLabelValues(scope, kind).Inc()
}

func (m *Metrics) ResourceReused(scope, kind string) {
	m.reused.WithLabelValues(scope, kind).Inc()
}

func (m *Metrics) ResourceRemoved(scope, kind string) {
	m.removed.WithLabelValues(scope, kind).Inc()
	m.live.WithLabelValues(scope, kind).Dec()
}

func (m *Metrics) incRecovered(handled bool) {
	label := "false"
	if handled {
		label = "true"
	}
	m.recovered.WithLabelValues(label).Inc()
}

// Registry exposes the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}
