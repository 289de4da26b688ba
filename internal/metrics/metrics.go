package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service collectors on a private registry
type Metrics struct {
	registry *prometheus.Registry

	SweepsTotal    *prometheus.CounterVec
	SweepDuration  *prometheus.HistogramVec
	SweepFailures  *prometheus.CounterVec
	Candidates     *prometheus.CounterVec
	Dispatches     *prometheus.CounterVec
	AutoMissed     prometheus.Counter
	DosesLogged    *prometheus.CounterVec
	DuplicateDoses prometheus.Counter
}

// New registers all collectors. Each call builds an independent registry so tests can
// create as many as they like.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		SweepsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "adherence",
			Name:      "scheduler_sweeps_total",
			Help:      "Reminder sweeps run, by kind.",
		}, []string{"kind"}),
		SweepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "adherence",
			Name:      "scheduler_sweep_duration_seconds",
			Help:      "Wall time of reminder sweeps, by kind.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		SweepFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "adherence",
			Name:      "scheduler_sweep_failures_total",
			Help:      "Sweeps skipped because a provider failed, by kind.",
		}, []string{"kind"}),
		Candidates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "adherence",
			Name:      "scheduler_candidates_total",
			Help:      "Unlogged dose instants found by sweeps, by kind.",
		}, []string{"kind"}),
		Dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "adherence",
			Name:      "notifications_total",
			Help:      "Notification attempts, by kind, channel and outcome.",
		}, []string{"kind", "channel", "outcome"}),
		AutoMissed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "adherence",
			Name:      "doses_auto_missed_total",
			Help:      "Doses recorded as missed by the scheduler.",
		}),
		DosesLogged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "adherence",
			Name:      "doses_logged_total",
			Help:      "Dose records written, by status and source.",
		}, []string{"status", "source"}),
		DuplicateDoses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "adherence",
			Name:      "doses_duplicate_total",
			Help:      "Dose writes rejected because the dose was already logged.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.SweepsTotal,
		m.SweepDuration,
		m.SweepFailures,
		m.Candidates,
		m.Dispatches,
		m.AutoMissed,
		m.DosesLogged,
		m.DuplicateDoses,
	)
	return m
}

// Registry exposes the underlying registry for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
