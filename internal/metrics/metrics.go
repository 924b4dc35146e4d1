// Package metrics exposes Prometheus metrics for reminder runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dvloznov/finance-reminders/internal/reminder"
)

// Run statuses.
const (
	StatusSuccess  = "SUCCESS"
	StatusDegraded = "DEGRADED"
)

// Metrics holds the reminder collectors registered on their own registry.
type Metrics struct {
	registry *prometheus.Registry

	Decisions    *prometheus.CounterVec
	Runs         *prometheus.CounterVec
	RunUsers     prometheus.Gauge
	RunReminders prometheus.Gauge
	RunDuration  prometheus.Histogram
	PersistFails *prometheus.CounterVec
}

// New creates and registers the collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Decisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reminder_decisions_total",
				Help: "Terminal reminder decisions by reason",
			},
			[]string{"reason"},
		),
		Runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reminder_runs_total",
				Help: "Reminder runs by status",
			},
			[]string{"status"},
		),
		RunUsers: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "reminder_run_users",
				Help: "Recipients considered in the last run",
			},
		),
		RunReminders: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "reminder_run_reminders",
				Help: "Open ledger entries seen in the last run",
			},
		),
		RunDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "reminder_run_duration_seconds",
				Help:    "Duration of reminder runs in seconds",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
		),
		PersistFails: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reminder_run_persist_failures_total",
				Help: "Failures to record a run summary by target",
			},
			[]string{"target"},
		),
	}
}

// Status returns the run status for an outcome.
func Status(out reminder.Outcome) string {
	if out.Degraded() {
		return StatusDegraded
	}
	return StatusSuccess
}

// ObserveOutcome records a finished run.
func (m *Metrics) ObserveOutcome(out reminder.Outcome, elapsed time.Duration) {
	for _, reason := range reminder.Reasons {
		if n := out.Reasons[reason]; n > 0 {
			m.Decisions.WithLabelValues(string(reason)).Add(float64(n))
		}
	}
	m.Runs.WithLabelValues(Status(out)).Inc()
	m.RunUsers.Set(float64(out.UsersConsidered))
	m.RunReminders.Set(float64(out.RemindersTotal))
	m.RunDuration.Observe(elapsed.Seconds())
}

// PersistFailed counts a failed write of a run summary to target.
func (m *Metrics) PersistFailed(target string) {
	m.PersistFails.WithLabelValues(target).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
