package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DunningMetrics holds the Prometheus metrics of the billing engine.
// A nil *DunningMetrics is valid and records nothing.
type DunningMetrics struct {
	RemindersTotal      *prometheus.CounterVec
	SuspensionsTotal    prometheus.Counter
	ReactivationsTotal  prometheus.Counter
	OverdueMarkedTotal  prometheus.Counter
	SkippedRecordsTotal prometheus.Counter
	DelinquentMembers   *prometheus.GaugeVec
}

// New creates and registers the dunning metrics.
func New(registry prometheus.Registerer) *DunningMetrics {
	m := &DunningMetrics{
		RemindersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coop_billing_reminders_total",
				Help: "Reminder dispatch results by event kind and outcome",
			},
			[]string{"event_kind", "outcome"},
		),
		SuspensionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coop_billing_suspensions_total",
			Help: "Members suspended for critical delinquency",
		}),
		ReactivationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coop_billing_reactivations_total",
			Help: "Suspended members reactivated after payment",
		}),
		OverdueMarkedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coop_billing_payments_marked_overdue_total",
			Help: "Pending payments transitioned to overdue",
		}),
		SkippedRecordsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coop_billing_skipped_records_total",
			Help: "Members skipped because of missing or inactive plan data",
		}),
		DelinquentMembers: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "coop_billing_delinquent_members",
				Help: "Members in the last delinquency report by severity",
			},
			[]string{"severity"},
		),
	}

	registry.MustRegister(
		m.RemindersTotal,
		m.SuspensionsTotal,
		m.ReactivationsTotal,
		m.OverdueMarkedTotal,
		m.SkippedRecordsTotal,
		m.DelinquentMembers,
	)
	return m
}

func (m *DunningMetrics) ObserveReminder(eventKind, outcome string) {
	if m == nil {
		return
	}
	m.RemindersTotal.WithLabelValues(eventKind, outcome).Inc()
}

func (m *DunningMetrics) AddSuspensions(n int) {
	if m == nil {
		return
	}
	m.SuspensionsTotal.Add(float64(n))
}

func (m *DunningMetrics) AddReactivations(n int) {
	if m == nil {
		return
	}
	m.ReactivationsTotal.Add(float64(n))
}

func (m *DunningMetrics) AddOverdueMarked(n int) {
	if m == nil {
		return
	}
	m.OverdueMarkedTotal.Add(float64(n))
}

func (m *DunningMetrics) IncSkippedRecords() {
	if m == nil {
		return
	}
	m.SkippedRecordsTotal.Inc()
}

// SetDelinquent replaces the per-severity gauge with the counts from the latest report.
func (m *DunningMetrics) SetDelinquent(bySeverity map[string]int) {
	if m == nil {
		return
	}
	m.DelinquentMembers.Reset()
	for severity, n := range bySeverity {
		m.DelinquentMembers.WithLabelValues(severity).Set(float64(n))
	}
}

// Handler exposes the registry over HTTP.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
