package services

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the counters of the linking services. A nil *Metrics
// records nothing.
type Metrics struct {
	suggestions    *prometheus.CounterVec
	reconciled     *prometheus.CounterVec
	reportsApplied *prometheus.CounterVec
}

// NewMetrics creates the counters and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		suggestions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "entity_links_suggestions_total",
			Help: "Total number of bib fields processed by link suggestion, by outcome.",
		}, []string{"status", "cause"}),
		reconciled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "entity_links_reconciled_total",
			Help: "Total number of links created, updated or deleted by reconciliation.",
		}, []string{"op"}),
		reportsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "entity_links_reports_applied_total",
			Help: "Total number of link update reports applied, by report status.",
		}, []string{"status"}),
	}
	reg.MustRegister(m.suggestions, m.reconciled, m.reportsApplied)
	return m
}

func (m *Metrics) suggestion(status string, cause string) {
	if m == nil {
		return
	}
	m.suggestions.WithLabelValues(status, cause).Inc()
}

func (m *Metrics) reconciliation(op string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.reconciled.WithLabelValues(op).Add(float64(n))
}

func (m *Metrics) reportApplied(status string) {
	if m == nil {
		return
	}
	m.reportsApplied.WithLabelValues(status).Inc()
}
