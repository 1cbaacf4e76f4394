package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors of the service.
type Metrics struct {
	// Registry owns the collectors and backs the /metrics endpoint.
	Registry *prometheus.Registry

	dealsCreated *prometheus.CounterVec
	dealFailures *prometheus.CounterVec
	reportRows   *prometheus.CounterVec
}

// New creates a private registry so repeated construction in tests does not
// panic on duplicate registration.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		dealsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deals_created_total",
				Help: "Deals created, by issuer type.",
			},
			[]string{"issuer_type"},
		),
		dealFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deal_code_failures_total",
				Help: "Deal code generation failures, by stage.",
			},
			[]string{"stage"},
		),
		reportRows: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "report_rows_formatted_total",
				Help: "Analytics rows given a display date, by option and outcome.",
			},
			[]string{"option", "outcome"},
		),
	}
}

// IncrDealCreated counts a created deal.
func (m *Metrics) IncrDealCreated(issuerType string) {
	m.dealsCreated.WithLabelValues(issuerType).Inc()
}

// IncrDealCodeFailure counts a failed generation; stage is "lookup" or "save".
func (m *Metrics) IncrDealCodeFailure(stage string) {
	m.dealFailures.WithLabelValues(stage).Inc()
}

// IncrReportRow counts a formatted row; outcome is "ok", "skipped" or "failed".
func (m *Metrics) IncrReportRow(option, outcome string) {
	m.reportRows.WithLabelValues(option, outcome).Inc()
}
