// Package metrics exposes Prometheus instruments for the billing service.
package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// Config identifies the service in metric const labels.
type Config struct {
	ServiceName string
	Environment string
}

// BillingMetrics captures low-cardinality billing counters.
type BillingMetrics struct {
	paymentsProcessed  *prometheus.CounterVec
	paymentAmountCents *prometheus.HistogramVec
	overdueTransitions prometheus.Counter
	summaryRequests    prometheus.Counter
}

// NewBillingMetrics registers billing instruments on the given registerer.
func NewBillingMetrics(registerer prometheus.Registerer, cfg Config) *BillingMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "clinovia"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	paymentsProcessed := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "clinovia_payments_processed_total",
			Help:        "Total charge attempts by outcome.",
			ConstLabels: constLabels,
		},
		[]string{"result"}, // paid | failed | rejected
	)

	paymentAmountCents := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:        "clinovia_payment_amount_cents",
			Help:        "Distribution of settled payment amounts in minor units.",
			Buckets:     []float64{500, 1000, 2500, 5000, 10000, 25000, 50000, 100000},
			ConstLabels: constLabels,
		},
		[]string{"currency"},
	)

	overdueTransitions := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name:        "clinovia_overdue_transitions_total",
			Help:        "Pending payments materialized as overdue by the sweep worker.",
			ConstLabels: constLabels,
		},
	)

	summaryRequests := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name:        "clinovia_payment_summary_requests_total",
			Help:        "Total payment summary computations.",
			ConstLabels: constLabels,
		},
	)

	registerer.MustRegister(
		paymentsProcessed,
		paymentAmountCents,
		overdueTransitions,
		summaryRequests,
	)

	return &BillingMetrics{
		paymentsProcessed:  paymentsProcessed,
		paymentAmountCents: paymentAmountCents,
		overdueTransitions: overdueTransitions,
		summaryRequests:    summaryRequests,
	}
}

// IncPaymentProcessed counts one charge attempt by outcome.
func (m *BillingMetrics) IncPaymentProcessed(result string) {
	if m == nil {
		return
	}
	m.paymentsProcessed.WithLabelValues(result).Inc()
}

// ObservePaymentAmount records a settled amount.
func (m *BillingMetrics) ObservePaymentAmount(currency string, amount int64) {
	if m == nil {
		return
	}
	m.paymentAmountCents.WithLabelValues(strings.ToUpper(currency)).Observe(float64(amount))
}

// AddOverdueTransitions counts payments swept to overdue.
func (m *BillingMetrics) AddOverdueTransitions(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.overdueTransitions.Add(float64(n))
}

// IncSummaryRequest counts one summary computation.
func (m *BillingMetrics) IncSummaryRequest() {
	if m == nil {
		return
	}
	m.summaryRequests.Inc()
}
