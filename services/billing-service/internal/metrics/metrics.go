// services/billing-service/internal/metrics/metrics.go
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns the billing metrics of one registry.
type Collector struct {
	InvoicesGenerated  *prometheus.CounterVec
	FinalizeAttempts   *prometheus.CounterVec
	GenerationDuration prometheus.Histogram
}

// New registers the billing metrics on reg.
func New(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		InvoicesGenerated: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_invoices_generated_total",
				Help: "Invoice generation calls by outcome",
			},
			[]string{"outcome"}, // success, no_tariff, already_finalized, forbidden, error
		),
		FinalizeAttempts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_invoice_finalize_total",
				Help: "Invoice finalize calls by outcome",
			},
			[]string{"outcome"},
		),
		GenerationDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "billing_invoice_generation_seconds",
				Help:    "Time to generate one invoice",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
		),
	}
}

func (c *Collector) InvoiceGenerated(outcome string, took time.Duration) {
	c.InvoicesGenerated.WithLabelValues(outcome).Inc()
	c.GenerationDuration.Observe(took.Seconds())
}

func (c *Collector) FinalizeAttempt(outcome string) {
	c.FinalizeAttempts.WithLabelValues(outcome).Inc()
}

// Handler exposes the registry in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
