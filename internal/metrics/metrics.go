// Package metrics exposes run counters for the scrape pipeline on a
// dedicated Prometheus registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	registry *prometheus.Registry

	ProductsProcessed  *prometheus.CounterVec
	ProductsSucceeded  *prometheus.CounterVec
	ProductsFailed     *prometheus.CounterVec
	ProductsSkipped    *prometheus.CounterVec
	RetriesTotal       *prometheus.CounterVec
	BatchFlushes       prometheus.Counter
	BatchFlushFailures prometheus.Counter
	ContextRecreations prometheus.Counter
	ScrapeDuration     *prometheus.HistogramVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		ProductsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_products_processed_total",
			Help: "Product pages attempted, including retries that eventually failed.",
		}, []string{"locale"}),
		ProductsSucceeded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_products_succeeded_total",
			Help: "Product pages scraped and normalized successfully.",
		}, []string{"locale"}),
		ProductsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_products_failed_total",
			Help: "Product pages abandoned after exhausting retries.",
		}, []string{"locale"}),
		ProductsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_products_skipped_total",
			Help: "Product pages skipped as recently scraped or already visited.",
		}, []string{"locale"}),
		RetriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_retries_total",
			Help: "Per-product retry attempts beyond the first.",
		}, []string{"locale"}),
		BatchFlushes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scraper_batch_flushes_total",
			Help: "Buffer flushes to the product store.",
		}),
		BatchFlushFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scraper_batch_flush_failures_total",
			Help: "Buffer flushes whose upsert failed.",
		}),
		ContextRecreations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scraper_context_recreations_total",
			Help: "Browser contexts torn down after consecutive failures.",
		}),
		ScrapeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scraper_product_duration_seconds",
			Help:    "Wall time per successful product scrape.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}, []string{"locale"}),
	}

	registry.MustRegister(
		m.ProductsProcessed,
		m.ProductsSucceeded,
		m.ProductsFailed,
		m.ProductsSkipped,
		m.RetriesTotal,
		m.BatchFlushes,
		m.BatchFlushFailures,
		m.ContextRecreations,
		m.ScrapeDuration,
	)

	return m
}

// Registry returns the underlying registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
