package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg              *prometheus.Registry
	SalesProcessed   prometheus.Counter
	SalesDuplicate   prometheus.Counter
	SalesRejected    prometheus.Counter
	BatchesReceived  prometheus.Counter
	BatchTxns        prometheus.Histogram
	BatchLatencySec  prometheus.Histogram
	CatalogCacheHit  prometheus.Counter
	CatalogCacheMiss prometheus.Counter
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	processed := prometheus.NewCounter(prometheus.CounterOpts{Name: "pos_sales_processed_total"})
	duplicate := prometheus.NewCounter(prometheus.CounterOpts{Name: "pos_sales_duplicate_total"})
	rejected := prometheus.NewCounter(prometheus.CounterOpts{Name: "pos_sales_rejected_total"})
	batches := prometheus.NewCounter(prometheus.CounterOpts{Name: "pos_sync_batches_received_total"})
	batchTxns := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pos_sync_batch_transactions",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250},
	})
	batchLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pos_sync_batch_latency_seconds",
		Buckets: prometheus.DefBuckets,
	})
	cacheHit := prometheus.NewCounter(prometheus.CounterOpts{Name: "pos_catalog_cache_hit_total"})
	cacheMiss := prometheus.NewCounter(prometheus.CounterOpts{Name: "pos_catalog_cache_miss_total"})

	r.MustRegister(processed, duplicate, rejected, batches, batchTxns, batchLatency, cacheHit, cacheMiss)
	return &Registry{
		reg:              r,
		SalesProcessed:   processed,
		SalesDuplicate:   duplicate,
		SalesRejected:    rejected,
		BatchesReceived:  batches,
		BatchTxns:        batchTxns,
		BatchLatencySec:  batchLatency,
		CatalogCacheHit:  cacheHit,
		CatalogCacheMiss: cacheMiss,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
