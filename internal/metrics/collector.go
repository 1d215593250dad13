package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds all Prometheus metrics for the persistence engine. All
// record methods are nil-receiver safe so tests can pass a nil collector.
type Collector struct {
	savesTotal        *prometheus.CounterVec
	assetUploads      prometheus.Counter
	assetReuseHits    prometheus.Counter
	uploadedBytes     prometheus.Counter
	saveDuration      prometheus.Histogram
	storageOpDuration *prometheus.HistogramVec
}

// NewCollector creates and registers all engine metrics.
func NewCollector() *Collector {
	return &Collector{
		savesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scene_saves_total",
				Help: "Total number of scene save requests by result",
			},
			[]string{"result"},
		),
		assetUploads: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scene_asset_uploads_total",
				Help: "Total number of asset payloads uploaded to object storage",
			},
		),
		assetReuseHits: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scene_asset_reuse_hits_total",
				Help: "Total number of asset payloads deduplicated against existing rows",
			},
		),
		uploadedBytes: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scene_asset_uploaded_bytes_total",
				Help: "Total bytes uploaded to object storage",
			},
		),
		saveDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "scene_save_duration_seconds",
				Help:    "Duration of scene save requests in seconds",
				Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
		),
		storageOpDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scene_storage_op_duration_seconds",
				Help:    "Duration of object-storage operations in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"op", "status"},
		),
	}
}

// RecordSave records one save request outcome and its duration.
func (c *Collector) RecordSave(result string, d time.Duration) {
	if c == nil {
		return
	}
	c.savesTotal.WithLabelValues(result).Inc()
	c.saveDuration.Observe(d.Seconds())
}

// RecordAssetUpload counts one uploaded payload and its size.
func (c *Collector) RecordAssetUpload(bytes int64) {
	if c == nil {
		return
	}
	c.assetUploads.Inc()
	c.uploadedBytes.Add(float64(bytes))
}

// RecordAssetReuse counts one dedup hit against an existing asset row.
func (c *Collector) RecordAssetReuse() {
	if c == nil {
		return
	}
	c.assetReuseHits.Inc()
}

// ObserveStorageOp records the latency and status of one gateway operation.
func (c *Collector) ObserveStorageOp(op string, d time.Duration, err error) {
	if c == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.storageOpDuration.WithLabelValues(op, status).Observe(d.Seconds())
}
