// pkg/vfs/metrics.go

package vfs

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	opsDurationsHistogram = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "fuse_ops_durations_histogram_seconds",
		Help:    "Operations latency distributions.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 1.5, 30),
	})
	readSizeHistogram = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "fuse_read_size_bytes",
		Help:    "size of read distributions.",
		Buckets: prometheus.LinearBuckets(4096, 4096, 32),
	})
	chunkFetches = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chunk_fetches",
		Help: "Number of chunks fetched from the store.",
	})
	chunkFetchErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chunk_fetch_errors",
		Help: "Number of chunks the store failed to produce.",
	})
)

// InitMetrics registers the metrics of the mount.
func InitMetrics(reg prometheus.Registerer) {
	reg.MustRegister(opsDurationsHistogram)
	reg.MustRegister(readSizeHistogram)
	reg.MustRegister(chunkFetches)
	reg.MustRegister(chunkFetchErrors)
}
