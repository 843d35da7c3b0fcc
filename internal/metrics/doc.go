// Package metrics declares the Prometheus metrics exported by the media
// indexer and the small adapters that feed them.
//
// All metrics are registered on the default registry through promauto and
// are prefixed with media_indexer_. Call [InitializeMetrics] once at
// startup so that every label combination is visible from the first
// scrape, even before the first build runs.
//
// Metric groups:
//
//	media_indexer_build_*       build lifecycle, per-file outcomes, batch flushes
//	media_indexer_scanner_*     directories visited, files accepted and skipped
//	media_indexer_worker*       per-file processing time, busy workers, panics
//	media_indexer_thumbnail_*   thumbnail generation by type and backend
//	media_indexer_db_*          SQLite query and transaction timings, file sizes
//	media_indexer_filesystem_*  filesystem timings and stale-handle retries
//	media_indexer_memory_*      memory pressure backpressure state
//
// [NewFilesystemObserver] adapts the filesystem metrics to the
// filesystem.Observer interface, and [Collector] periodically copies
// library totals from a [StatsProvider] into the media gauges.
package metrics
