package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Build lifecycle metrics
var (
	BuildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_indexer_builds_total",
			Help: "Total number of finished builds by terminal state",
		},
		[]string{"state"}, // "completed", "cancelled", "failed"
	)

	BuildRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_indexer_build_running",
			Help: "Whether a build is currently active (1 = active, 0 = idle)",
		},
	)

	BuildPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_indexer_build_paused",
			Help: "Whether the active build is paused (1 = paused, 0 = not paused)",
		},
	)

	BuildLastDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_indexer_build_last_duration_seconds",
			Help: "Duration of the last finished build in seconds",
		},
	)

	BuildLastTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_indexer_build_last_timestamp",
			Help: "Unix timestamp of the last finished build",
		},
	)

	BuildFilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_indexer_build_files_total",
			Help: "Total number of files whose result was accounted by a build",
		},
		[]string{"result"}, // "succeeded", "failed"
	)

	BuildErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_indexer_build_errors_total",
			Help: "Total number of per-file build errors by stage",
		},
		[]string{"stage"},
	)

	BuildFlushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_indexer_build_flushes_total",
			Help: "Total number of batch flushes to the index store",
		},
		[]string{"status"},
	)

	BuildFlushSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_indexer_build_flush_records",
			Help:    "Number of records written per batch flush",
			Buckets: []float64{1, 5, 10, 25, 50, 75, 100},
		},
	)
)

// Scanner metrics
var (
	ScannerDirectoriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_indexer_scanner_directories_total",
			Help: "Total number of directories visited by the scanner",
		},
	)

	ScannerFilesDiscovered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_indexer_scanner_files_discovered_total",
			Help: "Total number of media files accepted by the scanner",
		},
	)

	ScannerFilesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_indexer_scanner_files_skipped_total",
			Help: "Total number of entries skipped by the scanner by reason",
		},
		[]string{"reason"}, // "keyword", "extension", "size", "unreadable"
	)

	ScannerDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_indexer_scanner_duration_seconds",
			Help:    "Duration of a full scan in seconds",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 300, 900},
		},
	)
)

// Worker metrics
var (
	WorkersBusy = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_indexer_workers_busy",
			Help: "Number of workers currently processing a file",
		},
	)

	WorkerProcessDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_indexer_worker_process_duration_seconds",
			Help:    "Time to process a single file in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"media_type"},
	)

	WorkerPanicsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_indexer_worker_panics_total",
			Help: "Total number of recovered worker panics",
		},
	)
)

// Thumbnail metrics
var (
	ThumbnailGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_indexer_thumbnail_generations_total",
			Help: "Total number of thumbnail generations",
		},
		[]string{"type", "status"},
	)

	ThumbnailGenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_indexer_thumbnail_generation_duration_seconds",
			Help:    "Thumbnail generation duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"type", "backend"}, // backend: "vips", "imaging", "ffmpeg"
	)

	ThumbnailFFmpegDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_indexer_thumbnail_ffmpeg_duration_seconds",
			Help:    "Duration of ffmpeg and ffprobe invocations in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"operation"}, // "frame", "convert", "probe"
	)

	ThumbnailBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_indexer_thumbnail_bytes",
			Help:    "Encoded thumbnail size in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 2, 10),
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_indexer_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_indexer_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBTransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_indexer_db_transaction_duration_seconds",
			Help:    "Database transaction duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"type"}, // "commit", "rollback"
	)

	DBSizeBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_indexer_db_size_bytes",
			Help: "Size of SQLite database files in bytes",
		},
		[]string{"store", "file"}, // store: "index", "thumbnails"; file: "main", "wal", "shm"
	)
)

// Media library metrics
var (
	MediaFilesTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_indexer_media_files_total",
			Help: "Total number of indexed media files by type",
		},
		[]string{"type"},
	)

	MediaFavoritesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_indexer_favorites_total",
			Help: "Total number of favorite media files",
		},
	)

	MediaThumbnailsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_indexer_thumbnails_total",
			Help: "Total number of stored thumbnails",
		},
	)
)

// Filesystem metrics
var (
	FilesystemOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_indexer_filesystem_operation_duration_seconds",
			Help:    "Filesystem operation duration in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"volume", "operation"},
	)

	FilesystemOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_indexer_filesystem_operation_errors_total",
			Help: "Total number of failed filesystem operations",
		},
		[]string{"volume", "operation"},
	)

	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_indexer_filesystem_retry_attempts_total",
			Help: "Total number of filesystem retry attempts after stale handle errors",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_indexer_filesystem_retry_success_total",
			Help: "Total number of filesystem operations that succeeded after retrying",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_indexer_filesystem_retry_failures_total",
			Help: "Total number of filesystem operations that failed after all retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_indexer_filesystem_stale_errors_total",
			Help: "Total number of stale file handle errors",
		},
		[]string{"operation", "volume"},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_indexer_memory_usage_ratio",
			Help: "Heap allocation as a ratio of the configured memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_indexer_memory_paused",
			Help: "Whether dispatching is held back by memory pressure (1 = held, 0 = free)",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_indexer_memory_gc_triggers_total",
			Help: "Total number of forced garbage collections on critical memory usage",
		},
	)
)

// HTTP metrics for the status API
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_indexer_http_requests_total",
			Help: "Total number of HTTP requests to the status API",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_indexer_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_indexer_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_indexer_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
