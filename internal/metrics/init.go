package metrics

// Stages lists the build error stages exported from the first scrape.
var Stages = []string{"scan", "metadata", "thumbnail", "db"}

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, state := range []string{"completed", "cancelled", "failed"} {
		BuildsTotal.WithLabelValues(state)
	}
	for _, result := range []string{"succeeded", "failed"} {
		BuildFilesTotal.WithLabelValues(result)
	}
	for _, stage := range Stages {
		BuildErrorsTotal.WithLabelValues(stage)
	}
	for _, status := range []string{"success", "error"} {
		BuildFlushesTotal.WithLabelValues(status)
	}

	for _, reason := range []string{"keyword", "extension", "size", "unreadable"} {
		ScannerFilesSkipped.WithLabelValues(reason)
	}

	for _, t := range []string{"image", "video"} {
		WorkerProcessDuration.WithLabelValues(t)
		MediaFilesTotal.WithLabelValues(t)
		for _, status := range []string{"success", "error"} {
			ThumbnailGenerationsTotal.WithLabelValues(t, status)
		}
	}
	ThumbnailGenerationDuration.WithLabelValues("image", "vips")
	ThumbnailGenerationDuration.WithLabelValues("image", "imaging")
	ThumbnailGenerationDuration.WithLabelValues("video", "ffmpeg")
	for _, op := range []string{"frame", "convert", "probe"} {
		ThumbnailFFmpegDuration.WithLabelValues(op)
	}

	for _, op := range []string{"initialize_schema", "clear_media_and_errors", "upsert_media", "add_build_error",
		"clear_build_errors", "clear_thumbnails", "query_media", "query_build_errors", "toggle_favorite",
		"upsert_thumbnail", "get_thumbnail", "stats", "begin_transaction", "commit", "rollback"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}
	for _, t := range []string{"commit", "rollback"} {
		DBTransactionDuration.WithLabelValues(t)
	}
	for _, store := range []string{"index", "thumbnails"} {
		for _, file := range []string{"main", "wal", "shm"} {
			DBSizeBytes.WithLabelValues(store, file)
		}
	}

	volumes := []string{"source", "database", "thumbnails", "tmp", "unknown"}
	for _, vol := range volumes {
		for _, op := range []string{"stat", "open", "readdir"} {
			FilesystemOperationDuration.WithLabelValues(vol, op)
			FilesystemOperationErrors.WithLabelValues(vol, op)
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
		}
	}
}
