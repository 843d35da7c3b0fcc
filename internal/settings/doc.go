// Package settings defines the immutable configuration snapshot a build
// runs with.
//
// A [Settings] value is copied into the dispatcher when a build starts;
// later changes to the caller's copy, including its slices, do not reach
// the running build. [LoadFromEnv] builds a snapshot from environment
// variables and logs the resolved values:
//
//	SOURCE_DIRS            source roots, separated by os.PathListSeparator
//	EXCLUDE_DIR_KEYWORDS   comma separated, matched against directory paths
//	EXCLUDE_FILE_KEYWORDS  comma separated, matched against file names
//	MIN_FILE_SIZE          lower size bound, e.g. "10KB" (optional)
//	MAX_FILE_SIZE          upper size bound, e.g. "2GiB" (optional)
//	WORKER_COUNT           worker pool size (default: half the CPUs)
//	THUMBNAIL_SIZE         square thumbnail edge in pixels (default: 256)
//	THUMBNAIL_QUALITY      WebP quality 1-100 (default: 80)
//	IGNORE_LOCATION_DATA   never read GPS coordinates (default: true)
//	INDEX_DB_PATH          SQLite index database file
//	THUMBNAIL_DIR          directory holding thumbnails.db
//	TMP_DIR                scratch directory for converted images and frames
package settings
