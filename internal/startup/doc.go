// Package startup handles process initialization and the startup and
// shutdown log sections.
//
// # Configuration
//
// [LoadConfig] prints the banner and system information, loads the build
// settings through settings.LoadFromEnv and reads the process-level
// variables:
//
//   - METRICS_ENABLED: serve metrics and the build status API (default: true)
//   - METRICS_PORT: port for that server (default: 9090)
//   - MEMORY_LIMIT, MEMORY_RATIO, GOMEMLIMIT: see the memory package
//
// # Directory Setup
//
// The directory holding INDEX_DB_PATH must exist (it is created if
// missing) and be writable. THUMBNAIL_DIR and the scratch directory are
// created on demand. Source directories are only checked and reported;
// an unreadable source root is skipped by the scanner rather than
// stopping the process.
//
// # Log Sections
//
// Every phase logs a section headed by a dashed rule and a title, with
// "[OK]" lines for completed steps:
//
//	------------------------------------------------------------
//	STORE INITIALIZATION
//	------------------------------------------------------------
//	  [OK] Stores opened in 4.2ms
package startup
