// Command media-indexer builds a searchable index of a local photo and
// video library.
//
// A build walks the configured source directories, reads capture metadata
// from every image and video, renders a square WebP thumbnail and writes
// the results to two SQLite databases: the index (media rows and build
// errors) and the thumbnail store. Each build is a full re-index; the
// previous contents are cleared when scanning finishes.
//
// # Application Lifecycle
//
//  1. Memory Configuration: sets GOMEMLIMIT from MEMORY_LIMIT
//  2. Configuration Loading: reads environment variables and prepares directories
//  3. Media Tools: starts libvips when available and checks ffmpeg/ffprobe
//  4. Build: scans, then processes files on a worker pool, flushing rows in batches of 100
//  5. Status API: serves /metrics, /healthz and /api/build/* on METRICS_PORT
//  6. Graceful Shutdown: SIGINT/SIGTERM cancels the build and stops the server
//
// With METRICS_ENABLED=false the process exits when the build ends.
// Otherwise it keeps serving the finished index until it is signalled.
// The exit status is 1 when the build failed.
//
// # Build Control
//
//	curl -X POST localhost:9090/api/build/pause
//	curl -X POST localhost:9090/api/build/resume
//	curl -X POST localhost:9090/api/build/cancel
//	curl localhost:9090/api/build/errors?limit=20
//
// Pausing lets tasks already on a worker finish; no new task starts until
// the build is resumed. Cancelling stops immediately and discards rows
// that were not flushed yet.
package main
