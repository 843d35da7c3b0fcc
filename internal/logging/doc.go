// Package logging provides leveled, printf-style logging for the media
// indexer.
//
// Levels, lowest first:
//   - DEBUG: per-entry scanner and worker detail
//   - INFO: build lifecycle and configuration
//   - WARN: recoverable problems (unreadable metadata, retries)
//   - ERROR: failed stores and fatal build aborts
//
// The level is read once from DEBUG or LOG_LEVEL. Components that log on
// behalf of one build use [With] to get a [Logger] whose lines carry a
// fixed prefix such as the build id.
package logging
