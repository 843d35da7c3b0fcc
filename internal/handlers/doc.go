// Package handlers provides the HTTP handlers of the status API served
// next to the Prometheus endpoint.
//
// It includes handlers for:
//   - Build status, pause, resume and cancel
//   - Recorded build errors
//   - Media queries, favorites and stored thumbnails
//   - Health checks, version and storage stats
package handlers
