// Package memory keeps the indexer inside its container memory limit.
//
// [ConfigureFromEnv] derives GOMEMLIMIT from MEMORY_LIMIT (the container
// limit, usually injected through the Kubernetes Downward API) and
// MEMORY_RATIO. A large build keeps libvips buffers and ffmpeg children
// alive on every worker, so the Go heap gets only part of the limit.
//
// [Monitor] samples heap usage against the limit. When usage crosses the
// critical watermark it reports IsPaused until usage falls below the high
// watermark again. The build dispatcher polls IsPaused and stops handing
// out new tasks while it is set; tasks already running are unaffected and
// the build state does not change.
//
//	monitor := memory.NewMonitor(memory.DefaultConfig())
//	monitor.Start()
//	defer monitor.Stop()
//	dispatcher := build.NewDispatcher(manager, processor, build.WithBackpressure(monitor))
package memory
