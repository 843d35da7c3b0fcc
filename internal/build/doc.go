// Package build runs library builds: it scans the configured source
// directories, processes every eligible file on a pool of workers and
// writes the results to the index and thumbnail stores.
//
// A [Dispatcher] runs at most one build at a time. Each build is owned by
// a single actor goroutine that holds the task queue, the worker slots, the
// buffered records and the [Status]; the public methods talk to it over a
// channel. Workers receive one [Task] at a time and answer with exactly one
// [Result]. They never touch the stores.
//
// States:
//
//	idle -> scanning -> running <-> paused -> completed | cancelled | failed
//
// Successful records are buffered and written in batches of [FlushSize].
// Per-file failures are written immediately. Cancelling a build stops the
// workers without waiting for them and drops records that were still
// buffered.
//
// Observers registered with [Dispatcher.Subscribe] receive every status
// change, each per-file error and at most one fatal message per build, in
// order, on a notification goroutine owned by the build. Observers may call
// the control methods from a callback.
package build
