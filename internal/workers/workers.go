package workers

import "runtime"

// Count returns a worker count scaled from the available CPUs.
// It respects container CPU limits via GOMAXPROCS.
//
// The multiplier adjusts for task characteristics:
//   - 0.5 for decode/encode heavy work that shells out to ffmpeg
//   - 1.0 for purely CPU-bound tasks
//
// The limit parameter caps the result. Use 0 for no limit.
// The result is never below 1.
func Count(multiplier float64, limit int) int {
	available := runtime.GOMAXPROCS(0)

	workers := int(float64(available) * multiplier)

	if workers < 1 {
		workers = 1
	}
	if limit > 0 && workers > limit {
		workers = limit
	}

	return workers
}

// Default returns the build worker count used when none is configured:
// half the available CPUs, at least one.
func Default() int {
	return Count(0.5, 0)
}

// Clamp returns n, or 1 when n is below 1.
func Clamp(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
