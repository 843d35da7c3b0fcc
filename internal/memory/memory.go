package memory

import (
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"media-indexer/internal/logging"
	"media-indexer/internal/metrics"
)

// Config holds memory monitor configuration
type Config struct {
	// LimitBytes is the soft memory limit. Zero uses GOMEMLIMIT; without
	// either the monitor never reports pressure.
	LimitBytes int64

	// HighWaterMark is the usage ratio below which a held dispatcher is released.
	HighWaterMark float64

	// CriticalWaterMark is the usage ratio at which dispatching is held.
	CriticalWaterMark float64

	// CheckInterval is how often heap usage is sampled.
	CheckInterval time.Duration
}

// DefaultConfig returns the default watermarks and sampling interval.
func DefaultConfig() Config {
	return Config{
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     5 * time.Second,
	}
}

// Monitor samples heap usage and reports when new work should be held
// back. It satisfies the dispatcher's backpressure hook through IsPaused.
type Monitor struct {
	config Config
	limit  int64

	// heapAlloc is replaced in tests.
	heapAlloc func() uint64

	mu       sync.RWMutex
	current  uint64
	isPaused bool

	stopOnce sync.Once
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewMonitor creates a new memory monitor
func NewMonitor(config Config) *Monitor {
	limit := config.LimitBytes
	if limit == 0 {
		if goMemLimit := debug.SetMemoryLimit(-1); goMemLimit > 0 && goMemLimit < 1<<62 {
			limit = goMemLimit
			logging.Info("Memory monitor using GOMEMLIMIT: %s", humanize.IBytes(uint64(limit)))
		}
	}

	if limit == 0 {
		logging.Warn("Memory monitor: no memory limit configured, backpressure disabled")
	}

	return &Monitor{
		config:    config,
		limit:     limit,
		heapAlloc: readHeapAlloc,
		stopChan:  make(chan struct{}),
		doneChan:  make(chan struct{}),
	}
}

func readHeapAlloc() uint64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.Alloc
}

// Enabled reports whether a limit is configured.
func (m *Monitor) Enabled() bool {
	return m.limit > 0
}

// Start begins sampling. It does nothing when no limit is configured.
func (m *Monitor) Start() {
	if !m.Enabled() {
		close(m.doneChan)
		return
	}
	go m.monitorLoop()
}

// Stop stops sampling and waits for the loop to exit. Stop after Start
// may be called more than once.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopChan) })
	<-m.doneChan
}

func (m *Monitor) monitorLoop() {
	defer close(m.doneChan)

	ticker := time.NewTicker(m.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.check()
		case <-m.stopChan:
			return
		}
	}
}

// check samples heap usage once and updates the paused state. Between the
// two watermarks the previous state is kept.
func (m *Monitor) check() {
	alloc := m.heapAlloc()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.current = alloc
	if m.limit <= 0 {
		return
	}

	usage := float64(alloc) / float64(m.limit)
	metrics.MemoryUsageRatio.Set(usage)

	switch {
	case usage >= m.config.CriticalWaterMark && !m.isPaused:
		logging.Warn("Memory critical (%.1f%% of limit), holding new tasks", usage*100)
		m.isPaused = true
		metrics.MemoryPaused.Set(1)
		metrics.MemoryGCPauses.Inc()
		go runtime.GC()
	case usage < m.config.HighWaterMark && m.isPaused:
		logging.Info("Memory recovered (%.1f%% of limit), releasing tasks", usage*100)
		m.isPaused = false
		metrics.MemoryPaused.Set(0)
	}
}

// IsPaused reports whether new tasks should be held back.
func (m *Monitor) IsPaused() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isPaused
}

// Usage returns the last sampled heap usage as a ratio of the limit, or 0
// without a limit.
func (m *Monitor) Usage() float64 {
	if m.limit == 0 {
		return 0
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return float64(m.current) / float64(m.limit)
}
