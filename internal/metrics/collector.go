package metrics

import (
	"time"

	"media-indexer/internal/logging"
)

// StatsProvider reports library totals for the media gauges.
type StatsProvider interface {
	LibraryStats() (LibraryStats, error)
}

// LibraryStats holds totals read from the index and thumbnail stores.
type LibraryStats struct {
	Images     int
	Videos     int
	Favorites  int
	Thumbnails int
}

// Collector periodically copies library totals into the media gauges.
type Collector struct {
	provider StatsProvider
	interval time.Duration
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		provider: provider,
		interval: interval,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the collection loop and waits for it to exit.
func (c *Collector) Stop() {
	close(c.stopChan)
	<-c.doneChan
}

func (c *Collector) collectLoop() {
	defer close(c.doneChan)

	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.provider == nil {
		return
	}

	stats, err := c.provider.LibraryStats()
	if err != nil {
		// Stores are not connected until the first build starts.
		logging.Debug("Metrics collection skipped: %v", err)
		return
	}

	MediaFilesTotal.WithLabelValues("image").Set(float64(stats.Images))
	MediaFilesTotal.WithLabelValues("video").Set(float64(stats.Videos))
	MediaFavoritesTotal.Set(float64(stats.Favorites))
	MediaThumbnailsTotal.Set(float64(stats.Thumbnails))

	logging.Debug("Metrics collected: images=%d, videos=%d, favorites=%d, thumbnails=%d",
		stats.Images, stats.Videos, stats.Favorites, stats.Thumbnails)
}
