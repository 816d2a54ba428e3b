package metrics

import (
	"time"

	"media-shelf/internal/logging"
)

// StatsProvider supplies the row counts exported by the Collector.
type StatsProvider interface {
	GetStats() (Stats, error)
}

// StatsFunc adapts a plain function to StatsProvider.
type StatsFunc func() (Stats, error)

// GetStats calls f.
func (f StatsFunc) GetStats() (Stats, error) {
	return f()
}

// Stats holds the current storage statistics
type Stats struct {
	Users          int
	Titles         int
	Items          int
	Thumbnails     int
	PendingEntries int
}

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
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
	if c.statsProvider == nil {
		return
	}

	stats, err := c.statsProvider.GetStats()
	if err != nil {
		logging.Warn("Metrics collection failed: %v", err)
		return
	}

	StoredRows.WithLabelValues("users").Set(float64(stats.Users))
	StoredRows.WithLabelValues("titles").Set(float64(stats.Titles))
	StoredRows.WithLabelValues("items").Set(float64(stats.Items))
	StoredRows.WithLabelValues("thumbnails").Set(float64(stats.Thumbnails))
	RegistryPendingEntries.Set(float64(stats.PendingEntries))

	logging.Debug("Metrics collected: users=%d, titles=%d, items=%d, thumbnails=%d, pending=%d",
		stats.Users, stats.Titles, stats.Items, stats.Thumbnails, stats.PendingEntries)
}
