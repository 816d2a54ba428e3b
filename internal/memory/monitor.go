package memory

import (
	"context"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"media-shelf/internal/logging"
	"media-shelf/internal/metrics"
)

// Config holds the backpressure thresholds.
type Config struct {
	// LimitBytes is the reference limit. Zero means the runtime soft limit.
	LimitBytes int64

	// ResumeMark is the usage ratio below which paused work resumes.
	ResumeMark float64

	// PauseMark is the usage ratio at which background work pauses.
	PauseMark float64

	CheckInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		ResumeMark:    0.7,
		PauseMark:     0.85,
		CheckInterval: 5 * time.Second,
	}
}

// Monitor samples heap usage and pauses background work while it sits above
// PauseMark. Without a limit it never pauses.
type Monitor struct {
	config    Config
	limit     int64
	readAlloc func() uint64

	mu      sync.RWMutex
	current uint64
	paused  bool
	resume  chan struct{}

	stop     chan struct{}
	stopOnce sync.Once
}

func NewMonitor(config Config) *Monitor {
	limit := config.LimitBytes
	if limit == 0 {
		if soft := debug.SetMemoryLimit(-1); soft > 0 && soft < 1<<62 {
			limit = soft
		}
	}

	if limit == 0 {
		logging.Info("Memory monitor: no memory limit configured, backpressure disabled")
	} else {
		logging.Info("Memory monitor: pausing background work above %.0f%% of %s",
			config.PauseMark*100, humanize.IBytes(uint64(limit)))
	}

	return &Monitor{
		config:    config,
		limit:     limit,
		readAlloc: heapAlloc,
		resume:    make(chan struct{}),
		stop:      make(chan struct{}),
	}
}

func heapAlloc() uint64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.Alloc
}

// Start samples usage every CheckInterval until Stop.
func (m *Monitor) Start() {
	if m.limit == 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(m.config.CheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.sample()
			case <-m.stop:
				return
			}
		}
	}()
}

// Stop ends sampling and releases every waiter.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *Monitor) sample() {
	alloc := m.readAlloc()
	usage := float64(alloc) / float64(m.limit)
	metrics.MemoryUsageRatio.Set(usage)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.current = alloc
	switch {
	case !m.paused && usage >= m.config.PauseMark:
		logging.Warn("Memory at %.1f%% of limit, pausing background work", usage*100)
		m.paused = true
		metrics.MemoryPaused.Set(1)
		metrics.MemoryGCPauses.Inc()
		go runtime.GC()
	case m.paused && usage < m.config.ResumeMark:
		logging.Info("Memory at %.1f%% of limit, resuming background work", usage*100)
		m.paused = false
		metrics.MemoryPaused.Set(0)
		close(m.resume)
		m.resume = make(chan struct{})
	}
}

// WaitIfPaused blocks while the monitor is paused. It returns ctx's error
// when ctx ends first and context.Canceled once the monitor is stopped.
func (m *Monitor) WaitIfPaused(ctx context.Context) error {
	m.mu.RLock()
	if !m.paused {
		m.mu.RUnlock()
		return nil
	}
	resume := m.resume
	m.mu.RUnlock()

	select {
	case <-resume:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-m.stop:
		return context.Canceled
	}
}

func (m *Monitor) IsPaused() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.paused
}

// Usage returns the last sampled heap allocation as a fraction of the
// limit, or 0 without a limit.
func (m *Monitor) Usage() float64 {
	if m.limit == 0 {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return float64(m.current) / float64(m.limit)
}
