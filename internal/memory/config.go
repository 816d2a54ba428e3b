package memory

import (
	"math"
	"os"
	"runtime/debug"
	"strconv"

	"github.com/dustin/go-humanize"

	"media-shelf/internal/logging"
)

// DefaultRatio is the share of the container limit given to the Go heap.
// The rest covers decoded images held outside the heap accounting, goroutine
// stacks and the SQLite page cache.
const DefaultRatio = 0.85

const (
	SourceGOMEMLIMIT  = "GOMEMLIMIT"
	SourceMemoryLimit = "MEMORY_LIMIT"
	SourceNone        = "none"
)

// Limit describes the soft memory limit in effect after ConfigureFromEnv.
type Limit struct {
	Source         string
	ContainerLimit int64
	GoMemLimit     int64
	Ratio          float64
}

// Configured reports whether a soft limit is in effect.
func (l Limit) Configured() bool {
	return l.GoMemLimit > 0
}

// ConfigureFromEnv sets the runtime soft memory limit. Call it before any
// large allocation.
//
// GOMEMLIMIT wins when set. Otherwise MEMORY_LIMIT (bytes, usually injected
// from the container limit) is scaled by MEMORY_RATIO, default DefaultRatio.
func ConfigureFromEnv() Limit {
	if env := os.Getenv("GOMEMLIMIT"); env != "" {
		limit := Limit{Source: SourceGOMEMLIMIT}
		if current := debug.SetMemoryLimit(-1); current > 0 && current < math.MaxInt64 {
			limit.GoMemLimit = current
		}
		logging.Info("GOMEMLIMIT set via environment: %s", env)
		return limit
	}

	raw := os.Getenv("MEMORY_LIMIT")
	if raw == "" {
		logging.Debug("MEMORY_LIMIT not set, leaving GOMEMLIMIT unset")
		return Limit{Source: SourceNone}
	}

	containerLimit, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || containerLimit <= 0 {
		logging.Warn("Ignoring invalid MEMORY_LIMIT %q", raw)
		return Limit{Source: SourceNone}
	}

	ratio := parseRatio(os.Getenv("MEMORY_RATIO"))
	goMemLimit := int64(float64(containerLimit) * ratio)
	debug.SetMemoryLimit(goMemLimit)

	logging.Info("Configured GOMEMLIMIT: %s (%.0f%% of %s container limit)",
		humanize.IBytes(uint64(goMemLimit)), ratio*100, humanize.IBytes(uint64(containerLimit)))

	return Limit{
		Source:         SourceMemoryLimit,
		ContainerLimit: containerLimit,
		GoMemLimit:     goMemLimit,
		Ratio:          ratio,
	}
}

func parseRatio(raw string) float64 {
	if raw == "" {
		return DefaultRatio
	}
	ratio, err := strconv.ParseFloat(raw, 64)
	if err != nil || ratio <= 0 || ratio > 1 {
		logging.Warn("MEMORY_RATIO %q must be in (0, 1], using %.2f", raw, DefaultRatio)
		return DefaultRatio
	}
	return ratio
}
