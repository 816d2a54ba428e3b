package workers

import (
	"os"
	"runtime"
	"strconv"
)

// OverrideEnv pins the worker count regardless of available CPUs.
const OverrideEnv = "THUMBNAIL_WORKERS"

// Count returns multiplier workers per usable CPU, at least one and at most
// limit (0 for no cap). GOMAXPROCS already reflects container CPU quotas.
func Count(multiplier float64, limit int) int {
	n := 0
	if override, err := strconv.Atoi(os.Getenv(OverrideEnv)); err == nil && override > 0 {
		n = override
	} else {
		n = int(float64(runtime.GOMAXPROCS(0)) * multiplier)
	}

	if n < 1 {
		n = 1
	}
	if limit > 0 && n > limit {
		n = limit
	}
	return n
}

// ForCPU sizes a pool for decode-and-resize work: one worker per CPU.
func ForCPU(limit int) int {
	return Count(1.0, limit)
}
