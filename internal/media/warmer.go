package media

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"media-shelf/internal/database"
	"media-shelf/internal/logging"
	"media-shelf/internal/metrics"
	"media-shelf/internal/workers"
)

// ErrWarmInProgress is returned by Warm while another run is active.
var ErrWarmInProgress = errors.New("thumbnail warm run already in progress")

// WarmStore is the storage the warmer reads missing titles from and writes
// thumbnails to.
type WarmStore interface {
	TitlesWithoutThumbnail(ctx context.Context) ([]database.PathIdentity, error)
	SaveThumbnail(ctx context.Context, id string, thumb database.Thumbnail) error
}

// Throttle blocks background work under resource pressure.
type Throttle interface {
	WaitIfPaused(ctx context.Context) error
}

// WarmResult summarizes one warm run.
type WarmResult struct {
	Generated int           `json:"generated"`
	Skipped   int           `json:"skipped"` // no cover or already cached
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
}

// Warmer pre-generates thumbnails for titles that have none, so the shelf
// view never waits on a decode.
type Warmer struct {
	store    WarmStore
	gen      *Generator
	pool     *workers.Pool
	throttle Throttle

	running atomic.Bool
	wg      sync.WaitGroup
}

// NewWarmer returns a warmer. throttle may be nil.
func NewWarmer(store WarmStore, gen *Generator, pool *workers.Pool, throttle Throttle) *Warmer {
	return &Warmer{store: store, gen: gen, pool: pool, throttle: throttle}
}

// Trigger starts a warm run in the background. It reports false when a run
// is already active.
func (w *Warmer) Trigger(ctx context.Context) bool {
	if w.running.Load() {
		return false
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		result, err := w.Warm(ctx)
		switch {
		case errors.Is(err, ErrWarmInProgress):
		case err != nil && !errors.Is(err, context.Canceled):
			logging.Error("Thumbnail warm run failed: %v", err)
		case err == nil && result.Generated+result.Failed > 0:
			logging.Info("Thumbnail warm run: %d generated, %d skipped, %d failed in %v",
				result.Generated, result.Skipped, result.Failed, result.Duration.Round(time.Millisecond))
		}
	}()
	return true
}

// Wait blocks until every run started by Trigger has finished.
func (w *Warmer) Wait() {
	w.wg.Wait()
}

// Warm generates and stores a thumbnail for every title lacking one.
// Titles without a usable cover are skipped and retried on the next run.
func (w *Warmer) Warm(ctx context.Context) (WarmResult, error) {
	if !w.running.CompareAndSwap(false, true) {
		return WarmResult{}, ErrWarmInProgress
	}
	defer w.running.Store(false)

	start := time.Now()
	titles, err := w.store.TitlesWithoutThumbnail(ctx)
	if err != nil {
		return WarmResult{}, err
	}
	if len(titles) == 0 {
		return WarmResult{Duration: time.Since(start)}, nil
	}

	logging.Debug("Warming thumbnails for %d titles on %d workers", len(titles), w.pool.Size())

	var generated, skipped, failed atomic.Int64
	var pending atomic.Int64
	pending.Store(int64(len(titles)))
	metrics.ThumbnailWarmerPending.Set(float64(len(titles)))

	var submitErr error
	for _, title := range titles {
		if err := ctx.Err(); err != nil {
			submitErr = err
			break
		}
		err := w.pool.Go(func() {
			defer func() { metrics.ThumbnailWarmerPending.Set(float64(pending.Add(-1))) }()

			if w.throttle != nil {
				if err := w.throttle.WaitIfPaused(ctx); err != nil {
					return
				}
			}
			if ctx.Err() != nil {
				return
			}

			switch err := w.warmOne(ctx, title); {
			case err == nil:
				generated.Add(1)
			case errors.Is(err, ErrUnsupported), errors.Is(err, ErrNoCover), errors.Is(err, database.ErrUniqueViolation):
				skipped.Add(1)
			default:
				failed.Add(1)
				logging.Warn("Failed to warm thumbnail for %s: %v", title.Path, err)
			}
		})
		if err != nil {
			submitErr = err
			break
		}
	}
	w.pool.Wait()
	metrics.ThumbnailWarmerPending.Set(0)

	duration := time.Since(start)
	metrics.ThumbnailWarmerLastRunDuration.Set(duration.Seconds())

	result := WarmResult{
		Generated: int(generated.Load()),
		Skipped:   int(skipped.Load()),
		Failed:    int(failed.Load()),
		Duration:  duration,
	}
	return result, submitErr
}

func (w *Warmer) warmOne(ctx context.Context, title database.PathIdentity) error {
	thumb, err := w.gen.Generate(title)
	if err != nil {
		return err
	}
	return w.store.SaveThumbnail(ctx, title.ID, thumb)
}
