package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"media-shelf/internal/database"
	"media-shelf/internal/logging"
	"media-shelf/internal/mediatypes"
	"media-shelf/internal/metrics"
)

// Number of new paths to buffer before flushing them to the registry
const batchSize = 500

// Registry is the part of the database the indexer writes to.
type Registry interface {
	GetID(ctx context.Context, path string) (string, bool, error)
	Enqueue(path, id string, isTitle bool)
	Flush(ctx context.Context) (int, error)
	DiscardPending() int
}

// Indexer registers the titles and items found under the media directory.
type Indexer struct {
	reg           Registry
	mediaDir      string
	indexInterval time.Duration
	newID         func() string

	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once

	indexMu              sync.Mutex
	isIndexing           bool
	lastIndexTime        time.Time
	lastResult           Result
	initialIndexComplete bool
	initialIndexError    error
	startTime            time.Time

	pathsSeen atomic.Int64

	onIndexComplete func(Result)
}

// Result summarizes one index run.
type Result struct {
	Titles   int           `json:"titles"`   // newly registered titles
	Items    int           `json:"items"`    // newly registered items
	Existing int           `json:"existing"` // paths that already had an id
	Failed   int           `json:"failed"`   // paths lost to failed flushes
	Duration time.Duration `json:"duration"`
}

// HealthStatus contains health check information.
type HealthStatus struct {
	Ready             bool      `json:"ready"`
	Indexing          bool      `json:"indexing"`
	StartTime         time.Time `json:"startTime"`
	Uptime            string    `json:"uptime"`
	LastIndexed       time.Time `json:"lastIndexed,omitempty"`
	LastResult        *Result   `json:"lastResult,omitempty"`
	InitialIndexError string    `json:"initialIndexError,omitempty"`
	PathsSeen         int64     `json:"pathsSeen"`
}

// New creates a new Indexer instance.
func New(reg Registry, mediaDir string, indexInterval time.Duration) *Indexer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Indexer{
		reg:           reg,
		mediaDir:      mediaDir,
		indexInterval: indexInterval,
		newID:         database.NewID,
		ctx:           ctx,
		cancel:        cancel,
		startTime:     time.Now(),
	}
}

// SetOnIndexComplete sets a callback invoked after every successful run.
func (idx *Indexer) SetOnIndexComplete(callback func(Result)) {
	idx.onIndexComplete = callback
}

// Start runs an initial index in the background and re-indexes every
// indexInterval until Stop.
func (idx *Indexer) Start() {
	go func() {
		logging.Info("Starting initial index in background...")
		_, err := idx.Index(idx.ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error("Initial index error: %v", err)
		}
		idx.indexMu.Lock()
		idx.initialIndexComplete = true
		idx.initialIndexError = err
		idx.indexMu.Unlock()
	}()

	go idx.periodicIndex()
}

// Stop cancels any running index and the periodic schedule.
func (idx *Indexer) Stop() {
	idx.stopOnce.Do(idx.cancel)
}

// IsReady reports whether the initial index has finished.
func (idx *Indexer) IsReady() bool {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()
	return idx.initialIndexComplete
}

// GetHealthStatus returns detailed health information.
func (idx *Indexer) GetHealthStatus() HealthStatus {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()

	status := HealthStatus{
		Ready:       idx.initialIndexComplete,
		Indexing:    idx.isIndexing,
		StartTime:   idx.startTime,
		Uptime:      time.Since(idx.startTime).Round(time.Second).String(),
		LastIndexed: idx.lastIndexTime,
		PathsSeen:   idx.pathsSeen.Load(),
	}
	if !idx.lastIndexTime.IsZero() {
		result := idx.lastResult
		status.LastResult = &result
	}
	if idx.initialIndexError != nil {
		status.InitialIndexError = idx.initialIndexError.Error()
	}
	return status
}

// Index walks the media directory once. Top-level entries are titles; media
// files below them are items. Paths without an id get a new one. A failed
// flush loses only its own batch: the batch is discarded, counted in
// Result.Failed, and the walk continues.
func (idx *Indexer) Index(ctx context.Context) (Result, error) {
	if !idx.tryStartIndexing() {
		logging.Info("Index already in progress, skipping...")
		return Result{}, nil
	}
	defer idx.finishIndexing()

	metrics.IndexerRunsTotal.Inc()
	startTime := time.Now()
	logging.Info("Starting library indexing of %s...", idx.mediaDir)
	idx.pathsSeen.Store(0)

	b := &batch{}
	var result Result

	err := filepath.WalkDir(idx.mediaDir, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return idx.processPath(ctx, path, d, err, b, &result)
	})
	if err == nil {
		err = idx.flush(ctx, b, &result)
	} else {
		idx.reg.DiscardPending()
	}

	result.Duration = time.Since(startTime)
	metrics.IndexerLastRunDuration.Set(result.Duration.Seconds())

	if err != nil {
		metrics.IndexerErrors.Inc()
		return result, fmt.Errorf("index of %s failed: %w", idx.mediaDir, err)
	}

	idx.indexMu.Lock()
	idx.lastIndexTime = time.Now()
	idx.lastResult = result
	idx.indexMu.Unlock()

	logging.Info("Index complete: %d new titles, %d new items, %d known, %d failed in %v",
		result.Titles, result.Items, result.Existing, result.Failed, result.Duration)

	if idx.onIndexComplete != nil {
		idx.onIndexComplete(result)
	}
	return result, nil
}

// batch tracks what is buffered in the registry since the last flush.
type batch struct {
	titles int
	items  int
}

func (b *batch) size() int { return b.titles + b.items }

// processPath handles a single entry during the directory walk.
func (idx *Indexer) processPath(ctx context.Context, path string, d fs.DirEntry, walkErr error, b *batch, result *Result) error {
	if walkErr != nil {
		if path == idx.mediaDir {
			return walkErr
		}
		logging.Warn("Error accessing path %s: %v", path, walkErr)
		return nil
	}

	if path == idx.mediaDir {
		return nil
	}

	if strings.HasPrefix(d.Name(), ".") {
		if d.IsDir() {
			return filepath.SkipDir
		}
		return nil
	}

	rel, err := filepath.Rel(idx.mediaDir, path)
	if err != nil {
		return err
	}
	isTitle := !strings.ContainsRune(rel, filepath.Separator)

	switch {
	case isTitle && (d.IsDir() || mediatypes.IsMediaFile(path)):
	case !isTitle && !d.IsDir() && mediatypes.IsMediaFile(path):
	default:
		return nil
	}

	idx.pathsSeen.Add(1)

	_, ok, err := idx.reg.GetID(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to look up %s: %w", path, err)
	}
	if ok {
		result.Existing++
		return nil
	}

	idx.reg.Enqueue(path, idx.newID(), isTitle)
	if isTitle {
		b.titles++
	} else {
		b.items++
	}

	if b.size() >= batchSize {
		return idx.flush(ctx, b, result)
	}
	return nil
}

// flush commits the buffered batch. Only a cancelled context is returned as
// an error; a rejected batch is logged and dropped.
func (idx *Indexer) flush(ctx context.Context, b *batch, result *Result) error {
	if b.size() == 0 {
		return nil
	}
	defer func() { *b = batch{} }()

	if _, err := idx.reg.Flush(ctx); err != nil {
		dropped := idx.reg.DiscardPending()
		result.Failed += dropped
		metrics.IndexerErrors.Inc()
		logging.Error("Failed to register %d paths, batch dropped: %v", dropped, err)
		return ctx.Err()
	}

	result.Titles += b.titles
	result.Items += b.items
	metrics.IndexerPathsRegistered.WithLabelValues("title").Add(float64(b.titles))
	metrics.IndexerPathsRegistered.WithLabelValues("item").Add(float64(b.items))
	logging.Debug("Registered batch of %d titles and %d items", b.titles, b.items)
	return nil
}

// tryStartIndexing attempts to start indexing, returns false if already in progress.
func (idx *Indexer) tryStartIndexing() bool {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()

	if idx.isIndexing {
		return false
	}
	idx.isIndexing = true
	return true
}

func (idx *Indexer) finishIndexing() {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()
	idx.isIndexing = false
}

func (idx *Indexer) periodicIndex() {
	if idx.indexInterval <= 0 {
		return
	}

	ticker := time.NewTicker(idx.indexInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			logging.Debug("Periodic re-index triggered")
			if _, err := idx.Index(idx.ctx); err != nil && !errors.Is(err, context.Canceled) {
				logging.Error("periodic re-index failed: %v", err)
			}
		case <-idx.ctx.Done():
			return
		}
	}
}

// IsIndexing returns whether an index operation is currently in progress.
func (idx *Indexer) IsIndexing() bool {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()
	return idx.isIndexing
}

// LastIndexTime returns the time of the last completed index operation.
func (idx *Indexer) LastIndexTime() time.Time {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()
	return idx.lastIndexTime
}

// TriggerIndex starts a re-index in the background.
func (idx *Indexer) TriggerIndex() {
	go func() {
		if _, err := idx.Index(idx.ctx); err != nil && !errors.Is(err, context.Canceled) {
			logging.Error("manually triggered re-index failed: %v", err)
		}
	}()
}
