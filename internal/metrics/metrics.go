package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_shelf_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_shelf_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_shelf_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_shelf_db_queries_total",
			Help: "Total number of database operations",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_shelf_db_query_duration_seconds",
			Help:    "Database operation duration in seconds, including time spent waiting for the connection",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBTransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_shelf_db_transaction_duration_seconds",
			Help:    "Database transaction duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"outcome"}, // "commit", "rollback"
	)

	DBConnectionsOpened = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_shelf_db_connections_opened_total",
			Help: "Total number of database connections opened",
		},
		[]string{"mode"}, // "persistent", "transient"
	)

	DBUniqueViolations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_shelf_db_unique_violations_total",
			Help: "Total number of writes rejected by a unique constraint",
		},
		[]string{"operation"},
	)
)

// Registry and cache metrics, refreshed by the Collector.
var (
	StoredRows = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_shelf_stored_rows",
			Help: "Number of rows per stored relation",
		},
		[]string{"relation"}, // "users", "titles", "items", "thumbnails"
	)

	RegistryPendingEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_shelf_registry_pending_entries",
			Help: "Path registrations buffered and not yet flushed",
		},
	)

	RegistryFlushedEntries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_shelf_registry_flushed_entries_total",
			Help: "Total number of path registrations committed by flush",
		},
	)

	ThumbnailCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_shelf_thumbnail_cache_hits_total",
			Help: "Total number of thumbnail lookups served from the database",
		},
	)

	ThumbnailCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_shelf_thumbnail_cache_misses_total",
			Help: "Total number of thumbnail lookups that found nothing",
		},
	)

	ThumbnailGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_shelf_thumbnail_generations_total",
			Help: "Total number of thumbnail generations",
		},
		[]string{"kind", "status"},
	)

	ThumbnailGenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_shelf_thumbnail_generation_duration_seconds",
			Help:    "Thumbnail generation duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)
)

// Maintenance metrics
var (
	MaintenanceRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_shelf_maintenance_runs_total",
			Help: "Total number of optimize runs",
		},
		[]string{"status"},
	)

	MaintenanceRemovedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_shelf_maintenance_removed_total",
			Help: "Total number of rows removed by optimize",
		},
		[]string{"kind"}, // "dangling_id", "orphaned_thumbnail"
	)

	MaintenanceLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_shelf_maintenance_last_run_timestamp",
			Help: "Timestamp of the last optimize run",
		},
	)

	MaintenanceLastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_shelf_maintenance_last_run_duration_seconds",
			Help: "Duration of the last optimize run in seconds",
		},
	)
)

// Indexer metrics
var (
	IndexerRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_shelf_indexer_runs_total",
			Help: "Total number of indexer runs",
		},
	)

	IndexerPathsRegistered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_shelf_indexer_paths_registered_total",
			Help: "Total number of new paths registered by the indexer",
		},
		[]string{"kind"}, // "title", "item"
	)

	IndexerErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_shelf_indexer_errors_total",
			Help: "Total number of indexer errors",
		},
	)

	IndexerLastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_shelf_indexer_last_run_duration_seconds",
			Help: "Duration of the last indexer run in seconds",
		},
	)
)

// Auth metrics
var (
	AuthAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_shelf_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"}, // "success", "unknown_user", "mismatch", "error"
	)
)

// Filesystem retry metrics (recorded through the filesystem.Observer)
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_shelf_filesystem_retry_attempts_total",
			Help: "Total number of filesystem operation retries after a stale NFS handle",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_shelf_filesystem_retry_success_total",
			Help: "Total number of filesystem operations that succeeded after retrying",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_shelf_filesystem_retry_failures_total",
			Help: "Total number of filesystem operations that exhausted their retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_shelf_filesystem_stale_errors_total",
			Help: "Total number of ESTALE errors observed",
		},
		[]string{"operation", "volume"},
	)

	ThumbnailWarmerPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_shelf_thumbnail_warmer_pending",
			Help: "Titles still waiting for a pre-generated thumbnail in the current warm run",
		},
	)

	ThumbnailWarmerLastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_shelf_thumbnail_warmer_last_run_duration_seconds",
			Help: "Duration of the last thumbnail warm run",
		},
	)

	// Memory backpressure
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_shelf_memory_usage_ratio",
			Help: "Heap allocation as a fraction of the configured memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_shelf_memory_paused",
			Help: "1 while background work is paused for memory pressure",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_shelf_memory_gc_pauses_total",
			Help: "Times background work was paused and a GC forced",
		},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_shelf_filesystem_retry_duration_seconds",
			Help:    "Duration of filesystem operations including retries",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2},
		},
		[]string{"operation", "volume"},
	)
)
