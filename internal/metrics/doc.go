// Package metrics provides Prometheus instrumentation for media-shelf.
//
// All metrics are prefixed with "media_shelf_" and registered on the default
// registry through promauto, so they are served by promhttp.Handler().
//
// # Metric Categories
//
// ## HTTP Metrics
//   - HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight
//
// ## Database Metrics
//
// Every storage operation passes through a single serialized entry point,
// so DBQueryDuration includes the time spent waiting for the connection:
//   - DBQueryTotal: operations by name and status
//   - DBQueryDuration: operation latency
//   - DBTransactionDuration: transaction latency by outcome (commit/rollback)
//   - DBConnectionsOpened: connections opened by mode (persistent/transient)
//   - DBUniqueViolations: writes rejected by a unique index
//
// ## Registry, Thumbnail and Maintenance Metrics
//   - StoredRows, RegistryPendingEntries (refreshed by the Collector)
//   - RegistryFlushedEntries
//   - ThumbnailCacheHits, ThumbnailCacheMisses, ThumbnailGenerationsTotal
//   - MaintenanceRunsTotal, MaintenanceRemovedTotal and last-run gauges
//   - ThumbnailWarmerPending, ThumbnailWarmerLastRunDuration
//
// ## Memory Metrics
//   - MemoryUsageRatio, MemoryPaused, MemoryGCPauses (set by memory.Monitor)
//
// ## Filesystem Metrics
//
// Recorded through filesystem.Observer (see NewFilesystemObserver) so that
// the filesystem package does not import this one.
package metrics
