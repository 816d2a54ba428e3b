// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// All configuration is loaded from environment variables via [LoadConfig]:
//
//   - MEDIA_DIR: Path to the media library (default: /media)
//   - DATABASE_DIR: Directory holding shelf.db (default: /database)
//   - PORT: HTTP server port (default: 8080)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable metrics server (default: true)
//   - INDEX_INTERVAL: Library re-index interval as Go duration (default: 30m)
//   - OPTIMIZE_INTERVAL: Database garbage collection interval (default: 24h)
//   - THUMBNAIL_SIZE: Thumbnail bounding box in pixels (default: 320)
//   - BOOTSTRAP_ADMIN: Create an administrator on an empty store (default: true)
//   - PERSISTENT_CONNECTION: Keep one database connection open (default: true)
//   - LOG_LEVEL: Logging level - debug, info, warn, error (default: info)
//   - LOG_STATIC_FILES: Log static file requests (default: false)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: true)
//
// Invalid values are logged and replaced by their defaults, except for a
// non-positive THUMBNAIL_SIZE which fails [LoadConfig].
//
// # Directory Setup
//
//   - Database directory: required, created if missing, must be writable
//   - Media directory: created if missing; problems are only logged
//
// # Lifecycle Logging
//
//   - [LogDatabaseInit]: Database initialization timing and connection mode
//   - [LogSchedulerInit]: Index and optimize intervals
//   - [LogHTTPRoutes]: Registered HTTP routes (debug level)
//   - [LogServerStarted]: Server endpoints and startup duration
//   - [LogShutdownInitiated], [LogShutdownComplete]: Graceful shutdown
package startup
