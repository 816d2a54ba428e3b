package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, relation := range []string{"users", "titles", "items", "thumbnails"} {
		StoredRows.WithLabelValues(relation)
	}

	for _, outcome := range []string{"commit", "rollback"} {
		DBTransactionDuration.WithLabelValues(outcome)
	}

	for _, mode := range []string{"persistent", "transient"} {
		DBConnectionsOpened.WithLabelValues(mode)
	}

	for _, kind := range []string{"dangling_id", "orphaned_thumbnail"} {
		MaintenanceRemovedTotal.WithLabelValues(kind)
	}
	for _, status := range []string{"success", "error"} {
		MaintenanceRunsTotal.WithLabelValues(status)
	}

	for _, kind := range []string{"title", "item"} {
		IndexerPathsRegistered.WithLabelValues(kind)
		for _, status := range []string{"success", "error"} {
			ThumbnailGenerationsTotal.WithLabelValues(kind, status)
		}
	}

	for _, result := range []string{"success", "unknown_user", "mismatch", "error"} {
		AuthAttemptsTotal.WithLabelValues(result)
	}

	volumes := []string{"media", "database", "unknown"}
	for _, vol := range volumes {
		FilesystemRetryAttempts.WithLabelValues("stat", vol)
		FilesystemRetrySuccess.WithLabelValues("stat", vol)
		FilesystemRetryFailures.WithLabelValues("stat", vol)
		FilesystemStaleErrors.WithLabelValues("stat", vol)
		FilesystemRetryDuration.WithLabelValues("stat", vol)
	}
}
