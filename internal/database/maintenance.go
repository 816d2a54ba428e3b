package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"media-shelf/internal/filesystem"
	"media-shelf/internal/logging"
	"media-shelf/internal/metrics"
)

// deleteChunkSize keeps IN (...) lists under SQLite's bound variable limit.
const deleteChunkSize = 500

const vacuumTimeout = 60 * time.Second

// Optimize removes ids whose path no longer exists on disk, then removes
// thumbnails whose id is no longer registered. A path that cannot be
// stat'ed for any reason other than not existing is kept.
func (d *Database) Optimize(ctx context.Context) (OptimizeReport, error) {
	start := time.Now()
	var report OptimizeReport

	err := d.withConn(ctx, "optimize", func(ctx context.Context, conn *sql.DB) error {
		entries, err := loadPaths(ctx, conn)
		if err != nil {
			return err
		}

		var dangling []string
		for _, e := range entries {
			if err := ctx.Err(); err != nil {
				return err
			}
			exists, err := filesystem.Exists(e.Path, d.statRetry)
			if err != nil {
				logging.Warn("Optimize: keeping %s, stat failed: %v", e.Path, err)
				continue
			}
			if !exists {
				dangling = append(dangling, e.ID)
			}
		}

		if len(dangling) > 0 {
			err := runTx(ctx, conn, func(ctx context.Context, tx *sql.Tx) error {
				return deleteIDs(ctx, tx, dangling)
			})
			if err != nil {
				return fmt.Errorf("failed to delete dangling ids: %w", err)
			}
		}
		report.DanglingIDs = len(dangling)

		result, err := conn.ExecContext(ctx, "DELETE FROM thumbnails WHERE id NOT IN (SELECT id FROM ids)")
		if err != nil {
			return fmt.Errorf("failed to delete orphaned thumbnails: %w", err)
		}
		report.OrphanedThumbnails, err = result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to count orphaned thumbnails: %w", err)
		}
		return nil
	})

	duration := time.Since(start)
	metrics.MaintenanceLastRunDuration.Set(duration.Seconds())
	metrics.MaintenanceLastRunTimestamp.SetToCurrentTime()

	if err != nil {
		metrics.MaintenanceRunsTotal.WithLabelValues("error").Inc()
		logging.Error("Optimize failed after %v: %v", duration, err)
		return OptimizeReport{}, err
	}

	metrics.MaintenanceRunsTotal.WithLabelValues("success").Inc()
	metrics.MaintenanceRemovedTotal.WithLabelValues("dangling_id").Add(float64(report.DanglingIDs))
	metrics.MaintenanceRemovedTotal.WithLabelValues("orphaned_thumbnail").Add(float64(report.OrphanedThumbnails))

	logging.Info("Optimize removed %d dangling ids and %d orphaned thumbnails in %v",
		report.DanglingIDs, report.OrphanedThumbnails, duration)
	return report, nil
}

// loadPaths reads the whole ids relation. The cursor is closed before any
// filesystem access begins.
func loadPaths(ctx context.Context, conn *sql.DB) ([]PathIdentity, error) {
	rows, err := conn.QueryContext(ctx, "SELECT path, id FROM ids")
	if err != nil {
		return nil, fmt.Errorf("failed to read ids: %w", err)
	}
	defer rows.Close()

	var entries []PathIdentity
	for rows.Next() {
		var e PathIdentity
		if err := rows.Scan(&e.Path, &e.ID); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ids: %w", err)
	}
	return entries, nil
}

func deleteIDs(ctx context.Context, tx *sql.Tx, ids []string) error {
	for len(ids) > 0 {
		n := min(len(ids), deleteChunkSize)
		chunk := ids[:n]
		ids = ids[n:]

		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")
		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM ids WHERE id IN ("+placeholders+")", args...); err != nil {
			return err
		}
	}
	return nil
}

// Vacuum rebuilds the database file to reclaim space freed by Optimize.
func (d *Database) Vacuum(ctx context.Context) error {
	return d.withConn(ctx, "vacuum", func(ctx context.Context, conn *sql.DB) error {
		ctx, cancel := context.WithTimeout(ctx, vacuumTimeout)
		defer cancel()

		_, err := conn.ExecContext(ctx, "VACUUM")
		return err
	})
}
