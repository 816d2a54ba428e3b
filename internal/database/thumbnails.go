package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"media-shelf/internal/metrics"
)

// SaveThumbnail stores a thumbnail under id. Each id can be saved once.
func (d *Database) SaveThumbnail(ctx context.Context, id string, thumb Thumbnail) error {
	data := thumb.Data
	if data == nil {
		data = []byte{}
	}

	return d.withConn(ctx, "save_thumbnail", func(ctx context.Context, conn *sql.DB) error {
		_, err := conn.ExecContext(ctx,
			"INSERT INTO thumbnails (id, data, filename, mime, size) VALUES (?, ?, ?, ?, ?)",
			id, data, thumb.Filename, thumb.Mime, thumb.Size,
		)
		if err != nil {
			return fmt.Errorf("failed to save thumbnail %s: %w", id, classifyWriteError("save_thumbnail", err))
		}
		return nil
	})
}

// GetThumbnail returns the cached thumbnail for id.
func (d *Database) GetThumbnail(ctx context.Context, id string) (*Thumbnail, bool, error) {
	var thumb *Thumbnail
	err := d.withConn(ctx, "get_thumbnail", func(ctx context.Context, conn *sql.DB) error {
		var t Thumbnail
		err := conn.QueryRowContext(ctx,
			"SELECT data, filename, mime, size FROM thumbnails WHERE id = ?", id,
		).Scan(&t.Data, &t.Filename, &t.Mime, &t.Size)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to get thumbnail %s: %w", id, err)
		}
		thumb = &t
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if thumb == nil {
		metrics.ThumbnailCacheMisses.Inc()
		return nil, false, nil
	}
	metrics.ThumbnailCacheHits.Inc()
	return thumb, true, nil
}

// TitlesWithoutThumbnail lists every registered title that has no cached
// thumbnail, in path order.
func (d *Database) TitlesWithoutThumbnail(ctx context.Context) ([]PathIdentity, error) {
	var titles []PathIdentity
	err := d.withConn(ctx, "titles_without_thumbnail", func(ctx context.Context, conn *sql.DB) error {
		rows, err := conn.QueryContext(ctx, `
			SELECT i.path, i.id FROM ids i
			LEFT JOIN thumbnails t ON t.id = i.id
			WHERE i.is_title = 1 AND t.id IS NULL
			ORDER BY i.path`)
		if err != nil {
			return fmt.Errorf("failed to list titles without thumbnail: %w", err)
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			p := PathIdentity{IsTitle: true}
			if err := rows.Scan(&p.Path, &p.ID); err != nil {
				return fmt.Errorf("failed to scan title: %w", err)
			}
			titles = append(titles, p)
		}
		return rows.Err()
	})
	return titles, err
}
