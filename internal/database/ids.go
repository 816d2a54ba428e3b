package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"media-shelf/internal/metrics"
)

// NewID returns a fresh opaque identifier for a path.
func NewID() string {
	return uuid.NewString()
}

// GetID returns the identifier registered for path. Only flushed entries are
// visible.
func (d *Database) GetID(ctx context.Context, path string) (id string, ok bool, err error) {
	err = d.withConn(ctx, "get_id", func(ctx context.Context, conn *sql.DB) error {
		err := conn.QueryRowContext(ctx, "SELECT id FROM ids WHERE path = ?", path).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to look up id for %s: %w", path, err)
		}
		ok = true
		return nil
	})
	if err != nil {
		return "", false, err
	}
	return id, ok, nil
}

// GetPath resolves an identifier back to its path.
func (d *Database) GetPath(ctx context.Context, id string) (PathIdentity, bool, error) {
	var (
		entry PathIdentity
		found bool
	)
	err := d.withConn(ctx, "get_path", func(ctx context.Context, conn *sql.DB) error {
		err := conn.QueryRowContext(ctx,
			"SELECT path, id, is_title FROM ids WHERE id = ?", id,
		).Scan(&entry.Path, &entry.ID, &entry.IsTitle)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to look up path for id %s: %w", id, err)
		}
		found = true
		return nil
	})
	if err != nil {
		return PathIdentity{}, false, err
	}
	return entry, found, nil
}

// Enqueue buffers a path registration until the next Flush. Duplicates are
// not detected here; they make the Flush fail.
func (d *Database) Enqueue(path, id string, isTitle bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending = append(d.pending, PathIdentity{Path: path, ID: id, IsTitle: isTitle})
	metrics.RegistryPendingEntries.Set(float64(len(d.pending)))
}

// PendingCount returns the number of buffered registrations.
func (d *Database) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// DiscardPending drops every buffered registration and returns how many
// there were.
func (d *Database) DiscardPending() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := len(d.pending)
	d.pending = nil
	metrics.RegistryPendingEntries.Set(0)
	return n
}

// Flush writes every buffered registration in a single transaction. Either
// all entries are committed and the buffer is emptied, or none are and the
// buffer is left as it was. The error then wraps ErrTransaction, and also
// ErrUniqueViolation when a path or id was already registered.
func (d *Database) Flush(ctx context.Context) (int, error) {
	var flushed int
	err := d.withConn(ctx, "flush", func(ctx context.Context, conn *sql.DB) error {
		if len(d.pending) == 0 {
			return nil
		}

		err := runTx(ctx, conn, func(ctx context.Context, tx *sql.Tx) error {
			stmt, err := tx.PrepareContext(ctx, "INSERT INTO ids (path, id, is_title) VALUES (?, ?, ?)")
			if err != nil {
				return fmt.Errorf("failed to prepare insert: %w", err)
			}
			defer stmt.Close()

			for _, e := range d.pending {
				if _, err := stmt.ExecContext(ctx, e.Path, e.ID, e.IsTitle); err != nil {
					return fmt.Errorf("failed to register %s: %w", e.Path, classifyWriteError("flush", err))
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("%w: %d entries: %w", ErrTransaction, len(d.pending), err)
		}

		flushed = len(d.pending)
		d.pending = nil
		metrics.RegistryPendingEntries.Set(0)
		metrics.RegistryFlushedEntries.Add(float64(flushed))
		return nil
	})
	return flushed, err
}
