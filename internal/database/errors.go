package database

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"media-shelf/internal/metrics"
)

var (
	// ErrSchemaInit is fatal: the store could not be created.
	ErrSchemaInit = errors.New("schema initialization failed")

	// ErrUniqueViolation means a write collided with a unique index
	// (username, token, path, id or thumbnail id).
	ErrUniqueViolation = errors.New("unique constraint violation")

	// ErrTransaction means a batch insert was rolled back.
	ErrTransaction = errors.New("transaction failed")

	// ErrUserNotFound is returned by UpdateUser when the original username
	// does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("database is closed")
)

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code == sqlite3.ErrConstraint &&
		(sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey)
}

// isAlreadyExists matches SQLite's "table X already exists" and
// "index X already exists" errors.
func isAlreadyExists(err error) bool {
	return err != nil && strings.Contains(err.Error(), "already exists")
}

// classifyWriteError tags unique index collisions with ErrUniqueViolation.
func classifyWriteError(operation string, err error) error {
	if isUniqueViolation(err) {
		metrics.DBUniqueViolations.WithLabelValues(operation).Inc()
		return fmt.Errorf("%w: %w", ErrUniqueViolation, err)
	}
	return err
}
