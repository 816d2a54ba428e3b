package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver
	"golang.org/x/crypto/bcrypt"

	"media-shelf/internal/filesystem"
	"media-shelf/internal/logging"
	"media-shelf/internal/metrics"
)

const (
	// DefaultAdminUsername is the account created when bootstrapping.
	DefaultAdminUsername = "admin"

	pingTimeout = 5 * time.Second
)

// Schema statements run in one transaction on every start. They are plain
// CREATE statements: on an existing store the first one fails with "already
// exists", the transaction rolls back and the store is used as is.
var schemaStatements = []string{
	`CREATE TABLE thumbnails (
		id TEXT NOT NULL,
		data BLOB NOT NULL,
		filename TEXT NOT NULL,
		mime TEXT NOT NULL,
		size INTEGER NOT NULL
	)`,
	`CREATE UNIQUE INDEX idx_thumbnails_id ON thumbnails(id)`,

	`CREATE TABLE ids (
		path TEXT NOT NULL,
		id TEXT NOT NULL,
		is_title INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE UNIQUE INDEX idx_ids_path ON ids(path)`,
	`CREATE UNIQUE INDEX idx_ids_id ON ids(id)`,

	`CREATE TABLE users (
		username TEXT NOT NULL,
		password TEXT NOT NULL,
		token TEXT,
		admin INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE UNIQUE INDEX idx_users_username ON users(username)`,
	// NULL tokens never collide, so only issued tokens are unique.
	`CREATE UNIQUE INDEX idx_users_token ON users(token)`,
}

// Options configures a Database.
type Options struct {
	// BootstrapAdmin creates an administrator with a random password when
	// the users table is empty. The password is printed once to the log.
	BootstrapAdmin bool

	// Persistent keeps one connection open until Close. Otherwise a
	// connection is opened and closed around every operation.
	Persistent bool

	// AdminUsername overrides DefaultAdminUsername.
	AdminUsername string

	// PasswordCost is the bcrypt cost. Zero means bcrypt.DefaultCost.
	PasswordCost int
}

// DefaultOptions returns the options used when New is given nil.
func DefaultOptions() *Options {
	return &Options{
		BootstrapAdmin: true,
		Persistent:     true,
		AdminUsername:  DefaultAdminUsername,
		PasswordCost:   bcrypt.DefaultCost,
	}
}

// Database is the storage component. It is safe for concurrent use; all
// operations are serialized.
type Database struct {
	dbPath    string
	opts      Options
	statRetry filesystem.RetryConfig

	// mu serializes access to conn, pending and closed.
	mu      sync.Mutex
	conn    *sql.DB // nil in transient mode
	pending []PathIdentity
	closed  bool

	dummyHash func() []byte
}

// New opens (creating if needed) the database at dbPath, creates the
// schema on a fresh store and bootstraps the administrator if requested.
// A failure here leaves nothing open and must stop the caller.
func New(ctx context.Context, dbPath string, opts *Options) (*Database, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	o := *opts
	if o.AdminUsername == "" {
		o.AdminUsername = DefaultAdminUsername
	}
	if o.PasswordCost == 0 {
		o.PasswordCost = bcrypt.DefaultCost
	}

	logging.Info("Database path: %s", dbPath)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	if err := diagnoseDatabasePermissions(dbPath); err != nil {
		logging.Warn("Database permission diagnostics: %v", err)
	}

	d := &Database{
		dbPath:    dbPath,
		opts:      o,
		statRetry: filesystem.DefaultRetryConfig(),
	}
	d.dummyHash = sync.OnceValue(func() []byte {
		hash, err := bcrypt.GenerateFromPassword([]byte("media-shelf-unknown-user"), o.PasswordCost)
		if err != nil {
			logging.Error("failed to prepare dummy password hash: %v", err)
		}
		return hash
	})

	conn, err := d.open(ctx)
	if err != nil {
		return nil, err
	}

	fresh, err := createSchema(ctx, conn)
	if err != nil {
		closeConn(conn, "schema initialization failure")
		return nil, err
	}
	if fresh {
		logging.Info("Created new database schema")
	} else {
		logging.Debug("Database schema already present")
	}

	if o.BootstrapAdmin {
		if err := d.bootstrapAdmin(ctx, conn); err != nil {
			closeConn(conn, "bootstrap failure")
			return nil, fmt.Errorf("failed to bootstrap administrator: %w", err)
		}
	}

	if o.Persistent {
		d.conn = conn
	} else {
		closeConn(conn, "initialization")
	}

	logging.Info("Database initialized successfully at %s (persistent connection: %v)", dbPath, o.Persistent)
	return d, nil
}

// open opens and pings a connection to the database file.
func (d *Database) open(ctx context.Context) (*sql.DB, error) {
	// busy_timeout helps prevent "database is locked" errors when another
	// tool (shelfctl) touches the file.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", d.dbPath)

	conn, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: the serializer hands it to one operation at a time.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := conn.PingContext(pingCtx); err != nil {
		closeConn(conn, "ping failure")
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	mode := "transient"
	if d.opts.Persistent {
		mode = "persistent"
	}
	metrics.DBConnectionsOpened.WithLabelValues(mode).Inc()

	return conn, nil
}

func closeConn(conn *sql.DB, reason string) {
	if err := conn.Close(); err != nil {
		logging.Error("failed to close database after %s: %v", reason, err)
	}
}

// createSchema reports fresh == true when it created the relations and
// false when they already existed.
func createSchema(ctx context.Context, conn *sql.DB) (fresh bool, err error) {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrSchemaInit, err)
	}

	for _, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			rbErr := tx.Rollback()
			if isAlreadyExists(err) {
				return false, nil
			}
			if rbErr != nil {
				err = errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
			}
			return false, fmt.Errorf("%w: %w", ErrSchemaInit, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("%w: %w", ErrSchemaInit, err)
	}
	return true, nil
}

// withConn is the access serializer. It runs fn with exclusive use of the
// connection and records the operation's metrics.
func (d *Database) withConn(ctx context.Context, operation string, fn func(ctx context.Context, conn *sql.DB) error) (err error) {
	start := time.Now()
	defer func() { recordQuery(operation, start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrClosed
	}

	conn := d.conn
	if conn == nil {
		conn, err = d.open(ctx)
		if err != nil {
			return err
		}
		defer closeConn(conn, operation)
	}

	return fn(ctx, conn)
}

// runTx commits when fn succeeds and rolls back otherwise.
func runTx(ctx context.Context, conn *sql.DB, fn func(ctx context.Context, tx *sql.Tx) error) (err error) {
	txStart := time.Now()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(ctx, tx); err != nil {
		metrics.DBTransactionDuration.WithLabelValues("rollback").Observe(time.Since(txStart).Seconds())
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
		}
		return err
	}

	if err = tx.Commit(); err != nil {
		metrics.DBTransactionDuration.WithLabelValues("rollback").Observe(time.Since(txStart).Seconds())
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	metrics.DBTransactionDuration.WithLabelValues("commit").Observe(time.Since(txStart).Seconds())
	return nil
}

// Close releases the persistent connection. Unflushed path registrations
// are dropped. Close is idempotent.
func (d *Database) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true

	if n := len(d.pending); n > 0 {
		logging.Warn("Closing database with %d unflushed path registrations", n)
		d.pending = nil
		metrics.RegistryPendingEntries.Set(0)
	}

	if d.conn == nil {
		return nil
	}
	err := d.conn.Close()
	d.conn = nil
	return err
}

// Path returns the database file path.
func (d *Database) Path() string {
	return d.dbPath
}

// Counts returns row counts for each relation plus the number of buffered
// path registrations.
func (d *Database) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	err := d.withConn(ctx, "counts", func(ctx context.Context, conn *sql.DB) error {
		c.Pending = len(d.pending)
		return conn.QueryRowContext(ctx, `
			SELECT
				(SELECT COUNT(*) FROM users),
				(SELECT COUNT(*) FROM ids WHERE is_title = 1),
				(SELECT COUNT(*) FROM ids WHERE is_title = 0),
				(SELECT COUNT(*) FROM thumbnails)
		`).Scan(&c.Users, &c.Titles, &c.Items, &c.Thumbnails)
	})
	return c, err
}

// recordQuery records database operation metrics
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}

// diagnoseDatabasePermissions logs permission problems with the database
// directory and its WAL/SHM companions before SQLite reports them as
// opaque I/O errors.
func diagnoseDatabasePermissions(dbPath string) error {
	dir := filepath.Dir(dbPath)

	dirInfo, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot stat database directory: %w", err)
	}
	logging.Debug("Database directory: %s (mode: %v)", dir, dirInfo.Mode())

	testFile := filepath.Join(dir, ".perm-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("database directory not writable: %w", err)
	}
	_ = os.Remove(testFile)

	for _, suffix := range []string{"", "-wal", "-shm"} {
		path := dbPath + suffix
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		logging.Debug("Database file present: %s (mode: %v, size: %d bytes)", path, info.Mode(), info.Size())
		if info.Mode().Perm()&0o200 != 0 {
			continue
		}
		logging.Warn("%s is read-only (mode: %v), writes will fail", path, info.Mode())
		if suffix == "" {
			continue
		}
		if chmodErr := os.Chmod(path, 0o600); chmodErr != nil {
			logging.Error("Failed to fix permissions on %s: %v", path, chmodErr)
		} else {
			logging.Info("Fixed permissions on %s", path)
		}
	}

	return nil
}
