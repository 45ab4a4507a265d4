// Package sqlite implements the sheets Store on an embedded SQLite
// database: the table registry, the column metadata record, dynamic DDL for
// user tables and row CRUD against whatever schema currently exists.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mesh-intelligence/sheets/internal/logging"
	"github.com/mesh-intelligence/sheets/pkg/types"
)

var _ types.Store = (*Backend)(nil)

// Backend implements types.Store. It owns a single connection to the
// database file; schema and row writes are serialized by mu.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	db       *sql.DB

	now func() time.Time

	// stepHook runs before each column-drop rebuild step. Tests use it to
	// fail a step on purpose.
	stepHook func(step string) error
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
func NewBackend() *Backend {
	return &Backend{
		now: func() time.Time { return time.Now().UTC() },
	}
}

// DriverType reports which SQLite implementation was compiled in:
// "purego" (modernc.org/sqlite) or "cgo" (mattn/go-sqlite3).
func DriverType() string {
	return driverType
}

// Attach opens (or creates) DataDir/sheets.db and ensures the bookkeeping
// tables exist. Existing user tables are kept.
// Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}

	if err := config.Validate(); err != nil {
		return err
	}

	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, types.DatabaseFile)
	db, err := sql.Open(driverName, dbPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", dbPath, err)
	}
	// One connection: statements run strictly one at a time.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("opening %s: %w", dbPath, err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return fmt.Errorf("setting busy timeout: %w", err)
	}
	for _, stmt := range schemaDDL {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return fmt.Errorf("creating bookkeeping tables: %w", err)
		}
	}

	b.db = db
	b.config = config
	b.attached = true

	logging.Logger().WithFields(map[string]any{
		"path":   dbPath,
		"driver": driverType,
	}).Info("store attached")
	return nil
}

// Detach closes the database. After Detach, all operations return
// ErrDetached. Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}

	if b.db != nil {
		if err := b.db.Close(); err != nil {
			return err
		}
		b.db = nil
	}
	b.attached = false
	return nil
}

// exec runs one statement and logs it at debug level.
func exec(ctx context.Context, q querier, stmt string, args ...any) (sql.Result, error) {
	logging.FromContext(ctx).WithField("sql", stmt).Debug("exec")
	return q.ExecContext(ctx, stmt, args...)
}

// timestamp formats t the way the bookkeeping tables store times.
func timestamp(t time.Time) string {
	return t.Format(time.RFC3339)
}

// Engine error classification. Both drivers surface SQLite's own messages.

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isDuplicateColumn(err error) bool {
	return err != nil && strings.Contains(err.Error(), "duplicate column name")
}

func isTableExists(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "there is already another table")
}
