package types

import (
	"context"
	"time"
)

// TableInfo is a registered user table.
// Name is the storage identifier; Display keeps the spelling the table
// was created or last renamed with.
type TableInfo struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Display   string    `json:"display_name"`
	CreatedAt time.Time `json:"created_at"`
}

// Column is a user-added column of a table. Every column is nullable,
// untyped text.
type Column struct {
	Table   string `json:"table"`
	Name    string `json:"name"`    // display form
	Storage string `json:"storage"` // identifier used in DDL
}

// AddColumnResult is the outcome of AddColumn. Warning is non-empty when the
// physical column was created but the metadata already tracked it.
type AddColumnResult struct {
	Column  Column `json:"column"`
	Warning string `json:"warning,omitempty"`
}

// Row is one record of a user table keyed by column display name, plus the
// "id" key holding the generated int64 key.
type Row map[string]any

// ID returns the row's key, or zero if absent.
func (r Row) ID() int64 {
	id, _ := r[IDColumn].(int64)
	return id
}

// Drift kinds reported by Store.Check.
const (
	DriftMissingTable      = "registry_without_table"
	DriftUnregisteredTable = "table_without_registry"
	DriftMissingColumn     = "metadata_without_column"
	DriftUntrackedColumn   = "column_without_metadata"
)

// Drift is one disagreement between the bookkeeping tables and the engine
// catalog.
type Drift struct {
	Kind   string `json:"kind"`
	Table  string `json:"table"`
	Column string `json:"column,omitempty"`
}

// Schema manages user tables and their columns.
type Schema interface {
	ListTables(ctx context.Context) ([]TableInfo, error)
	CreateTable(ctx context.Context, name string) (TableInfo, error)
	// DropTable is idempotent: dropping an unknown table succeeds.
	DropTable(ctx context.Context, name string) error
	RenameTable(ctx context.Context, oldName, newName string) (TableInfo, error)

	// ListColumns returns an empty slice for an unknown table.
	ListColumns(ctx context.Context, table string) ([]Column, error)
	AddColumn(ctx context.Context, table, name string) (AddColumnResult, error)
	RenameColumn(ctx context.Context, table, oldName, newName string) (Column, error)
	// DropColumn rebuilds the table without the column. A failure part way
	// through returns a *RebuildError.
	DropColumn(ctx context.Context, table, name string) (Column, error)
}

// Rows performs record CRUD against the current schema of a table.
type Rows interface {
	ListRows(ctx context.Context, table string) ([]Row, error)
	GetRow(ctx context.Context, table string, id int64) (Row, error)
	InsertRow(ctx context.Context, table string, fields map[string]any) (Row, error)
	UpdateRow(ctx context.Context, table string, id int64, fields map[string]any) (Row, error)
	// DeleteRow is idempotent.
	DeleteRow(ctx context.Context, table string, id int64) error
}

// Store is the full operation surface used by the HTTP API and the CLI.
type Store interface {
	Schema
	Rows

	// Check compares the bookkeeping tables with the engine catalog.
	Check(ctx context.Context) ([]Drift, error)

	// ExportRows writes a table's rows to a JSONL file and returns the
	// count. ImportRows inserts the objects of a JSONL file as new rows.
	ExportRows(ctx context.Context, table, path string) (int, error)
	ImportRows(ctx context.Context, table, path string) (int, error)

	// Attach opens the backend described by config. Returns
	// ErrAlreadyAttached if called while attached.
	Attach(config Config) error

	// Detach releases backend resources. Idempotent.
	Detach() error
}
