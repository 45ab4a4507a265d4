package sqlite

import "github.com/mesh-intelligence/sheets/pkg/types"

// Bookkeeping DDL. Names compare case-insensitively, as SQLite does for
// identifiers.
const (
	createRegistry = `CREATE TABLE IF NOT EXISTS ` + types.RegistryTable + ` (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE COLLATE NOCASE,
    display_name TEXT NOT NULL,
    created_at TEXT NOT NULL
);`

	createColumns = `CREATE TABLE IF NOT EXISTS ` + types.ColumnsTable + ` (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    table_name TEXT NOT NULL COLLATE NOCASE,
    column_name TEXT NOT NULL COLLATE NOCASE,
    display_name TEXT NOT NULL,
    created_at TEXT NOT NULL,
    UNIQUE (table_name, column_name)
);`

	idxColumnsTable = `CREATE INDEX IF NOT EXISTS idx_sheets_columns_table ON ` + types.ColumnsTable + `(table_name);`
)

// schemaDDL lists the bookkeeping statements in execution order.
var schemaDDL = []string{
	createRegistry,
	createColumns,
	idxColumnsTable,
}
