package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/sheets/pkg/types"
)

// The catalog is SQLite's own view of the schema (sqlite_master and
// pragma_table_info). It is the ground truth for existence checks; the
// registry and the column metadata are this package's bookkeeping.

// catalogTable looks name up case-insensitively and returns the spelling
// stored in the catalog.
func catalogTable(ctx context.Context, q querier, name string) (string, bool, error) {
	var actual string
	err := q.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ? COLLATE NOCASE",
		name,
	).Scan(&actual)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("checking table %q: %w", name, err)
	}
	return actual, true, nil
}

// catalogColumns returns the physical column names of table in declaration
// order, including id.
func catalogColumns(ctx context.Context, q querier, table string) ([]string, error) {
	rows, err := q.QueryContext(ctx, "SELECT name FROM pragma_table_info(?) ORDER BY cid", table)
	if err != nil {
		return nil, fmt.Errorf("reading columns of %q: %w", table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning column of %q: %w", table, err)
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}

// catalogUserTables lists every table that is neither internal to SQLite
// nor one of the bookkeeping tables.
func catalogUserTables(ctx context.Context, q querier) ([]string, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT name FROM sqlite_master
		 WHERE type = 'table' AND name NOT LIKE 'sqlite\_%' ESCAPE '\' AND name NOT IN (?, ?)
		 ORDER BY name`,
		types.RegistryTable, types.ColumnsTable,
	)
	if err != nil {
		return nil, fmt.Errorf("listing catalog tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning catalog table: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// findFold returns the element of names equal to name under case folding.
func findFold(names []string, name string) (string, bool) {
	for _, n := range names {
		if strings.EqualFold(n, name) {
			return n, true
		}
	}
	return "", false
}
