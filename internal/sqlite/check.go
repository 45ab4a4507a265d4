package sqlite

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/mesh-intelligence/sheets/pkg/types"
)

// Check compares the registry and the column metadata with the catalog.
// An empty result means every registered table exists, every user table is
// registered, and tracked columns match physical columns one to one.
// Results are sorted by kind, table and column.
func (b *Backend) Check(ctx context.Context) ([]types.Drift, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrDetached
	}

	registered, err := registeredNames(ctx, b.db)
	if err != nil {
		return nil, err
	}
	physical, err := catalogUserTables(ctx, b.db)
	if err != nil {
		return nil, err
	}
	tracked, err := allTrackedColumns(ctx, b.db)
	if err != nil {
		return nil, err
	}

	drift := []types.Drift{}
	for _, name := range registered {
		if _, ok := findFold(physical, name); !ok {
			drift = append(drift, types.Drift{Kind: types.DriftMissingTable, Table: name})
		}
	}

	seen := make(map[string]bool, len(physical))
	for _, table := range physical {
		key := strings.ToLower(table)
		seen[key] = true
		if _, ok := findFold(registered, table); !ok {
			drift = append(drift, types.Drift{Kind: types.DriftUnregisteredTable, Table: table})
		}

		cols, err := catalogColumns(ctx, b.db, table)
		if err != nil {
			return nil, err
		}
		meta := tracked[key]
		for _, c := range meta {
			if _, ok := findFold(cols, c); !ok {
				drift = append(drift, types.Drift{Kind: types.DriftMissingColumn, Table: table, Column: c})
			}
		}
		for _, c := range cols {
			if strings.EqualFold(c, types.IDColumn) {
				continue
			}
			if _, ok := findFold(meta, c); !ok {
				drift = append(drift, types.Drift{Kind: types.DriftUntrackedColumn, Table: table, Column: c})
			}
		}
	}

	// Metadata left behind for tables that no longer exist.
	for key, cols := range tracked {
		if seen[key] {
			continue
		}
		for _, c := range cols {
			drift = append(drift, types.Drift{Kind: types.DriftMissingColumn, Table: key, Column: c})
		}
	}

	slices.SortFunc(drift, func(a, b types.Drift) int {
		return cmp.Or(
			cmp.Compare(a.Kind, b.Kind),
			cmp.Compare(a.Table, b.Table),
			cmp.Compare(a.Column, b.Column),
		)
	})
	return drift, nil
}

// registeredNames returns the registry's table names.
func registeredNames(ctx context.Context, q querier) ([]string, error) {
	rows, err := q.QueryContext(ctx, "SELECT name FROM "+types.RegistryTable+" ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("reading registry: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning registry: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// allTrackedColumns returns every metadata row grouped by lower-cased
// table name.
func allTrackedColumns(ctx context.Context, q querier) (map[string][]string, error) {
	rows, err := q.QueryContext(ctx, "SELECT table_name, column_name FROM "+types.ColumnsTable+" ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("reading column metadata: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var table, column string
		if err := rows.Scan(&table, &column); err != nil {
			return nil, fmt.Errorf("scanning column metadata: %w", err)
		}
		key := strings.ToLower(table)
		out[key] = append(out[key], column)
	}
	return out, rows.Err()
}
