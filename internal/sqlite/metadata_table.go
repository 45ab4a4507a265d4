package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mesh-intelligence/sheets/pkg/types"
)

// The column metadata record holds one row per user-added column:
// (table_name, column_name) plus the display form the column was created
// with. The id column is never recorded.

// trackedColumns returns the recorded columns of table in the order they
// were added. The result is never nil.
func trackedColumns(ctx context.Context, q querier, table string) ([]types.Column, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT table_name, column_name, display_name FROM "+types.ColumnsTable+" WHERE table_name = ? ORDER BY id",
		table,
	)
	if err != nil {
		return nil, fmt.Errorf("reading column metadata of %q: %w", table, err)
	}
	defer rows.Close()

	cols := []types.Column{}
	for rows.Next() {
		var c types.Column
		if err := rows.Scan(&c.Table, &c.Storage, &c.Name); err != nil {
			return nil, fmt.Errorf("scanning column metadata: %w", err)
		}
		if c.Name == "" {
			c.Name = types.DisplayName(c.Storage)
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating column metadata: %w", err)
	}
	return cols, nil
}

// trackedColumn returns the metadata row for one column.
func trackedColumn(ctx context.Context, q querier, table, storage string) (types.Column, bool, error) {
	var c types.Column
	err := q.QueryRowContext(ctx,
		"SELECT table_name, column_name, display_name FROM "+types.ColumnsTable+" WHERE table_name = ? AND column_name = ?",
		table, storage,
	).Scan(&c.Table, &c.Storage, &c.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Column{}, false, nil
	}
	if err != nil {
		return types.Column{}, false, fmt.Errorf("reading column metadata: %w", err)
	}
	return c, true, nil
}

// insertColumnMeta records a column. A UNIQUE violation is returned as is
// so the caller can tell "already tracked" apart from other failures.
func (b *Backend) insertColumnMeta(ctx context.Context, q querier, table string, n types.Name) error {
	_, err := exec(ctx, q,
		"INSERT INTO "+types.ColumnsTable+" (table_name, column_name, display_name, created_at) VALUES (?, ?, ?, ?)",
		table, n.Storage, n.Display, timestamp(b.now()),
	)
	return err
}

// renameColumnMeta points a metadata row at a new storage and display
// name. It reports whether a row was updated.
func renameColumnMeta(ctx context.Context, q querier, table, oldStorage string, n types.Name) (bool, error) {
	res, err := exec(ctx, q,
		"UPDATE "+types.ColumnsTable+" SET column_name = ?, display_name = ? WHERE table_name = ? AND column_name = ?",
		n.Storage, n.Display, table, oldStorage,
	)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
