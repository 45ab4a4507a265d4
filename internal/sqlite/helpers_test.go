package sqlite

import (
	"context"
	"testing"

	"github.com/mesh-intelligence/sheets/pkg/types"
	"github.com/stretchr/testify/require"
)

// newAttachedBackend returns a backend attached to a fresh temp directory.
// It is detached when the test ends.
func newAttachedBackend(t *testing.T) (*Backend, string) {
	t.Helper()
	dir := t.TempDir()
	b := NewBackend()
	require.NoError(t, b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: dir}))
	t.Cleanup(func() { b.Detach() })
	return b, dir
}

// mustCreateTable creates table with the given columns.
func mustCreateTable(t *testing.T, b *Backend, table string, columns ...string) {
	t.Helper()
	ctx := context.Background()
	_, err := b.CreateTable(ctx, table)
	require.NoError(t, err)
	for _, c := range columns {
		res, err := b.AddColumn(ctx, table, c)
		require.NoError(t, err)
		require.Empty(t, res.Warning)
	}
}

// mustInsert inserts a row and returns its id.
func mustInsert(t *testing.T, b *Backend, table string, fields map[string]any) int64 {
	t.Helper()
	row, err := b.InsertRow(context.Background(), table, fields)
	require.NoError(t, err)
	return row.ID()
}

// columnNames returns the display names of table's listed columns.
func columnNames(t *testing.T, b *Backend, table string) []string {
	t.Helper()
	cols, err := b.ListColumns(context.Background(), table)
	require.NoError(t, err)
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

// physicalColumns returns the catalog column names of table.
func physicalColumns(t *testing.T, b *Backend, table string) []string {
	t.Helper()
	cols, err := catalogColumns(context.Background(), b.db, table)
	require.NoError(t, err)
	return cols
}

// rawExec runs a statement directly against the database, bypassing the
// bookkeeping, to set up drift.
func rawExec(t *testing.T, b *Backend, stmt string, args ...any) {
	t.Helper()
	_, err := b.db.Exec(stmt, args...)
	require.NoError(t, err)
}
