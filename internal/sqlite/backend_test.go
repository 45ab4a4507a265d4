package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/mesh-intelligence/sheets/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackend_Attach(t *testing.T) {
	tmpDir := t.TempDir()

	b := NewBackend()
	config := types.Config{
		Backend: types.BackendSQLite,
		DataDir: tmpDir,
	}
	require.NoError(t, b.Attach(config))
	defer b.Detach()

	_, err := os.Stat(filepath.Join(tmpDir, types.DatabaseFile))
	assert.NoError(t, err, "database file should be created")

	assert.ErrorIs(t, b.Attach(config), types.ErrAlreadyAttached)
}

func TestBackend_AttachCreatesBookkeepingTables(t *testing.T) {
	b, _ := newAttachedBackend(t)
	ctx := context.Background()

	for _, name := range []string{types.RegistryTable, types.ColumnsTable} {
		_, exists, err := catalogTable(ctx, b.db, name)
		require.NoError(t, err)
		assert.True(t, exists, "%s should exist", name)
	}

	tables, err := b.ListTables(ctx)
	require.NoError(t, err)
	assert.Empty(t, tables)
}

func TestBackend_AttachRejectsBadConfig(t *testing.T) {
	b := NewBackend()
	assert.ErrorIs(t, b.Attach(types.Config{DataDir: t.TempDir()}), types.ErrBackendEmpty)
	assert.ErrorIs(t, b.Attach(types.Config{Backend: "postgres", DataDir: t.TempDir()}), types.ErrBackendUnknown)
}

func TestBackend_AttachCreatesDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")

	b := NewBackend()
	require.NoError(t, b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: dir}))
	defer b.Detach()

	_, err := os.Stat(filepath.Join(dir, types.DatabaseFile))
	assert.NoError(t, err)
}

func TestBackend_Detach(t *testing.T) {
	b := NewBackend()
	require.NoError(t, b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}))

	require.NoError(t, b.Detach())
	assert.NoError(t, b.Detach(), "second Detach should not error")

	ctx := context.Background()
	_, err := b.ListTables(ctx)
	assert.ErrorIs(t, err, types.ErrDetached)
	_, err = b.CreateTable(ctx, "orders")
	assert.ErrorIs(t, err, types.ErrDetached)
	_, err = b.ListRows(ctx, "orders")
	assert.ErrorIs(t, err, types.ErrDetached)
	_, err = b.Check(ctx)
	assert.ErrorIs(t, err, types.ErrDetached)
}

func TestBackend_ReattachKeepsUserTables(t *testing.T) {
	dir := t.TempDir()
	config := types.Config{Backend: types.BackendSQLite, DataDir: dir}
	ctx := context.Background()

	b := NewBackend()
	require.NoError(t, b.Attach(config))
	mustCreateTable(t, b, "orders", "ship date")
	id := mustInsert(t, b, "orders", map[string]any{"ship date": "2024-05-01"})
	require.NoError(t, b.Detach())

	b2 := NewBackend()
	require.NoError(t, b2.Attach(config))
	defer b2.Detach()

	assert.Equal(t, []string{"ship date"}, columnNames(t, b2, "orders"))
	row, err := b2.GetRow(ctx, "orders", id)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01", row["ship date"])
}

func TestDriverType(t *testing.T) {
	assert.Contains(t, []string{"purego", "cgo"}, DriverType())
}

func TestEngineErrorClassification(t *testing.T) {
	b, _ := newAttachedBackend(t)
	ctx := context.Background()

	_, err := b.db.ExecContext(ctx, "INSERT INTO "+types.RegistryTable+" (name, display_name, created_at) VALUES ('a', 'a', 'x')")
	require.NoError(t, err)
	_, err = b.db.ExecContext(ctx, "INSERT INTO "+types.RegistryTable+" (name, display_name, created_at) VALUES ('A', 'A', 'x')")
	assert.True(t, isUniqueViolation(err), "got %v", err)

	rawExec(t, b, `CREATE TABLE "t" (id INTEGER PRIMARY KEY, "c" TEXT)`)
	_, err = b.db.ExecContext(ctx, `ALTER TABLE "t" ADD COLUMN "C" TEXT`)
	assert.True(t, isDuplicateColumn(err), "got %v", err)

	rawExec(t, b, `CREATE TABLE "u" (id INTEGER PRIMARY KEY)`)
	_, err = b.db.ExecContext(ctx, `ALTER TABLE "u" RENAME TO "t"`)
	assert.True(t, isTableExists(err), "got %v", err)

	assert.False(t, isUniqueViolation(nil))
	assert.False(t, isDuplicateColumn(nil))
	assert.False(t, isTableExists(nil))
}
