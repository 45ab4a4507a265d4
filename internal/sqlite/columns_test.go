package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/mesh-intelligence/sheets/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- add_column ---

func TestAddColumn_DisplayAndStorageForms(t *testing.T) {
	b, _ := newAttachedBackend(t)
	ctx := context.Background()
	mustCreateTable(t, b, "orders")

	res, err := b.AddColumn(ctx, "orders", "  ship   date ")
	require.NoError(t, err)
	assert.Empty(t, res.Warning)
	assert.Equal(t, types.Column{Table: "orders", Name: "ship   date", Storage: "ship_date"}, res.Column)

	assert.Equal(t, []string{"id", "ship_date"}, physicalColumns(t, b, "orders"))
	cols, err := b.ListColumns(ctx, "orders")
	require.NoError(t, err)
	require.Len(t, cols, 1)
	assert.Equal(t, "ship   date", cols[0].Name)
	assert.Equal(t, "ship_date", cols[0].Storage)
}

func TestAddColumn_ListsInInsertionOrderWithoutID(t *testing.T) {
	b, _ := newAttachedBackend(t)
	mustCreateTable(t, b, "orders", "zeta", "alpha", "ship date")

	assert.Equal(t, []string{"zeta", "alpha", "ship date"}, columnNames(t, b, "orders"))
}

func TestAddColumn_Conflict(t *testing.T) {
	b, _ := newAttachedBackend(t)
	ctx := context.Background()
	mustCreateTable(t, b, "orders", "ship date")

	for _, name := range []string{"ship date", "ship_date", "SHIP DATE"} {
		_, err := b.AddColumn(ctx, "orders", name)
		assert.ErrorIs(t, err, types.ErrConflict, name)
		assert.Equal(t, types.KindConflict, types.Kind(err))
	}
	assert.Equal(t, []string{"id", "ship_date"}, physicalColumns(t, b, "orders"))
	assert.Equal(t, []string{"ship date"}, columnNames(t, b, "orders"))
}

func TestAddColumn_TableNotFound(t *testing.T) {
	b, _ := newAttachedBackend(t)

	_, err := b.AddColumn(context.Background(), "missing", "total")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestAddColumn_UsesCatalogForTableExistence(t *testing.T) {
	b, _ := newAttachedBackend(t)
	rawExec(t, b, `CREATE TABLE "legacy" (id INTEGER PRIMARY KEY AUTOINCREMENT)`)

	res, err := b.AddColumn(context.Background(), "legacy", "note")
	require.NoError(t, err)
	assert.Equal(t, "legacy", res.Column.Table)
	assert.Equal(t, []string{"note"}, columnNames(t, b, "legacy"))
}

func TestAddColumn_RejectsInvalidNames(t *testing.T) {
	b, _ := newAttachedBackend(t)
	ctx := context.Background()
	mustCreateTable(t, b, "orders")

	tests := []struct {
		name string
		want error
	}{
		{"", types.ErrEmptyName},
		{"id", types.ErrReservedName},
		{"ID", types.ErrReservedName},
		{"2nd", types.ErrInvalidName},
		{"total-price", types.ErrInvalidName},
		{`x" TEXT); DROP TABLE orders; --`, types.ErrInvalidName},
	}
	for _, tt := range tests {
		_, err := b.AddColumn(ctx, "orders", tt.name)
		assert.ErrorIs(t, err, tt.want, tt.name)
	}
	assert.Equal(t, []string{"id"}, physicalColumns(t, b, "orders"))
}

func TestAddColumn_AlreadyTrackedIsWarning(t *testing.T) {
	b, _ := newAttachedBackend(t)
	ctx := context.Background()
	mustCreateTable(t, b, "orders")
	rawExec(t, b,
		"INSERT INTO "+types.ColumnsTable+" (table_name, column_name, display_name, created_at) VALUES (?, ?, ?, ?)",
		"orders", "total", "total", "2024-01-01T00:00:00Z")

	res, err := b.AddColumn(ctx, "orders", "total")
	require.NoError(t, err)
	assert.Equal(t, alreadyTrackedWarning, res.Warning)
	assert.Equal(t, []string{"id", "total"}, physicalColumns(t, b, "orders"))
	assert.Equal(t, []string{"total"}, columnNames(t, b, "orders"))
}

// --- rename_column ---

func TestRenameColumn_KeepsData(t *testing.T) {
	b, _ := newAttachedBackend(t)
	ctx := context.Background()
	mustCreateTable(t, b, "orders", "ship date", "total")
	id := mustInsert(t, b, "orders", map[string]any{"ship date": "2024-05-01", "total": "12"})

	col, err := b.RenameColumn(ctx, "orders", "ship date", "delivery date")
	require.NoError(t, err)
	assert.Equal(t, types.Column{Table: "orders", Name: "delivery date", Storage: "delivery_date"}, col)

	assert.Equal(t, []string{"id", "delivery_date", "total"}, physicalColumns(t, b, "orders"))
	assert.Equal(t, []string{"delivery date", "total"}, columnNames(t, b, "orders"))

	row, err := b.GetRow(ctx, "orders", id)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01", row["delivery date"])
	assert.NotContains(t, row, "ship date")
}

func TestRenameColumn_CaseOnlyChange(t *testing.T) {
	b, _ := newAttachedBackend(t)
	ctx := context.Background()
	mustCreateTable(t, b, "orders", "ship date")

	col, err := b.RenameColumn(ctx, "orders", "ship date", "Ship Date")
	require.NoError(t, err)
	assert.Equal(t, "Ship Date", col.Name)
	assert.Equal(t, []string{"Ship Date"}, columnNames(t, b, "orders"))
	assert.Equal(t, []string{"id", "ship_date"}, physicalColumns(t, b, "orders"))
}

func TestRenameColumn_Errors(t *testing.T) {
	b, _ := newAttachedBackend(t)
	ctx := context.Background()
	mustCreateTable(t, b, "orders", "ship date", "total")

	_, err := b.RenameColumn(ctx, "missing", "total", "sum")
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = b.RenameColumn(ctx, "orders", "nothing", "sum")
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = b.RenameColumn(ctx, "orders", "total", "ship_date")
	assert.ErrorIs(t, err, types.ErrConflict)

	_, err = b.RenameColumn(ctx, "orders", "total", "id")
	assert.ErrorIs(t, err, types.ErrReservedName)

	_, err = b.RenameColumn(ctx, "orders", "id", "key")
	assert.ErrorIs(t, err, types.ErrReservedName)

	_, err = b.RenameColumn(ctx, "orders", "total", "sum(total)")
	assert.ErrorIs(t, err, types.ErrInvalidName)

	assert.Equal(t, []string{"ship date", "total"}, columnNames(t, b, "orders"))
}

func TestRenameColumn_TracksUntrackedColumn(t *testing.T) {
	b, _ := newAttachedBackend(t)
	ctx := context.Background()
	mustCreateTable(t, b, "orders")
	rawExec(t, b, `ALTER TABLE "orders" ADD COLUMN "legacy" TEXT`)

	_, err := b.RenameColumn(ctx, "orders", "legacy", "note")
	require.NoError(t, err)
	assert.Equal(t, []string{"note"}, columnNames(t, b, "orders"))

	drift, err := b.Check(ctx)
	require.NoError(t, err)
	assert.Empty(t, drift)
}

// --- drop_column ---

func TestDropColumn_RebuildsWithoutColumn(t *testing.T) {
	b, _ := newAttachedBackend(t)
	ctx := context.Background()
	mustCreateTable(t, b, "orders", "ship date", "total", "note")
	id1 := mustInsert(t, b, "orders", map[string]any{"ship date": "2024-05-01", "total": "12", "note": "rush"})
	id2 := mustInsert(t, b, "orders", map[string]any{"total": "7"})
	require.NoError(t, b.DeleteRow(ctx, "orders", id2))
	id3 := mustInsert(t, b, "orders", map[string]any{"note": "late"})

	col, err := b.DropColumn(ctx, "orders", "Total")
	require.NoError(t, err)
	assert.Equal(t, types.Column{Table: "orders", Name: "total", Storage: "total"}, col)

	assert.Equal(t, []string{"id", "ship_date", "note"}, physicalColumns(t, b, "orders"))
	assert.Equal(t, []string{"ship date", "note"}, columnNames(t, b, "orders"))

	rows, err := b.ListRows(ctx, "orders")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, types.Row{"id": id1, "ship date": "2024-05-01", "note": "rush"}, rows[0])
	assert.Equal(t, types.Row{"id": id3, "ship date": nil, "note": "late"}, rows[1])

	// Ids keep increasing after the rebuild.
	id4 := mustInsert(t, b, "orders", map[string]any{"note": "new"})
	assert.Greater(t, id4, id3)

	_, exists, err := catalogTable(ctx, b.db, "orders_backup")
	require.NoError(t, err)
	assert.False(t, exists)

	drift, err := b.Check(ctx)
	require.NoError(t, err)
	assert.Empty(t, drift)
}

func TestDropColumn_DeletedIDsNotReused(t *testing.T) {
	b, _ := newAttachedBackend(t)
	ctx := context.Background()

	t.Run("newest row deleted", func(t *testing.T) {
		mustCreateTable(t, b, "orders", "a", "b")
		mustInsert(t, b, "orders", map[string]any{"a": "1"})
		mustInsert(t, b, "orders", map[string]any{"a": "2"})
		newest := mustInsert(t, b, "orders", map[string]any{"a": "3"})
		require.NoError(t, b.DeleteRow(ctx, "orders", newest))

		_, err := b.DropColumn(ctx, "orders", "b")
		require.NoError(t, err)

		next := mustInsert(t, b, "orders", map[string]any{"a": "4"})
		assert.Greater(t, next, newest)
	})

	t.Run("every row deleted", func(t *testing.T) {
		mustCreateTable(t, b, "invoices", "a", "b")
		only := mustInsert(t, b, "invoices", map[string]any{"a": "1"})
		require.NoError(t, b.DeleteRow(ctx, "invoices", only))

		_, err := b.DropColumn(ctx, "invoices", "b")
		require.NoError(t, err)

		next := mustInsert(t, b, "invoices", map[string]any{"a": "2"})
		assert.Greater(t, next, only)
	})
}

func TestDropColumn_LastColumn(t *testing.T) {
	b, _ := newAttachedBackend(t)
	ctx := context.Background()
	mustCreateTable(t, b, "orders", "total")
	id := mustInsert(t, b, "orders", map[string]any{"total": "1"})

	_, err := b.DropColumn(ctx, "orders", "total")
	require.NoError(t, err)

	assert.Equal(t, []string{"id"}, physicalColumns(t, b, "orders"))
	rows, err := b.ListRows(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, []types.Row{{"id": id}}, rows)
}

func TestDropColumn_PreChecks(t *testing.T) {
	b, _ := newAttachedBackend(t)
	ctx := context.Background()
	mustCreateTable(t, b, "orders", "total")

	_, err := b.DropColumn(ctx, "missing", "total")
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = b.DropColumn(ctx, "orders", "nothing")
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = b.DropColumn(ctx, "orders", "id")
	assert.ErrorIs(t, err, types.ErrReservedName)

	rawExec(t, b, `CREATE TABLE "orders_backup" (id INTEGER PRIMARY KEY)`)
	_, err = b.DropColumn(ctx, "orders", "total")
	assert.ErrorIs(t, err, types.ErrConflict)

	assert.Equal(t, []string{"id", "total"}, physicalColumns(t, b, "orders"))
}

func TestDropColumn_FailedStepRollsBack(t *testing.T) {
	steps := []string{
		types.StepSnapshot,
		types.StepRebuild,
		types.StepCopy,
		types.StepDrop,
		types.StepSwap,
		types.StepMetadata,
	}
	for _, step := range steps {
		t.Run(step, func(t *testing.T) {
			b, _ := newAttachedBackend(t)
			ctx := context.Background()
			mustCreateTable(t, b, "orders", "ship date", "total")
			id := mustInsert(t, b, "orders", map[string]any{"ship date": "2024-05-01", "total": "12"})

			injected := errors.New("disk on fire")
			b.stepHook = func(s string) error {
				if s == step {
					return injected
				}
				return nil
			}

			_, err := b.DropColumn(ctx, "orders", "total")
			require.Error(t, err)
			assert.ErrorIs(t, err, types.ErrFatal)
			assert.ErrorIs(t, err, injected)
			assert.Equal(t, types.KindFatal, types.Kind(err))

			var rebuildErr *types.RebuildError
			require.ErrorAs(t, err, &rebuildErr)
			assert.Equal(t, step, rebuildErr.Step)
			assert.False(t, rebuildErr.ManualRepair)

			b.stepHook = nil
			assert.Equal(t, []string{"id", "ship_date", "total"}, physicalColumns(t, b, "orders"))
			assert.Equal(t, []string{"ship date", "total"}, columnNames(t, b, "orders"))
			row, err := b.GetRow(ctx, "orders", id)
			require.NoError(t, err)
			assert.Equal(t, "12", row["total"])

			_, exists, err := catalogTable(ctx, b.db, "orders_backup")
			require.NoError(t, err)
			assert.False(t, exists)
		})
	}
}

func TestDropColumn_UntrackedColumn(t *testing.T) {
	b, _ := newAttachedBackend(t)
	ctx := context.Background()
	mustCreateTable(t, b, "orders", "total")
	rawExec(t, b, `ALTER TABLE "orders" ADD COLUMN "legacy_note" TEXT`)

	col, err := b.DropColumn(ctx, "orders", "legacy note")
	require.NoError(t, err)
	assert.Equal(t, "legacy_note", col.Storage)
	assert.Equal(t, []string{"id", "total"}, physicalColumns(t, b, "orders"))
}
