package sqlite

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mesh-intelligence/sheets/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRows_ShipDateRoundTrip(t *testing.T) {
	b, _ := newAttachedBackend(t)
	ctx := context.Background()
	mustCreateTable(t, b, "orders", "ship date")

	row, err := b.InsertRow(ctx, "orders", map[string]any{"ship date": "2024-05-01"})
	require.NoError(t, err)
	assert.Positive(t, row.ID())
	assert.Equal(t, "2024-05-01", row["ship date"])

	got, err := b.GetRow(ctx, "orders", row.ID())
	require.NoError(t, err)
	assert.Equal(t, row, got)

	// The storage form is accepted as a key too.
	updated, err := b.UpdateRow(ctx, "orders", row.ID(), map[string]any{"ship_date": "2024-06-01"})
	require.NoError(t, err)
	assert.Equal(t, types.Row{"id": row.ID(), "ship date": "2024-06-01"}, updated)
}

func TestRows_ListOrderedByID(t *testing.T) {
	b, _ := newAttachedBackend(t)
	ctx := context.Background()
	mustCreateTable(t, b, "orders", "total", "note")

	id1 := mustInsert(t, b, "orders", map[string]any{"total": "1"})
	id2 := mustInsert(t, b, "orders", map[string]any{"note": "second"})

	rows, err := b.ListRows(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, []types.Row{
		{"id": id1, "total": "1", "note": nil},
		{"id": id2, "total": nil, "note": "second"},
	}, rows)
}

func TestRows_ListUnknownTableIsEmpty(t *testing.T) {
	b, _ := newAttachedBackend(t)

	rows, err := b.ListRows(context.Background(), "missing")
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestRows_ListRejectsInvalidTableName(t *testing.T) {
	b, _ := newAttachedBackend(t)

	_, err := b.ListRows(context.Background(), `orders"; DROP TABLE x; --`)
	assert.ErrorIs(t, err, types.ErrInvalidName)
}

func TestRows_ScalarValuesStoredAsText(t *testing.T) {
	b, _ := newAttachedBackend(t)
	ctx := context.Background()
	mustCreateTable(t, b, "readings", "a", "b", "c", "d", "e")

	row, err := b.InsertRow(ctx, "readings", map[string]any{
		"a": json.Number("12.50"),
		"b": 3.25,
		"c": true,
		"d": nil,
		"e": int64(42),
	})
	require.NoError(t, err)
	assert.Equal(t, "12.50", row["a"])
	assert.Equal(t, "3.25", row["b"])
	assert.Equal(t, "true", row["c"])
	assert.Nil(t, row["d"])
	assert.Equal(t, "42", row["e"])
}

func TestRows_PayloadErrors(t *testing.T) {
	b, _ := newAttachedBackend(t)
	ctx := context.Background()
	mustCreateTable(t, b, "orders", "total")
	id := mustInsert(t, b, "orders", map[string]any{"total": "1"})

	tests := []struct {
		name   string
		fields map[string]any
		want   error
	}{
		{"empty", map[string]any{}, types.ErrEmptyPayload},
		{"nil", nil, types.ErrEmptyPayload},
		{"only id", map[string]any{"id": 9}, types.ErrEmptyPayload},
		{"unknown column", map[string]any{"color": "red"}, types.ErrUnknownField},
		{"object value", map[string]any{"total": map[string]any{"x": 1}}, types.ErrInvalidData},
		{"array value", map[string]any{"total": []any{1, 2}}, types.ErrInvalidData},
		{"duplicate key forms", map[string]any{"total": "1", "TOTAL": "2"}, types.ErrInvalidData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.InsertRow(ctx, "orders", tt.fields)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, types.KindInvalid, types.Kind(err))

			_, err = b.UpdateRow(ctx, "orders", id, tt.fields)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	rows, err := b.ListRows(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, []types.Row{{"id": id, "total": "1"}}, rows)
}

func TestRows_IDInPayloadIgnored(t *testing.T) {
	b, _ := newAttachedBackend(t)
	ctx := context.Background()
	mustCreateTable(t, b, "orders", "total")

	row, err := b.InsertRow(ctx, "orders", map[string]any{"id": 999, "total": "5"})
	require.NoError(t, err)
	assert.NotEqual(t, int64(999), row.ID())

	updated, err := b.UpdateRow(ctx, "orders", row.ID(), map[string]any{"id": 1000, "total": "6"})
	require.NoError(t, err)
	assert.Equal(t, row.ID(), updated.ID())
	assert.Equal(t, "6", updated["total"])
}

func TestRows_NotFound(t *testing.T) {
	b, _ := newAttachedBackend(t)
	ctx := context.Background()
	mustCreateTable(t, b, "orders", "total")

	_, err := b.GetRow(ctx, "orders", 42)
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = b.UpdateRow(ctx, "orders", 42, map[string]any{"total": "1"})
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = b.GetRow(ctx, "missing", 1)
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = b.InsertRow(ctx, "missing", map[string]any{"total": "1"})
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestRows_DeleteIsIdempotent(t *testing.T) {
	b, _ := newAttachedBackend(t)
	ctx := context.Background()
	mustCreateTable(t, b, "orders", "total")
	id := mustInsert(t, b, "orders", map[string]any{"total": "1"})

	require.NoError(t, b.DeleteRow(ctx, "orders", id))
	require.NoError(t, b.DeleteRow(ctx, "orders", id))
	require.NoError(t, b.DeleteRow(ctx, "missing", id))

	_, err := b.GetRow(ctx, "orders", id)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestRows_UntrackedColumnsNotExposed(t *testing.T) {
	b, _ := newAttachedBackend(t)
	ctx := context.Background()
	mustCreateTable(t, b, "orders", "total")
	rawExec(t, b, `ALTER TABLE "orders" ADD COLUMN "secret" TEXT`)
	id := mustInsert(t, b, "orders", map[string]any{"total": "1"})

	row, err := b.GetRow(ctx, "orders", id)
	require.NoError(t, err)
	assert.NotContains(t, row, "secret")

	_, err = b.InsertRow(ctx, "orders", map[string]any{"secret": "x"})
	assert.ErrorIs(t, err, types.ErrUnknownField)
}

func TestCellValue(t *testing.T) {
	tests := []struct {
		in   any
		want any
	}{
		{"text", "text"},
		{json.Number("7"), "7"},
		{float64(1e21), "1000000000000000000000"},
		{float32(0.5), "0.5"},
		{3, "3"},
		{false, "false"},
		{nil, nil},
	}
	for _, tt := range tests {
		got, err := cellValue(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := cellValue(struct{}{})
	assert.ErrorIs(t, err, types.ErrInvalidData)
}
