package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/mesh-intelligence/sheets/pkg/types"
)

// rowSchema is the part of a table's schema rows are read and written
// through: the catalog spelling of the table and the tracked columns that
// physically exist, in metadata order.
type rowSchema struct {
	table   string
	columns []types.Column
}

// loadRowSchema reports false when table is absent from the catalog.
func loadRowSchema(ctx context.Context, q querier, table string) (rowSchema, bool, error) {
	actual, exists, err := catalogTable(ctx, q, table)
	if err != nil || !exists {
		return rowSchema{}, false, err
	}
	physical, err := catalogColumns(ctx, q, actual)
	if err != nil {
		return rowSchema{}, false, err
	}
	tracked, err := trackedColumns(ctx, q, actual)
	if err != nil {
		return rowSchema{}, false, err
	}

	s := rowSchema{table: actual}
	for _, c := range tracked {
		if storage, ok := findFold(physical, c.Storage); ok {
			c.Table = actual
			c.Storage = storage
			s.columns = append(s.columns, c)
		}
	}
	return s, true, nil
}

// column resolves a payload key. Display names and storage names are both
// accepted, case-insensitively.
func (s rowSchema) column(key string) (types.Column, bool) {
	storage := types.StorageName(key)
	for _, c := range s.columns {
		if strings.EqualFold(c.Name, key) || strings.EqualFold(c.Storage, storage) {
			return c, true
		}
	}
	return types.Column{}, false
}

// selectList is the quoted column list of a SELECT, id first.
func (s rowSchema) selectList() string {
	cols := make([]string, 0, len(s.columns)+1)
	cols = append(cols, types.IDColumn)
	for _, c := range s.columns {
		cols = append(cols, types.QuoteIdent(c.Storage))
	}
	return strings.Join(cols, ", ")
}

// scanRow reads one result row produced by selectList.
func (s rowSchema) scanRow(sc scanner) (types.Row, error) {
	var id int64
	values := make([]sql.NullString, len(s.columns))
	dest := make([]any, 0, len(s.columns)+1)
	dest = append(dest, &id)
	for i := range values {
		dest = append(dest, &values[i])
	}
	if err := sc.Scan(dest...); err != nil {
		return nil, err
	}

	row := types.Row{types.IDColumn: id}
	for i, c := range s.columns {
		if values[i].Valid {
			row[c.Name] = values[i].String
		} else {
			row[c.Name] = nil
		}
	}
	return row, nil
}

// assignment is one column write resolved from a payload.
type assignment struct {
	storage string
	value   any
}

// assignments translates a payload into column writes, sorted by storage
// name. The id key is ignored.
func (s rowSchema) assignments(fields map[string]any) ([]assignment, error) {
	var out []assignment
	seen := make(map[string]bool, len(fields))
	for key, raw := range fields {
		if strings.EqualFold(strings.TrimSpace(key), types.IDColumn) {
			continue
		}
		c, ok := s.column(strings.TrimSpace(key))
		if !ok {
			return nil, fmt.Errorf("%w %q in table %q", types.ErrUnknownField, key, s.table)
		}
		if seen[c.Storage] {
			return nil, fmt.Errorf("%w: column %q given more than once", types.ErrInvalidData, c.Name)
		}
		seen[c.Storage] = true
		v, err := cellValue(raw)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", c.Name, err)
		}
		out = append(out, assignment{storage: c.Storage, value: v})
	}
	if len(out) == 0 {
		return nil, types.ErrEmptyPayload
	}
	sort.Slice(out, func(i, j int) bool { return out[i].storage < out[j].storage })
	return out, nil
}

// cellValue converts a decoded JSON scalar into the text stored in a cell.
// nil stays NULL.
func cellValue(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string:
		return x, nil
	case json.Number:
		return x.String(), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32), nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case bool:
		return strconv.FormatBool(x), nil
	default:
		return nil, fmt.Errorf("%w: %T is not a scalar", types.ErrInvalidData, v)
	}
}

// ListRows returns every row of table ordered by id. An unknown table has
// no rows.
func (b *Backend) ListRows(ctx context.Context, table string) ([]types.Row, error) {
	tn, err := types.ValidateTableName(table)
	if err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrDetached
	}

	s, exists, err := loadRowSchema(ctx, b.db, tn.Storage)
	if err != nil {
		return nil, err
	}
	if !exists {
		return []types.Row{}, nil
	}

	rows, err := b.db.QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM %s ORDER BY id", s.selectList(), types.QuoteIdent(s.table)))
	if err != nil {
		return nil, fmt.Errorf("listing rows of %q: %w", tn.Display, err)
	}
	defer rows.Close()

	out := []types.Row{}
	for rows.Next() {
		row, err := s.scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning row of %q: %w", tn.Display, err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows of %q: %w", tn.Display, err)
	}
	return out, nil
}

// GetRow returns one row by id.
func (b *Backend) GetRow(ctx context.Context, table string, id int64) (types.Row, error) {
	tn, err := types.ValidateTableName(table)
	if err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrDetached
	}

	s, exists, err := loadRowSchema(ctx, b.db, tn.Storage)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("table %q: %w", tn.Display, types.ErrNotFound)
	}
	return b.readRow(ctx, b.db, s, id)
}

func (b *Backend) readRow(ctx context.Context, q querier, s rowSchema, id int64) (types.Row, error) {
	row, err := s.scanRow(q.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", s.selectList(), types.QuoteIdent(s.table)), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("row %d in table %q: %w", id, s.table, types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading row %d of %q: %w", id, s.table, err)
	}
	return row, nil
}

// InsertRow adds a row built from fields, keyed by column display name,
// and returns it with its generated id.
func (b *Backend) InsertRow(ctx context.Context, table string, fields map[string]any) (types.Row, error) {
	tn, err := types.ValidateTableName(table)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, types.ErrEmptyPayload
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return nil, types.ErrDetached
	}

	s, exists, err := loadRowSchema(ctx, b.db, tn.Storage)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("table %q: %w", tn.Display, types.ErrNotFound)
	}
	assigns, err := s.assignments(fields)
	if err != nil {
		return nil, err
	}

	cols := make([]string, len(assigns))
	marks := make([]string, len(assigns))
	args := make([]any, len(assigns))
	for i, a := range assigns {
		cols[i] = types.QuoteIdent(a.storage)
		marks[i] = "?"
		args[i] = a.value
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		types.QuoteIdent(s.table), strings.Join(cols, ", "), strings.Join(marks, ", "))
	res, err := exec(ctx, b.db, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("inserting into %q: %w", tn.Display, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("inserting into %q: %w", tn.Display, err)
	}
	return b.readRow(ctx, b.db, s, id)
}

// UpdateRow overwrites the given fields of row id and returns the row.
func (b *Backend) UpdateRow(ctx context.Context, table string, id int64, fields map[string]any) (types.Row, error) {
	tn, err := types.ValidateTableName(table)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, types.ErrEmptyPayload
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return nil, types.ErrDetached
	}

	s, exists, err := loadRowSchema(ctx, b.db, tn.Storage)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("table %q: %w", tn.Display, types.ErrNotFound)
	}
	assigns, err := s.assignments(fields)
	if err != nil {
		return nil, err
	}

	sets := make([]string, len(assigns))
	args := make([]any, 0, len(assigns)+1)
	for i, a := range assigns {
		sets[i] = types.QuoteIdent(a.storage) + " = ?"
		args = append(args, a.value)
	}
	args = append(args, id)
	stmt := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", types.QuoteIdent(s.table), strings.Join(sets, ", "))
	res, err := exec(ctx, b.db, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("updating row %d of %q: %w", id, tn.Display, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("updating row %d of %q: %w", id, tn.Display, err)
	} else if n == 0 {
		return nil, fmt.Errorf("row %d in table %q: %w", id, tn.Display, types.ErrNotFound)
	}
	return b.readRow(ctx, b.db, s, id)
}

// DeleteRow removes row id. Deleting a missing row, or a row of a missing
// table, succeeds.
func (b *Backend) DeleteRow(ctx context.Context, table string, id int64) error {
	tn, err := types.ValidateTableName(table)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return types.ErrDetached
	}

	actual, exists, err := catalogTable(ctx, b.db, tn.Storage)
	if err != nil || !exists {
		return err
	}
	if _, err := exec(ctx, b.db, "DELETE FROM "+types.QuoteIdent(actual)+" WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting row %d of %q: %w", id, tn.Display, err)
	}
	return nil
}
