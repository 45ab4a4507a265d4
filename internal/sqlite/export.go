package sqlite

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/mesh-intelligence/sheets/internal/logging"
	"github.com/mesh-intelligence/sheets/pkg/types"
)

// ExportRows writes every row of table to path as JSONL, one display-keyed
// object per line, and returns the number of rows written. The file is
// replaced atomically. A path that is a directory or lies in a missing
// directory returns ErrInvalidPath before any row is read.
func (b *Backend) ExportRows(ctx context.Context, table, path string) (int, error) {
	if err := checkExportPath(path); err != nil {
		return 0, err
	}
	rows, err := b.ListRows(ctx, table)
	if err != nil {
		return 0, err
	}
	if err := writeJSONL(path, rows); err != nil {
		return 0, fmt.Errorf("exporting %q: %w", table, err)
	}

	logging.FromContext(ctx).WithField("table", table).WithField("path", path).
		WithField("rows", len(rows)).Info("rows exported")
	return len(rows), nil
}

// ImportRows inserts each JSON object in the JSONL file at path as a new row
// of table. Malformed lines and lines that are not objects are skipped; an id
// key is ignored. Import stops at the first insert that fails and returns the
// number of rows inserted so far.
func (b *Backend) ImportRows(ctx context.Context, table, path string) (int, error) {
	if _, err := types.ValidateTableName(table); err != nil {
		return 0, err
	}
	records, skipped, err := readJSONL(path)
	if err != nil {
		return 0, err
	}

	inserted := 0
	for _, rec := range records {
		dec := json.NewDecoder(bytes.NewReader(rec))
		dec.UseNumber()
		var fields map[string]any
		if err := dec.Decode(&fields); err != nil || fields == nil {
			skipped++
			continue
		}
		if _, err := b.InsertRow(ctx, table, fields); err != nil {
			return inserted, fmt.Errorf("importing record %d into %q: %w", inserted+skipped+1, table, err)
		}
		inserted++
	}

	entry := logging.FromContext(ctx).WithField("table", table).WithField("path", path).WithField("rows", inserted)
	if skipped > 0 {
		entry = entry.WithField("skipped", skipped)
	}
	entry.Info("rows imported")
	return inserted, nil
}
