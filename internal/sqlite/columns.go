package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/sheets/internal/logging"
	"github.com/mesh-intelligence/sheets/pkg/types"
)

// alreadyTrackedWarning is returned in AddColumnResult.Warning when the
// physical column was added but the metadata already listed it.
const alreadyTrackedWarning = "column was already tracked in metadata"

// backupSuffix names the sibling table a column drop rebuilds into.
const backupSuffix = "_backup"

// ListColumns returns the recorded columns of table, never including id.
// An unknown table has no columns.
func (b *Backend) ListColumns(ctx context.Context, table string) ([]types.Column, error) {
	tn, err := types.ValidateTableName(table)
	if err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrDetached
	}

	return trackedColumns(ctx, b.db, tn.Storage)
}

// AddColumn adds a nullable TEXT column and records it in the metadata.
// Table existence is checked against the catalog. If the column is added
// but was already recorded, the result carries a warning instead of an
// error.
func (b *Backend) AddColumn(ctx context.Context, table, name string) (types.AddColumnResult, error) {
	tn, err := types.ValidateTableName(table)
	if err != nil {
		return types.AddColumnResult{}, err
	}
	cn, err := types.ValidateColumnName(name)
	if err != nil {
		return types.AddColumnResult{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return types.AddColumnResult{}, types.ErrDetached
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return types.AddColumnResult{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	actual, exists, err := catalogTable(ctx, tx, tn.Storage)
	if err != nil {
		return types.AddColumnResult{}, err
	}
	if !exists {
		return types.AddColumnResult{}, fmt.Errorf("table %q: %w", tn.Display, types.ErrNotFound)
	}

	stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s TEXT", types.QuoteIdent(actual), types.QuoteIdent(cn.Storage))
	if _, err := exec(ctx, tx, stmt); err != nil {
		if isDuplicateColumn(err) {
			return types.AddColumnResult{}, fmt.Errorf("column %q in table %q: %w", cn.Display, tn.Display, types.ErrConflict)
		}
		return types.AddColumnResult{}, fmt.Errorf("adding column %q to %q: %w", cn.Display, tn.Display, err)
	}

	result := types.AddColumnResult{
		Column: types.Column{Table: actual, Name: cn.Display, Storage: cn.Storage},
	}
	if err := b.insertColumnMeta(ctx, tx, actual, cn); err != nil {
		if !isUniqueViolation(err) {
			return types.AddColumnResult{}, fmt.Errorf("recording column %q of %q: %w", cn.Display, tn.Display, err)
		}
		result.Warning = alreadyTrackedWarning
		logging.FromContext(ctx).WithField("table", actual).WithField("column", cn.Storage).Warn(alreadyTrackedWarning)
	}

	if err := tx.Commit(); err != nil {
		return types.AddColumnResult{}, fmt.Errorf("committing column %q of %q: %w", cn.Display, tn.Display, err)
	}
	return result, nil
}

// RenameColumn renames a column in place and updates its metadata row.
func (b *Backend) RenameColumn(ctx context.Context, table, oldName, newName string) (types.Column, error) {
	tn, err := types.ValidateTableName(table)
	if err != nil {
		return types.Column{}, err
	}
	from, err := types.ValidateColumnName(oldName)
	if err != nil {
		return types.Column{}, err
	}
	to, err := types.ValidateColumnName(newName)
	if err != nil {
		return types.Column{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return types.Column{}, types.ErrDetached
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Column{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	actual, exists, err := catalogTable(ctx, tx, tn.Storage)
	if err != nil {
		return types.Column{}, err
	}
	if !exists {
		return types.Column{}, fmt.Errorf("table %q: %w", tn.Display, types.ErrNotFound)
	}
	cols, err := catalogColumns(ctx, tx, actual)
	if err != nil {
		return types.Column{}, err
	}
	oldActual, ok := findFold(cols, from.Storage)
	if !ok {
		return types.Column{}, fmt.Errorf("column %q in table %q: %w", from.Display, tn.Display, types.ErrNotFound)
	}

	// Renaming to a different spelling of the same storage name only
	// changes the recorded display form.
	if !strings.EqualFold(oldActual, to.Storage) {
		if _, taken := findFold(cols, to.Storage); taken {
			return types.Column{}, fmt.Errorf("column %q in table %q: %w", to.Display, tn.Display, types.ErrConflict)
		}
		stmt := fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s",
			types.QuoteIdent(actual), types.QuoteIdent(oldActual), types.QuoteIdent(to.Storage))
		if _, err := exec(ctx, tx, stmt); err != nil {
			if isDuplicateColumn(err) {
				return types.Column{}, fmt.Errorf("column %q in table %q: %w", to.Display, tn.Display, types.ErrConflict)
			}
			return types.Column{}, fmt.Errorf("renaming column %q of %q: %w", from.Display, tn.Display, err)
		}
	} else {
		to.Storage = oldActual
	}

	updated, err := renameColumnMeta(ctx, tx, actual, oldActual, to)
	if err != nil {
		return types.Column{}, fmt.Errorf("updating column metadata of %q: %w", tn.Display, err)
	}
	if !updated {
		// The column existed physically but was never recorded.
		if err := b.insertColumnMeta(ctx, tx, actual, to); err != nil {
			return types.Column{}, fmt.Errorf("recording column %q of %q: %w", to.Display, tn.Display, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return types.Column{}, fmt.Errorf("committing column rename in %q: %w", tn.Display, err)
	}
	return types.Column{Table: actual, Name: to.Display, Storage: to.Storage}, nil
}

// DropColumn removes a column by rebuilding the table without it:
// snapshot the catalog columns, create <table>_backup holding the
// survivors, copy the rows, drop the original, rename the sibling back and
// forget the metadata row. The steps share one transaction. A failing step
// returns a *types.RebuildError; its ManualRepair flag is set when the
// rollback failed as well.
func (b *Backend) DropColumn(ctx context.Context, table, name string) (types.Column, error) {
	tn, err := types.ValidateTableName(table)
	if err != nil {
		return types.Column{}, err
	}
	cn, err := types.ValidateColumnName(name)
	if err != nil {
		return types.Column{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return types.Column{}, types.ErrDetached
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Column{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	actual, exists, err := catalogTable(ctx, tx, tn.Storage)
	if err != nil {
		return types.Column{}, err
	}
	if !exists {
		return types.Column{}, fmt.Errorf("table %q: %w", tn.Display, types.ErrNotFound)
	}

	if b.stepHook != nil {
		if err := b.stepHook(types.StepSnapshot); err != nil {
			return types.Column{}, &types.RebuildError{Table: actual, Column: cn.Storage, Step: types.StepSnapshot, Err: err}
		}
	}
	cols, err := catalogColumns(ctx, tx, actual)
	if err != nil {
		return types.Column{}, err
	}
	target, ok := findFold(cols, cn.Storage)
	if !ok {
		return types.Column{}, fmt.Errorf("column %q in table %q: %w", cn.Display, tn.Display, types.ErrNotFound)
	}
	backup := actual + backupSuffix
	if _, taken, err := catalogTable(ctx, tx, backup); err != nil {
		return types.Column{}, err
	} else if taken {
		return types.Column{}, fmt.Errorf("rebuild table %q: %w", backup, types.ErrConflict)
	}

	dropped := types.Column{Table: actual, Name: cn.Display, Storage: target}
	if meta, tracked, err := trackedColumn(ctx, tx, actual, target); err != nil {
		return types.Column{}, err
	} else if tracked {
		dropped.Name = meta.Name
	}

	var survivors []string
	for _, c := range cols {
		if c == target || strings.EqualFold(c, types.IDColumn) {
			continue
		}
		survivors = append(survivors, types.QuoteIdent(c))
	}

	fail := func(step string, cause error) (types.Column, error) {
		rebuildErr := &types.RebuildError{Table: actual, Column: target, Step: step, Err: cause}
		if rbErr := tx.Rollback(); rbErr != nil {
			rebuildErr.ManualRepair = true
		}
		logging.FromContext(ctx).WithError(cause).WithField("table", actual).WithField("step", step).
			WithField("manual_repair", rebuildErr.ManualRepair).Error("column drop failed")
		return types.Column{}, rebuildErr
	}

	defs := append([]string{"id INTEGER PRIMARY KEY AUTOINCREMENT"}, textColumns(survivors)...)
	copied := strings.Join(append([]string{"id"}, survivors...), ", ")
	steps := []struct {
		name string
		stmt string
		args []any
	}{
		{types.StepRebuild, fmt.Sprintf("CREATE TABLE %s (%s)", types.QuoteIdent(backup), strings.Join(defs, ", ")), nil},
		{types.StepCopy, fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s", types.QuoteIdent(backup), copied, copied, types.QuoteIdent(actual)), nil},
		// Carry the AUTOINCREMENT high-water mark over so ids of deleted
		// rows are never handed out again. The rename in the swap step moves
		// the sequence row along with the table.
		{types.StepCopy, "DELETE FROM sqlite_sequence WHERE name = ?", []any{backup}},
		{types.StepCopy, "INSERT INTO sqlite_sequence (name, seq) SELECT ?, seq FROM sqlite_sequence WHERE name = ?", []any{backup, actual}},
		{types.StepDrop, "DROP TABLE " + types.QuoteIdent(actual), nil},
		{types.StepSwap, fmt.Sprintf("ALTER TABLE %s RENAME TO %s", types.QuoteIdent(backup), types.QuoteIdent(actual)), nil},
		{types.StepMetadata, "DELETE FROM " + types.ColumnsTable + " WHERE table_name = ? AND column_name = ?", []any{actual, target}},
	}
	for _, s := range steps {
		if b.stepHook != nil {
			if err := b.stepHook(s.name); err != nil {
				return fail(s.name, err)
			}
		}
		if _, err := exec(ctx, tx, s.stmt, s.args...); err != nil {
			return fail(s.name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return types.Column{}, &types.RebuildError{Table: actual, Column: target, Step: types.StepCommit, ManualRepair: true, Err: err}
	}
	return dropped, nil
}

// textColumns turns quoted column names into TEXT column definitions.
func textColumns(quoted []string) []string {
	defs := make([]string, len(quoted))
	for i, q := range quoted {
		defs[i] = q + " TEXT"
	}
	return defs
}
