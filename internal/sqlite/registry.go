package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mesh-intelligence/sheets/pkg/types"
)

// ListTables returns the registered tables ordered by creation.
func (b *Backend) ListTables(ctx context.Context) ([]types.TableInfo, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrDetached
	}

	rows, err := b.db.QueryContext(ctx,
		"SELECT id, name, display_name, created_at FROM "+types.RegistryTable+" ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	defer rows.Close()

	tables := []types.TableInfo{}
	for rows.Next() {
		t, err := scanTableInfo(rows)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tables: %w", err)
	}
	return tables, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTableInfo(s scanner) (types.TableInfo, error) {
	var t types.TableInfo
	var createdAt string
	if err := s.Scan(&t.ID, &t.Name, &t.Display, &createdAt); err != nil {
		return types.TableInfo{}, err
	}
	var err error
	t.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return types.TableInfo{}, fmt.Errorf("parsing created_at of %q: %w", t.Name, err)
	}
	return t, nil
}

// registeredTable reads one registry row.
func registeredTable(ctx context.Context, q querier, name string) (types.TableInfo, bool, error) {
	t, err := scanTableInfo(q.QueryRowContext(ctx,
		"SELECT id, name, display_name, created_at FROM "+types.RegistryTable+" WHERE name = ?", name))
	if errors.Is(err, sql.ErrNoRows) {
		return types.TableInfo{}, false, nil
	}
	if err != nil {
		return types.TableInfo{}, false, fmt.Errorf("reading registry: %w", err)
	}
	return t, true, nil
}

// CreateTable registers name and creates the physical table with its id
// column. Returns ErrConflict if the name is already registered or present
// in the catalog.
func (b *Backend) CreateTable(ctx context.Context, name string) (types.TableInfo, error) {
	n, err := types.ValidateTableName(name)
	if err != nil {
		return types.TableInfo{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return types.TableInfo{}, types.ErrDetached
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return types.TableInfo{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, exists, err := catalogTable(ctx, tx, n.Storage); err != nil {
		return types.TableInfo{}, err
	} else if exists {
		return types.TableInfo{}, fmt.Errorf("table %q: %w", n.Display, types.ErrConflict)
	}

	createdAt := b.now()
	res, err := exec(ctx, tx,
		"INSERT INTO "+types.RegistryTable+" (name, display_name, created_at) VALUES (?, ?, ?)",
		n.Storage, n.Display, timestamp(createdAt),
	)
	if isUniqueViolation(err) {
		return types.TableInfo{}, fmt.Errorf("table %q: %w", n.Display, types.ErrConflict)
	}
	if err != nil {
		return types.TableInfo{}, fmt.Errorf("registering table %q: %w", n.Display, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return types.TableInfo{}, fmt.Errorf("registering table %q: %w", n.Display, err)
	}

	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (id INTEGER PRIMARY KEY AUTOINCREMENT)", types.QuoteIdent(n.Storage))
	if _, err := exec(ctx, tx, stmt); err != nil {
		return types.TableInfo{}, fmt.Errorf("creating table %q: %w", n.Display, err)
	}

	if err := tx.Commit(); err != nil {
		return types.TableInfo{}, fmt.Errorf("committing table %q: %w", n.Display, err)
	}

	return types.TableInfo{ID: id, Name: n.Storage, Display: n.Display, CreatedAt: createdAt.Truncate(time.Second)}, nil
}

// DropTable unregisters name, forgets its column metadata and drops the
// physical table. Dropping an unknown table succeeds.
func (b *Backend) DropTable(ctx context.Context, name string) error {
	n, err := types.ValidateTableName(name)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return types.ErrDetached
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := exec(ctx, tx, "DELETE FROM "+types.RegistryTable+" WHERE name = ?", n.Storage); err != nil {
		return fmt.Errorf("unregistering table %q: %w", n.Display, err)
	}
	if _, err := exec(ctx, tx, "DELETE FROM "+types.ColumnsTable+" WHERE table_name = ?", n.Storage); err != nil {
		return fmt.Errorf("dropping column metadata of %q: %w", n.Display, err)
	}
	if _, err := exec(ctx, tx, "DROP TABLE IF EXISTS "+types.QuoteIdent(n.Storage)); err != nil {
		return fmt.Errorf("dropping table %q: %w", n.Display, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing drop of %q: %w", n.Display, err)
	}
	return nil
}

// RenameTable renames the physical table and moves its registry row and
// column metadata to the new name. Either all three change or none does.
func (b *Backend) RenameTable(ctx context.Context, oldName, newName string) (types.TableInfo, error) {
	from, err := types.ValidateTableName(oldName)
	if err != nil {
		return types.TableInfo{}, err
	}
	to, err := types.ValidateTableName(newName)
	if err != nil {
		return types.TableInfo{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return types.TableInfo{}, types.ErrDetached
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return types.TableInfo{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	actual, exists, err := catalogTable(ctx, tx, from.Storage)
	if err != nil {
		return types.TableInfo{}, err
	}
	if !exists {
		return types.TableInfo{}, fmt.Errorf("table %q: %w", from.Display, types.ErrNotFound)
	}

	// A different spelling of the same storage name keeps the physical
	// table and only changes the recorded display form.
	if !strings.EqualFold(actual, to.Storage) {
		if _, taken, err := catalogTable(ctx, tx, to.Storage); err != nil {
			return types.TableInfo{}, err
		} else if taken {
			return types.TableInfo{}, fmt.Errorf("table %q: %w", to.Display, types.ErrConflict)
		}
		stmt := fmt.Sprintf("ALTER TABLE %s RENAME TO %s", types.QuoteIdent(actual), types.QuoteIdent(to.Storage))
		if _, err := exec(ctx, tx, stmt); err != nil {
			if isTableExists(err) {
				return types.TableInfo{}, fmt.Errorf("table %q: %w", to.Display, types.ErrConflict)
			}
			return types.TableInfo{}, fmt.Errorf("renaming table %q: %w", from.Display, err)
		}
	} else {
		to.Storage = actual
	}
	if _, err := exec(ctx, tx,
		"UPDATE "+types.RegistryTable+" SET name = ?, display_name = ? WHERE name = ?",
		to.Storage, to.Display, actual,
	); err != nil {
		return types.TableInfo{}, fmt.Errorf("updating registry for %q: %w", from.Display, err)
	}
	if _, err := exec(ctx, tx,
		"UPDATE "+types.ColumnsTable+" SET table_name = ? WHERE table_name = ?",
		to.Storage, actual,
	); err != nil {
		return types.TableInfo{}, fmt.Errorf("moving column metadata of %q: %w", from.Display, err)
	}

	info, registered, err := registeredTable(ctx, tx, to.Storage)
	if err != nil {
		return types.TableInfo{}, err
	}
	if !registered {
		info = types.TableInfo{Name: to.Storage, Display: to.Display}
	}

	if err := tx.Commit(); err != nil {
		return types.TableInfo{}, fmt.Errorf("committing rename of %q: %w", from.Display, err)
	}
	return info, nil
}
