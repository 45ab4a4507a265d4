// Package sqlite exposes the factory for the SQLite-backed sheets Store
// while keeping the implementation internal.
package sqlite

import (
	"github.com/mesh-intelligence/sheets/internal/sqlite"
	"github.com/mesh-intelligence/sheets/pkg/types"
)

// NewStore creates a SQLite store. The store is not attached; call Attach
// with a Config to open the database.
//
// Example:
//
//	store := sqlite.NewStore()
//	err := store.Attach(types.Config{
//	    Backend: types.BackendSQLite,
//	    DataDir: ".sheets-db",
//	})
//	defer store.Detach()
func NewStore() types.Store {
	return sqlite.NewBackend()
}

// DriverType reports the compiled-in SQLite driver, "purego" or "cgo".
func DriverType() string {
	return sqlite.DriverType()
}
