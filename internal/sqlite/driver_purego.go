//go:build !cgo_sqlite

package sqlite

import (
	_ "modernc.org/sqlite" // Pure Go SQLite
)

const (
	driverName = "sqlite"
	driverType = "purego"
)
