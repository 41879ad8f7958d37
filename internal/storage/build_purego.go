//go:build !sqlite_cgo

package storage

// Default build. Uses the pure Go modernc.org/sqlite driver, so no C
// toolchain is needed and the binary cross-compiles.

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite"

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)
