//go:build cgo

package storage

import (
	_ "github.com/mattn/go-sqlite3" // registers the "sqlite3" driver
)

// CGODriver is available when built with cgo.
const CGODriver = "sqlite3"
