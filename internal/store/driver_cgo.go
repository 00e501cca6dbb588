//go:build cgo

package store

// Cgo builds use mattn/go-sqlite3, the driver the sqlite-vec extension
// loader in init_vec.go attaches to.
import _ "github.com/mattn/go-sqlite3"

const sqlDriverName = "sqlite3"
