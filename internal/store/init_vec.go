//go:build sqlite_vec && cgo

package store

import (
	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

// init registers the sqlite-vec extension as auto-loadable for every
// subsequent mattn/go-sqlite3 connection opened in this process.
func init() {
	vec.Auto()
	nativeVecAvailable = true
}
