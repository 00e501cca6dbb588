//go:build !cgo

package store

// Pure-Go builds (no C toolchain available) fall back to modernc.org/sqlite.
// The native sqlite-vec extension cannot attach to this driver, so the
// vector store always runs brute-force cosine similarity in this mode.
import _ "modernc.org/sqlite"

const sqlDriverName = "sqlite"
