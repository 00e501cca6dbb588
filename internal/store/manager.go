// Package store implements the graph + vector storage layer: a single
// writable SQLite connection serializing all writes, a pool of read-only
// connections, versioned schema migrations with timestamped backups, and a
// vector store that uses the native sqlite-vec extension when available and
// falls back to brute-force cosine similarity otherwise.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"codegraph/internal/logging"
)

// Manager owns the one writable connection and the read-connection pool
// described in spec §4.8. Writers never block readers because the database
// runs in WAL mode; all writers are serialized behind writeMu regardless,
// since SQLite only supports one writer at a time.
type Manager struct {
	path      string
	writeMu   sync.Mutex
	writeConn *sql.DB
	readPool  *sql.DB // pooled read-only connections (SetMaxOpenConns = maxReadConns)
	vecAvailable bool
}

// Options configures Open.
type Options struct {
	Path          string
	MaxReadConns  int
	MinReadConns  int
	BusyTimeoutMs int
	RequireVec    bool
}

// Open creates (or opens) the database at opts.Path, applies WAL pragmas,
// runs pending migrations, and detects the vector extension.
func Open(opts Options) (*Manager, error) {
	log := logging.Get(logging.Store)
	timer := logging.StartTimer(logging.Store, "store.Open")
	defer timer.Stop()

	if opts.MaxReadConns <= 0 {
		opts.MaxReadConns = 4
	}
	if opts.BusyTimeoutMs <= 0 {
		opts.BusyTimeoutMs = 5000
	}

	if dir := filepath.Dir(opts.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create directory %s: %w", dir, err)
		}
	}

	writeConn, err := sql.Open(sqlDriverName, opts.Path)
	if err != nil {
		return nil, fmt.Errorf("store: open write connection: %w", err)
	}
	writeConn.SetMaxOpenConns(1)
	writeConn.SetMaxIdleConns(1)
	if err := applyPragmas(writeConn, opts.BusyTimeoutMs); err != nil {
		writeConn.Close()
		return nil, err
	}

	readDSN := opts.Path + "?mode=ro&_journal_mode=WAL"
	readPool, err := sql.Open(sqlDriverName, readDSN)
	if err != nil {
		writeConn.Close()
		return nil, fmt.Errorf("store: open read pool: %w", err)
	}
	readPool.SetMaxOpenConns(opts.MaxReadConns)
	readPool.SetMaxIdleConns(maxInt(opts.MinReadConns, 1))

	m := &Manager{path: opts.Path, writeConn: writeConn, readPool: readPool}

	if err := m.initSchema(); err != nil {
		m.Close()
		return nil, err
	}

	if err := RunMigrations(writeConn, opts.Path); err != nil {
		m.Close()
		return nil, fmt.Errorf("store: migrations: %w", err)
	}

	m.vecAvailable = nativeVecAvailable
	if opts.RequireVec && !m.vecAvailable {
		m.Close()
		return nil, fmt.Errorf("store: sqlite-vec extension required but not available")
	}
	if m.vecAvailable {
		if err := m.initVecIndex(); err != nil {
			log.Warn("vec index init failed, continuing in fallback mode", map[string]any{"error": err.Error()})
			m.vecAvailable = false
		}
		log.Info("sqlite-vec extension active")
	} else {
		log.Warn("sqlite-vec extension not available; using brute-force cosine fallback")
	}

	return m, nil
}

func applyPragmas(db *sql.DB, busyTimeoutMs int) error {
	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeoutMs),
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = OFF",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("store: pragma %q: %w", p, err)
		}
	}
	return nil
}

// VecAvailable reports whether native ANN search is active, for getVectorStats.
func (m *Manager) VecAvailable() bool { return m.vecAvailable }

// Write runs fn under the exclusive write lock and inside a transaction; the
// transaction commits on a nil return and rolls back otherwise, satisfying
// the "batch either fully commits or fully rolls back" invariant.
func (m *Manager) Write(fn func(tx *sql.Tx) error) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	tx, err := m.writeConn.Begin()
	if err != nil {
		return fmt.Errorf("store: begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit transaction: %w", err)
	}
	return nil
}

// Read borrows a connection from the read pool for a query. Readers observe
// a consistent WAL snapshot and are never blocked by the single writer.
func (m *Manager) Read() *sql.DB { return m.readPool }

// Close releases both connection pools.
func (m *Manager) Close() error {
	var firstErr error
	if m.readPool != nil {
		if err := m.readPool.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if m.writeConn != nil {
		if err := m.writeConn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
