package store

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"time"

	"codegraph/internal/logging"
)

// RunMigrations detects legacy foreign keys between embeddings and the
// vector table and rewrites embeddings without the cross-table constraint,
// preserving data via rename-and-copy, per spec §4.8. A timestamped backup
// is produced before any destructive change, and the migration does not run
// twice: schema_versions records completion.
func RunMigrations(db *sql.DB, dbPath string) error {
	log := logging.Get(logging.Store)

	var applied int
	_ = db.QueryRow(`SELECT COUNT(*) FROM schema_versions WHERE version = ?`, legacyFKMigrationVersion).Scan(&applied)
	if applied > 0 {
		return nil
	}

	if !hasLegacyEmbeddingsForeignKey(db) {
		return markMigrationApplied(db, legacyFKMigrationVersion)
	}

	log.Warn("legacy foreign key detected between embeddings and vec_embeddings; migrating")
	if _, err := CreateBackup(dbPath); err != nil {
		return fmt.Errorf("create pre-migration backup: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`ALTER TABLE embeddings RENAME TO embeddings_legacy`); err != nil {
		return fmt.Errorf("rename legacy embeddings table: %w", err)
	}
	if _, err := tx.Exec(schemaDDL); err != nil {
		return fmt.Errorf("recreate schema: %w", err)
	}
	if _, err := tx.Exec(`INSERT INTO embeddings (id, content, vector, metadata, created_at)
		SELECT id, content, vector, metadata, created_at FROM embeddings_legacy`); err != nil {
		return fmt.Errorf("copy embeddings rows: %w", err)
	}
	if _, err := tx.Exec(`DROP TABLE embeddings_legacy`); err != nil {
		return fmt.Errorf("drop legacy embeddings table: %w", err)
	}
	if _, err := tx.Exec(`INSERT INTO schema_versions (version, applied_at) VALUES (?, ?)`, legacyFKMigrationVersion, time.Now().UTC()); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	log.Info("legacy foreign key migration complete")
	return nil
}

const legacyFKMigrationVersion = 1

func markMigrationApplied(db *sql.DB, version int) error {
	_, err := db.Exec(`INSERT OR IGNORE INTO schema_versions (version, applied_at) VALUES (?, ?)`, version, time.Now().UTC())
	return err
}

// hasLegacyEmbeddingsForeignKey inspects the embeddings table's foreign key
// list for a reference to vec_embeddings (the shape produced by older
// databases created before this engine separated the two tables cleanly).
func hasLegacyEmbeddingsForeignKey(db *sql.DB) bool {
	if !tableExists(db, "embeddings") {
		return false
	}
	rows, err := db.Query(`PRAGMA foreign_key_list(embeddings)`)
	if err != nil {
		return false
	}
	defer rows.Close()
	for rows.Next() {
		cols, err := rows.Columns()
		if err != nil {
			return false
		}
		dest := make([]any, len(cols))
		for i := range dest {
			var s sql.NullString
			dest[i] = &s
		}
		if err := rows.Scan(dest...); err != nil {
			continue
		}
		for i, c := range cols {
			if c == "table" {
				if s, ok := dest[i].(*sql.NullString); ok && s.Valid && s.String == "vec_embeddings" {
					return true
				}
			}
		}
	}
	return false
}

// maxRetainedBackups bounds how many timestamped backup files are kept
// around a given database path, per the Supplemented Features section of
// SPEC_FULL.md (the teacher's own backup code never rotates old backups).
const maxRetainedBackups = 5

// CreateBackup copies the database file to a sibling path named
// "<db>.backup-<ISO-timestamp>" and prunes old backups beyond
// maxRetainedBackups.
func CreateBackup(dbPath string) (string, error) {
	ts := time.Now().UTC().Format("20060102T150405Z")
	backupPath := fmt.Sprintf("%s.backup-%s", dbPath, ts)

	src, err := os.Open(dbPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil // nothing to back up yet
		}
		return "", err
	}
	defer src.Close()

	dst, err := os.Create(backupPath)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", err
	}
	if err := dst.Sync(); err != nil {
		return "", err
	}

	pruneOldBackups(dbPath)
	return backupPath, nil
}

func pruneOldBackups(dbPath string) {
	dir := "."
	if idx := lastSlash(dbPath); idx >= 0 {
		dir = dbPath[:idx]
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	base := dbPath
	if idx := lastSlash(dbPath); idx >= 0 {
		base = dbPath[idx+1:]
	}
	var backups []string
	for _, e := range entries {
		name := e.Name()
		if len(name) > len(base)+8 && name[:len(base)+8] == base+".backup-" {
			backups = append(backups, name)
		}
	}
	if len(backups) <= maxRetainedBackups {
		return
	}
	// Names are ISO-timestamp-suffixed, so lexical order is chronological.
	for _, old := range backups[:len(backups)-maxRetainedBackups] {
		_ = os.Remove(dir + "/" + old)
	}
}

func lastSlash(path string) int {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return i
		}
	}
	return -1
}

// RestoreBackup copies a backup file back over the live database path. Used
// by operational tooling, not by the engine itself at runtime.
func RestoreBackup(backupPath, dbPath string) error {
	src, err := os.Open(backupPath)
	if err != nil {
		return err
	}
	defer src.Close()
	dst, err := os.Create(dbPath)
	if err != nil {
		return err
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		return err
	}
	return dst.Sync()
}
