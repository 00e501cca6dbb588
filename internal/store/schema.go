package store

import "database/sql"

// schemaVersion is the current baseline schema. Additive migrations beyond
// this are tracked in migrations.go.
const schemaVersion = 1

const schemaDDL = `
CREATE TABLE IF NOT EXISTS entities (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	type TEXT NOT NULL,
	file_path TEXT NOT NULL,
	start_line INTEGER, start_column INTEGER, start_index INTEGER,
	end_line INTEGER, end_column INTEGER, end_index INTEGER,
	metadata TEXT,
	hash TEXT NOT NULL,
	language TEXT,
	size_bytes INTEGER,
	complexity_score REAL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	UNIQUE(file_path, name, type, start_index)
);
CREATE INDEX IF NOT EXISTS idx_entities_file_path ON entities(file_path);
CREATE INDEX IF NOT EXISTS idx_entities_type ON entities(type);

CREATE TABLE IF NOT EXISTS relationships (
	id TEXT PRIMARY KEY,
	from_id TEXT NOT NULL,
	to_id TEXT NOT NULL,
	type TEXT NOT NULL,
	metadata TEXT,
	created_at DATETIME NOT NULL,
	UNIQUE(from_id, to_id, type)
);
CREATE INDEX IF NOT EXISTS idx_relationships_from ON relationships(from_id, type);
CREATE INDEX IF NOT EXISTS idx_relationships_to ON relationships(to_id, type);

CREATE TABLE IF NOT EXISTS embeddings (
	id TEXT PRIMARY KEY,
	content TEXT,
	vector BLOB,
	metadata TEXT,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_embeddings_created_at ON embeddings(created_at);

CREATE TABLE IF NOT EXISTS file_index_markers (
	file_path TEXT PRIMARY KEY,
	last_indexed_at DATETIME NOT NULL,
	entity_hashes TEXT
);

CREATE TABLE IF NOT EXISTS schema_versions (
	version INTEGER PRIMARY KEY,
	applied_at DATETIME NOT NULL
);
`

func (m *Manager) initSchema() error {
	_, err := m.writeConn.Exec(schemaDDL)
	return err
}

func tableExists(db *sql.DB, name string) bool {
	row := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", name)
	var got string
	return row.Scan(&got) == nil
}

func columnExists(db *sql.DB, table, column string) bool {
	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		return false
	}
	defer rows.Close()
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			continue
		}
		if name == column {
			return true
		}
	}
	return false
}
