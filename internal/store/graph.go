package store

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"codegraph/internal/errs"
	"codegraph/internal/logging"
	"codegraph/internal/types"
)

// ComputeHash returns the content hash of an entity's identifying fields.
// hash must change if and only if any identifying field changes, per the
// entity invariant: it covers name, type, filePath, location and signature
// metadata, not derived fields like updatedAt.
func ComputeHash(e types.Entity) string {
	sig, _ := e.Metadata["signature"].(string)
	raw := fmt.Sprintf("%s|%s|%s|%d|%d|%s", e.FilePath, e.Name, e.Type, e.Location.Start.Line, e.Location.Start.Column, sig)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// UpsertEntities inserts or updates a batch of entities in a single
// transaction, collapsing duplicate (filePath, name, type, startIndex) rows
// within the batch before writing, and returns the resolved ids keyed by
// (filePath, name, type, startIndex) for relationship resolution.
func (m *Manager) UpsertEntities(entities []types.Entity) (map[string]string, error) {
	log := logging.Get(logging.Store)
	resolved := make(map[string]string, len(entities))
	now := time.Now().UTC()

	dedup := make(map[string]types.Entity, len(entities))
	order := make([]string, 0, len(entities))
	for _, e := range entities {
		start := 0
		if e.Location.Start.Index != nil {
			start = *e.Location.Start.Index
		}
		key := fmt.Sprintf("%s\x00%s\x00%s\x00%d", e.FilePath, e.Name, e.Type, start)
		if _, ok := dedup[key]; !ok {
			order = append(order, key)
		}
		dedup[key] = e // last write in the batch wins, collapsing duplicates
	}

	err := m.Write(func(tx *sql.Tx) error {
		for _, key := range order {
			e := dedup[key]
			hash := ComputeHash(e)

			var existingID, existingHash string
			row := tx.QueryRow(`SELECT id, hash FROM entities WHERE file_path=? AND name=? AND type=? AND start_index IS ?`,
				e.FilePath, e.Name, string(e.Type), startIndexValue(e))
			scanErr := row.Scan(&existingID, &existingHash)

			id := existingID
			if scanErr == sql.ErrNoRows {
				id = uuid.NewString()
			} else if scanErr != nil {
				return fmt.Errorf("lookup entity: %w", scanErr)
			}

			metaJSON, err := json.Marshal(e.Metadata)
			if err != nil {
				return fmt.Errorf("marshal metadata: %w", err)
			}

			createdAt := now
			if scanErr == nil {
				// existing row: keep its createdAt, only updatedAt moves forward
				var existingCreated time.Time
				_ = tx.QueryRow(`SELECT created_at FROM entities WHERE id=?`, id).Scan(&existingCreated)
				if !existingCreated.IsZero() {
					createdAt = existingCreated
				}
			}

			_, err = tx.Exec(`INSERT INTO entities
				(id, name, type, file_path, start_line, start_column, start_index, end_line, end_column, end_index,
				 metadata, hash, language, size_bytes, complexity_score, created_at, updated_at)
				VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
				ON CONFLICT(file_path, name, type, start_index) DO UPDATE SET
					metadata=excluded.metadata, hash=excluded.hash, language=excluded.language,
					size_bytes=excluded.size_bytes, complexity_score=excluded.complexity_score,
					updated_at=excluded.updated_at`,
				id, e.Name, string(e.Type), e.FilePath,
				e.Location.Start.Line, e.Location.Start.Column, startIndexValue(e),
				e.Location.End.Line, e.Location.End.Column, endIndexValue(e),
				string(metaJSON), hash, e.Language, e.SizeBytes, e.ComplexityScore,
				createdAt, now,
			)
			if err != nil {
				return fmt.Errorf("upsert entity %s: %w", e.Name, err)
			}
			resolved[key] = id
		}
		return nil
	})
	if err != nil {
		log.Error("UpsertEntities failed", map[string]any{"error": err.Error()})
		return nil, errs.Wrap(errs.KindStorage, "upsert entities", err)
	}
	return resolved, nil
}

func startIndexValue(e types.Entity) any {
	if e.Location.Start.Index == nil {
		return nil
	}
	return *e.Location.Start.Index
}

func endIndexValue(e types.Entity) any {
	if e.Location.End.Index == nil {
		return nil
	}
	return *e.Location.End.Index
}

// UpsertRelationships inserts a batch of relationships in one transaction.
// Every fromId/toId must resolve to an existing entity or the whole batch
// fails; unresolvable edges should be filtered out by the caller (the
// indexer) before calling this, per spec §4.4.
func (m *Manager) UpsertRelationships(rels []types.Relationship) error {
	now := time.Now().UTC()
	err := m.Write(func(tx *sql.Tx) error {
		for _, r := range rels {
			var count int
			if err := tx.QueryRow(`SELECT COUNT(*) FROM entities WHERE id IN (?,?)`, r.FromID, r.ToID).Scan(&count); err != nil {
				return err
			}
			if count < 2 {
				return fmt.Errorf("relationship references missing entity: from=%s to=%s", r.FromID, r.ToID)
			}
			metaJSON, err := json.Marshal(r.Metadata)
			if err != nil {
				return err
			}
			id := r.ID
			if id == "" {
				id = uuid.NewString()
			}
			if _, err := tx.Exec(`INSERT INTO relationships (id, from_id, to_id, type, metadata, created_at)
				VALUES (?,?,?,?,?,?)
				ON CONFLICT(from_id, to_id, type) DO UPDATE SET metadata=excluded.metadata`,
				id, r.FromID, r.ToID, string(r.Type), string(metaJSON), now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errs.Wrap(errs.KindStorage, "upsert relationships", err)
	}
	return nil
}

// GetEntity returns a single entity by id, or nil if unknown.
func (m *Manager) GetEntity(id string) (*types.Entity, error) {
	row := m.Read().QueryRow(`SELECT id, name, type, file_path, start_line, start_column, start_index,
		end_line, end_column, end_index, metadata, hash, language, size_bytes, complexity_score, created_at, updated_at
		FROM entities WHERE id = ?`, id)
	e, err := scanEntity(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, "get entity", err)
	}
	return e, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntity(row scanner) (*types.Entity, error) {
	var e types.Entity
	var metaJSON string
	var startIdx, endIdx sql.NullInt64
	var complexity sql.NullFloat64
	if err := row.Scan(&e.ID, &e.Name, &e.Type, &e.FilePath,
		&e.Location.Start.Line, &e.Location.Start.Column, &startIdx,
		&e.Location.End.Line, &e.Location.End.Column, &endIdx,
		&metaJSON, &e.Hash, &e.Language, &e.SizeBytes, &complexity, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	if startIdx.Valid {
		v := int(startIdx.Int64)
		e.Location.Start.Index = &v
	}
	if endIdx.Valid {
		v := int(endIdx.Int64)
		e.Location.End.Index = &v
	}
	if complexity.Valid {
		e.ComplexityScore = &complexity.Float64
	}
	if metaJSON != "" {
		_ = json.Unmarshal([]byte(metaJSON), &e.Metadata)
	}
	return &e, nil
}

// EntityFilter narrows ListEntities.
type EntityFilter struct {
	FilePath string
	Types    []types.EntityType
	Limit    int
}

// ListEntities returns entities matching filter.
func (m *Manager) ListEntities(filter EntityFilter) ([]types.Entity, error) {
	query := `SELECT id, name, type, file_path, start_line, start_column, start_index,
		end_line, end_column, end_index, metadata, hash, language, size_bytes, complexity_score, created_at, updated_at
		FROM entities WHERE 1=1`
	var args []any
	if filter.FilePath != "" {
		query += " AND file_path = ?"
		args = append(args, filter.FilePath)
	}
	if len(filter.Types) > 0 {
		query += " AND type IN (" + placeholders(len(filter.Types)) + ")"
		for _, t := range filter.Types {
			args = append(args, string(t))
		}
	}
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	rows, err := m.Read().Query(query, args...)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, "list entities", err)
	}
	defer rows.Close()

	var out []types.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			continue
		}
		out = append(out, *e)
	}
	return out, nil
}

func placeholders(n int) string {
	s := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			s += ","
		}
		s += "?"
	}
	return s
}

// GetRelationships returns relationships touching entityId, optionally
// filtered by type.
func (m *Manager) GetRelationships(entityID string, relType *types.RelationshipType) ([]types.Relationship, error) {
	query := `SELECT id, from_id, to_id, type, metadata, created_at FROM relationships WHERE (from_id = ? OR to_id = ?)`
	args := []any{entityID, entityID}
	if relType != nil {
		query += " AND type = ?"
		args = append(args, string(*relType))
	}
	rows, err := m.Read().Query(query, args...)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, "get relationships", err)
	}
	defer rows.Close()
	return scanRelationships(rows)
}

// AllRelationships returns every relationship in the store, used by the
// query engine's whole-graph analyses (cycle detection, hotspot scoring).
func (m *Manager) AllRelationships() ([]types.Relationship, error) {
	rows, err := m.Read().Query(`SELECT id, from_id, to_id, type, metadata, created_at FROM relationships`)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, "all relationships", err)
	}
	defer rows.Close()
	return scanRelationships(rows)
}

// AllEntities returns every entity, used for whole-graph analyses.
func (m *Manager) AllEntities() ([]types.Entity, error) {
	return m.ListEntities(EntityFilter{})
}

func scanRelationships(rows *sql.Rows) ([]types.Relationship, error) {
	var out []types.Relationship
	for rows.Next() {
		var r types.Relationship
		var metaJSON string
		if err := rows.Scan(&r.ID, &r.FromID, &r.ToID, &r.Type, &metaJSON, &r.CreatedAt); err != nil {
			continue
		}
		if metaJSON != "" {
			_ = json.Unmarshal([]byte(metaJSON), &r.Metadata)
		}
		out = append(out, r)
	}
	return out, nil
}

// DeleteStaleEntities removes entities in filePath whose hash is not in
// keepHashes, supporting the indexer's incremental re-index cleanup.
func (m *Manager) DeleteStaleEntities(filePath string, keepHashes map[string]bool) (int, error) {
	var deleted int
	err := m.Write(func(tx *sql.Tx) error {
		rows, err := tx.Query(`SELECT id, hash FROM entities WHERE file_path = ?`, filePath)
		if err != nil {
			return err
		}
		var staleIDs []string
		for rows.Next() {
			var id, hash string
			if err := rows.Scan(&id, &hash); err != nil {
				continue
			}
			if !keepHashes[hash] {
				staleIDs = append(staleIDs, id)
			}
		}
		rows.Close()

		for _, id := range staleIDs {
			if _, err := tx.Exec(`DELETE FROM relationships WHERE from_id = ? OR to_id = ?`, id, id); err != nil {
				return err
			}
			if _, err := tx.Exec(`DELETE FROM entities WHERE id = ?`, id); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	if err != nil {
		return 0, errs.Wrap(errs.KindStorage, "delete stale entities", err)
	}
	return deleted, nil
}

// MarkFileIndexed records the last-indexed marker used for incremental re-index.
func (m *Manager) MarkFileIndexed(filePath string, hashes []string) error {
	hashJSON, _ := json.Marshal(hashes)
	return m.Write(func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO file_index_markers (file_path, last_indexed_at, entity_hashes)
			VALUES (?, ?, ?)
			ON CONFLICT(file_path) DO UPDATE SET last_indexed_at=excluded.last_indexed_at, entity_hashes=excluded.entity_hashes`,
			filePath, time.Now().UTC(), string(hashJSON))
		return err
	})
}
