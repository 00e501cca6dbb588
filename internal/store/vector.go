package store

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"codegraph/internal/errs"
	"codegraph/internal/logging"
	"codegraph/internal/types"
)

// initVecIndex creates the vec0 virtual table for native ANN search. Called
// only when the extension is detected available.
func (m *Manager) initVecIndex() error {
	_, err := m.writeConn.Exec(fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS vec_embeddings USING vec0(id TEXT PRIMARY KEY, embedding FLOAT[%d])`, vectorDimension))
	return err
}

// vectorDimension is fixed for the lifetime of a database once detected;
// see SetVectorDimension.
var vectorDimension = 384

// SetVectorDimension records the embedding dimensionality; the semantic
// engine calls it with the length of its first generated embedding
// (spec §4.7: "detect embedding dimensionality D by generating a probe
// embedding; fall back to 384 if detection fails"). Must be called before
// the first UpsertVector when the extension is active.
func SetVectorDimension(d int) {
	if d > 0 {
		vectorDimension = d
	}
}

func encodeFloat32Slice(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeFloat32Slice(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

// UpsertVector stores one embedding plus its content/metadata. When the
// native vector extension is active, the embedding is also written to the
// vec0 virtual table for ANN search.
func (m *Manager) UpsertVector(v types.Vector) error {
	metaJSON, err := json.Marshal(v.Metadata)
	if err != nil {
		return errs.Wrap(errs.KindStorage, "marshal vector metadata", err)
	}
	blob := encodeFloat32Slice(v.Embedding)

	err = m.Write(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO embeddings (id, content, vector, metadata, created_at)
			VALUES (?,?,?,?,?)
			ON CONFLICT(id) DO UPDATE SET content=excluded.content, vector=excluded.vector, metadata=excluded.metadata`,
			v.ID, v.Content, blob, string(metaJSON), time.Now().UTC()); err != nil {
			return err
		}
		if m.vecAvailable {
			if _, err := tx.Exec(`INSERT INTO vec_embeddings (id, embedding) VALUES (?, ?)
				ON CONFLICT(id) DO UPDATE SET embedding=excluded.embedding`, v.ID, blob); err != nil {
				return fmt.Errorf("vec_embeddings insert: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return errs.Wrap(errs.KindStorage, "upsert vector", err)
	}
	return nil
}

// UpsertVectorBatch stores a batch of embeddings in a single transaction.
func (m *Manager) UpsertVectorBatch(vs []types.Vector) error {
	err := m.Write(func(tx *sql.Tx) error {
		for _, v := range vs {
			metaJSON, err := json.Marshal(v.Metadata)
			if err != nil {
				return err
			}
			blob := encodeFloat32Slice(v.Embedding)
			if _, err := tx.Exec(`INSERT INTO embeddings (id, content, vector, metadata, created_at)
				VALUES (?,?,?,?,?)
				ON CONFLICT(id) DO UPDATE SET content=excluded.content, vector=excluded.vector, metadata=excluded.metadata`,
				v.ID, v.Content, blob, string(metaJSON), time.Now().UTC()); err != nil {
				return err
			}
			if m.vecAvailable {
				if _, err := tx.Exec(`INSERT INTO vec_embeddings (id, embedding) VALUES (?, ?)
					ON CONFLICT(id) DO UPDATE SET embedding=excluded.embedding`, v.ID, blob); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return errs.Wrap(errs.KindStorage, "upsert vector batch", err)
	}
	return nil
}

// ScoredVector is a vector recall hit with a similarity score.
type ScoredVector struct {
	types.Vector
	Score float64
}

// VectorSearch returns the topK nearest vectors to query by cosine
// similarity. It uses the native ANN path when available; the brute-force
// fallback produces the same ranking at small N, only slower.
func (m *Manager) VectorSearch(query []float32, topK int) ([]ScoredVector, error) {
	if m.vecAvailable {
		hits, err := m.vectorSearchVec(query, topK)
		if err == nil {
			return hits, nil
		}
		logging.Get(logging.Store).Warn("vec0 search failed, falling back to brute force", map[string]any{"error": err.Error()})
	}
	return m.vectorSearchBruteForce(query, topK, nil)
}

func (m *Manager) vectorSearchVec(query []float32, topK int) ([]ScoredVector, error) {
	blob := encodeFloat32Slice(query)
	rows, err := m.Read().Query(
		`SELECT e.id, e.content, e.metadata, e.created_at, v.distance
		 FROM vec_embeddings v JOIN embeddings e ON e.id = v.id
		 WHERE v.embedding MATCH ? AND k = ?
		 ORDER BY v.distance`, blob, topK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ScoredVector
	for rows.Next() {
		var sv ScoredVector
		var metaJSON string
		var distance float64
		if err := rows.Scan(&sv.ID, &sv.Content, &metaJSON, &sv.CreatedAt, &distance); err != nil {
			continue
		}
		if metaJSON != "" {
			_ = json.Unmarshal([]byte(metaJSON), &sv.Metadata)
		}
		sv.Score = 1 - distance // vec_distance_cosine -> similarity
		out = append(out, sv)
	}
	return out, nil
}

// vectorSearchBruteForce scans every stored vector and keeps the topK by
// cosine similarity using the teacher's repeated-insertion top-K idiom
// instead of a full sort, since topK is typically small relative to N.
func (m *Manager) vectorSearchBruteForce(query []float32, topK int, filter func(meta map[string]any) bool) ([]ScoredVector, error) {
	rows, err := m.Read().Query(`SELECT id, content, vector, metadata, created_at FROM embeddings`)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, "brute force vector scan", err)
	}
	defer rows.Close()

	var best []ScoredVector
	for rows.Next() {
		var id, content string
		var blob []byte
		var metaJSON string
		var createdAt time.Time
		if err := rows.Scan(&id, &content, &blob, &metaJSON, &createdAt); err != nil {
			continue
		}
		var meta map[string]any
		if metaJSON != "" {
			_ = json.Unmarshal([]byte(metaJSON), &meta)
		}
		if filter != nil && !filter(meta) {
			continue
		}
		vec := decodeFloat32Slice(blob)
		score := CosineSimilarity(query, vec)
		sv := ScoredVector{Vector: types.Vector{ID: id, Content: content, Metadata: meta, CreatedAt: createdAt}, Score: score}

		inserted := false
		for i, b := range best {
			if score > b.Score {
				best = append(best[:i], append([]ScoredVector{sv}, best[i:]...)...)
				inserted = true
				break
			}
		}
		if !inserted {
			best = append(best, sv)
		}
		if len(best) > topK {
			best = best[:topK]
		}
	}
	return best, nil
}

// CosineSimilarity computes cosine similarity between two equal-length vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// VectorStats describes the vector store's operational mode, surfaced by
// the get_metrics / getVectorStats tool.
type VectorStats struct {
	VecExtensionActive bool `json:"vecExtensionActive"`
	TotalVectors       int  `json:"totalVectors"`
	Dimension          int  `json:"dimension"`
}

func (m *Manager) VectorStats() (VectorStats, error) {
	stats := VectorStats{VecExtensionActive: m.vecAvailable, Dimension: vectorDimension}
	err := m.Read().QueryRow(`SELECT COUNT(*) FROM embeddings`).Scan(&stats.TotalVectors)
	if err != nil {
		return stats, errs.Wrap(errs.KindStorage, "vector stats", err)
	}
	return stats, nil
}

// AllVectorsForClustering returns every stored vector for single-linkage
// clone-detection clustering (spec §4.7). The semantic package owns
// clustering; this only decodes rows.
func (m *Manager) AllVectorsForClustering() ([]types.Vector, error) {
	rows, err := m.Read().Query(`SELECT id, content, vector, metadata, created_at FROM embeddings`)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorage, "all vectors", err)
	}
	defer rows.Close()

	var out []types.Vector
	for rows.Next() {
		var v types.Vector
		var blob []byte
		var metaJSON string
		if err := rows.Scan(&v.ID, &v.Content, &blob, &metaJSON, &v.CreatedAt); err != nil {
			continue
		}
		v.Embedding = decodeFloat32Slice(blob)
		if metaJSON != "" {
			_ = json.Unmarshal([]byte(metaJSON), &v.Metadata)
		}
		out = append(out, v)
	}
	return out, nil
}

// SortScoredByScoreDesc orders hits by descending score, keeping the
// relative order of equal scores.
func SortScoredByScoreDesc(vs []ScoredVector) {
	sort.SliceStable(vs, func(i, j int) bool { return vs[i].Score > vs[j].Score })
}
