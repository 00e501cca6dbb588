// Package indexer implements the indexer agent (spec §4.4): it takes a
// parser's per-file output, assigns ids and content hashes, upserts the
// file's entities in one transaction and its relationships in another,
// resolves each
// relationship's natural-key endpoints against the batch plus the existing
// store, deletes stale entities whose hash disappeared from a re-index, and
// publishes index:updated / semantic:new_entities once the write commits.
package indexer

import (
	"context"
	"fmt"

	"codegraph/internal/bus"
	"codegraph/internal/errs"
	"codegraph/internal/logging"
	"codegraph/internal/store"
	"codegraph/internal/types"
)

// Input is one file's worth of parsed output handed to the indexer.
type Input struct {
	FilePath      string
	Entities      []types.Entity
	Relationships []types.ParsedRelationship
}

// Result summarizes one Index call, matching the counts the dev agent
// reports per batch (spec §4.5).
type Result struct {
	FilePath              string `json:"filePath"`
	EntitiesExtracted     int    `json:"entitiesExtracted"`
	RelationshipsCreated  int    `json:"relationshipsCreated"`
	StaleRemoved          int    `json:"staleRemoved"`
	DroppedRelationships  int    `json:"droppedRelationships"`
}

// Indexer owns the upsert + resolve + publish flow for one file at a time.
// It holds no queue of its own and does no admission control; callers such
// as the dev agent invoke Index directly.
type Indexer struct {
	store *store.Manager
	bus   *bus.Bus
	log   *logging.Logger
}

// New builds an Indexer bound to the shared store and bus.
func New(s *store.Manager, b *bus.Bus) *Indexer {
	return &Indexer{store: s, bus: b, log: logging.Get(logging.Indexer)}
}

// Index upserts one file's entities and relationships, per spec §4.4.
func (idx *Indexer) Index(ctx context.Context, in Input) (Result, error) {
	resolved, err := idx.store.UpsertEntities(in.Entities)
	if err != nil {
		return Result{}, errs.Wrap(errs.KindStorage, "indexer: upsert entities", err)
	}

	keepHashes := make(map[string]bool, len(in.Entities))
	for _, e := range in.Entities {
		keepHashes[store.ComputeHash(e)] = true
	}
	staleRemoved, err := idx.store.DeleteStaleEntities(in.FilePath, keepHashes)
	if err != nil {
		return Result{}, errs.Wrap(errs.KindStorage, "indexer: delete stale entities", err)
	}

	localIndex := buildLocalIndex(in.Entities, resolved)
	toInsert, dropped := idx.resolveRelationships(in.Relationships, localIndex)
	if len(toInsert) > 0 {
		if err := idx.store.UpsertRelationships(toInsert); err != nil {
			return Result{}, errs.Wrap(errs.KindStorage, "indexer: upsert relationships", err)
		}
	}

	hashes := make([]string, 0, len(in.Entities))
	for h := range keepHashes {
		hashes = append(hashes, h)
	}
	if err := idx.store.MarkFileIndexed(in.FilePath, hashes); err != nil {
		idx.log.Warn("mark file indexed failed", map[string]any{"filePath": in.FilePath, "error": err.Error()})
	}

	result := Result{
		FilePath:             in.FilePath,
		EntitiesExtracted:    len(in.Entities),
		RelationshipsCreated: len(toInsert),
		StaleRemoved:         staleRemoved,
		DroppedRelationships: dropped,
	}

	if idx.bus != nil {
		entityIDs := make([]string, 0, len(resolved))
		for _, id := range resolved {
			entityIDs = append(entityIDs, id)
		}
		idx.bus.Emit("index:updated", map[string]any{
			"filePath":      in.FilePath,
			"entities":      result.EntitiesExtracted,
			"relationships": result.RelationshipsCreated,
			"entityIds":     entityIDs,
		}, "indexer", nil)

		idx.bus.Emit("semantic:new_entities", map[string]any{
			"filePath": in.FilePath,
			"entities": in.Entities,
		}, "indexer", nil)
	}

	return result, nil
}

// resolveRelationships maps each ParsedRelationship's natural-key endpoints
// to real entity ids. Endpoints inserted in this same batch are looked up
// from resolved; anything else falls back to a store lookup by
// (filePath, name, type). Unresolvable edges are dropped with a structured
// warning rather than failing the whole batch, per spec §4.4.
func (idx *Indexer) resolveRelationships(parsed []types.ParsedRelationship, resolved map[string]string) ([]types.Relationship, int) {
	out := make([]types.Relationship, 0, len(parsed))
	dropped := 0
	for _, pr := range parsed {
		fromID, ok := idx.resolveRef(pr.From, resolved)
		if !ok {
			idx.log.Warn("dropping relationship: unresolvable from-entity", map[string]any{"name": pr.From.Name, "filePath": pr.From.FilePath})
			dropped++
			continue
		}
		toID, ok := idx.resolveRef(pr.To, resolved)
		if !ok {
			idx.log.Warn("dropping relationship: unresolvable to-entity", map[string]any{"name": pr.To.Name, "filePath": pr.To.FilePath})
			dropped++
			continue
		}
		out = append(out, types.Relationship{FromID: fromID, ToID: toID, Type: pr.Type, Metadata: pr.Metadata})
	}
	return out, dropped
}

func (idx *Indexer) resolveRef(ref types.EntityRef, localIndex map[string]string) (string, bool) {
	if id, ok := localIndex[batchKey(ref.FilePath, ref.Name, ref.Type)]; ok {
		return id, true
	}

	entities, err := idx.store.ListEntities(store.EntityFilter{FilePath: ref.FilePath, Types: []types.EntityType{ref.Type}})
	if err != nil {
		return "", false
	}
	for _, e := range entities {
		if e.Name == ref.Name {
			return e.ID, true
		}
	}
	return "", false
}

// batchKey identifies an entity by its natural key (filePath, name, type),
// independent of the startIndex component store.UpsertEntities folds into
// its own dedup key, since a ParsedRelationship's endpoint ref carries no
// position information.
func batchKey(filePath, name string, typ types.EntityType) string {
	return fmt.Sprintf("%s\x00%s\x00%s", filePath, name, typ)
}

// buildLocalIndex reduces UpsertEntities' (filePath,name,type,startIndex)
// keyed id map down to a (filePath,name,type) keyed one, using the input
// entities to recover each id's natural key. If two entities in the batch
// share a natural key but differ only by position (e.g. overloaded
// functions), the last one in in.Entities wins, matching UpsertEntities'
// own last-write-wins dedup within a batch.
func buildLocalIndex(entities []types.Entity, resolved map[string]string) map[string]string {
	out := make(map[string]string, len(entities))
	for _, e := range entities {
		start := 0
		if e.Location.Start.Index != nil {
			start = *e.Location.Start.Index
		}
		fullKey := fmt.Sprintf("%s\x00%s\x00%s\x00%d", e.FilePath, e.Name, string(e.Type), start)
		if id, ok := resolved[fullKey]; ok {
			out[batchKey(e.FilePath, e.Name, e.Type)] = id
		}
	}
	return out
}
