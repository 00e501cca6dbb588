package query

import (
	"context"
	"fmt"
	"sort"

	"codegraph/internal/errs"
	"codegraph/internal/store"
	"codegraph/internal/types"
)

// GetEntity returns a single entity by id.
func (e *Engine) GetEntity(ctx context.Context, id string) (*types.Entity, error) {
	key := "getEntity:" + id
	v, err := e.withCache(ctx, key, e.simpleTO, func(ctx context.Context) (any, error) {
		ent, err := e.store.GetEntity(id)
		if err != nil {
			return nil, err
		}
		if ent == nil {
			return nil, errs.New(errs.KindInvalidInput, "entity not found: "+id)
		}
		return ent, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*types.Entity), nil
}

// ListEntities returns entities matching filter.
func (e *Engine) ListEntities(ctx context.Context, filter store.EntityFilter) ([]types.Entity, error) {
	key := fmt.Sprintf("listEntities:%s:%v:%d", filter.FilePath, filter.Types, filter.Limit)
	v, err := e.withCache(ctx, key, e.simpleTO, func(ctx context.Context) (any, error) {
		return e.store.ListEntities(filter)
	})
	if err != nil {
		return nil, err
	}
	return v.([]types.Entity), nil
}

// GetRelationships returns relationships touching entityID, optionally
// filtered to one relationship type.
func (e *Engine) GetRelationships(ctx context.Context, entityID string, relType *types.RelationshipType) ([]types.Relationship, error) {
	key := fmt.Sprintf("getRelationships:%s:%v", entityID, relType)
	v, err := e.withCache(ctx, key, e.simpleTO, func(ctx context.Context) (any, error) {
		return e.store.GetRelationships(entityID, relType)
	})
	if err != nil {
		return nil, err
	}
	return v.([]types.Relationship), nil
}

// GetRelatedEntities returns the entities directly connected to entityID,
// in either direction, optionally filtered by relationship type.
func (e *Engine) GetRelatedEntities(ctx context.Context, entityID string, relType *types.RelationshipType) ([]types.Entity, error) {
	rels, err := e.GetRelationships(ctx, entityID, relType)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []types.Entity
	for _, r := range rels {
		otherID := r.ToID
		if r.ToID == entityID {
			otherID = r.FromID
		}
		if otherID == entityID || seen[otherID] {
			continue
		}
		seen[otherID] = true
		ent, err := e.store.GetEntity(otherID)
		if err != nil || ent == nil {
			continue
		}
		out = append(out, *ent)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetSubgraph returns every entity reachable from rootID within maxDepth
// hops, plus the relationships among them, along any edge type.
func (e *Engine) GetSubgraph(ctx context.Context, rootID string, maxDepth int) ([]types.Entity, []types.Relationship, error) {
	if maxDepth < 0 {
		maxDepth = 2
	}
	adj, err := e.adjacency(nil)
	if err != nil {
		return nil, nil, err
	}

	visited := map[string]int{rootID: 0}
	queue := []string{rootID}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		depth := visited[cur]
		if depth >= maxDepth {
			continue
		}
		for _, edge := range adj[cur] {
			if _, ok := visited[edge.other]; ok {
				continue
			}
			visited[edge.other] = depth + 1
			queue = append(queue, edge.other)
		}
	}

	var entities []types.Entity
	for id := range visited {
		ent, err := e.store.GetEntity(id)
		if err == nil && ent != nil {
			entities = append(entities, *ent)
		}
	}
	sort.Slice(entities, func(i, j int) bool { return entities[i].ID < entities[j].ID })

	all, err := e.store.AllRelationships()
	if err != nil {
		return nil, nil, err
	}
	var rels []types.Relationship
	for _, r := range all {
		if _, okF := visited[r.FromID]; okF {
			if _, okT := visited[r.ToID]; okT {
				rels = append(rels, r)
			}
		}
	}
	return entities, rels, nil
}

// FindEntityByName returns the first entity whose Name matches name,
// preferring an exact filePath match when filePath is non-empty. Used by
// tools that identify an entity by its natural name rather than its id
// (spec §6's list_entity_relationships takes entityName).
func (e *Engine) FindEntityByName(ctx context.Context, name, filePath string) (*types.Entity, error) {
	all, err := e.ListEntities(ctx, store.EntityFilter{FilePath: filePath})
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].Name == name {
			return &all[i], nil
		}
	}
	if filePath == "" {
		return nil, nil
	}
	return e.FindEntityByName(ctx, name, "")
}

// RelationshipsWithinDepth returns every relationship touching entityID or
// any entity reached from it within maxDepth hops, optionally restricted to
// relTypes (spec §6's list_entity_relationships depth/relationshipTypes
// arguments).
func (e *Engine) RelationshipsWithinDepth(ctx context.Context, entityID string, maxDepth int, relTypes []types.RelationshipType) ([]types.Relationship, error) {
	if maxDepth <= 0 {
		maxDepth = 1
	}
	adj, err := e.adjacency(relTypes)
	if err != nil {
		return nil, err
	}

	visited := map[string]int{entityID: 0}
	frontier := []string{entityID}
	seenRel := make(map[string]types.Relationship)
	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, id := range frontier {
			for _, edge := range adj[id] {
				seenRel[edge.rel.ID] = edge.rel
				if _, ok := visited[edge.other]; !ok {
					visited[edge.other] = depth + 1
					next = append(next, edge.other)
				}
			}
		}
		frontier = next
	}

	out := make([]types.Relationship, 0, len(seenRel))
	for _, r := range seenRel {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type adjEdge struct {
	other string
	rel   types.Relationship
}

// adjacency builds an undirected adjacency list over relationships
// matching types (nil means every type), caching nothing — callers that
// need repeated traversals should cache the result themselves.
func (e *Engine) adjacency(types_ []types.RelationshipType) (map[string][]adjEdge, error) {
	all, err := e.store.AllRelationships()
	if err != nil {
		return nil, err
	}
	allow := func(t types.RelationshipType) bool {
		if len(types_) == 0 {
			return true
		}
		for _, want := range types_ {
			if want == t {
				return true
			}
		}
		return false
	}
	adj := make(map[string][]adjEdge)
	for _, r := range all {
		if !allow(r.Type) {
			continue
		}
		adj[r.FromID] = append(adj[r.FromID], adjEdge{other: r.ToID, rel: r})
		adj[r.ToID] = append(adj[r.ToID], adjEdge{other: r.FromID, rel: r})
	}
	return adj, nil
}
