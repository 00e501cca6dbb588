package query

import (
	"context"
	"fmt"
	"sort"

	"codegraph/internal/types"
)

// Hotspot is one entity's hotspot score, per spec §4.6's weighted formula:
// incoming*weight + outgoing*weight + complexityScore*weight.
type Hotspot struct {
	EntityID string  `json:"entityId"`
	Name     string  `json:"name"`
	Incoming int     `json:"incoming"`
	Outgoing int     `json:"outgoing"`
	Score    float64 `json:"score"`
}

// AnalyzeHotspots ranks entities by incoming/outgoing edge count and
// complexity score, returning the top N, ties broken by ascending id.
func (e *Engine) AnalyzeHotspots(ctx context.Context, topN int) ([]Hotspot, error) {
	if topN <= 0 {
		topN = 10
	}
	key := fmt.Sprintf("analyzeHotspots:%d", topN)
	v, err := e.withCache(ctx, key, e.complexTO, func(ctx context.Context) (any, error) {
		return e.analyzeHotspots(topN)
	})
	if err != nil {
		return nil, err
	}
	return v.([]Hotspot), nil
}

func (e *Engine) analyzeHotspots(topN int) ([]Hotspot, error) {
	entities, err := e.store.AllEntities()
	if err != nil {
		return nil, err
	}
	rels, err := e.store.AllRelationships()
	if err != nil {
		return nil, err
	}

	incoming := make(map[string]int)
	outgoing := make(map[string]int)
	for _, r := range rels {
		outgoing[r.FromID]++
		incoming[r.ToID]++
	}

	hotspots := make([]Hotspot, 0, len(entities))
	for _, ent := range entities {
		complexity := 0.0
		if ent.ComplexityScore != nil {
			complexity = *ent.ComplexityScore
		}
		score := float64(incoming[ent.ID])*e.weights.Incoming +
			float64(outgoing[ent.ID])*e.weights.Outgoing +
			complexity*e.weights.Complexity
		hotspots = append(hotspots, Hotspot{
			EntityID: ent.ID, Name: ent.Name,
			Incoming: incoming[ent.ID], Outgoing: outgoing[ent.ID],
			Score: score,
		})
	}

	sort.Slice(hotspots, func(i, j int) bool {
		if hotspots[i].Score != hotspots[j].Score {
			return hotspots[i].Score > hotspots[j].Score
		}
		return hotspots[i].EntityID < hotspots[j].EntityID
	})
	if len(hotspots) > topN {
		hotspots = hotspots[:topN]
	}
	return hotspots, nil
}

// ImpactedEntity is one entity reached while walking backward from a
// changed entity, along with the hop distance ("ripple" depth).
type ImpactedEntity struct {
	EntityID string `json:"entityId"`
	Depth    int    `json:"depth"`
}

// GetImpactedEntities walks ImpactEdgeTypes backward from entityID up to
// maxDepth hops, reporting every entity whose behavior could change if
// entityID changes (spec §4.6's "change ripple").
func (e *Engine) GetImpactedEntities(ctx context.Context, entityID string, maxDepth int) ([]ImpactedEntity, error) {
	if maxDepth <= 0 {
		maxDepth = 5
	}
	key := fmt.Sprintf("getImpactedEntities:%s:%d", entityID, maxDepth)
	v, err := e.withCache(ctx, key, e.complexTO, func(ctx context.Context) (any, error) {
		return e.getImpactedEntities(entityID, maxDepth)
	})
	if err != nil {
		return nil, err
	}
	return v.([]ImpactedEntity), nil
}

func (e *Engine) getImpactedEntities(entityID string, maxDepth int) ([]ImpactedEntity, error) {
	all, err := e.store.AllRelationships()
	if err != nil {
		return nil, err
	}
	allow := func(t types.RelationshipType) bool {
		for _, want := range types.ImpactEdgeTypes {
			if want == t {
				return true
			}
		}
		return false
	}
	reverse := make(map[string][]string)
	for _, r := range all {
		if !allow(r.Type) {
			continue
		}
		reverse[r.ToID] = append(reverse[r.ToID], r.FromID)
	}

	visited := map[string]int{entityID: 0}
	frontier := []string{entityID}
	var out []ImpactedEntity
	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		var next []string
		sources := make([]string, 0)
		for _, id := range frontier {
			srcs := append([]string{}, reverse[id]...)
			sort.Strings(srcs)
			sources = append(sources, srcs...)
		}
		for _, src := range sources {
			if _, ok := visited[src]; ok {
				continue
			}
			visited[src] = depth
			out = append(out, ImpactedEntity{EntityID: src, Depth: depth})
			next = append(next, src)
		}
		frontier = next
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Depth != out[j].Depth {
			return out[i].Depth < out[j].Depth
		}
		return out[i].EntityID < out[j].EntityID
	})
	return out, nil
}
