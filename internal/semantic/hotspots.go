package semantic

import (
	"context"

	"codegraph/internal/query"
)

// EnrichedHotspot pairs the query agent's structural hotspot score with a
// clone-group flag, so the RPC surface can highlight "hot and duplicated"
// code without the caller running two separate tools.
type EnrichedHotspot struct {
	query.Hotspot
	InCloneGroup bool `json:"inCloneGroup"`
}

// AnalyzeHotspots delegates structural scoring to the query engine and
// flags any hotspot entity that also belongs to a detected clone group,
// per spec §4.7's semantic enrichment of the query agent's analysis.
func (e *Engine) AnalyzeHotspots(ctx context.Context, topN int) ([]EnrichedHotspot, error) {
	structural, err := e.query.AnalyzeHotspots(ctx, topN)
	if err != nil {
		return nil, err
	}
	clones, err := e.DetectClones(ctx)
	if err != nil {
		return nil, err
	}
	inClone := make(map[string]bool)
	for _, g := range clones {
		for _, id := range g.EntityIDs {
			inClone[id] = true
		}
	}

	out := make([]EnrichedHotspot, 0, len(structural))
	for _, h := range structural {
		out = append(out, EnrichedHotspot{Hotspot: h, InCloneGroup: inClone[h.EntityID]})
	}
	return out, nil
}

// SuggestRefactoring flags an entity as a refactor candidate when it is a
// structural hotspot (five or more incoming plus outgoing edges) or a
// member of a clone group; each condition met adds its own reason. It is
// not a general-purpose refactoring engine.
type RefactorSuggestion struct {
	EntityID string   `json:"entityId"`
	Reasons  []string `json:"reasons"`
}

func (e *Engine) SuggestRefactoring(ctx context.Context, entityID string) (RefactorSuggestion, error) {
	suggestion := RefactorSuggestion{EntityID: entityID}

	hotspots, err := e.query.AnalyzeHotspots(ctx, 1<<20)
	if err != nil {
		return suggestion, err
	}
	for _, h := range hotspots {
		if h.EntityID == entityID && (h.Incoming+h.Outgoing) >= 5 {
			suggestion.Reasons = append(suggestion.Reasons, "high fan-in/fan-out")
		}
	}

	clones, err := e.DetectClones(ctx)
	if err != nil {
		return suggestion, err
	}
	for _, g := range clones {
		for _, id := range g.EntityIDs {
			if id == entityID {
				suggestion.Reasons = append(suggestion.Reasons, "member of a clone group")
			}
		}
	}
	return suggestion, nil
}
