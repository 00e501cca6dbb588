package semantic

import (
	"context"

	"codegraph/internal/errs"
	"codegraph/internal/types"
)

// Handler adapts Engine to agent.Handler so a semantic-role agent.Base can
// be registered with the Conductor and receive delegated semantic subtasks
// (spec §4.2, §4.7).
type Handler struct {
	engine *Engine
}

// NewHandler wraps e for registration via agent.New(id, "semantic", caps, bus, h).
func NewHandler(e *Engine) *Handler { return &Handler{engine: e} }

var semanticTaskTypes = map[string]bool{
	"semantic_search": true, "find_similar_code": true, "detect_code_clones": true,
	"analyze_code_semantics": true, "generate_code_embedding": true,
	"cross_language_search": true, "suggest_refactoring": true,
	"analyze_hotspots_semantic": true, "find_related_concepts": true,
}

// Accepts reports whether task is one of the semantic role's task types.
func (h *Handler) Accepts(task types.Task) bool { return semanticTaskTypes[task.Type] }

// Handle dispatches task to the matching Engine operation.
func (h *Handler) Handle(ctx context.Context, task types.Task) (any, error) {
	p := task.Payload
	switch task.Type {
	case "semantic_search", "find_related_concepts":
		q, _ := p["query"].(string)
		return h.engine.SemanticSearch(ctx, q, intFromPayload(p, "limit", 10))
	case "find_similar_code":
		id, _ := p["entityId"].(string)
		return h.engine.FindSimilarCode(ctx, id, intFromPayload(p, "limit", 10))
	case "detect_code_clones":
		return h.engine.DetectClones(ctx)
	case "analyze_code_semantics":
		id, _ := p["entityId"].(string)
		ent, similar, err := h.engine.AnalyzeCodeSemantics(ctx, id)
		if err != nil {
			return nil, err
		}
		return map[string]any{"entity": ent, "similar": similar}, nil
	case "generate_code_embedding":
		ent, ok := p["entity"].(types.Entity)
		if !ok {
			return nil, errs.New(errs.KindInvalidInput, "generate_code_embedding requires an entity")
		}
		return nil, h.engine.GenerateCodeEmbedding(ctx, ent)
	case "cross_language_search":
		q, _ := p["query"].(string)
		excludeLang, _ := p["excludeLanguage"].(string)
		return h.engine.CrossLanguageSearch(ctx, q, excludeLang, intFromPayload(p, "limit", 10))
	case "suggest_refactoring":
		id, _ := p["entityId"].(string)
		return h.engine.SuggestRefactoring(ctx, id)
	case "analyze_hotspots_semantic":
		return h.engine.AnalyzeHotspots(ctx, intFromPayload(p, "limit", 10))
	}
	return nil, errs.New(errs.KindInvalidInput, "unsupported semantic task type: "+task.Type).WithContext("taskId", task.ID)
}

func intFromPayload(p map[string]any, key string, def int) int {
	switch v := p[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return def
}
