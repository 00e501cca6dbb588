package query

import (
	"context"

	"codegraph/internal/errs"
	"codegraph/internal/store"
	"codegraph/internal/types"
)

// Handler adapts Engine to agent.Handler so a query-role agent.Base can be
// registered with the Conductor and receive delegated query subtasks (spec
// §4.2, §4.6). Every tool name in spec §6 that maps to a read-only graph
// operation is dispatched here by task type.
type Handler struct {
	engine *Engine
}

// NewHandler wraps e for registration via agent.New(id, "query", caps, bus, h).
func NewHandler(e *Engine) *Handler { return &Handler{engine: e} }

var queryTaskTypes = map[string]bool{
	"get_entity": true, "list_file_entities": true, "list_entities": true,
	"list_entity_relationships": true, "get_relationships": true,
	"related_entities": true, "find_path": true, "get_subgraph": true,
	"find_dependencies": true, "detect_cycles": true,
	"analyze_code_impact": true, "query": true,
}

// Accepts reports whether task is one of the query role's task types.
func (h *Handler) Accepts(task types.Task) bool { return queryTaskTypes[task.Type] }

// Handle dispatches task to the matching Engine operation.
func (h *Handler) Handle(ctx context.Context, task types.Task) (any, error) {
	p := task.Payload
	switch task.Type {
	case "get_entity":
		id, _ := p["entityId"].(string)
		return h.engine.GetEntity(ctx, id)
	case "list_file_entities", "list_entities":
		return h.engine.ListEntities(ctx, entityFilterFromPayload(p))
	case "list_entity_relationships":
		id, err := h.resolveEntityID(ctx, p)
		if err != nil {
			return nil, err
		}
		return h.engine.RelationshipsWithinDepth(ctx, id, intFromPayload(p, "depth", 1), relTypesFromPayload(p))
	case "get_relationships":
		id, _ := p["entityId"].(string)
		return h.engine.GetRelationships(ctx, id, relTypeFromPayload(p, "relationshipType"))
	case "related_entities":
		id, _ := p["entityId"].(string)
		return h.engine.GetRelatedEntities(ctx, id, relTypeFromPayload(p, "relationshipType"))
	case "find_path":
		from, _ := p["fromId"].(string)
		to, _ := p["toId"].(string)
		return h.engine.FindPath(ctx, from, to, intFromPayload(p, "depth", 10))
	case "get_subgraph":
		root, _ := p["rootId"].(string)
		entities, rels, err := h.engine.GetSubgraph(ctx, root, intFromPayload(p, "depth", 2))
		if err != nil {
			return nil, err
		}
		return map[string]any{"entities": entities, "relationships": rels}, nil
	case "find_dependencies":
		root, _ := p["entityId"].(string)
		return h.engine.FindDependencies(ctx, root, intFromPayload(p, "depth", 10))
	case "detect_cycles":
		return h.engine.DetectCycles(ctx)
	case "analyze_code_impact":
		id, _ := p["entityId"].(string)
		return h.engine.GetImpactedEntities(ctx, id, intFromPayload(p, "depth", 5))
	case "query":
		// Free-text "query" tool: the query text is not matched against
		// entities. A non-empty query lists up to limit (default 20)
		// entities from any file; an empty one lists by the payload filters.
		if name, _ := p["query"].(string); name != "" {
			return h.engine.ListEntities(ctx, store.EntityFilter{Limit: intFromPayload(p, "limit", 20)})
		}
		return h.engine.ListEntities(ctx, entityFilterFromPayload(p))
	}
	return nil, errs.New(errs.KindInvalidInput, "unsupported query task type: "+task.Type).WithContext("taskId", task.ID)
}

func entityFilterFromPayload(p map[string]any) store.EntityFilter {
	filter := store.EntityFilter{Limit: intFromPayload(p, "limit", 0)}
	if fp, ok := p["filePath"].(string); ok {
		filter.FilePath = fp
	}
	if raw, ok := p["entityTypes"].([]any); ok {
		for _, t := range raw {
			if s, ok := t.(string); ok {
				filter.Types = append(filter.Types, types.EntityType(s))
			}
		}
	}
	return filter
}

// resolveEntityID accepts either a direct entityId or an entityName (+
// optional filePath) payload field, per spec §6's mixed id/name tool args.
func (h *Handler) resolveEntityID(ctx context.Context, p map[string]any) (string, error) {
	if id, _ := p["entityId"].(string); id != "" {
		return id, nil
	}
	name, _ := p["entityName"].(string)
	if name == "" {
		return "", errs.New(errs.KindInvalidInput, "missing entityId or entityName")
	}
	filePath, _ := p["filePath"].(string)
	ent, err := h.engine.FindEntityByName(ctx, name, filePath)
	if err != nil {
		return "", err
	}
	if ent == nil {
		return "", errs.New(errs.KindInvalidInput, "no entity named: "+name)
	}
	return ent.ID, nil
}

func relTypesFromPayload(p map[string]any) []types.RelationshipType {
	raw, ok := p["relationshipTypes"].([]any)
	if !ok {
		return nil
	}
	out := make([]types.RelationshipType, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, types.RelationshipType(s))
		}
	}
	return out
}

func relTypeFromPayload(p map[string]any, key string) *types.RelationshipType {
	s, ok := p[key].(string)
	if !ok || s == "" {
		return nil
	}
	t := types.RelationshipType(s)
	return &t
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
