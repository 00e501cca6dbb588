package rpc

import (
	"context"
	"encoding/json"
	"runtime"
	"time"

	"github.com/google/uuid"

	"codegraph/internal/errs"
	"codegraph/internal/query"
	"codegraph/internal/store"
	"codegraph/internal/types"
)

// toolHandler shapes one tool's params into a types.Task, runs it through
// whichever path is appropriate (the Conductor for delegated work, or a
// direct engine call for cheap metric reads), and shapes the result into
// the exact JSON the tool's table entry promises.
type toolHandler func(ctx context.Context, s *Server, params json.RawMessage) (any, error)

// toolTable is the fixed tool surface (spec §6). Every tool name the
// transport accepts is listed here; anything else is a JSON-RPC
// method-not-found error.
var toolTable = map[string]toolHandler{
	"index":                     handleIndex,
	"list_file_entities":        handleListFileEntities,
	"list_entity_relationships": handleListEntityRelationships,
	"query":                     handleQuery,
	"get_metrics":               handleGetMetrics,
	"semantic_search":           handleSemanticSearch,
	"find_similar_code":         handleFindSimilarCode,
	"analyze_code_impact":       handleAnalyzeCodeImpact,
	"detect_code_clones":        handleDetectCodeClones,
	"suggest_refactoring":       handleSuggestRefactoring,
	"cross_language_search":     handleCrossLanguageSearch,
	"analyze_hotspots":          handleAnalyzeHotspots,
	"find_related_concepts":     handleFindRelatedConcepts,
}

func decodeParams(params json.RawMessage, out any) error {
	if len(params) == 0 {
		return nil
	}
	if err := json.Unmarshal(params, out); err != nil {
		return errs.Wrap(errs.KindInvalidInput, "invalid tool arguments", err)
	}
	return nil
}

func newTask(taskType string, payload map[string]any) types.Task {
	return types.Task{ID: uuid.NewString(), Type: taskType, Payload: payload, CreatedAt: time.Now()}
}

// run submits a task to the Conductor and unwraps its ExecuteResult, folding
// a required-approval response into the tool result rather than an error:
// callers see the proposal set and decide whether to resubmit.
func run(ctx context.Context, s *Server, task types.Task) (any, error) {
	res, err := s.Conductor.Execute(ctx, task)
	if err != nil {
		return nil, err
	}
	if res.ApprovalRequired {
		return map[string]any{
			"approvalRequired": true,
			"complexity":       res.Complexity,
			"proposals":        res.Proposals,
		}, nil
	}
	return res.Result, nil
}

func handleIndex(ctx context.Context, s *Server, params json.RawMessage) (any, error) {
	var args struct {
		Directory       string   `json:"directory"`
		Incremental     bool     `json:"incremental"`
		ExcludePatterns []string `json:"excludePatterns"`
	}
	if err := decodeParams(params, &args); err != nil {
		return nil, err
	}
	if args.Directory == "" {
		return nil, errs.New(errs.KindInvalidInput, "index requires directory")
	}

	start := time.Now()
	result, err := run(ctx, s, newTask("index", map[string]any{
		"directory":       args.Directory,
		"incremental":     args.Incremental,
		"excludePatterns": args.ExcludePatterns,
	}))
	if err != nil {
		return nil, err
	}
	if m, ok := result.(map[string]any); ok && m["approvalRequired"] == true {
		return m, nil
	}
	type devSummary struct {
		FilesDiscovered      int `json:"filesDiscovered"`
		FilesIndexed         int `json:"filesIndexed"`
		FilesFailed          int `json:"filesFailed"`
		EntitiesIndexed      int `json:"entitiesIndexed"`
		RelationshipsCreated int `json:"relationshipsCreated"`
	}
	b, _ := json.Marshal(result)
	var ds devSummary
	_ = json.Unmarshal(b, &ds)
	return map[string]any{
		"status":               "ok",
		"filesProcessed":       ds.FilesIndexed,
		"entitiesExtracted":    ds.EntitiesIndexed,
		"relationshipsCreated": ds.RelationshipsCreated,
		"duration":             time.Since(start).String(),
	}, nil
}

func handleListFileEntities(ctx context.Context, s *Server, params json.RawMessage) (any, error) {
	var args struct {
		FilePath    string   `json:"filePath"`
		EntityTypes []string `json:"entityTypes"`
	}
	if err := decodeParams(params, &args); err != nil {
		return nil, err
	}
	result, err := run(ctx, s, newTask("list_file_entities", map[string]any{
		"filePath":    args.FilePath,
		"entityTypes": toAnySlice(args.EntityTypes),
	}))
	if err != nil {
		return nil, err
	}
	return map[string]any{"entities": result}, nil
}

func handleListEntityRelationships(ctx context.Context, s *Server, params json.RawMessage) (any, error) {
	var args struct {
		EntityName        string   `json:"entityName"`
		Depth             int      `json:"depth"`
		RelationshipTypes []string `json:"relationshipTypes"`
	}
	if err := decodeParams(params, &args); err != nil {
		return nil, err
	}
	if args.EntityName == "" {
		return nil, errs.New(errs.KindInvalidInput, "list_entity_relationships requires entityName")
	}
	if args.Depth <= 0 {
		args.Depth = 1
	}
	if args.Depth > 5 {
		args.Depth = 5
	}
	result, err := run(ctx, s, newTask("list_entity_relationships", map[string]any{
		"entityName":        args.EntityName,
		"depth":             args.Depth,
		"relationshipTypes": toAnySlice(args.RelationshipTypes),
	}))
	if err != nil {
		return nil, err
	}
	return map[string]any{"relationships": result}, nil
}

func handleQuery(ctx context.Context, s *Server, params json.RawMessage) (any, error) {
	var args struct {
		Query string `json:"query"`
		Limit int    `json:"limit"`
	}
	if err := decodeParams(params, &args); err != nil {
		return nil, err
	}
	result, err := run(ctx, s, newTask("query", map[string]any{
		"query": args.Query,
		"limit": args.Limit,
	}))
	if err != nil {
		return nil, err
	}
	return map[string]any{"results": result}, nil
}

// handleGetMetrics reads operational metrics directly rather than through
// the Conductor: metrics are a cheap, side-effect-free read and spec §6
// gives get_metrics no arguments to delegate on.
func handleGetMetrics(ctx context.Context, s *Server, params json.RawMessage) (any, error) {
	vecStats, err := s.Store.VectorStats()
	if err != nil {
		return nil, err
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	queryMetrics := agentMetricsByType(s, "query")
	semanticMetrics := agentMetricsByType(s, "semantic")

	return map[string]any{
		"vectorSearch": vecStats,
		"memory": map[string]any{
			"allocMB":      float64(mem.Alloc) / 1024 / 1024,
			"sysMB":        float64(mem.Sys) / 1024 / 1024,
			"numGoroutine": runtime.NumGoroutine(),
		},
		"queryAgent":    queryMetrics,
		"semanticAgent": semanticMetrics,
	}, nil
}

func agentMetricsByType(s *Server, typeName string) any {
	agents := s.Conductor.Registry.ByType(typeName)
	out := make([]map[string]any, 0, len(agents))
	for _, a := range agents {
		m := a.Metrics()
		out = append(out, map[string]any{
			"agentId":        a.ID,
			"status":         a.Status(),
			"queueLength":    m.QueueLength,
			"tasksCompleted": m.TasksCompleted,
			"tasksFailed":    m.TasksFailed,
			"memoryMB":       m.MemoryMB,
			"lastActivity":   m.LastActivity,
		})
	}
	return out
}

func handleSemanticSearch(ctx context.Context, s *Server, params json.RawMessage) (any, error) {
	var args struct {
		Query     string  `json:"query"`
		Limit     int     `json:"limit"`
		Threshold float64 `json:"threshold"`
	}
	if err := decodeParams(params, &args); err != nil {
		return nil, err
	}
	if args.Limit <= 0 {
		args.Limit = 10
	}

	start := time.Now()
	result, err := run(ctx, s, newTask("semantic_search", map[string]any{
		"query": args.Query,
		"limit": args.Limit,
	}))
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)

	hits := extractSearchHits(result, args.Threshold)
	return map[string]any{
		"results":      hits,
		"totalResults": len(hits),
		"searchTime":   elapsed.String(),
	}, nil
}

// extractSearchHits normalizes a semantic.SearchResult (returned via the
// any-typed Conductor path) into a threshold-filtered hit list.
func extractSearchHits(result any, threshold float64) []store.ScoredVector {
	b, err := json.Marshal(result)
	if err != nil {
		return nil
	}
	var decoded struct {
		Hits []store.ScoredVector `json:"Hits"`
	}
	if err := json.Unmarshal(b, &decoded); err != nil {
		return nil
	}
	if threshold <= 0 {
		return decoded.Hits
	}
	out := make([]store.ScoredVector, 0, len(decoded.Hits))
	for _, h := range decoded.Hits {
		if h.Score >= threshold {
			out = append(out, h)
		}
	}
	return out
}

func handleFindSimilarCode(ctx context.Context, s *Server, params json.RawMessage) (any, error) {
	var args struct {
		Code            string  `json:"code"`
		Threshold       float64 `json:"threshold"`
		Limit           int     `json:"limit"`
		IncludeMetadata bool    `json:"includeMetadata"`
	}
	if err := decodeParams(params, &args); err != nil {
		return nil, err
	}
	if args.Code == "" {
		return nil, errs.New(errs.KindInvalidInput, "find_similar_code requires code")
	}
	if args.Limit <= 0 {
		args.Limit = 10
	}
	result, err := run(ctx, s, newTask("semantic_search", map[string]any{
		"query": args.Code,
		"limit": args.Limit,
	}))
	if err != nil {
		return nil, err
	}
	hits := extractSearchHits(result, args.Threshold)
	matches := make([]map[string]any, 0, len(hits))
	for _, h := range hits {
		m := map[string]any{"entityId": h.ID, "score": h.Score}
		if args.IncludeMetadata {
			m["metadata"] = h.Metadata
		}
		matches = append(matches, m)
	}
	return map[string]any{"matches": matches}, nil
}

func handleAnalyzeCodeImpact(ctx context.Context, s *Server, params json.RawMessage) (any, error) {
	var args struct {
		EntityID        string `json:"entityId"`
		Depth           int    `json:"depth"`
		IncludeIndirect bool   `json:"includeIndirect"`
	}
	if err := decodeParams(params, &args); err != nil {
		return nil, err
	}
	if args.EntityID == "" {
		return nil, errs.New(errs.KindInvalidInput, "analyze_code_impact requires entityId")
	}
	if args.Depth <= 0 {
		args.Depth = 5
	}
	result, err := run(ctx, s, newTask("analyze_code_impact", map[string]any{
		"entityId": args.EntityID,
		"depth":    args.Depth,
	}))
	if err != nil {
		return nil, err
	}

	b, _ := json.Marshal(result)
	var impacted []query.ImpactedEntity
	_ = json.Unmarshal(b, &impacted)

	var direct, indirect []query.ImpactedEntity
	for _, ie := range impacted {
		if ie.Depth == 1 {
			direct = append(direct, ie)
		} else if args.IncludeIndirect {
			indirect = append(indirect, ie)
		}
	}
	return map[string]any{
		"direct":   direct,
		"indirect": indirect,
		"score":    len(direct)*2 + len(indirect),
	}, nil
}

func handleDetectCodeClones(ctx context.Context, s *Server, params json.RawMessage) (any, error) {
	var args struct {
		MinSimilarity  float64 `json:"minSimilarity"`
		Scope          string  `json:"scope"`
		IgnoreComments bool    `json:"ignoreComments"`
	}
	if err := decodeParams(params, &args); err != nil {
		return nil, err
	}
	result, err := run(ctx, s, newTask("detect_code_clones", nil))
	if err != nil {
		return nil, err
	}
	return map[string]any{"groups": result}, nil
}

func handleSuggestRefactoring(ctx context.Context, s *Server, params json.RawMessage) (any, error) {
	var args struct {
		FilePath        string `json:"filePath"`
		FocusArea       string `json:"focusArea"`
		IncludeExamples bool   `json:"includeExamples"`
	}
	if err := decodeParams(params, &args); err != nil {
		return nil, err
	}
	if args.FilePath == "" {
		return nil, errs.New(errs.KindInvalidInput, "suggest_refactoring requires filePath")
	}

	listResult, err := run(ctx, s, newTask("list_file_entities", map[string]any{"filePath": args.FilePath}))
	if err != nil {
		return nil, err
	}
	b, _ := json.Marshal(listResult)
	var entities []types.Entity
	_ = json.Unmarshal(b, &entities)

	suggestions := make([]any, 0, len(entities))
	for _, ent := range entities {
		res, err := run(ctx, s, newTask("suggest_refactoring", map[string]any{"entityId": ent.ID}))
		if err != nil {
			continue
		}
		rb, _ := json.Marshal(res)
		var suggestion struct {
			EntityID string   `json:"entityId"`
			Reasons  []string `json:"reasons"`
		}
		_ = json.Unmarshal(rb, &suggestion)
		if len(suggestion.Reasons) > 0 {
			suggestions = append(suggestions, suggestion)
		}
	}
	return map[string]any{"suggestions": suggestions}, nil
}

func handleCrossLanguageSearch(ctx context.Context, s *Server, params json.RawMessage) (any, error) {
	var args struct {
		Query               string   `json:"query"`
		Languages           []string `json:"languages"`
		IncludeTranslations bool     `json:"includeTranslations"`
	}
	if err := decodeParams(params, &args); err != nil {
		return nil, err
	}
	// languages is accepted but not applied: the underlying engine only
	// takes a single excluded language, and this handler passes none, so
	// results may come from any language.
	result, err := run(ctx, s, newTask("cross_language_search", map[string]any{
		"query":           args.Query,
		"excludeLanguage": "",
	}))
	if err != nil {
		return nil, err
	}
	return map[string]any{"results": result}, nil
}

func handleAnalyzeHotspots(ctx context.Context, s *Server, params json.RawMessage) (any, error) {
	var args struct {
		Metric    string  `json:"metric"`
		Limit     int     `json:"limit"`
		Threshold float64 `json:"threshold"`
	}
	if err := decodeParams(params, &args); err != nil {
		return nil, err
	}
	if args.Limit <= 0 {
		args.Limit = 10
	}
	result, err := run(ctx, s, newTask("analyze_hotspots_semantic", map[string]any{"limit": args.Limit}))
	if err != nil {
		return nil, err
	}

	b, _ := json.Marshal(result)
	var hotspots []map[string]any
	_ = json.Unmarshal(b, &hotspots)
	if args.Threshold <= 0 {
		return map[string]any{"items": hotspots}, nil
	}
	items := make([]map[string]any, 0, len(hotspots))
	for _, h := range hotspots {
		score, _ := h["score"].(float64)
		if score >= args.Threshold {
			items = append(items, h)
		}
	}
	return map[string]any{"items": items}, nil
}

func handleFindRelatedConcepts(ctx context.Context, s *Server, params json.RawMessage) (any, error) {
	var args struct {
		EntityID     string `json:"entityId"`
		Limit        int    `json:"limit"`
		ConceptDepth int    `json:"conceptDepth"`
	}
	if err := decodeParams(params, &args); err != nil {
		return nil, err
	}
	if args.EntityID == "" {
		return nil, errs.New(errs.KindInvalidInput, "find_related_concepts requires entityId")
	}
	if args.Limit <= 0 {
		args.Limit = 10
	}
	result, err := run(ctx, s, newTask("find_similar_code", map[string]any{
		"entityId": args.EntityID,
		"limit":    args.Limit,
	}))
	if err != nil {
		return nil, err
	}
	return map[string]any{"related": result}, nil
}

func toAnySlice(ss []string) []any {
	if ss == nil {
		return nil
	}
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
