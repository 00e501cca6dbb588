package rpc

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"codegraph/internal/agent"
	"codegraph/internal/bus"
	"codegraph/internal/conductor"
	"codegraph/internal/store"
	"codegraph/internal/types"
)

// stubHandler answers every task of the given role with a fixed result,
// mirroring conductor_test.go's stubHandler shape.
type stubHandler struct {
	result any
	err    error
}

func (h stubHandler) Accepts(types.Task) bool { return true }
func (h stubHandler) Handle(context.Context, types.Task) (any, error) {
	return h.result, h.err
}

func newTestServer(t *testing.T, devResult, queryResult, semanticResult any) *Server {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := store.Open(store.Options{Path: path})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	b := bus.New()
	c := conductor.New(b, conductor.Options{})
	t.Cleanup(c.Stop)

	dev := agent.New("dev-1", "dev", agent.Capabilities{MaxConcurrency: 4}, b, stubHandler{result: devResult})
	q := agent.New("query-1", "query", agent.Capabilities{MaxConcurrency: 4}, b, stubHandler{result: queryResult})
	sem := agent.New("semantic-1", "semantic", agent.Capabilities{MaxConcurrency: 4}, b, stubHandler{result: semanticResult})
	t.Cleanup(dev.Stop)
	t.Cleanup(q.Stop)
	t.Cleanup(sem.Stop)
	c.Registry.Register(dev)
	c.Registry.Register(q)
	c.Registry.Register(sem)

	return &Server{Conductor: c, Store: s}
}

func TestHandleIndexShapesDevAgentSummary(t *testing.T) {
	s := newTestServer(t, map[string]any{
		"filesIndexed":         3,
		"entitiesIndexed":      7,
		"relationshipsCreated": 2,
	}, nil, nil)

	params, _ := json.Marshal(map[string]any{"directory": "/src"})
	result, err := handleIndex(context.Background(), s, params)
	require.NoError(t, err)

	m := result.(map[string]any)
	require.Equal(t, "ok", m["status"])
	require.Equal(t, 3, m["filesProcessed"])
	require.Equal(t, 7, m["entitiesExtracted"])
	require.Equal(t, 2, m["relationshipsCreated"])
}

func TestHandleIndexRequiresDirectory(t *testing.T) {
	s := newTestServer(t, nil, nil, nil)
	_, err := handleIndex(context.Background(), s, json.RawMessage(`{}`))
	require.Error(t, err)
}

func TestHandleSemanticSearchFiltersByThreshold(t *testing.T) {
	s := newTestServer(t, nil, nil, map[string]any{
		"Hits": []map[string]any{
			{"ID": "e1", "Score": 0.9},
			{"ID": "e2", "Score": 0.2},
		},
	})

	params, _ := json.Marshal(map[string]any{"query": "foo", "threshold": 0.5})
	result, err := handleSemanticSearch(context.Background(), s, params)
	require.NoError(t, err)

	m := result.(map[string]any)
	require.Equal(t, 1, m["totalResults"])
}

func TestHandleAnalyzeCodeImpactSplitsDirectAndIndirect(t *testing.T) {
	s := newTestServer(t, nil, []map[string]any{
		{"entityId": "a", "depth": 1},
		{"entityId": "b", "depth": 2},
	}, nil)

	params, _ := json.Marshal(map[string]any{"entityId": "root", "includeIndirect": true})
	result, err := handleAnalyzeCodeImpact(context.Background(), s, params)
	require.NoError(t, err)

	m := result.(map[string]any)
	require.Len(t, m["direct"], 1)
	require.Len(t, m["indirect"], 1)
	require.Equal(t, 3, m["score"])
}

func TestHandleAnalyzeCodeImpactRequiresEntityID(t *testing.T) {
	s := newTestServer(t, nil, nil, nil)
	_, err := handleAnalyzeCodeImpact(context.Background(), s, json.RawMessage(`{}`))
	require.Error(t, err)
}

func TestHandleGetMetricsReadsStoreAndAgents(t *testing.T) {
	s := newTestServer(t, nil, nil, nil)
	result, err := handleGetMetrics(context.Background(), s, nil)
	require.NoError(t, err)

	m := result.(map[string]any)
	require.Contains(t, m, "vectorSearch")
	require.Contains(t, m, "memory")
	queryAgents, ok := m["queryAgent"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, queryAgents, 1)
	require.Equal(t, "query-1", queryAgents[0]["agentId"])
}

func TestHandleFindRelatedConceptsRoutesThroughFindSimilarCode(t *testing.T) {
	s := newTestServer(t, nil, nil, map[string]any{"related": "stub"})

	params, _ := json.Marshal(map[string]any{"entityId": "e1"})
	result, err := handleFindRelatedConcepts(context.Background(), s, params)
	require.NoError(t, err)
	m := result.(map[string]any)
	require.NotNil(t, m["related"])
}

func TestHandleFindRelatedConceptsRequiresEntityID(t *testing.T) {
	s := newTestServer(t, nil, nil, nil)
	_, err := handleFindRelatedConcepts(context.Background(), s, json.RawMessage(`{}`))
	require.Error(t, err)
}
