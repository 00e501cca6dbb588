package semantic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"codegraph/internal/types"
)

func TestSemanticHandlerAcceptsOnlySemanticRoleTaskTypes(t *testing.T) {
	h := NewHandler(nil)
	require.True(t, h.Accepts(types.Task{Type: "semantic_search"}))
	require.True(t, h.Accepts(types.Task{Type: "detect_code_clones"}))
	require.False(t, h.Accepts(types.Task{Type: "list_file_entities"}))
}

func TestSemanticHandlerRejectsUnsupportedTaskType(t *testing.T) {
	e, _ := newTestEngine(t)
	h := NewHandler(e)
	_, err := h.Handle(context.Background(), types.Task{ID: "t1", Type: "bogus"})
	require.Error(t, err)
}

func TestSemanticHandlerSemanticSearchDispatchesWithQueryAndLimit(t *testing.T) {
	e, _ := newTestEngine(t)
	require.NoError(t, e.GenerateCodeEmbedding(context.Background(), types.Entity{ID: "e1", Name: "Foo", Type: types.EntityFunction, FilePath: "a.go"}))
	h := NewHandler(e)

	result, err := h.Handle(context.Background(), types.Task{
		Type:    "semantic_search",
		Payload: map[string]any{"query": "foo", "limit": 5},
	})
	require.NoError(t, err)
	sr := result.(SearchResult)
	require.False(t, sr.Degraded)
}

func TestSemanticHandlerFindSimilarCodeDispatchesByEntityID(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	require.NoError(t, e.GenerateCodeEmbedding(ctx, types.Entity{ID: "e1", Name: "Foo", Type: types.EntityFunction, FilePath: "a.go"}))
	require.NoError(t, e.GenerateCodeEmbedding(ctx, types.Entity{ID: "e2", Name: "Foo", Type: types.EntityFunction, FilePath: "b.go"}))
	h := NewHandler(e)

	result, err := h.Handle(ctx, types.Task{
		Type:    "find_similar_code",
		Payload: map[string]any{"entityId": "e1", "limit": 5},
	})
	require.NoError(t, err)
	require.NotNil(t, result)
}
