package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"codegraph/internal/types"
)

func TestQueryHandlerAcceptsOnlyQueryRoleTaskTypes(t *testing.T) {
	h := NewHandler(nil)
	require.True(t, h.Accepts(types.Task{Type: "list_file_entities"}))
	require.True(t, h.Accepts(types.Task{Type: "analyze_code_impact"}))
	require.False(t, h.Accepts(types.Task{Type: "semantic_search"}))
}

func TestQueryHandlerRejectsUnsupportedTaskType(t *testing.T) {
	e, _ := newTestEngine(t)
	h := NewHandler(e)
	_, err := h.Handle(context.Background(), types.Task{ID: "t1", Type: "bogus"})
	require.Error(t, err)
}

func TestQueryHandlerListFileEntitiesDispatchesToListEntities(t *testing.T) {
	e, s := newTestEngine(t)
	seedChain(t, s)
	h := NewHandler(e)

	result, err := h.Handle(context.Background(), types.Task{
		Type:    "list_file_entities",
		Payload: map[string]any{"filePath": "a.go"},
	})
	require.NoError(t, err)
	entities := result.([]types.Entity)
	require.Len(t, entities, 3)
}

func TestQueryHandlerListEntityRelationshipsResolvesByName(t *testing.T) {
	e, s := newTestEngine(t)
	seedChain(t, s)
	h := NewHandler(e)

	result, err := h.Handle(context.Background(), types.Task{
		Type: "list_entity_relationships",
		Payload: map[string]any{
			"entityName": "A",
			"depth":      2,
		},
	})
	require.NoError(t, err)
	require.NotNil(t, result)
}

func TestQueryHandlerListEntityRelationshipsRequiresEntityIdentifier(t *testing.T) {
	e, _ := newTestEngine(t)
	h := NewHandler(e)
	_, err := h.Handle(context.Background(), types.Task{Type: "list_entity_relationships", Payload: map[string]any{}})
	require.Error(t, err)
}
