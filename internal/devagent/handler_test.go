package devagent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"codegraph/internal/types"
)

func TestHandlerAcceptsOnlyDevRoleTaskTypes(t *testing.T) {
	h := NewHandler(nil)
	require.True(t, h.Accepts(types.Task{Type: "index"}))
	require.True(t, h.Accepts(types.Task{Type: "refactor"}))
	require.False(t, h.Accepts(types.Task{Type: "semantic_search"}))
}

func TestHandlerIndexRequiresDirectory(t *testing.T) {
	h := NewHandler(nil)
	_, err := h.Handle(context.Background(), types.Task{Type: "index", Payload: map[string]any{}})
	require.Error(t, err)
}

func TestHandlerAcknowledgesNonIndexTaskTypes(t *testing.T) {
	h := NewHandler(nil)
	result, err := h.Handle(context.Background(), types.Task{Type: "refactor"})
	require.NoError(t, err)
	m := result.(map[string]any)
	require.Equal(t, "acknowledged", m["status"])
	require.Equal(t, "refactor", m["type"])
}
