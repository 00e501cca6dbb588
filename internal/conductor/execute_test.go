package conductor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"codegraph/internal/agent"
	"codegraph/internal/bus"
	"codegraph/internal/types"
)

func TestExecuteDelegatesAndReturnsMainResult(t *testing.T) {
	b := bus.New()
	c := New(b, Options{})
	t.Cleanup(c.Stop)

	a := agent.New("query-1", "query", agent.Capabilities{MaxConcurrency: 2}, b, stubHandler{accept: true, result: "answer"})
	t.Cleanup(a.Stop)
	c.Registry.Register(a)

	result, err := c.Execute(context.Background(), types.Task{ID: "t1", Type: "query"})
	require.NoError(t, err)
	require.False(t, result.ApprovalRequired)
	require.Equal(t, "answer", result.Result)
}

func TestExecuteReturnsProposalsWhenApprovalRequired(t *testing.T) {
	b := bus.New()
	c := New(b, Options{ComplexityThreshold: 1})
	t.Cleanup(c.Stop)

	result, err := c.Execute(context.Background(), types.Task{ID: "t1", Type: "comprehensive-refactor"})
	require.NoError(t, err)
	require.True(t, result.ApprovalRequired)
	require.Len(t, result.Proposals, 5)
}

func TestExecuteClearsTaskFromPendingOnCompletion(t *testing.T) {
	b := bus.New()
	c := New(b, Options{TaskQueueLimit: 1})
	t.Cleanup(c.Stop)

	a := agent.New("dev-1", "dev", agent.Capabilities{MaxConcurrency: 2}, b, stubHandler{accept: true, result: "ok"})
	t.Cleanup(a.Stop)
	c.Registry.Register(a)

	_, err := c.Execute(context.Background(), types.Task{ID: "t1", Type: "index"})
	require.NoError(t, err)

	// the queue-limit-of-1 slot must be free again now that t1 completed.
	require.NoError(t, c.Submit(context.Background(), types.Task{ID: "t2", Type: "index"}))
	c.Complete("t2")
}

func TestRoleForRoutesReadOnlyTaskTypesToQueryAndSemantic(t *testing.T) {
	require.Equal(t, "query", roleFor("list_file_entities"))
	require.Equal(t, "query", roleFor("analyze_code_impact"))
	require.Equal(t, "semantic", roleFor("semantic_search"))
	require.Equal(t, "semantic", roleFor("find_related_concepts"))
	require.Equal(t, "dev", roleFor("index"))
	require.Equal(t, "research", roleFor("research"))
}

func TestDecomposeAddsLeadingResearchSubtask(t *testing.T) {
	subtasks := Decompose(types.Task{ID: "t1", Type: "implementation", Payload: map[string]any{"needsResearch": true}})
	require.Len(t, subtasks, 2)
	require.Equal(t, "research", subtasks[0].Role)
	require.Equal(t, "dev", subtasks[1].Role)
	require.Equal(t, []string{subtasks[0].Task.ID}, subtasks[1].DependsOn)
}
