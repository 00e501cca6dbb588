package conductor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"codegraph/internal/agent"
	"codegraph/internal/bus"
	"codegraph/internal/types"
)

type stubHandler struct {
	accept bool
	result any
	err    error
}

func (h stubHandler) Accepts(task types.Task) bool { return h.accept }
func (h stubHandler) Handle(ctx context.Context, task types.Task) (any, error) {
	return h.result, h.err
}

func TestSubmitRejectsBypassDelegation(t *testing.T) {
	c := New(bus.New(), Options{MandatoryDelegation: true})
	t.Cleanup(c.Stop)

	err := c.Submit(context.Background(), types.Task{ID: "t1", Type: "direct"})
	require.Error(t, err)
}

func TestSubmitRejectsBeyondQueueLimit(t *testing.T) {
	c := New(bus.New(), Options{TaskQueueLimit: 1})
	t.Cleanup(c.Stop)

	require.NoError(t, c.Submit(context.Background(), types.Task{ID: "t1", Type: "index"}))
	err := c.Submit(context.Background(), types.Task{ID: "t2", Type: "index"})
	require.Error(t, err)
}

func TestComplexityScoreExceedsThresholdRequiresApproval(t *testing.T) {
	c := New(bus.New(), Options{ComplexityThreshold: 3})
	t.Cleanup(c.Stop)

	require.True(t, c.RequiresApproval(types.Task{Type: "refactor"}))
	require.False(t, c.RequiresApproval(types.Task{Type: "index"}))
}

func TestGenerateProposalsReturnsFiveMethods(t *testing.T) {
	c := New(bus.New(), Options{})
	t.Cleanup(c.Stop)

	proposals := c.GenerateProposals(types.Task{Type: "refactor"})
	require.Len(t, proposals, 5)
}

func TestDelegateWithFailoverReroutesOnFailure(t *testing.T) {
	b := bus.New()
	c := New(b, Options{Strategy: StrategyRoundRobin})
	t.Cleanup(c.Stop)

	failing := agent.New("a1", "dev", agent.Capabilities{MaxConcurrency: 1}, b, stubHandler{accept: true, err: errBoom{}})
	succeeding := agent.New("a2", "dev", agent.Capabilities{MaxConcurrency: 1}, b, stubHandler{accept: true, result: "ok"})
	t.Cleanup(failing.Stop)
	t.Cleanup(succeeding.Stop)
	c.Registry.Register(failing)
	c.Registry.Register(succeeding)

	result, err := c.DelegateWithFailover(context.Background(), "dev", types.Task{ID: "t1", Type: "index"})
	require.NoError(t, err)
	require.Equal(t, "ok", result)
}

func TestGetBackpressureStatusReflectsPendingCount(t *testing.T) {
	c := New(bus.New(), Options{TaskQueueLimit: 10})
	t.Cleanup(c.Stop)
	require.NoError(t, c.Submit(context.Background(), types.Task{ID: "t1", Type: "index"}))

	status := c.GetBackpressureStatus()
	require.Equal(t, 1, status.QueueDepth)
	require.True(t, status.Accepting)
}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

func TestHealthLoopEmitsHeartbeat(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("conductor:heartbeat")
	defer unsub()

	c := New(b, Options{HealthInterval: 10 * time.Millisecond})
	t.Cleanup(c.Stop)

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected a heartbeat event")
	}
}
