package conductor

import (
	"context"

	"codegraph/internal/types"
)

// ExecuteResult is what the RPC layer gets back from one top-level task
// submission: either a scheduled result, or a proposal set awaiting
// approval (spec §4.2 item 2).
type ExecuteResult struct {
	ApprovalRequired bool
	Complexity       int
	Proposals        []Proposal
	Result           any
}

// Execute is the single entry point the external transport uses to run a
// tool call through the Conductor: admit the task, score it, either return
// proposals for approval or decompose and delegate its subtasks in
// dependency order, and always clear the task from pending when done. The
// Conductor never executes work itself (spec §4.2 item 6); every subtask it
// runs is handed to a registered agent through DelegateWithFailover.
func (c *Conductor) Execute(ctx context.Context, task types.Task) (ExecuteResult, error) {
	if err := c.Submit(ctx, task); err != nil {
		return ExecuteResult{}, err
	}
	defer c.Complete(task.ID)

	if c.RequiresApproval(task) {
		return ExecuteResult{
			ApprovalRequired: true,
			Complexity:       ComplexityScore(task),
			Proposals:        c.GenerateProposals(task),
		}, nil
	}

	subtasks := Decompose(task)
	results := make(map[string]any, len(subtasks))
	var mainResult any
	var mainID string

	for _, st := range subtasks {
		for _, dep := range st.DependsOn {
			_ = results[dep] // dependency ordering is already reflected in Decompose's slice order
		}
		res, err := c.DelegateWithFailover(ctx, st.Role, st.Task)
		if err != nil {
			return ExecuteResult{}, err
		}
		results[st.Task.ID] = res
		if st.Task.Type == task.Type {
			mainResult = res
			mainID = st.Task.ID
		}
	}
	_ = mainID

	return ExecuteResult{Result: mainResult}, nil
}
