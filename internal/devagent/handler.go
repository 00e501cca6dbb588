package devagent

import (
	"context"

	"codegraph/internal/errs"
	"codegraph/internal/types"
)

// Handler adapts DevAgent to agent.Handler so a dev-role agent.Base can be
// registered with the Conductor and receive delegated subtasks (spec §4.2's
// role-routing table maps "index", "implementation" and "refactor" subtasks
// onto the dev role).
type Handler struct {
	dev *DevAgent
}

// NewHandler wraps dev for registration via agent.New(id, "dev", caps, bus, h).
func NewHandler(dev *DevAgent) *Handler { return &Handler{dev: dev} }

var devTaskTypes = map[string]bool{
	"index": true, "implementation": true, "refactor": true,
	"comprehensive-refactor": true, "dev": true, "verify": true,
}

// Accepts reports whether task is one of the dev role's task types.
func (h *Handler) Accepts(task types.Task) bool { return devTaskTypes[task.Type] }

// Handle runs the indexing flow for "index" tasks; other dev-role task
// types (implementation, refactor, verify) have no code-mutation engine in
// this retrieval service, so they are acknowledged without side effects
// rather than rejected, letting decomposition's dependent verify subtasks
// proceed.
func (h *Handler) Handle(ctx context.Context, task types.Task) (any, error) {
	switch task.Type {
	case "index":
		dir, _ := task.Payload["directory"].(string)
		if dir == "" {
			return nil, errs.New(errs.KindInvalidInput, "index task missing directory").WithContext("taskId", task.ID)
		}
		summary, err := h.dev.IndexDirectory(ctx, dir, nil)
		if err != nil {
			return nil, err
		}
		return summary, nil
	default:
		return map[string]any{"status": "acknowledged", "type": task.Type}, nil
	}
}
