package conductor

import (
	"sync"

	"codegraph/internal/types"
)

// Proposal is one candidate execution method for a task, returned to the
// caller when a task's complexity exceeds complexityThreshold and needs
// explicit approval before decomposition proceeds (spec §4.2).
type Proposal struct {
	Method      string   `json:"method"`
	Description string   `json:"description"`
	Steps       []string `json:"steps"`
}

// proposalCache memoizes proposal sets per task-type family, since the
// five method templates below are a pure function of task.Type.
type proposalCache struct {
	mu    sync.Mutex
	byType map[string][]Proposal
}

func newProposalCache() *proposalCache {
	return &proposalCache{byType: make(map[string][]Proposal)}
}

// GenerateProposals returns up to five candidate methods for executing
// task, drawn from a fixed template set and cached per task.Type.
func (c *proposalCache) GenerateProposals(task types.Task) []Proposal {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cached, ok := c.byType[task.Type]; ok {
		return cached
	}

	proposals := []Proposal{
		{
			Method:      "incremental",
			Description: "Complete the task file-by-file, committing progress after each step.",
			Steps:       []string{"identify target files", "process one file", "verify", "repeat"},
		},
		{
			Method:      "parallel",
			Description: "Split the task across independent batches and run them concurrently.",
			Steps:       []string{"partition work", "dispatch batches", "merge results"},
		},
		{
			Method:      "research-first",
			Description: "Investigate the codebase before making any change.",
			Steps:       []string{"research affected area", "propose approach", "implement", "verify"},
		},
		{
			Method:      "rapid-prototype",
			Description: "Produce a fast, rough implementation to validate the approach before refining.",
			Steps:       []string{"sketch minimal implementation", "validate", "refine"},
		},
		{
			Method:      "comprehensive-refactor",
			Description: "Restructure the affected area fully rather than patching around it.",
			Steps:       []string{"map current structure", "design target structure", "migrate", "verify", "clean up"},
		},
	}
	c.byType[task.Type] = proposals
	return proposals
}
