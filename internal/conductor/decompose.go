package conductor

import (
	"github.com/google/uuid"

	"codegraph/internal/types"
)

// Subtask is one decomposed unit of work, ordered with explicit
// dependencies so the Conductor can delegate independent subtasks in
// parallel while honoring sequencing where one subtask's output feeds
// another's input (spec §4.2).
type Subtask struct {
	Task      types.Task
	Role      string   // "research" | "dev" | "query" | "semantic"
	DependsOn []string // subtask ids this one waits on
}

// Decompose splits task into an ordered list of role-tagged subtasks.
// Research-flagged tasks get a leading research subtask; the main subtask
// goes to the role roleFor picks for the task type, and a needsTesting flag
// adds a trailing verify subtask on that same role.
func Decompose(task types.Task) []Subtask {
	var subtasks []Subtask

	needsResearch, _ := task.Payload["needsResearch"].(bool)
	var researchID string
	if needsResearch {
		researchID = uuid.NewString()
		subtasks = append(subtasks, Subtask{
			Task: types.Task{
				ID: researchID, Type: "research", Priority: task.Priority,
				Payload: task.Payload, CreatedAt: task.CreatedAt,
			},
			Role: "research",
		})
	}

	role := roleFor(task.Type)
	implID := uuid.NewString()
	dependsOn := []string(nil)
	if researchID != "" {
		dependsOn = []string{researchID}
	}
	subtasks = append(subtasks, Subtask{
		Task: types.Task{
			ID: implID, Type: task.Type, Priority: task.Priority,
			Payload: task.Payload, CreatedAt: task.CreatedAt,
		},
		Role:      role,
		DependsOn: dependsOn,
	})

	needsTesting, _ := task.Payload["needsTesting"].(bool)
	if needsTesting {
		subtasks = append(subtasks, Subtask{
			Task: types.Task{
				ID: uuid.NewString(), Type: "verify", Priority: task.Priority,
				Payload: task.Payload, CreatedAt: task.CreatedAt,
			},
			Role:      role,
			DependsOn: []string{implID},
		})
	}

	return subtasks
}

var queryRoleTaskTypes = map[string]bool{
	"get_entity": true, "list_file_entities": true, "list_entities": true,
	"list_entity_relationships": true, "get_relationships": true,
	"related_entities": true, "find_path": true, "get_subgraph": true,
	"find_dependencies": true, "detect_cycles": true,
	"analyze_code_impact": true, "query": true,
}

var semanticRoleTaskTypes = map[string]bool{
	"semantic_search": true, "find_similar_code": true, "detect_code_clones": true,
	"analyze_code_semantics": true, "generate_code_embedding": true,
	"cross_language_search": true, "suggest_refactoring": true,
	"analyze_hotspots_semantic": true, "find_related_concepts": true,
}

// roleFor maps a task's type to the worker role that owns it (spec §4.2's
// decomposition rules): research subtasks route to research, indexing and
// any implementation/refactor work routes to dev, and every read-only
// graph or embedding operation routes to the engine that actually answers
// it (query or semantic).
func roleFor(taskType string) string {
	switch {
	case taskType == "research":
		return "research"
	case queryRoleTaskTypes[taskType]:
		return "query"
	case semanticRoleTaskTypes[taskType]:
		return "semantic"
	default:
		return "dev"
	}
}
