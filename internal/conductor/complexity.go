package conductor

import "codegraph/internal/types"

// ComplexityScore rates a task from 1 (trivial) to 10 (hardest), summing
// signals from the task's declared type, file-count estimate, and whether
// it names a research or testing need in its payload (spec §4.2). Indexing
// tasks start low so they clear the default complexityThreshold of 8
// without manual approval; refactors and research start high.
func ComplexityScore(task types.Task) int {
	score := 1

	switch task.Type {
	case "index", "list_file_entities", "query":
		score += 1
	case "implementation":
		score += 3
	case "research":
		score += 4
	case "refactor", "comprehensive-refactor":
		score += 5
	default:
		score += 2
	}

	if fileCount, ok := intFromPayload(task.Payload, "fileCount"); ok {
		switch {
		case fileCount > 50:
			score += 3
		case fileCount > 10:
			score += 2
		case fileCount > 1:
			score += 1
		}
	}

	if needsResearch, _ := task.Payload["needsResearch"].(bool); needsResearch {
		score += 2
	}
	if needsTesting, _ := task.Payload["needsTesting"].(bool); needsTesting {
		score += 1
	}

	if score > 10 {
		score = 10
	}
	if score < 1 {
		score = 1
	}
	return score
}

func intFromPayload(payload map[string]any, key string) (int, bool) {
	if payload == nil {
		return 0, false
	}
	switch v := payload[key].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
