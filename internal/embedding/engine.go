// Package embedding defines the embedding generator abstraction (spec §4.7)
// and its three concrete providers: an in-memory deterministic stub for
// tests, a local ONNX model, and a remote HTTP embedding service. All
// providers present the same Engine interface.
package embedding

import (
	"context"
	"math"
	"sort"
)

// Engine generates fixed-width embeddings for text.
type Engine interface {
	// Generate embeds a single text.
	Generate(ctx context.Context, text string) ([]float32, error)
	// GenerateBatch embeds many texts, respecting the provider's configured batch size.
	GenerateBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions returns D, the fixed embedding width for this engine.
	Dimensions() int
	// Name identifies the provider for metadata/model-name tagging.
	Name() string
}

// HealthChecker is optionally implemented by providers that can verify
// connectivity without performing real work (e.g. the http provider pinging
// its backend).
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// TaskTypeAwareEngine is optionally implemented by providers whose output
// changes based on the caller's intent (e.g. "query" vs "document" embedding
// models).
type TaskTypeAwareEngine interface {
	GenerateWithTaskType(ctx context.Context, text, taskType string) ([]float32, error)
}

// TaskTypeBatchAwareEngine is the batch counterpart of TaskTypeAwareEngine.
type TaskTypeBatchAwareEngine interface {
	GenerateBatchWithTaskType(ctx context.Context, texts []string, taskType string) ([][]float32, error)
}

// CosineSimilarity computes cosine similarity between two equal-length
// vectors; returns 0 for mismatched lengths or zero vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// SimilarityResult pairs a candidate id with its similarity score.
type SimilarityResult struct {
	ID    string
	Score float64
}

// FindTopK returns the topK entries from candidates ranked by cosine
// similarity to query.
func FindTopK(query []float32, candidates map[string][]float32, topK int) []SimilarityResult {
	results := make([]SimilarityResult, 0, len(candidates))
	for id, vec := range candidates {
		results = append(results, SimilarityResult{ID: id, Score: CosineSimilarity(query, vec)})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results
}
