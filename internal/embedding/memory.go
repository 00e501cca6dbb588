package embedding

import (
	"context"
	"crypto/sha256"
	"math"
)

// MemoryEngine is a deterministic, dependency-free embedding stub used in
// tests and as the default provider (mcp.embedding.provider=memory). Embed
// is a pure function of its input: hashing the text into a fixed-width
// vector gives reproducible, comparable-similarity results without any
// external model.
type MemoryEngine struct {
	dim int
}

// NewMemoryEngine builds a stub engine with the given fixed dimensionality.
func NewMemoryEngine(dim int) *MemoryEngine {
	if dim <= 0 {
		dim = 384
	}
	return &MemoryEngine{dim: dim}
}

func (m *MemoryEngine) Name() string   { return "memory" }
func (m *MemoryEngine) Dimensions() int { return m.dim }

func (m *MemoryEngine) Generate(_ context.Context, text string) ([]float32, error) {
	return deterministicVector(text, m.dim), nil
}

func (m *MemoryEngine) GenerateBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := m.Generate(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// deterministicVector expands a SHA-256 digest of text into dim floats in
// [-1, 1], repeating the digest as needed. Two calls with the same text
// always yield bit-identical vectors, satisfying the spec's "Embed(text) is
// deterministic for the memory provider" law.
func deterministicVector(text string, dim int) []float32 {
	sum := sha256.Sum256([]byte(text))
	out := make([]float32, dim)
	for i := 0; i < dim; i++ {
		b := sum[i%len(sum)]
		// rotate the byte window so repeated passes over the digest don't
		// all start at the same offset
		shift := uint(((i / len(sum)) * 7) % 8)
		rotated := (b << shift) | (b >> (8 - shift))
		out[i] = float32(rotated)/128.0 - 1.0
	}
	normalize(out)
	return out
}

func normalize(v []float32) {
	var sumSq float64
	for _, f := range v {
		sumSq += float64(f) * float64(f)
	}
	if sumSq == 0 {
		return
	}
	norm := math.Sqrt(sumSq)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
}
