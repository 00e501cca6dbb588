package embedding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryEngineIsDeterministic(t *testing.T) {
	e := NewMemoryEngine(64)
	v1, err := e.Generate(context.Background(), "func main() {}")
	require.NoError(t, err)
	v2, err := e.Generate(context.Background(), "func main() {}")
	require.NoError(t, err)
	require.Equal(t, v1, v2)
}

func TestMemoryEngineDiffersByInput(t *testing.T) {
	e := NewMemoryEngine(64)
	v1, _ := e.Generate(context.Background(), "alpha")
	v2, _ := e.Generate(context.Background(), "beta")
	require.NotEqual(t, v1, v2)
}

func TestCosineSimilarityIdenticalVectorsIsOne(t *testing.T) {
	v := []float32{0.5, 0.5, 0.5, 0.5}
	require.InDelta(t, 1.0, CosineSimilarity(v, v), 1e-6)
}

func TestCosineSimilarityOrthogonalIsZero(t *testing.T) {
	require.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
}

func TestFindTopKOrdersBySimilarityDescending(t *testing.T) {
	query := []float32{1, 0, 0}
	candidates := map[string][]float32{
		"close":  {0.9, 0.1, 0},
		"far":    {0, 1, 0},
		"medium": {0.5, 0.5, 0},
	}
	results := FindTopK(query, candidates, 2)
	require.Len(t, results, 2)
	require.Equal(t, "close", results[0].ID)
}

func TestGenerateBatchMatchesIndividualGenerate(t *testing.T) {
	e := NewMemoryEngine(32)
	texts := []string{"one", "two", "three"}
	batch, err := e.GenerateBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, batch, 3)
	for i, text := range texts {
		single, err := e.Generate(context.Background(), text)
		require.NoError(t, err)
		require.Equal(t, single, batch[i])
	}
}

func TestONNXEngineMissingModelFileErrors(t *testing.T) {
	e := NewONNXEngine(ONNXConfig{ModelPath: "/nonexistent/model.onnx"})
	_, err := e.Generate(context.Background(), "text")
	require.Error(t, err)
}
