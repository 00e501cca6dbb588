package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"codegraph/internal/config"
	"codegraph/internal/embedding"
)

func TestBuildEmbeddingProviderDefaultsToMemory(t *testing.T) {
	e, err := buildEmbeddingProvider(config.MCPEmbeddingConfig{})
	require.NoError(t, err)
	require.Equal(t, 384, e.Dimensions())
}

func TestBuildEmbeddingProviderSelectsONNX(t *testing.T) {
	e, err := buildEmbeddingProvider(config.MCPEmbeddingConfig{Provider: "onnx", Model: "model.onnx"})
	require.NoError(t, err)
	require.IsType(t, &embedding.ONNXEngine{}, e)
}

func TestBuildEmbeddingProviderSelectsHTTP(t *testing.T) {
	e, err := buildEmbeddingProvider(config.MCPEmbeddingConfig{
		Provider: "http",
		Ollama:   config.EmbeddingProviderBlock{BaseURL: "http://localhost:11434"},
	})
	require.NoError(t, err)
	require.IsType(t, &embedding.HTTPEngine{}, e)
}

func TestBuildEmbeddingProviderRejectsUnknown(t *testing.T) {
	_, err := buildEmbeddingProvider(config.MCPEmbeddingConfig{Provider: "bogus"})
	require.Error(t, err)
}

func TestMsDurationConvertsMillisecondsToDuration(t *testing.T) {
	require.Equal(t, 1500*time.Millisecond, msDuration(1500))
	require.Equal(t, time.Duration(0), msDuration(0))
}
