package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigHasSaneDefaults(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, "vectors.db", cfg.Database.Path)
	require.Equal(t, 4, cfg.Database.MaxReadConns)
	require.Equal(t, "memory", cfg.MCP.Embedding.Provider)
	require.Equal(t, 8, cfg.Conductor.ComplexityThreshold)
	require.True(t, cfg.Conductor.MandatoryDelegation)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)
}

func TestLoadOverlaysYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  path: custom.db\nconductor:\n  complexityThreshold: 5\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "custom.db", cfg.Database.Path)
	require.Equal(t, 5, cfg.Conductor.ComplexityThreshold)
	require.Equal(t, 4, cfg.Database.MaxReadConns, "unspecified keys keep their default")
}
