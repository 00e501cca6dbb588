package devagent

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestWalkSkipsIgnoredDirectories(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "main.go"), "package main")
	writeFile(t, filepath.Join(root, "node_modules", "pkg", "index.go"), "package pkg")
	writeFile(t, filepath.Join(root, "src", "util.go"), "package src")
	writeFile(t, filepath.Join(root, "README.md"), "# hi")

	cfg := DefaultScannerConfig([]string{".go"}, nil)
	files, err := Walk(root, cfg)
	require.NoError(t, err)

	sort.Strings(files)
	require.Len(t, files, 2)
	for _, f := range files {
		require.NotContains(t, f, "node_modules")
	}
}

func TestWalkHonorsExtraIgnorePatterns(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "keep.go"), "package root")
	writeFile(t, filepath.Join(root, "generated", "gen.go"), "package generated")

	cfg := DefaultScannerConfig([]string{".go"}, []string{"generated"})
	files, err := Walk(root, cfg)
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Equal(t, filepath.Join(root, "keep.go"), files[0])
}

func TestWalkHonorsRecursiveGlobIgnorePattern(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "keep.go"), "package root")
	writeFile(t, filepath.Join(root, "pkg", "generated", "gen.go"), "package generated")
	writeFile(t, filepath.Join(root, "pkg", "nested", "generated", "deep", "gen.go"), "package deep")
	writeFile(t, filepath.Join(root, "pkg", "real.go"), "package pkg")

	cfg := DefaultScannerConfig([]string{".go"}, []string{"**/generated/**"})
	files, err := Walk(root, cfg)
	require.NoError(t, err)

	sort.Strings(files)
	require.Len(t, files, 2)
	for _, f := range files {
		require.NotContains(t, f, "generated")
	}
}

func TestGlobMatchHandlesDoubleStarAcrossSegments(t *testing.T) {
	require.True(t, globMatch("**/generated/**", "pkg/generated/gen.go"))
	require.True(t, globMatch("**/generated/**", "pkg/nested/generated/deep/gen.go"))
	require.True(t, globMatch("**/generated/**", "generated/gen.go"))
	require.False(t, globMatch("**/generated/**", "pkg/real.go"))
	require.True(t, globMatch("src/**/*.go", "src/a/b/c.go"))
	require.False(t, globMatch("src/**/*.go", "other/a/b/c.go"))
}
