package devagent

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"codegraph/internal/bus"
	"codegraph/internal/indexer"
	"codegraph/internal/store"
)

func TestIndexDirectoryUsesHeuristicWhenParserDisabled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.go"), "package a\nfunc Foo() {}\n")
	writeFile(t, filepath.Join(root, "b.go"), "package b\nfunc Bar() {}\n")

	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := store.Open(store.Options{Path: dbPath})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	b := bus.New()
	idx := indexer.New(s, b)
	d := New(Options{Extensions: []string{".go"}, BatchSize: 1, UseParser: false}, nil, idx, b)
	t.Cleanup(d.Stop)

	summary, err := d.IndexDirectory(context.Background(), root, nil)
	require.NoError(t, err)
	require.Equal(t, 2, summary.FilesDiscovered)
	require.Equal(t, 2, summary.FilesIndexed)
	require.Equal(t, 0, summary.FilesFailed)
	require.Greater(t, summary.EntitiesIndexed, 0)
}

func TestIndexDirectoryRejectsMissingRoot(t *testing.T) {
	d := New(Options{Extensions: []string{".go"}}, nil, nil, nil)
	_, err := d.IndexDirectory(context.Background(), filepath.Join(os.TempDir(), "does-not-exist-xyz"), nil)
	require.Error(t, err)
}

func TestResourcesAdjustedShrinksBatchSize(t *testing.T) {
	b := bus.New()
	d := New(Options{BatchSize: 100}, nil, nil, b)
	t.Cleanup(d.Stop)

	b.Emit("resources:adjusted", map[string]any{"memoryPressureFactor": 0.1}, "test", nil)
	require.Eventually(t, func() bool {
		return d.currentBatchSize() == 10
	}, time.Second, 10*time.Millisecond)
}
