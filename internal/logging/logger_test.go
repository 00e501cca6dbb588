package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetIsNoOpWhenDisabled(t *testing.T) {
	require.NoError(t, Initialize(Options{DebugMode: false}))
	l := Get(Store)
	l.Info("should not panic or write anything")
}

func TestInitializeWritesPerCategoryFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Initialize(Options{DebugMode: true, Dir: dir}))
	defer CloseAll()

	Get(Conductor).Info("conductor booted")
	Get(Store).Warn("vector extension missing")

	require.FileExists(t, filepath.Join(dir, "conductor.log"))
	require.FileExists(t, filepath.Join(dir, "store.log"))

	b, err := os.ReadFile(filepath.Join(dir, "conductor.log"))
	require.NoError(t, err)
	require.Contains(t, string(b), "conductor booted")
}

func TestCategoryFilterExcludesUnlisted(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Initialize(Options{DebugMode: true, Dir: dir, EnabledCategories: []Category{Query}}))
	defer CloseAll()

	Get(Query).Info("enabled")
	Get(Semantic).Info("disabled")

	require.FileExists(t, filepath.Join(dir, "query.log"))
	require.NoFileExists(t, filepath.Join(dir, "semantic.log"))
}

func TestTimerStopWithThreshold(t *testing.T) {
	require.NoError(t, Initialize(Options{DebugMode: false}))
	timer := StartTimer(Query, "bfs traversal")
	d := timer.StopWithThreshold(0)
	require.GreaterOrEqual(t, d.Nanoseconds(), int64(0))
}
