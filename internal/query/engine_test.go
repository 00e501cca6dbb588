package query

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"codegraph/internal/bus"
	"codegraph/internal/config"
	"codegraph/internal/store"
	"codegraph/internal/types"
)

func newTestEngine(t *testing.T) (*Engine, *store.Manager) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := store.Open(store.Options{Path: path})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	b := bus.New()
	e := New(s, b, Options{Weights: config.HotspotWeights{Incoming: 2, Outgoing: 1, Complexity: 1}})
	t.Cleanup(e.Stop)
	return e, s
}

func seedChain(t *testing.T, s *store.Manager) (a, bID, c string) {
	t.Helper()
	resolved, err := s.UpsertEntities([]types.Entity{
		{Name: "A", Type: types.EntityFunction, FilePath: "a.go"},
		{Name: "B", Type: types.EntityFunction, FilePath: "a.go"},
		{Name: "C", Type: types.EntityFunction, FilePath: "a.go"},
	})
	require.NoError(t, err)
	idByName := map[string]string{}
	for key, id := range resolved {
		// key format: filePath\x00name\x00type\x00start
		idByName[key] = id
	}
	entities, err := s.AllEntities()
	require.NoError(t, err)
	byName := map[string]string{}
	for _, e := range entities {
		byName[e.Name] = e.ID
	}
	a, bID, c = byName["A"], byName["B"], byName["C"]

	err = s.UpsertRelationships([]types.Relationship{
		{FromID: a, ToID: bID, Type: types.RelCalls},
		{FromID: bID, ToID: c, Type: types.RelCalls},
	})
	require.NoError(t, err)
	return a, bID, c
}

func TestFindPathReturnsShortestRoute(t *testing.T) {
	e, s := newTestEngine(t)
	a, _, c := seedChain(t, s)

	path, err := e.FindPath(context.Background(), a, c, 10)
	require.NoError(t, err)
	require.NotNil(t, path)
	require.Len(t, path.EntityIDs, 3)
	require.Equal(t, a, path.EntityIDs[0])
	require.Equal(t, c, path.EntityIDs[2])
}

func TestFindPathReturnsNilWhenUnreachable(t *testing.T) {
	e, s := newTestEngine(t)
	_, err := s.UpsertEntities([]types.Entity{
		{Name: "Isolated", Type: types.EntityFunction, FilePath: "b.go"},
	})
	require.NoError(t, err)
	_, _, c := seedChain(t, s)

	entities, err := s.AllEntities()
	require.NoError(t, err)
	var isolatedID string
	for _, ent := range entities {
		if ent.Name == "Isolated" {
			isolatedID = ent.ID
		}
	}

	path, err := e.FindPath(context.Background(), isolatedID, c, 10)
	require.NoError(t, err)
	require.Nil(t, path)
}

func TestDetectCyclesFindsSimpleCycle(t *testing.T) {
	e, s := newTestEngine(t)
	a, bID, _ := seedChain(t, s)
	require.NoError(t, s.UpsertRelationships([]types.Relationship{{FromID: bID, ToID: a, Type: types.RelCalls}}))

	cycles, err := e.DetectCycles(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, cycles)
}

func TestAnalyzeHotspotsRanksByIncomingWeight(t *testing.T) {
	e, s := newTestEngine(t)
	a, bID, c := seedChain(t, s)
	require.NoError(t, s.UpsertRelationships([]types.Relationship{{FromID: c, ToID: bID, Type: types.RelCalls}}))

	hotspots, err := e.AnalyzeHotspots(context.Background(), 10)
	require.NoError(t, err)
	require.NotEmpty(t, hotspots)
	require.Equal(t, bID, hotspots[0].EntityID)
	_ = a
}

func TestGetImpactedEntitiesWalksBackward(t *testing.T) {
	e, s := newTestEngine(t)
	a, bID, c := seedChain(t, s)

	impacted, err := e.GetImpactedEntities(context.Background(), c, 5)
	require.NoError(t, err)
	ids := map[string]bool{}
	for _, im := range impacted {
		ids[im.EntityID] = true
	}
	require.True(t, ids[bID])
	require.True(t, ids[a])
}

func TestQueryCacheStoresListEntitiesResult(t *testing.T) {
	e, s := newTestEngine(t)
	_, err := s.UpsertEntities([]types.Entity{{Name: "X", Type: types.EntityFunction, FilePath: "x.go"}})
	require.NoError(t, err)

	_, err = e.ListEntities(context.Background(), store.EntityFilter{FilePath: "x.go"})
	require.NoError(t, err)

	e.cacheMu.Lock()
	_, hit := e.cache.Get("listEntities:x.go:[]:0")
	e.cacheMu.Unlock()
	require.True(t, hit)
}

func TestQueryCacheSelectivelyInvalidatesAffectedKeysOnly(t *testing.T) {
	e, s := newTestEngine(t)
	_, err := s.UpsertEntities([]types.Entity{
		{Name: "X", Type: types.EntityFunction, FilePath: "x.go"},
		{Name: "Y", Type: types.EntityFunction, FilePath: "y.go"},
	})
	require.NoError(t, err)

	_, err = e.ListEntities(context.Background(), store.EntityFilter{FilePath: "x.go"})
	require.NoError(t, err)
	_, err = e.ListEntities(context.Background(), store.EntityFilter{FilePath: "y.go"})
	require.NoError(t, err)

	e.invalidateAffected(types.BusEntry{Data: map[string]any{"filePath": "x.go", "entityIds": []string{}}})

	e.cacheMu.Lock()
	_, xHit := e.cache.Get("listEntities:x.go:[]:0")
	_, yHit := e.cache.Get("listEntities:y.go:[]:0")
	e.cacheMu.Unlock()
	require.False(t, xHit, "the query referencing the updated file must be evicted")
	require.True(t, yHit, "a query unrelated to the updated file must survive")
}
