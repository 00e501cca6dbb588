package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"codegraph/internal/types"
)

func openTestStore(t *testing.T) *Manager {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	m, err := Open(Options{Path: path})
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestUpsertEntitiesDedupesWithinBatch(t *testing.T) {
	m := openTestStore(t)
	idx := 0
	e := types.Entity{Name: "Foo", Type: types.EntityClass, FilePath: "a.go", Location: types.Location{Start: types.Position{Line: 1, Index: &idx}}}

	resolved, err := m.UpsertEntities([]types.Entity{e, e})
	require.NoError(t, err)
	require.Len(t, resolved, 1)

	all, err := m.AllEntities()
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestReindexSameContentKeepsSameID(t *testing.T) {
	m := openTestStore(t)
	idx := 0
	e := types.Entity{Name: "Foo", Type: types.EntityClass, FilePath: "a.go", Location: types.Location{Start: types.Position{Line: 1, Index: &idx}}}

	resolved1, err := m.UpsertEntities([]types.Entity{e})
	require.NoError(t, err)
	var id1 string
	for _, v := range resolved1 {
		id1 = v
	}

	resolved2, err := m.UpsertEntities([]types.Entity{e})
	require.NoError(t, err)
	var id2 string
	for _, v := range resolved2 {
		id2 = v
	}

	require.Equal(t, id1, id2)
}

func TestUpsertRelationshipsFailsOnMissingEntity(t *testing.T) {
	m := openTestStore(t)
	err := m.UpsertRelationships([]types.Relationship{{FromID: "missing-a", ToID: "missing-b", Type: types.RelCalls}})
	require.Error(t, err)
}

func TestUpsertRelationshipsSucceedsWhenEndpointsExist(t *testing.T) {
	m := openTestStore(t)
	idxA, idxB := 0, 10
	resolved, err := m.UpsertEntities([]types.Entity{
		{Name: "A", Type: types.EntityFunction, FilePath: "a.go", Location: types.Location{Start: types.Position{Index: &idxA}}},
		{Name: "B", Type: types.EntityFunction, FilePath: "a.go", Location: types.Location{Start: types.Position{Index: &idxB}}},
	})
	require.NoError(t, err)
	ids := make([]string, 0, 2)
	for _, id := range resolved {
		ids = append(ids, id)
	}
	require.NoError(t, m.UpsertRelationships([]types.Relationship{{FromID: ids[0], ToID: ids[1], Type: types.RelCalls}}))

	rels, err := m.GetRelationships(ids[0], nil)
	require.NoError(t, err)
	require.Len(t, rels, 1)
}

func TestVectorSearchBruteForceRanksByCosineSimilarity(t *testing.T) {
	m := openTestStore(t)
	require.NoError(t, m.UpsertVectorBatch([]types.Vector{
		{ID: "ent:a", Content: "alpha", Embedding: []float32{1, 0, 0}},
		{ID: "ent:b", Content: "beta", Embedding: []float32{0, 1, 0}},
	}))

	hits, err := m.vectorSearchBruteForce([]float32{1, 0, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	require.Equal(t, "ent:a", hits[0].ID)
}

func TestDeleteStaleEntitiesRemovesUnmatchedHashes(t *testing.T) {
	m := openTestStore(t)
	idx := 0
	e := types.Entity{Name: "Foo", Type: types.EntityClass, FilePath: "a.go", Location: types.Location{Start: types.Position{Index: &idx}}}
	resolved, err := m.UpsertEntities([]types.Entity{e})
	require.NoError(t, err)
	var id string
	for _, v := range resolved {
		id = v
	}
	_ = id

	deleted, err := m.DeleteStaleEntities("a.go", map[string]bool{})
	require.NoError(t, err)
	require.Equal(t, 1, deleted)

	all, err := m.AllEntities()
	require.NoError(t, err)
	require.Len(t, all, 0)
}
