package indexer

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"codegraph/internal/bus"
	"codegraph/internal/store"
	"codegraph/internal/types"
)

func openTestStore(t *testing.T) *store.Manager {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	m, err := store.Open(store.Options{Path: path})
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestIndexUpsertsEntitiesAndResolvesRelationships(t *testing.T) {
	s := openTestStore(t)
	b := bus.New()
	idx := New(s, b)

	startFoo, startBar := 0, 1
	in := Input{
		FilePath: "a.go",
		Entities: []types.Entity{
			{Name: "Foo", Type: types.EntityClass, FilePath: "a.go", Location: types.Location{Start: types.Position{Line: 1, Index: &startFoo}}},
			{Name: "Bar", Type: types.EntityMethod, FilePath: "a.go", Location: types.Location{Start: types.Position{Line: 2, Index: &startBar}}},
		},
		Relationships: []types.ParsedRelationship{{
			From: types.EntityRef{Name: "Foo", FilePath: "a.go", Type: types.EntityClass},
			To:   types.EntityRef{Name: "Bar", FilePath: "a.go", Type: types.EntityMethod},
			Type: types.RelHasMethod,
		}},
	}

	result, err := idx.Index(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, 2, result.EntitiesExtracted)
	require.Equal(t, 1, result.RelationshipsCreated)
	require.Equal(t, 0, result.DroppedRelationships)

	all, err := s.AllEntities()
	require.NoError(t, err)
	require.Len(t, all, 2)

	rels, err := s.AllRelationships()
	require.NoError(t, err)
	require.Len(t, rels, 1)
}

func TestIndexDropsUnresolvableRelationship(t *testing.T) {
	s := openTestStore(t)
	idx := New(s, nil)

	start := 0
	in := Input{
		FilePath: "a.go",
		Entities: []types.Entity{
			{Name: "Foo", Type: types.EntityClass, FilePath: "a.go", Location: types.Location{Start: types.Position{Line: 1, Index: &start}}},
		},
		Relationships: []types.ParsedRelationship{{
			From: types.EntityRef{Name: "Foo", FilePath: "a.go", Type: types.EntityClass},
			To:   types.EntityRef{Name: "Ghost", FilePath: "a.go", Type: types.EntityMethod},
			Type: types.RelHasMethod,
		}},
	}

	result, err := idx.Index(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, 0, result.RelationshipsCreated)
	require.Equal(t, 1, result.DroppedRelationships)
}

func TestIndexRemovesStaleEntitiesOnReindex(t *testing.T) {
	s := openTestStore(t)
	idx := New(s, nil)

	start := 0
	first := Input{
		FilePath: "a.go",
		Entities: []types.Entity{
			{Name: "Foo", Type: types.EntityClass, FilePath: "a.go", Location: types.Location{Start: types.Position{Line: 1, Index: &start}}},
		},
	}
	_, err := idx.Index(context.Background(), first)
	require.NoError(t, err)

	second := Input{
		FilePath: "a.go",
		Entities: []types.Entity{
			{Name: "Renamed", Type: types.EntityClass, FilePath: "a.go", Location: types.Location{Start: types.Position{Line: 1, Index: &start}}},
		},
	}
	result, err := idx.Index(context.Background(), second)
	require.NoError(t, err)
	require.Equal(t, 1, result.StaleRemoved)

	all, err := s.AllEntities()
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, "Renamed", all[0].Name)
}
