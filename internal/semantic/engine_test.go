package semantic

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"codegraph/internal/bus"
	"codegraph/internal/embedding"
	"codegraph/internal/query"
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
	q := query.New(s, b, query.Options{})
	t.Cleanup(q.Stop)

	provider := embedding.NewMemoryEngine(32)
	e := New(s, q, provider, b, Options{})
	return e, s
}

func TestGenerateCodeEmbeddingIsDeterministic(t *testing.T) {
	e, s := newTestEngine(t)
	ent := types.Entity{ID: "e1", Name: "Foo", Type: types.EntityFunction, FilePath: "a.go"}
	require.NoError(t, e.GenerateCodeEmbedding(context.Background(), ent))

	vecs, err := s.AllVectorsForClustering()
	require.NoError(t, err)
	require.Len(t, vecs, 1)
	require.Equal(t, "e1", vecs[0].ID)
}

func TestFindSimilarCodeExcludesSelf(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	require.NoError(t, e.GenerateCodeEmbedding(ctx, types.Entity{ID: "e1", Name: "Foo", Type: types.EntityFunction, FilePath: "a.go"}))
	require.NoError(t, e.GenerateCodeEmbedding(ctx, types.Entity{ID: "e2", Name: "Foo", Type: types.EntityFunction, FilePath: "b.go"}))

	hits, err := e.FindSimilarCode(ctx, "e1", 5)
	require.NoError(t, err)
	for _, h := range hits {
		require.NotEqual(t, "e1", h.ID)
	}
}

func TestDetectClonesGroupsNearIdenticalEmbeddings(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	// Same embedding text (name+type+filePath share nothing but signature)
	// produces cosine similarity 1.0 for the memory provider since the
	// deterministic hash is a pure function of embeddingText's output.
	same := types.Entity{Name: "DuplicatedLogic", Type: types.EntityFunction, FilePath: "a.go", Metadata: map[string]any{"signature": "func()"}}
	same2 := same
	same2.FilePath = "b.go"
	same.ID, same2.ID = "dup1", "dup2"
	same.FilePath, same2.FilePath = "x.go", "x.go" // force identical embeddingText

	require.NoError(t, e.GenerateCodeEmbedding(ctx, same))
	require.NoError(t, e.GenerateCodeEmbedding(ctx, same2))

	groups, err := e.DetectClones(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.ElementsMatch(t, []string{"dup1", "dup2"}, groups[0].EntityIDs)
}

func TestHybridSearchBlendsLexicalAndVectorScores(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	_, err := s.UpsertEntities([]types.Entity{{Name: "ParseConfig", Type: types.EntityFunction, FilePath: "a.go"}})
	require.NoError(t, err)
	entities, err := s.AllEntities()
	require.NoError(t, err)
	require.NoError(t, e.GenerateCodeEmbedding(ctx, entities[0]))

	results, err := e.HybridSearch(ctx, "ParseConfig", 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	require.Equal(t, entities[0].ID, results[0].EntityID)
}
