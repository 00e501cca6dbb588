// Package semantic implements the semantic agent (spec §4.7): embedding
// generation coordinated behind a circuit breaker, hybrid lexical+vector
// search, clone detection via single-linkage clustering, and semantic
// enrichment of the query agent's structural hotspot scores.
package semantic

import (
	"context"
	"strings"

	"codegraph/internal/bus"
	"codegraph/internal/embedding"
	"codegraph/internal/errs"
	"codegraph/internal/logging"
	"codegraph/internal/query"
	"codegraph/internal/store"
	"codegraph/internal/types"
)

// Options configures a new Engine.
type Options struct {
	Alpha          float64 // lexical/vector blend weight for hybrid search, default 0.3
	MinCloneSimilarity float64 // cosine similarity threshold for clone clustering, default 0.9
	CircuitBreaker CircuitBreakerConfig
}

// Engine coordinates embedding generation and semantic search over the
// shared vector store.
type Engine struct {
	store    *store.Manager
	query    *query.Engine
	provider embedding.Engine
	bus      *bus.Bus
	log      *logging.Logger
	breaker  *CircuitBreaker

	alpha         float64
	minCloneScore float64

	dimension int
}

// New builds a semantic Engine. provider is lazily probed for its
// dimensionality the first time Generate runs, falling back to 384 per
// spec §4.7 if the probe embedding fails.
func New(s *store.Manager, q *query.Engine, provider embedding.Engine, b *bus.Bus, opts Options) *Engine {
	if opts.Alpha <= 0 {
		opts.Alpha = 0.3
	}
	if opts.MinCloneSimilarity <= 0 {
		opts.MinCloneSimilarity = 0.9
	}
	breaker := NewCircuitBreaker(opts.CircuitBreaker)

	e := &Engine{
		store: s, query: q, provider: provider, bus: b,
		log: logging.Get(logging.Semantic), breaker: breaker,
		alpha: opts.Alpha, minCloneScore: opts.MinCloneSimilarity,
	}
	if b != nil {
		ch, _ := b.Subscribe("semantic:new_entities")
		go e.watchNewEntities(ch)
	}
	return e
}

func (e *Engine) watchNewEntities(ch <-chan types.BusEntry) {
	for entry := range ch {
		data, ok := entry.Data.(map[string]any)
		if !ok {
			continue
		}
		ents, ok := data["entities"].([]types.Entity)
		if !ok {
			continue
		}
		ctx := context.Background()
		for _, ent := range ents {
			if err := e.GenerateCodeEmbedding(ctx, ent); err != nil {
				e.log.Warn("embedding generation failed", map[string]any{"entity": ent.Name, "error": err.Error()})
			}
		}
	}
}

// embed generates one embedding through the circuit breaker, auto-detecting
// the provider's dimension on first use.
func (e *Engine) embed(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := e.breaker.Execute(ctx, func(ctx context.Context) error {
		v, err := e.provider.Generate(ctx, text)
		if err != nil {
			return err
		}
		vec = v
		return nil
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindSemanticProvider, "embedding generation", err)
	}
	if e.dimension == 0 {
		d := len(vec)
		if d == 0 {
			d = 384
		}
		e.dimension = d
		store.SetVectorDimension(d)
	}
	return vec, nil
}

// GenerateCodeEmbedding embeds one entity's signature/name and stores the
// resulting vector, keyed by entity id. A breaker-open provider never
// blocks indexing: the entity gets a zero vector tagged degraded=true so a
// later successful re-embed (e.g. on next file re-index) can replace it.
func (e *Engine) GenerateCodeEmbedding(ctx context.Context, ent types.Entity) error {
	text := embeddingText(ent)
	degraded := e.breaker.State() == types.CircuitOpen
	var vec []float32
	if degraded {
		vec = e.zeroVector()
	} else {
		v, err := e.embed(ctx, text)
		if err != nil {
			if !errs.IsKind(err, errs.KindSemanticProvider) {
				return err
			}
			degraded = true
			vec = e.zeroVector()
		} else {
			vec = v
		}
	}
	meta := map[string]any{"entityId": ent.ID, "name": ent.Name, "type": string(ent.Type), "filePath": ent.FilePath}
	if degraded {
		meta["degraded"] = true
	}
	return e.store.UpsertVector(types.Vector{ID: ent.ID, Content: text, Embedding: vec, Metadata: meta})
}

// zeroVector returns the fallback embedding used when the circuit breaker
// is open, sized to the detected dimension (or 384 before any probe has run).
func (e *Engine) zeroVector() []float32 {
	d := e.dimension
	if d == 0 {
		d = 384
	}
	return make([]float32, d)
}

func errNotFound(entityID string) error {
	return errs.New(errs.KindInvalidInput, "entity not found: "+entityID)
}

func embeddingText(ent types.Entity) string {
	sig, _ := ent.Metadata["signature"].(string)
	parts := []string{string(ent.Type), ent.Name, ent.FilePath}
	if sig != "" {
		parts = append(parts, sig)
	}
	return strings.Join(parts, " ")
}

// SearchResult wraps a semantic search's hits with the degraded flag spec
// §4.7 requires: when the circuit breaker is open the caller gets an empty,
// non-erroring result instead of a propagated provider failure.
type SearchResult struct {
	Hits     []store.ScoredVector
	Degraded bool
}

// SemanticSearch embeds query and returns the topK nearest stored vectors.
// When the breaker is OPEN the call short-circuits to an empty, degraded
// result without ever invoking the embedding provider (spec §4.7, §8).
func (e *Engine) SemanticSearch(ctx context.Context, queryText string, topK int) (SearchResult, error) {
	if topK <= 0 {
		topK = 10
	}
	if e.breaker.State() == types.CircuitOpen {
		return SearchResult{Degraded: true}, nil
	}
	vec, err := e.embed(ctx, queryText)
	if err != nil {
		if errs.IsKind(err, errs.KindSemanticProvider) {
			return SearchResult{Degraded: true}, nil
		}
		return SearchResult{}, err
	}
	hits, err := e.store.VectorSearch(vec, topK)
	if err != nil {
		return SearchResult{}, err
	}
	return SearchResult{Hits: hits}, nil
}

// FindSimilarCode finds entities whose embedding is closest to entityID's.
func (e *Engine) FindSimilarCode(ctx context.Context, entityID string, topK int) ([]store.ScoredVector, error) {
	if topK <= 0 {
		topK = 10
	}
	all, err := e.store.AllVectorsForClustering()
	if err != nil {
		return nil, err
	}
	var self *types.Vector
	for i := range all {
		if all[i].ID == entityID {
			self = &all[i]
			break
		}
	}
	if self == nil {
		return nil, errs.New(errs.KindInvalidInput, "no embedding stored for entity: "+entityID)
	}
	hits, err := e.store.VectorSearch(self.Embedding, topK+1)
	if err != nil {
		return nil, err
	}
	out := make([]store.ScoredVector, 0, topK)
	for _, h := range hits {
		if h.ID == entityID {
			continue
		}
		out = append(out, h)
		if len(out) == topK {
			break
		}
	}
	return out, nil
}
