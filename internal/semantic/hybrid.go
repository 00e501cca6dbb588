package semantic

import (
	"context"
	"sort"
	"strings"
)

// HybridResult is one hybrid-search hit, carrying both component scores
// alongside the blended one for callers that want to explain a ranking.
type HybridResult struct {
	EntityID      string  `json:"entityId"`
	Name          string  `json:"name"`
	LexicalScore  float64 `json:"lexicalScore"`
	VectorScore   float64 `json:"vectorScore"`
	Score         float64 `json:"score"`
}

// HybridSearch blends a simple lexical name/signature match score with
// vector similarity: score = alpha*lexical + (1-alpha)*vector, per spec
// §4.7. Results are deduplicated by entity id: an entity surfaced by both
// searches yields one result carrying both component scores.
func (e *Engine) HybridSearch(ctx context.Context, queryText string, topK int) ([]HybridResult, error) {
	if topK <= 0 {
		topK = 10
	}

	lexical := e.lexicalSearch(queryText, topK*2)

	vec, err := e.embed(ctx, queryText)
	if err != nil {
		return nil, err
	}
	vectorHits, err := e.store.VectorSearch(vec, topK*2)
	if err != nil {
		return nil, err
	}

	merged := make(map[string]*HybridResult)
	for _, l := range lexical {
		merged[l.EntityID] = &HybridResult{EntityID: l.EntityID, Name: l.Name, LexicalScore: l.Score}
	}
	for _, v := range vectorHits {
		entityID, _ := v.Metadata["entityId"].(string)
		if entityID == "" {
			entityID = v.ID
		}
		name, _ := v.Metadata["name"].(string)
		if r, ok := merged[entityID]; ok {
			r.VectorScore = v.Score
		} else {
			merged[entityID] = &HybridResult{EntityID: entityID, Name: name, VectorScore: v.Score}
		}
	}

	out := make([]HybridResult, 0, len(merged))
	for _, r := range merged {
		r.Score = e.alpha*r.LexicalScore + (1-e.alpha)*r.VectorScore
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].EntityID < out[j].EntityID
	})
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

type lexicalHit struct {
	EntityID string
	Name     string
	Score    float64
}

// lexicalSearch scores every entity by term-overlap between queryText and
// the entity's name/signature, normalized to [0,1] by the query's term
// count. This is deliberately simple: a real text index is out of scope
// for a code-graph store whose lexical signal is mostly identifier names.
func (e *Engine) lexicalSearch(queryText string, limit int) []lexicalHit {
	terms := tokenize(queryText)
	if len(terms) == 0 {
		return nil
	}
	entities, err := e.store.AllEntities()
	if err != nil {
		return nil
	}

	var hits []lexicalHit
	for _, ent := range entities {
		sig, _ := ent.Metadata["signature"].(string)
		haystack := tokenize(ent.Name + " " + sig)
		if len(haystack) == 0 {
			continue
		}
		hset := make(map[string]bool, len(haystack))
		for _, h := range haystack {
			hset[h] = true
		}
		matches := 0
		for _, t := range terms {
			if hset[t] {
				matches++
			}
		}
		if matches == 0 {
			continue
		}
		score := float64(matches) / float64(len(terms))
		hits = append(hits, lexicalHit{EntityID: ent.ID, Name: ent.Name, Score: score})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
	out := fields[:0]
	for _, f := range fields {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// CrossLanguageSearch runs a hybrid search and filters results to entities
// whose stored language metadata differs from excludeLanguage, surfacing
// equivalent concepts implemented in other languages.
func (e *Engine) CrossLanguageSearch(ctx context.Context, queryText, excludeLanguage string, topK int) ([]HybridResult, error) {
	results, err := e.HybridSearch(ctx, queryText, topK*3)
	if err != nil {
		return nil, err
	}
	out := make([]HybridResult, 0, topK)
	for _, r := range results {
		ent, err := e.store.GetEntity(r.EntityID)
		if err != nil || ent == nil {
			continue
		}
		if excludeLanguage != "" && ent.Language == excludeLanguage {
			continue
		}
		out = append(out, r)
		if len(out) == topK {
			break
		}
	}
	return out, nil
}
