package engine

import (
	"sort"

	"github.com/hollowshell/mnemo/internal/store"
)

// hybridMode fuses a lexical ranking and a dense (embedding cosine) ranking
// with reciprocal rank fusion, then feeds the combined relevance through the
// same recency/importance blend and cutoffs as weighted mode. When the query
// embeds to nothing the mode degrades to lexical-only.
func (e *Engine) hybridMode(entries []store.MemoryEntry, tokens []string, query string) []candidate {
	queryVec := e.queryVector(query)
	if queryVec == nil {
		return e.weightedMode(entries, tokens)
	}

	r := e.cfg.Retrieval
	nowMs := e.nowMilli()

	// Lexical channel: raw token score, ranked descending.
	var lexical []*candidate
	byID := make(map[string]*candidate, len(entries))
	for i := range entries {
		entry := &entries[i]
		c := &candidate{entry: *entry}
		byID[entry.ID] = c
		if len(tokens) == 0 {
			continue
		}
		lex, trigger := lexicalScore(buildHaystack(entry), tokens)
		if lex <= 0 {
			continue
		}
		c.lexical = lex
		c.triggerHit = trigger
		lexical = append(lexical, c)
	}
	sort.SliceStable(lexical, func(i, j int) bool { return lexical[i].lexical > lexical[j].lexical })
	lexical = topK(lexical, r.SparseK)

	// Dense channel: cosine similarity against cached entry vectors.
	var dense []*candidate
	for i := range entries {
		entry := &entries[i]
		vec := e.entryVector(entry)
		if vec == nil {
			continue
		}
		sim := CosineSimilarity(queryVec, vec)
		if sim < r.MinDenseSimilarity {
			continue
		}
		c := byID[entry.ID]
		c.dense = sim
		dense = append(dense, c)
	}
	sort.SliceStable(dense, func(i, j int) bool { return dense[i].dense > dense[j].dense })
	dense = topK(dense, r.DenseK)

	// Reciprocal rank fusion over whichever lists contain each entry.
	fused := make(map[string]*candidate)
	for rank, c := range lexical {
		c.rrf += 1 / (r.RRFK + float64(rank+1))
		fused[c.entry.ID] = c
	}
	for rank, c := range dense {
		c.rrf += 1 / (r.RRFK + float64(rank+1))
		fused[c.entry.ID] = c
	}

	var out []candidate
	for _, c := range fused {
		lexRel := e.relevanceOf(c.lexical)
		if c.dense > 0 {
			wl, wd := r.LexicalWeight, r.DenseWeight
			if wl+wd <= 0 {
				wl, wd = 1, 1
			}
			c.relevance = (wl*lexRel + wd*c.dense) / (wl + wd)
		} else {
			c.relevance = lexRel
		}
		c.recency = e.recencyOf(&c.entry, nowMs)
		c.importance = e.importanceOf(&c.entry)
		c.score = e.blend(c.relevance, c.recency, c.importance)
		if c.score < r.MinScore || c.relevance < r.MinRelevance {
			continue
		}
		out = append(out, *c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].rrf > out[j].rrf
	})
	return out
}

func topK(list []*candidate, k int) []*candidate {
	if k > 0 && len(list) > k {
		return list[:k]
	}
	return list
}
