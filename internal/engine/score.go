package engine

import (
	"math"
	"sort"

	"github.com/hollowshell/mnemo/internal/store"
)

// relevanceOf squashes a raw lexical score into [0,1].
func (e *Engine) relevanceOf(raw float64) float64 {
	scale := e.cfg.Retrieval.RelevanceScale
	if scale <= 0 {
		scale = 18
	}
	return 1 - math.Exp(-raw/scale)
}

// recencyOf is half-life decay over the entry's last activity.
func (e *Engine) recencyOf(entry *store.MemoryEntry, nowMs int64) float64 {
	half := e.cfg.Retrieval.RecencyHalfLife.Milliseconds()
	if half <= 0 {
		return 0
	}
	age := float64(nowMs - entry.LastActivity())
	if age < 0 {
		age = 0
	}
	return math.Exp(-math.Ln2 * age / float64(half))
}

// importanceOf blends reinforcement count (saturating) with average feedback.
func (e *Engine) importanceOf(entry *store.MemoryEntry) float64 {
	sat := e.cfg.Retrieval.ImportanceSaturation
	if sat <= 0 {
		sat = 20
	}
	countPart := clamp(math.Log1p(float64(entry.Count))/math.Log1p(sat), 0, 1)
	scorePart := clamp((entry.Effectiveness.AverageScore+1)/2, 0, 1)
	return 0.8*countPart + 0.2*scorePart
}

// blend combines the three signals with weights normalized to sum to 1.
func (e *Engine) blend(relevance, recency, importance float64) float64 {
	r := e.cfg.Retrieval
	total := r.RelevanceWeight + r.RecencyWeight + r.ImportanceWeight
	if total <= 0 {
		return relevance
	}
	return (r.RelevanceWeight*relevance + r.RecencyWeight*recency + r.ImportanceWeight*importance) / total
}

// weightedMode scores candidates on relevance, recency and importance, each
// in [0,1]. Entries below either cutoff are dropped; a query with no usable
// tokens returns nothing rather than injecting recency-only noise.
func (e *Engine) weightedMode(entries []store.MemoryEntry, tokens []string) []candidate {
	if len(tokens) == 0 {
		return nil
	}
	nowMs := e.nowMilli()
	var out []candidate
	for i := range entries {
		entry := &entries[i]
		lex, trigger := lexicalScore(buildHaystack(entry), tokens)
		c := candidate{
			entry:      *entry,
			lexical:    lex,
			triggerHit: trigger,
			relevance:  e.relevanceOf(lex),
			recency:    e.recencyOf(entry, nowMs),
			importance: e.importanceOf(entry),
		}
		c.score = e.blend(c.relevance, c.recency, c.importance)
		if c.score < e.cfg.Retrieval.MinScore || c.relevance < e.cfg.Retrieval.MinRelevance {
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].score > out[j].score })
	return out
}
