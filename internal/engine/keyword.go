package engine

import (
	"math"
	"sort"
	"strings"

	"github.com/hollowshell/mnemo/internal/store"
	"github.com/hollowshell/mnemo/internal/token"
)

// candidate carries one entry through scoring. Signal fields are filled by
// whichever mode is active; unused ones stay zero.
type candidate struct {
	entry store.MemoryEntry

	score      float64
	lexical    float64 // raw token-match score
	relevance  float64
	recency    float64
	importance float64
	dense      float64 // cosine similarity, hybrid mode
	rrf        float64
	triggerHit bool
	injected   bool
}

// haystack precomputes the lowercased match surfaces for one entry.
type haystack struct {
	triggers []string
	tags     []string
	body     string
}

func buildHaystack(entry *store.MemoryEntry) haystack {
	h := haystack{
		triggers: make([]string, len(entry.Triggers)),
		tags:     make([]string, len(entry.Tags)),
	}
	for i, t := range entry.Triggers {
		h.triggers[i] = strings.ToLower(t)
	}
	for i, t := range entry.Tags {
		h.tags[i] = strings.ToLower(t)
	}
	h.body = strings.ToLower(entry.Summary + " " + entry.Text + " " + entry.Source)
	return h
}

func matchAny(fields []string, tok string) bool {
	for _, f := range fields {
		if strings.Contains(f, tok) || strings.Contains(tok, f) {
			return true
		}
	}
	return false
}

// lexicalScore runs the query tokens against the entry's haystacks in
// priority order: triggers x4, tags x2, body x1. Each token counts once, at
// the first tier it matches, scaled by its length weight.
func lexicalScore(h haystack, tokens []string) (score float64, triggerHit bool) {
	for _, tok := range tokens {
		w := token.Weight(tok)
		switch {
		case matchAny(h.triggers, tok):
			score += 4 * w
			triggerHit = true
		case matchAny(h.tags, tok):
			score += 2 * w
		case strings.Contains(h.body, tok):
			score += w
		}
	}
	return score, triggerHit
}

// keywordMode is the original additive scoring: token matches plus count,
// effectiveness, location and trigger boosts, with a timestamp tiebreak.
// When nothing matches it falls back to the most recently updated entries.
func (e *Engine) keywordMode(entries []store.MemoryEntry, tokens []string, locQuery bool, limit int) []candidate {
	var out []candidate
	for i := range entries {
		entry := &entries[i]
		lex, trigger := lexicalScore(buildHaystack(entry), tokens)
		if lex <= 0 {
			continue
		}
		c := candidate{entry: *entry, lexical: lex, triggerHit: trigger}
		c.score = lex
		c.score += math.Min(math.Log1p(float64(entry.Count))/2, 1.5)
		c.score += clamp(entry.Effectiveness.AverageScore, -1, 1) * 0.25
		if locQuery && entry.Location != nil {
			c.score += 0.6
		}
		if trigger {
			c.score += 0.4
		}
		// Vanishing recency tiebreak keeps ordering deterministic.
		c.score += float64(entry.UpdatedAt) / 1e15
		out = append(out, c)
	}

	if len(out) == 0 {
		for _, entry := range recentOf(entries, limit) {
			out = append(out, candidate{entry: entry})
		}
		return out
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].score > out[j].score })
	return out
}

func recentOf(entries []store.MemoryEntry, limit int) []store.MemoryEntry {
	sorted := make([]store.MemoryEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].UpdatedAt > sorted[j].UpdatedAt })
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
