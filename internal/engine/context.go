package engine

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/hollowshell/mnemo/internal/store"
	"github.com/hollowshell/mnemo/internal/token"
)

// Retrieval modes.
const (
	ModeKeyword  = "keyword"
	ModeWeighted = "weighted"
	ModeHybrid   = "hybrid"
)

// ContextRequest asks for the memory block for one conversational turn.
type ContextRequest struct {
	Query string
	Actor string
	Limit int
	Mode  string
	Debug bool

	// Position is the agent's current location, enabling nearby injection.
	Position *store.Location
}

// ContextResult is the prompt-ready block plus the entry ids it used, for
// later feedback correlation.
type ContextResult struct {
	Text  string   `json:"text"`
	Refs  []string `json:"refs"`
	Trace []Trace  `json:"trace,omitempty"`
}

// Trace is the per-entry signal breakdown returned in debug mode.
type Trace struct {
	ID         string  `json:"id"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
	Lexical    float64 `json:"lexical,omitempty"`
	Relevance  float64 `json:"relevance,omitempty"`
	Recency    float64 `json:"recency,omitempty"`
	Importance float64 `json:"importance,omitempty"`
	Dense      float64 `json:"dense,omitempty"`
	RRF        float64 `json:"rrf,omitempty"`
	Injected   bool    `json:"injected,omitempty"`
}

// locationWords flag a query as being about a place.
var locationWords = []string{
	"where", "location", "coord", "place", "here",
	"哪里", "哪儿", "在哪", "坐标", "这里", "地方", "位置",
}

func isLocationQuery(query string) bool {
	q := strings.ToLower(query)
	for _, w := range locationWords {
		if strings.Contains(q, w) {
			return true
		}
	}
	return false
}

// BuildContext ranks the entries visible to the actor, injects nearby
// location-anchored entries, deduplicates and truncates, and renders the
// memory block.
func (e *Engine) BuildContext(req ContextRequest) ContextResult {
	limit := req.Limit
	if limit <= 0 {
		limit = e.cfg.Retrieval.Limit
	}
	mode := req.Mode
	if mode == "" {
		mode = e.cfg.Retrieval.Mode
	}

	entries := e.Store.Snapshot(req.Actor)
	tokens := token.Tokenize(req.Query)
	locQuery := isLocationQuery(req.Query)

	var cands []candidate
	switch mode {
	case ModeKeyword:
		cands = e.keywordMode(entries, tokens, locQuery, limit)
	case ModeHybrid:
		cands = e.hybridMode(entries, tokens, req.Query)
	default:
		cands = e.weightedMode(entries, tokens)
	}

	cands = append(cands, e.nearbyCandidates(entries, req.Position, locQuery, idSet(cands))...)
	cands = e.dedup(cands)
	if len(cands) > limit {
		cands = cands[:limit]
	}

	res := ContextResult{Text: renderBlock(cands)}
	for _, c := range cands {
		res.Refs = append(res.Refs, c.entry.ID)
	}
	if req.Debug {
		for _, c := range cands {
			res.Trace = append(res.Trace, Trace{
				ID:         c.entry.ID,
				Text:       c.entry.Text,
				Score:      c.score,
				Lexical:    c.lexical,
				Relevance:  c.relevance,
				Recency:    c.recency,
				Importance: c.importance,
				Dense:      c.dense,
				RRF:        c.rrf,
				Injected:   c.injected,
			})
		}
	}
	return res
}

func idSet(cands []candidate) map[string]bool {
	set := make(map[string]bool, len(cands))
	for _, c := range cands {
		set[c.entry.ID] = true
	}
	return set
}

// nearbyCandidates injects location-anchored entries around the agent:
// always within the small radius, and out to the larger one when the query
// is about a place. Dimension mismatches are skipped.
func (e *Engine) nearbyCandidates(entries []store.MemoryEntry, pos *store.Location, locQuery bool, skip map[string]bool) []candidate {
	if pos == nil {
		return nil
	}
	r := e.cfg.Retrieval
	radius := r.AlwaysRadius
	if locQuery {
		radius = r.NearRadius
	}

	type near struct {
		c    candidate
		dist float64
	}
	var found []near
	for i := range entries {
		entry := &entries[i]
		loc := entry.Location
		if loc == nil || skip[entry.ID] {
			continue
		}
		if loc.Dim != "" && pos.Dim != "" && loc.Dim != pos.Dim {
			continue
		}
		dist := math.Hypot(loc.X-pos.X, loc.Z-pos.Z)
		reach := radius
		if loc.Radius > reach {
			reach = loc.Radius
		}
		if dist > reach {
			continue
		}
		found = append(found, near{c: candidate{entry: *entry, injected: true}, dist: dist})
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].dist < found[j].dist })
	if r.NearMax > 0 && len(found) > r.NearMax {
		found = found[:r.NearMax]
	}
	out := make([]candidate, len(found))
	for i, n := range found {
		out[i] = n.c
	}
	return out
}

// dedup collapses entries sharing a location key, or, absent a location, the
// same truncated normalized summary. The first (highest-ranked) survives.
func (e *Engine) dedup(cands []candidate) []candidate {
	seen := make(map[string]bool, len(cands))
	out := cands[:0]
	for _, c := range cands {
		key := e.dedupKey(&c.entry)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}

func (e *Engine) dedupKey(entry *store.MemoryEntry) string {
	if entry.Location != nil {
		return "loc:" + entry.Location.Key()
	}
	text := entry.Summary
	if text == "" {
		text = entry.Text
	}
	key := strings.ToLower(store.NormalizeText(text))
	runes := []rune(key)
	if n := e.cfg.Retrieval.SummaryKeyLen; n > 0 && len(runes) > n {
		key = string(runes[:n])
	}
	return "sum:" + key
}

// renderBlock formats ranked entries as the prompt-ready memory block.
func renderBlock(cands []candidate) string {
	if len(cands) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Things you remember:\n")
	for _, c := range cands {
		b.WriteString("- ")
		b.WriteString(c.entry.Text)
		if loc := c.entry.Location; loc != nil {
			fmt.Fprintf(&b, " (at %d, %d", int(math.Round(loc.X)), int(math.Round(loc.Z)))
			if loc.Dim != "" {
				b.WriteString(" in " + loc.Dim)
			}
			b.WriteString(")")
		}
		b.WriteByte('\n')
	}
	return strings.TrimSpace(b.String())
}
