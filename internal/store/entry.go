package store

import (
	"fmt"
	"math"
	"strings"
)

// Scope controls who can see an entry.
const (
	ScopeGlobal = "global"
	ScopePlayer = "player"
)

// Count bounds for reinforcement weight.
const (
	MinCount = 1
	MaxCount = 100
)

// Location is an optional spatial anchor for an entry.
type Location struct {
	X      float64 `json:"x"`
	Z      float64 `json:"z"`
	Y      float64 `json:"y,omitempty"`
	Radius float64 `json:"radius,omitempty"`
	Dim    string  `json:"dim,omitempty"`
}

// Key identifies a location for dedup purposes: rounded coordinates plus
// dimension. Entries sharing a key are treated as the same place.
func (l *Location) Key() string {
	if l == nil {
		return ""
	}
	return fmt.Sprintf("%s:%d,%d", l.Dim, int(math.Round(l.X)), int(math.Round(l.Z)))
}

// Effectiveness tracks how an entry has performed when injected into prompts.
type Effectiveness struct {
	TimesUsed            int     `json:"timesUsed"`
	TimesHelpful         int     `json:"timesHelpful"`
	TimesUnhelpful       int     `json:"timesUnhelpful"`
	AverageScore         float64 `json:"averageScore"`
	LastPositiveFeedback int64   `json:"lastPositiveFeedback,omitempty"`
	LastNegativeFeedback int64   `json:"lastNegativeFeedback,omitempty"`
}

// DecayInfo records decay bookkeeping for an entry.
type DecayInfo struct {
	LastDecayAt int64 `json:"lastDecayAt,omitempty"`
	Protected   bool  `json:"protected,omitempty"`
}

// MemoryEntry is the unit of recall.
type MemoryEntry struct {
	ID       string    `json:"id"`
	Text     string    `json:"text"`
	Summary  string    `json:"summary,omitempty"`
	Tags     []string  `json:"tags,omitempty"`
	Triggers []string  `json:"triggers,omitempty"`
	Location *Location `json:"location,omitempty"`

	Scope  string   `json:"scope"`
	Owners []string `json:"owners,omitempty"`
	Author string   `json:"author,omitempty"`
	Source string   `json:"source,omitempty"`

	Count     int   `json:"count"`
	CreatedAt int64 `json:"createdAt"`
	UpdatedAt int64 `json:"updatedAt"`

	Effectiveness Effectiveness `json:"effectiveness"`
	DecayInfo     DecayInfo     `json:"decayInfo"`

	DisabledAt     int64  `json:"disabledAt,omitempty"`
	DisabledReason string `json:"disabledReason,omitempty"`
	DisabledBy     string `json:"disabledBy,omitempty"`
}

// Disabled reports whether the entry has been soft-deleted.
func (e *MemoryEntry) Disabled() bool { return e.DisabledAt != 0 }

// Revision is the timestamp a cached vector must match to be trusted.
func (e *MemoryEntry) Revision() int64 { return e.UpdatedAt }

// LastActivity is the reference timestamp for recency and decay: the latest
// of updatedAt, createdAt and lastPositiveFeedback.
func (e *MemoryEntry) LastActivity() int64 {
	ts := e.UpdatedAt
	if e.CreatedAt > ts {
		ts = e.CreatedAt
	}
	if e.Effectiveness.LastPositiveFeedback > ts {
		ts = e.Effectiveness.LastPositiveFeedback
	}
	return ts
}

// entryRecord is the persisted shape. It carries every historical field-name
// variant so old files load cleanly; normalize() maps it onto MemoryEntry
// exactly once, at read time.
type entryRecord struct {
	MemoryEntry

	// Legacy variants.
	Instruction string   `json:"instruction,omitempty"`
	Content     string   `json:"content,omitempty"`
	Owner       string   `json:"owner,omitempty"`
	CreatedBy   string   `json:"createdBy,omitempty"`
	Timestamp   int64    `json:"timestamp,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
}

// normalize coerces a loaded record onto the canonical MemoryEntry shape.
// Malformed values are clamped to the nearest valid state, never rejected.
func (r *entryRecord) normalize() MemoryEntry {
	e := r.MemoryEntry

	if e.Text == "" {
		if r.Instruction != "" {
			e.Text = r.Instruction
		} else {
			e.Text = r.Content
		}
	}
	e.Text = NormalizeText(e.Text)

	if e.Author == "" {
		e.Author = r.CreatedBy
	}
	if len(e.Owners) == 0 && r.Owner != "" {
		e.Owners = []string{r.Owner}
	}
	e.Owners = uniqueStrings(e.Owners)
	if len(e.Tags) == 0 && len(r.Keywords) > 0 {
		e.Tags = r.Keywords
	}
	e.Tags = uniqueStrings(e.Tags)
	e.Triggers = uniqueStrings(e.Triggers)

	switch e.Scope {
	case ScopeGlobal, ScopePlayer:
	default:
		if len(e.Owners) > 0 {
			e.Scope = ScopePlayer
		} else {
			e.Scope = ScopeGlobal
		}
	}
	if e.Scope == ScopeGlobal {
		e.Owners = nil
	}

	e.Count = clampCount(e.Count)
	if e.CreatedAt == 0 {
		e.CreatedAt = r.Timestamp
	}
	if e.UpdatedAt == 0 {
		e.UpdatedAt = e.CreatedAt
	}
	e.Effectiveness.AverageScore = clamp(e.Effectiveness.AverageScore, -1, 1)
	return e
}

// NormalizeText canonicalizes entry text: trimmed, single-spaced.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// TextKey is the dedup key for an entry's text.
func TextKey(s string) string {
	return strings.ToLower(NormalizeText(s))
}

func clampCount(c int) int {
	if c < MinCount {
		return MinCount
	}
	if c > MaxCount {
		return MaxCount
	}
	return c
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

func uniqueStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
