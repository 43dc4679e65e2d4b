package store

import (
	"sort"

	"github.com/google/uuid"
)

// Dialogue tiers, from finest to coarsest. Raw entries age into hour buckets,
// hour into day, day into week, week into month. Month entries are terminal.
const (
	TierRaw   = "raw"
	TierHour  = "hour"
	TierDay   = "day"
	TierWeek  = "week"
	TierMonth = "month"
)

// Bucket describes the time window an aggregate covers.
type Bucket struct {
	Kind  string `json:"kind"`
	Start int64  `json:"start"`
	End   int64  `json:"end"`
}

// DialogueEntry is one conversation summary at some tier.
type DialogueEntry struct {
	ID           string   `json:"id"`
	Tier         string   `json:"tier"`
	Participants []string `json:"participants,omitempty"`
	Summary      string   `json:"summary"`
	StartedAt    int64    `json:"startedAt"`
	EndedAt      int64    `json:"endedAt"`

	Bucket      *Bucket `json:"bucket,omitempty"`
	SourceTier  string  `json:"sourceTier,omitempty"`
	SourceCount int     `json:"sourceCount,omitempty"`
}

func (s *Store) saveDialogues() { saveJSON(s.path(dialoguesFile), s.dialogues) }

// AddDialogue records a raw conversation summary. Zero timestamps are coerced
// to now; an epoch-zero entry would land in a 1970 bucket and be pruned on the
// first aggregation sweep.
func (s *Store) AddDialogue(participants []string, summary string, startedAt, endedAt int64) *DialogueEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if endedAt <= 0 {
		endedAt = s.nowMilli()
	}
	if startedAt <= 0 || startedAt > endedAt {
		startedAt = endedAt
	}
	d := &DialogueEntry{
		ID:           uuid.NewString(),
		Tier:         TierRaw,
		Participants: uniqueStrings(participants),
		Summary:      summary,
		StartedAt:    startedAt,
		EndedAt:      endedAt,
	}
	s.dialogues = append(s.dialogues, d)
	s.saveDialogues()
	return d
}

// DialoguesByTier returns copies of all entries at tier, oldest first.
func (s *Store) DialoguesByTier(tier string) []DialogueEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []DialogueEntry
	for _, d := range s.dialogues {
		if d.Tier == tier {
			out = append(out, *d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].EndedAt < out[j].EndedAt })
	return out
}

// RecentDialogues returns the limit most recent entries across all tiers.
func (s *Store) RecentDialogues(limit int) []DialogueEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]DialogueEntry, 0, len(s.dialogues))
	for _, d := range s.dialogues {
		out = append(out, *d)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].EndedAt > out[j].EndedAt })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// ReplaceDialogues removes the consumed source entries and inserts the
// aggregate that summarizes them, in one step.
func (s *Store) ReplaceDialogues(consumedIDs []string, aggregate *DialogueEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if aggregate.ID == "" {
		aggregate.ID = uuid.NewString()
	}
	drop := make(map[string]bool, len(consumedIDs))
	for _, id := range consumedIDs {
		drop[id] = true
	}
	kept := s.dialogues[:0]
	for _, d := range s.dialogues {
		if !drop[d.ID] {
			kept = append(kept, d)
		}
	}
	s.dialogues = append(kept, aggregate)
	s.saveDialogues()
}

// PruneDialoguesBefore drops every entry that ended before cutoff.
// Returns the number removed.
func (s *Store) PruneDialoguesBefore(cutoff int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.dialogues[:0]
	removed := 0
	for _, d := range s.dialogues {
		if d.EndedAt < cutoff {
			removed++
			continue
		}
		kept = append(kept, d)
	}
	s.dialogues = kept
	if removed > 0 {
		s.saveDialogues()
	}
	return removed
}
