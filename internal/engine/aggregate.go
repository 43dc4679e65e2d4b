package engine

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/hollowshell/mnemo/internal/llm"
	"github.com/hollowshell/mnemo/internal/store"
)

// tierStep describes one aggregation hop: entries of source tier older than
// age are rolled into target-tier buckets of the given kind.
type tierStep struct {
	source string
	target string
	kind   string
	age    time.Duration
	label  string // human window name for the summary prompt
}

var tierSteps = []tierStep{
	{store.TierRaw, store.TierHour, "hour", time.Hour, "hour"},
	{store.TierHour, store.TierDay, "day", 24 * time.Hour, "day"},
	{store.TierDay, store.TierWeek, "week", 7 * 24 * time.Hour, "week"},
	{store.TierWeek, store.TierMonth, "month", 30 * 24 * time.Hour, "month"},
}

// maxDialogueAge prunes anything older than a month, month tier included.
const maxDialogueAge = 30 * 24 * time.Hour

// AggregateDialogues rolls aged dialogue entries into coarser buckets and
// prunes everything past the month horizon. Each consumed window produces
// one aggregate that replaces its sources. The already-running guard makes
// overlapping sweeps no-ops.
func (e *Engine) AggregateDialogues(ctx context.Context) int {
	if !e.aggRunning.CompareAndSwap(false, true) {
		return 0
	}
	defer e.aggRunning.Store(false)

	now := e.now()
	created := 0
	for _, step := range tierSteps {
		created += e.aggregateTier(ctx, step, now)
	}
	if pruned := e.Store.PruneDialoguesBefore(now.Add(-maxDialogueAge).UnixMilli()); pruned > 0 {
		log.Printf("dialogue: pruned %d entries older than a month", pruned)
	}
	return created
}

func (e *Engine) aggregateTier(ctx context.Context, step tierStep, now time.Time) int {
	cutoff := now.Add(-step.age).UnixMilli()
	entries := e.Store.DialoguesByTier(step.source)

	// Group aged entries by their bucket window.
	type group struct {
		bucket  store.Bucket
		entries []store.DialogueEntry
	}
	groups := make(map[int64]*group)
	var order []int64
	for _, d := range entries {
		if d.EndedAt > cutoff {
			continue
		}
		b := bucketFor(step.kind, d.EndedAt)
		g, ok := groups[b.Start]
		if !ok {
			g = &group{bucket: b}
			groups[b.Start] = g
			order = append(order, b.Start)
		}
		g.entries = append(g.entries, d)
	}

	created := 0
	for _, start := range order {
		g := groups[start]
		var ids, summaries, participants []string
		startedAt, endedAt := g.entries[0].StartedAt, g.entries[0].EndedAt
		for _, d := range g.entries {
			ids = append(ids, d.ID)
			if d.Summary != "" {
				summaries = append(summaries, d.Summary)
			}
			participants = append(participants, d.Participants...)
			if d.StartedAt < startedAt {
				startedAt = d.StartedAt
			}
			if d.EndedAt > endedAt {
				endedAt = d.EndedAt
			}
		}

		bucket := g.bucket
		agg := &store.DialogueEntry{
			Tier:         step.target,
			Participants: participants,
			Summary:      e.summarize(ctx, summaries, step.label),
			StartedAt:    startedAt,
			EndedAt:      endedAt,
			Bucket:       &bucket,
			SourceTier:   step.source,
			SourceCount:  len(g.entries),
		}
		e.Store.ReplaceDialogues(ids, agg)
		created++
	}
	return created
}

// bucketFor returns the window containing ts for the given kind. Boundaries
// are computed in UTC so buckets are stable across restarts.
func bucketFor(kind string, ts int64) store.Bucket {
	t := time.UnixMilli(ts).UTC()
	var start, end time.Time
	switch kind {
	case "hour":
		start = t.Truncate(time.Hour)
		end = start.Add(time.Hour)
	case "day":
		start = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		end = start.AddDate(0, 0, 1)
	case "week":
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		// Monday-start weeks.
		offset := (int(day.Weekday()) + 6) % 7
		start = day.AddDate(0, 0, -offset)
		end = start.AddDate(0, 0, 7)
	default: // month
		start = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
		end = start.AddDate(0, 1, 0)
	}
	return store.Bucket{Kind: kind, Start: start.UnixMilli(), End: end.UnixMilli()}
}

// summarize compresses the source summaries via the completion capability,
// falling back to plain truncated concatenation when it is absent or fails.
func (e *Engine) summarize(ctx context.Context, summaries []string, window string) string {
	maxLen := e.cfg.Dialogue.MaxSummaryLen
	if maxLen <= 0 {
		maxLen = 50
	}
	if e.LLM != nil && len(summaries) > 0 {
		cctx, cancel := context.WithTimeout(ctx, e.cfg.LLM.Timeout)
		resp, err := e.LLM.Complete(cctx, llm.SummaryPrompt(summaries, window, maxLen))
		cancel()
		if err == nil && resp != nil && strings.TrimSpace(resp.Content) != "" {
			return truncateRunes(strings.TrimSpace(resp.Content), maxLen)
		}
		if err != nil {
			log.Printf("dialogue: summary LLM failed, using truncation: %v", err)
		}
	}
	return truncateRunes(strings.Join(summaries, "; "), maxLen)
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
