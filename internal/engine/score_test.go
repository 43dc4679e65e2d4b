package engine

import (
	"math"
	"testing"
	"time"

	"github.com/hollowshell/mnemo/internal/store"
	"github.com/hollowshell/mnemo/internal/token"
)

func TestRelevanceOf(t *testing.T) {
	e := testEngine(t)
	if got := e.relevanceOf(0); got != 0 {
		t.Errorf("relevanceOf(0) = %v, want 0", got)
	}
	if low, high := e.relevanceOf(2), e.relevanceOf(12); low >= high {
		t.Errorf("relevance not monotonic: %v >= %v", low, high)
	}
	if got := e.relevanceOf(1000); got <= 0.99 || got > 1 {
		t.Errorf("large raw score should saturate near 1, got %v", got)
	}
}

func TestRecencyHalfLife(t *testing.T) {
	e := testEngine(t)
	now := time.Now()
	halfAgo := now.Add(-14 * 24 * time.Hour)

	entry := &store.MemoryEntry{UpdatedAt: halfAgo.UnixMilli(), CreatedAt: halfAgo.UnixMilli()}
	got := e.recencyOf(entry, now.UnixMilli())
	if math.Abs(got-0.5) > 0.01 {
		t.Errorf("recency at one half-life = %v, want 0.5", got)
	}

	fresh := &store.MemoryEntry{UpdatedAt: now.UnixMilli()}
	if got := e.recencyOf(fresh, now.UnixMilli()); math.Abs(got-1) > 1e-9 {
		t.Errorf("recency of a fresh entry = %v, want 1", got)
	}
}

func TestRecencyUsesPositiveFeedback(t *testing.T) {
	e := testEngine(t)
	now := time.Now()
	old := now.Add(-28 * 24 * time.Hour).UnixMilli()

	stale := &store.MemoryEntry{UpdatedAt: old, CreatedAt: old}
	refreshed := &store.MemoryEntry{UpdatedAt: old, CreatedAt: old}
	refreshed.Effectiveness.LastPositiveFeedback = now.UnixMilli()

	if e.recencyOf(refreshed, now.UnixMilli()) <= e.recencyOf(stale, now.UnixMilli()) {
		t.Error("recent positive feedback should refresh recency")
	}
}

func TestImportanceOf(t *testing.T) {
	e := testEngine(t)

	saturated := &store.MemoryEntry{Count: 20}
	if got := e.importanceOf(saturated); math.Abs(got-0.9) > 1e-9 {
		t.Errorf("importance at saturation = %v, want 0.9", got)
	}

	weak := &store.MemoryEntry{Count: 1}
	strong := &store.MemoryEntry{Count: 10}
	if e.importanceOf(weak) >= e.importanceOf(strong) {
		t.Error("importance should grow with count")
	}

	liked := &store.MemoryEntry{Count: 5}
	liked.Effectiveness.AverageScore = 1
	disliked := &store.MemoryEntry{Count: 5}
	disliked.Effectiveness.AverageScore = -1
	if e.importanceOf(liked) <= e.importanceOf(disliked) {
		t.Error("average feedback score should shift importance")
	}
}

func TestBlendDefaultsToRelevance(t *testing.T) {
	e := testEngine(t)
	// Shipped weights are relevance-only.
	if got := e.blend(0.7, 0.1, 0.2); got != 0.7 {
		t.Errorf("blend = %v, want 0.7", got)
	}
}

func TestWeightedModeEmptyTokens(t *testing.T) {
	e := testEngine(t)
	e.AddEntry(store.AddInput{Text: "some fact"})
	if cands := e.weightedMode(e.Store.Snapshot(""), nil); cands != nil {
		t.Errorf("empty tokens should return nothing, got %d", len(cands))
	}
}

func TestWeightedModeCutoffs(t *testing.T) {
	e := testEngine(t)
	e.AddEntry(store.AddInput{Text: "mining tips", Triggers: []string{"diamond"}})
	e.AddEntry(store.AddInput{Text: "weak diamond mention"})

	cands := e.weightedMode(e.Store.Snapshot(""), token.Tokenize("diamond"))
	if len(cands) != 1 {
		t.Fatalf("candidates = %d, want 1 (body-only match is below MinScore)", len(cands))
	}
	if cands[0].entry.Text != "mining tips" {
		t.Errorf("wrong survivor: %q", cands[0].entry.Text)
	}
	if cands[0].relevance <= 0 || cands[0].score < e.cfg.Retrieval.MinScore {
		t.Errorf("survivor signals out of range: %+v", cands[0])
	}
}

func TestWeightedModeSorted(t *testing.T) {
	e := testEngine(t)
	e.AddEntry(store.AddInput{Text: "tips", Triggers: []string{"diamond"}})
	e.AddEntry(store.AddInput{Text: "vein", Triggers: []string{"diamond", "mine"}})

	cands := e.weightedMode(e.Store.Snapshot(""), token.Tokenize("diamond mine"))
	for i := 1; i < len(cands); i++ {
		if cands[i].score > cands[i-1].score {
			t.Errorf("not sorted descending at %d", i)
		}
	}
}
