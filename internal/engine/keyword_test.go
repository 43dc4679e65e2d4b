package engine

import (
	"testing"

	"github.com/hollowshell/mnemo/internal/store"
	"github.com/hollowshell/mnemo/internal/token"
)

func TestLexicalScoreTiers(t *testing.T) {
	tokens := token.Tokenize("diamond")

	trigger := buildHaystack(&store.MemoryEntry{Text: "a fact", Triggers: []string{"diamond"}})
	tag := buildHaystack(&store.MemoryEntry{Text: "a fact", Tags: []string{"diamond"}})
	body := buildHaystack(&store.MemoryEntry{Text: "found a diamond"})

	ts, hit := lexicalScore(trigger, tokens)
	gs, _ := lexicalScore(tag, tokens)
	bs, _ := lexicalScore(body, tokens)

	if !hit {
		t.Error("trigger match not flagged")
	}
	if !(ts > gs && gs > bs && bs > 0) {
		t.Errorf("tier ordering broken: trigger=%v tag=%v body=%v", ts, gs, bs)
	}
	// Each token counts once, at its highest tier.
	both := buildHaystack(&store.MemoryEntry{Text: "found a diamond", Triggers: []string{"diamond"}})
	if s, _ := lexicalScore(both, tokens); s != ts {
		t.Errorf("token double-counted: %v vs %v", s, ts)
	}
}

func TestLexicalScoreBidirectionalContains(t *testing.T) {
	// A short trigger should match a longer query token and vice versa.
	h := buildHaystack(&store.MemoryEntry{Text: "a fact", Triggers: []string{"diamond"}})
	if s, _ := lexicalScore(h, []string{"diamonds"}); s <= 0 {
		t.Error("plural query token should match the trigger")
	}
}

func TestKeywordModeRanking(t *testing.T) {
	e := testEngine(t)
	e.AddEntry(store.AddInput{Text: "misc note about fishing"})
	e.AddEntry(store.AddInput{Text: "there is a diamond vein deep down"})
	e.AddEntry(store.AddInput{Text: "mining tips", Triggers: []string{"diamond"}})

	entries := e.Store.Snapshot("")
	cands := e.keywordMode(entries, token.Tokenize("diamond"), false, 5)

	if len(cands) != 2 {
		t.Fatalf("candidates = %d, want 2", len(cands))
	}
	if cands[0].entry.Text != "mining tips" {
		t.Errorf("trigger match should rank first, got %q", cands[0].entry.Text)
	}
}

func TestKeywordModeLocationBoost(t *testing.T) {
	e := testEngine(t)
	e.AddEntry(store.AddInput{Text: "village trade hall"})
	e.AddEntry(store.AddInput{Text: "village well", Location: &store.Location{X: 5, Z: 5}})

	entries := e.Store.Snapshot("")
	cands := e.keywordMode(entries, token.Tokenize("village"), true, 5)
	if len(cands) != 2 {
		t.Fatalf("candidates = %d, want 2", len(cands))
	}
	if cands[0].entry.Location == nil {
		t.Error("location-anchored entry should win a location query")
	}
}

func TestKeywordModeFallbackToRecent(t *testing.T) {
	e := testEngine(t)
	now := int64(1000)
	e.SetClock(fixedClockMilli(&now))
	e.AddEntry(store.AddInput{Text: "older memory"})
	now = 2000
	e.AddEntry(store.AddInput{Text: "newer memory"})

	entries := e.Store.Snapshot("")
	cands := e.keywordMode(entries, token.Tokenize("zzzunmatchable"), false, 1)
	if len(cands) != 1 {
		t.Fatalf("fallback candidates = %d, want 1", len(cands))
	}
	if cands[0].entry.Text != "newer memory" {
		t.Errorf("fallback should surface the most recent entry, got %q", cands[0].entry.Text)
	}
	if cands[0].score != 0 {
		t.Errorf("fallback entries carry no score, got %v", cands[0].score)
	}
}

func TestKeywordModeCountBoostTiebreak(t *testing.T) {
	e := testEngine(t)
	e.AddEntry(store.AddInput{Text: "diamond pickaxe stored in chest", Importance: 1})
	e.AddEntry(store.AddInput{Text: "diamond armor stored in barrel", Importance: 50})

	entries := e.Store.Snapshot("")
	cands := e.keywordMode(entries, token.Tokenize("diamond"), false, 5)
	if len(cands) != 2 {
		t.Fatalf("candidates = %d, want 2", len(cands))
	}
	if cands[0].entry.Count != 50 {
		t.Error("higher reinforcement count should break the tie")
	}
}
