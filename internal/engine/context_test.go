package engine

import (
	"strings"
	"testing"

	"github.com/hollowshell/mnemo/internal/store"
)

func TestBuildContextRendersBlock(t *testing.T) {
	e := testEngine(t)
	e.AddEntry(store.AddInput{Text: "mining tips", Triggers: []string{"diamond"}})

	res := e.BuildContext(ContextRequest{Query: "diamond", Mode: ModeWeighted})
	if !strings.HasPrefix(res.Text, "Things you remember:") {
		t.Errorf("block header missing: %q", res.Text)
	}
	if !strings.Contains(res.Text, "- mining tips") {
		t.Errorf("entry line missing: %q", res.Text)
	}
	if len(res.Refs) != 1 {
		t.Errorf("refs = %v, want one id", res.Refs)
	}
	if res.Trace != nil {
		t.Error("trace should be empty without debug")
	}
}

func TestBuildContextDebugTrace(t *testing.T) {
	e := testEngine(t)
	e.AddEntry(store.AddInput{Text: "mining tips", Triggers: []string{"diamond"}})

	res := e.BuildContext(ContextRequest{Query: "diamond", Mode: ModeWeighted, Debug: true})
	if len(res.Trace) != len(res.Refs) {
		t.Fatalf("trace = %d rows, refs = %d", len(res.Trace), len(res.Refs))
	}
	if res.Trace[0].Score <= 0 || res.Trace[0].Relevance <= 0 {
		t.Errorf("trace signals empty: %+v", res.Trace[0])
	}
}

func TestBuildContextKeywordFallback(t *testing.T) {
	e := testEngine(t)
	e.AddEntry(store.AddInput{Text: "remember the wheat farm"})

	res := e.BuildContext(ContextRequest{Query: "zzzunmatchable", Mode: ModeKeyword})
	if len(res.Refs) != 1 {
		t.Errorf("keyword mode should fall back to recent entries, refs = %v", res.Refs)
	}
}

func TestBuildContextWeightedNoMatchIsEmpty(t *testing.T) {
	e := testEngine(t)
	e.AddEntry(store.AddInput{Text: "remember the wheat farm"})

	res := e.BuildContext(ContextRequest{Query: "zzzunmatchable", Mode: ModeWeighted})
	if res.Text != "" || len(res.Refs) != 0 {
		t.Errorf("weighted mode must not pad with noise: %+v", res)
	}
}

func TestBuildContextLimit(t *testing.T) {
	e := testEngine(t)
	for _, text := range []string{"tip one", "tip two", "tip three"} {
		e.AddEntry(store.AddInput{Text: text, Triggers: []string{"diamond"}})
	}

	res := e.BuildContext(ContextRequest{Query: "diamond", Mode: ModeWeighted, Limit: 2})
	if len(res.Refs) != 2 {
		t.Errorf("refs = %d, want 2", len(res.Refs))
	}
}

func TestBuildContextActorVisibility(t *testing.T) {
	e := testEngine(t)
	e.AddEntry(store.AddInput{Text: "secret stash", Author: "alice", Triggers: []string{"stash"}})

	if res := e.BuildContext(ContextRequest{Query: "stash", Actor: "alice", Mode: ModeWeighted}); len(res.Refs) != 1 {
		t.Error("owner should retrieve their entry")
	}
	if res := e.BuildContext(ContextRequest{Query: "stash", Actor: "bob", Mode: ModeWeighted}); len(res.Refs) != 0 {
		t.Error("non-owner must not retrieve a player-scoped entry")
	}
}

func TestBuildContextLocationInjection(t *testing.T) {
	e := testEngine(t)
	e.AddEntry(store.AddInput{Text: "home base chest", Location: &store.Location{X: 10, Z: 0, Dim: "overworld"}})
	e.AddEntry(store.AddInput{Text: "distant outpost", Location: &store.Location{X: 40, Z: 0, Dim: "overworld"}})
	e.AddEntry(store.AddInput{Text: "nether fortress", Location: &store.Location{X: 5, Z: 0, Dim: "nether"}})

	pos := &store.Location{X: 0, Z: 0, Dim: "overworld"}

	// Chatty query: only the small always-on radius applies.
	res := e.BuildContext(ContextRequest{Query: "hello friend", Mode: ModeWeighted, Position: pos})
	if len(res.Refs) != 1 {
		t.Fatalf("refs = %v, want just the nearby entry", res.Refs)
	}
	if !strings.Contains(res.Text, "home base chest") {
		t.Errorf("nearby entry missing: %q", res.Text)
	}
	if !strings.Contains(res.Text, "(at 10, 0 in overworld)") {
		t.Errorf("location suffix missing: %q", res.Text)
	}

	// A location-flavored query widens the radius.
	res = e.BuildContext(ContextRequest{Query: "where am i", Mode: ModeWeighted, Position: pos})
	if len(res.Refs) != 2 {
		t.Errorf("refs = %v, want both overworld entries", res.Refs)
	}
	if strings.Contains(res.Text, "nether fortress") {
		t.Error("other-dimension entries must never inject")
	}
}

func TestBuildContextNearMaxCap(t *testing.T) {
	e := testEngine(t)
	for i := 0; i < 5; i++ {
		e.AddEntry(store.AddInput{
			Text:     "poi number " + string(rune('a'+i)),
			Location: &store.Location{X: float64(i + 1), Z: 0},
		})
	}

	res := e.BuildContext(ContextRequest{Query: "", Position: &store.Location{X: 0, Z: 0}})
	if len(res.Refs) != e.cfg.Retrieval.NearMax {
		t.Errorf("refs = %d, want capped at %d", len(res.Refs), e.cfg.Retrieval.NearMax)
	}
}

func TestBuildContextEntryRadius(t *testing.T) {
	e := testEngine(t)
	e.AddEntry(store.AddInput{
		Text:     "huge claimed region",
		Location: &store.Location{X: 200, Z: 0, Radius: 300},
	})

	res := e.BuildContext(ContextRequest{Query: "hi", Position: &store.Location{X: 0, Z: 0}})
	if len(res.Refs) != 1 {
		t.Error("an entry's own radius should extend its reach")
	}
}

func TestBuildContextDedupBySummary(t *testing.T) {
	e := testEngine(t)
	e.AddEntry(store.AddInput{
		Text: "alice loves building castles", Summary: "alice likes castle building projects",
		Triggers: []string{"castle"},
	})
	e.AddEntry(store.AddInput{
		Text: "alice spent all week on a castle", Summary: "alice likes castle building a lot",
		Triggers: []string{"castle"},
	})

	res := e.BuildContext(ContextRequest{Query: "castle", Mode: ModeWeighted})
	if len(res.Refs) != 1 {
		t.Errorf("entries sharing a summary prefix should collapse, refs = %v", res.Refs)
	}
}

func TestBuildContextInjectedNotDuplicated(t *testing.T) {
	e := testEngine(t)
	e.AddEntry(store.AddInput{
		Text:     "village market stalls",
		Location: &store.Location{X: 5, Z: 5},
		Triggers: []string{"village"},
	})

	res := e.BuildContext(ContextRequest{
		Query:    "village",
		Mode:     ModeWeighted,
		Position: &store.Location{X: 0, Z: 0},
	})
	if len(res.Refs) != 1 {
		t.Errorf("ranked entry must not also inject, refs = %v", res.Refs)
	}
}

func TestIsLocationQuery(t *testing.T) {
	tests := []struct {
		query string
		want  bool
	}{
		{"where is my base", true},
		{"我在哪里", true},
		{"tell me about alice", false},
		{"give me the coords", true},
	}
	for _, tt := range tests {
		if got := isLocationQuery(tt.query); got != tt.want {
			t.Errorf("isLocationQuery(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}
