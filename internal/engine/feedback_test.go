package engine

import (
	"testing"

	"github.com/hollowshell/mnemo/internal/config"
	"github.com/hollowshell/mnemo/internal/store"
)

func TestMatchSignals(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"thanks a lot!", "gratitude"},
		{"谢谢你", "gratitude"},
		{"that's awesome, good job", "affection"},
		{"hahaha", "laughter"},
		{"yeah exactly", "agreement"},
		{"follow me to the mine", "task_given"},
		{"you are so stupid", "frustration"},
		{"nope, wrong chest", "correction"},
		{"huh? makes no sense", "confusion"},
	}
	for _, tt := range tests {
		signals := matchSignals(tt.text, 0)
		if len(signals) == 0 {
			t.Errorf("matchSignals(%q) found nothing, want %s", tt.text, tt.want)
			continue
		}
		found := false
		for _, s := range signals {
			if s.Type == tt.want {
				found = true
			}
		}
		if !found {
			t.Errorf("matchSignals(%q) = %v, want %s", tt.text, signals, tt.want)
		}
	}
}

func TestMatchSignalsOnePerRow(t *testing.T) {
	// Both an English and a Chinese gratitude pattern match; the row fires once.
	signals := matchSignals("thanks 谢谢", 0)
	count := 0
	for _, s := range signals {
		if s.Type == "gratitude" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("gratitude fired %d times, want 1", count)
	}
}

func TestMatchSignalsMultipleRows(t *testing.T) {
	signals := matchSignals("thanks but that is wrong", 0)
	types := map[string]bool{}
	for _, s := range signals {
		types[s.Type] = true
	}
	if !types["gratitude"] || !types["correction"] {
		t.Errorf("expected gratitude and correction, got %v", signals)
	}
}

func TestFeedbackPositiveFlow(t *testing.T) {
	e := testEngine(t)
	now := int64(1_000_000)
	e.SetClock(fixedClockMilli(&now))

	entry, _ := e.AddEntry(store.AddInput{Text: "alice likes wheat farms", Importance: 5})
	createdAt := entry.UpdatedAt

	now += 1000
	w := e.OpenFeedbackWindow("I remember you like wheat farms!", "alice", []string{entry.ID}, "")

	now += 2000
	e.ProcessPlayerMessage("alice", "thanks, exactly right!")

	resolved := e.ResolveWindow(w.ID)
	if resolved.Outcome != "positive" {
		t.Fatalf("outcome = %q score = %v, want positive", resolved.Outcome, resolved.AverageScore)
	}

	got := e.Store.FindByID(entry.ID)
	if got.Count != 6 {
		t.Errorf("count = %d, want 6", got.Count)
	}
	if got.Effectiveness.LastPositiveFeedback == 0 {
		t.Error("lastPositiveFeedback not stamped")
	}
	if got.UpdatedAt != createdAt {
		t.Error("feedback must not touch updatedAt")
	}

	stats := e.Store.GetStats()
	if stats.TotalHelpful != 1 || stats.TotalUsed != 1 {
		t.Errorf("evolution stats = %+v", stats)
	}
}

func TestFeedbackIgnoredWindow(t *testing.T) {
	e := testEngine(t)
	entry, _ := e.AddEntry(store.AddInput{Text: "a fact", Importance: 5})
	createdAt := entry.UpdatedAt

	w := e.OpenFeedbackWindow("did you know?", "alice", []string{entry.ID}, "")
	resolved := e.ResolveWindow(w.ID)

	// A reply nobody reacted to is a mild miss, below the negative threshold.
	if resolved.AverageScore != e.cfg.Feedback.IgnoredScore {
		t.Errorf("score = %v, want %v", resolved.AverageScore, e.cfg.Feedback.IgnoredScore)
	}
	if resolved.AverageScore >= e.cfg.Feedback.NegativeThreshold {
		t.Errorf("ignored score %v must sit below the negative threshold %v",
			resolved.AverageScore, e.cfg.Feedback.NegativeThreshold)
	}
	if resolved.Outcome != "negative" {
		t.Errorf("outcome = %q, want negative", resolved.Outcome)
	}
	got := e.Store.FindByID(entry.ID)
	if got.Count != 4 {
		t.Errorf("count = %d, want 4 (silence lowers it)", got.Count)
	}
	if got.Effectiveness.TimesUsed != 1 || got.Effectiveness.TimesUnhelpful != 1 {
		t.Errorf("effectiveness = %+v", got.Effectiveness)
	}
	if got.Effectiveness.LastNegativeFeedback == 0 {
		t.Error("lastNegativeFeedback not stamped")
	}
	if got.UpdatedAt != createdAt {
		t.Error("feedback must not touch updatedAt")
	}
}

func TestFeedbackEngagementSignal(t *testing.T) {
	e := testEngine(t)
	w := e.OpenFeedbackWindow("let's go mining", "alice", nil, "")

	e.ProcessPlayerMessage("alice", "hmm interesting idea")

	wins := e.Windows()
	if len(wins) != 1 || len(wins[0].Signals) != 1 {
		t.Fatalf("windows = %+v, want one engagement signal", wins)
	}
	if wins[0].Signals[0].Type != "engagement" {
		t.Errorf("signal = %q, want engagement", wins[0].Signals[0].Type)
	}

	resolved := e.ResolveWindow(w.ID)
	if resolved.Outcome != "neutral" {
		t.Errorf("outcome = %q, engagement alone is neutral", resolved.Outcome)
	}
}

func TestResolveWindowIdempotent(t *testing.T) {
	e := testEngine(t)
	entry, _ := e.AddEntry(store.AddInput{Text: "a fact", Importance: 5})
	w := e.OpenFeedbackWindow("msg", "alice", []string{entry.ID}, "")
	e.ProcessPlayerMessage("alice", "thanks!")

	first := e.ResolveWindow(w.ID)
	second := e.ResolveWindow(w.ID)

	if second.Outcome != first.Outcome || second.AverageScore != first.AverageScore {
		t.Error("second resolve should return the original resolution")
	}
	if got := e.Store.FindByID(entry.ID); got.Count != 6 {
		t.Errorf("count = %d, feedback applied more than once", got.Count)
	}
}

func TestResolveWindowUnknown(t *testing.T) {
	e := testEngine(t)
	if w := e.ResolveWindow("no-such-window"); w != nil {
		t.Errorf("unknown window = %+v, want nil", w)
	}
}

func TestMessageRoutedToNewestWindow(t *testing.T) {
	e := testEngine(t)
	old := e.OpenFeedbackWindow("first reply", "alice", nil, "")
	newer := e.OpenFeedbackWindow("second reply", "alice", nil, "")
	other := e.OpenFeedbackWindow("reply to bob", "bob", nil, "")

	e.ProcessPlayerMessage("alice", "thanks!")

	for _, w := range e.Windows() {
		switch w.ID {
		case newer.ID:
			if len(w.Signals) != 1 {
				t.Error("newest matching window should collect the signal")
			}
		case old.ID, other.ID:
			if len(w.Signals) != 0 {
				t.Errorf("window %s should stay empty", w.BotMessage)
			}
		}
	}
}

func TestFeedbackTickExpiresWindows(t *testing.T) {
	e := testEngine(t)
	now := int64(1_000_000)
	e.SetClock(fixedClockMilli(&now))

	entry, _ := e.AddEntry(store.AddInput{Text: "a fact", Importance: 5})
	e.OpenFeedbackWindow("msg", "alice", []string{entry.ID}, "")

	now += e.cfg.Feedback.WindowTTL.Milliseconds() + 1
	e.FeedbackTick()

	wins := e.Windows()
	if len(wins) != 1 || !wins[0].Resolved {
		t.Fatalf("window should be force-resolved after TTL: %+v", wins)
	}
	if got := e.Store.FindByID(entry.ID); got.Effectiveness.TimesUsed != 1 {
		t.Error("expired window should still count usage")
	}
}

func TestExpiredWindowIgnoresLateMessages(t *testing.T) {
	e := testEngine(t)
	now := int64(1_000_000)
	e.SetClock(fixedClockMilli(&now))

	e.OpenFeedbackWindow("msg", "alice", nil, "")
	now += e.cfg.Feedback.WindowTTL.Milliseconds() + 1

	e.ProcessPlayerMessage("alice", "thanks!")
	if wins := e.Windows(); len(wins[0].Signals) != 0 {
		t.Error("messages after the TTL must not land in the window")
	}
}

func TestWindowCapDropsOldest(t *testing.T) {
	cfg := config.Default()
	cfg.Feedback.MaxWindows = 2
	e := testEngineWith(t, nil, cfg)

	first := e.OpenFeedbackWindow("one", "alice", nil, "")
	e.OpenFeedbackWindow("two", "alice", nil, "")
	e.OpenFeedbackWindow("three", "alice", nil, "")

	wins := e.Windows()
	if len(wins) != 2 {
		t.Fatalf("windows = %d, want 2", len(wins))
	}
	for _, w := range wins {
		if w.ID == first.ID {
			t.Error("oldest window should be dropped at the cap")
		}
	}
}
