package engine

import (
	"testing"

	"github.com/hollowshell/mnemo/internal/store"
)

func TestDecayUnused(t *testing.T) {
	e := testEngine(t)
	now := int64(1_000_000)
	e.SetClock(fixedClockMilli(&now))

	idle, _ := e.AddEntry(store.AddInput{Text: "forgotten fact", Importance: 10})
	now += e.cfg.Decay.After.Milliseconds() + 1
	fresh, _ := e.AddEntry(store.AddInput{Text: "fresh fact", Importance: 10})

	if updated := e.DecayUnused(); updated != 1 {
		t.Fatalf("updated = %d, want 1", updated)
	}
	if got := e.Store.FindByID(idle.ID); got.Count != 9 {
		t.Errorf("idle count = %d, want 9", got.Count)
	}
	if got := e.Store.FindByID(fresh.ID); got.Count != 10 {
		t.Errorf("fresh count = %d, want untouched 10", got.Count)
	}
	if got := e.Store.FindByID(idle.ID); got.DecayInfo.LastDecayAt != now {
		t.Errorf("lastDecayAt = %d, want %d", got.DecayInfo.LastDecayAt, now)
	}
}

func TestDecayUnusedGuard(t *testing.T) {
	e := testEngine(t)
	e.decayRunning.Store(true)
	if updated := e.DecayUnused(); updated != 0 {
		t.Error("overlapping sweep should be a no-op")
	}
}
