package store

import (
	"testing"
	"time"
)

func TestVectorFreshness(t *testing.T) {
	s := OpenMemory("agent")
	e, _ := s.AddEntry(AddInput{Text: "vectorized fact"})

	s.SaveVector(e.ID, e.Revision(), []float64{1, 0, 0})
	if s.FreshVector(e.ID, e.Revision()) == nil {
		t.Error("matching revision should return the vector")
	}
	if s.FreshVector(e.ID, e.Revision()+1) != nil {
		t.Error("mismatched revision should be treated as stale")
	}
}

func TestSaveVectorUnknownEntry(t *testing.T) {
	s := OpenMemory("agent")
	s.SaveVector("no-such-id", 1, []float64{1})
	if s.FreshVector("no-such-id", 1) != nil {
		t.Error("vectors for unknown entries should not be stored")
	}
}

func TestStaleVectorIDs(t *testing.T) {
	s := OpenMemory("agent")
	s.SetClock(func() time.Time { return time.UnixMilli(1000) })
	a, _ := s.AddEntry(AddInput{Text: "embedded fact"})
	b, _ := s.AddEntry(AddInput{Text: "pending fact"})
	s.SaveVector(a.ID, a.Revision(), []float64{1})

	stale := s.StaleVectorIDs()
	if len(stale) != 1 || stale[0] != b.ID {
		t.Errorf("stale = %v, want [%s]", stale, b.ID)
	}

	// Editing the entry invalidates its vector.
	s.SetClock(func() time.Time { return time.UnixMilli(2000) })
	s.AddEntry(AddInput{Text: "embedded fact"})
	if len(s.StaleVectorIDs()) != 2 {
		t.Error("content edit should make the vector stale again")
	}
}

func TestStaleVectorIDsSkipsDisabled(t *testing.T) {
	s := OpenMemory("agent")
	e, _ := s.AddEntry(AddInput{Text: "doomed fact"})
	s.Disable(e.ID, "", "", "")
	if len(s.StaleVectorIDs()) != 0 {
		t.Error("disabled entries should not be re-embedding candidates")
	}
}
