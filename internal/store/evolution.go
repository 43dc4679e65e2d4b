package store

// EvolutionStats is the persisted aggregate of feedback outcomes across all
// entries and windows. It survives restarts so effectiveness rates reflect
// the whole history, not just the current session.
type EvolutionStats struct {
	TotalUsed       int   `json:"totalUsed"`
	TotalHelpful    int   `json:"totalHelpful"`
	TotalUnhelpful  int   `json:"totalUnhelpful"`
	WindowsResolved int   `json:"windowsResolved"`
	PositiveWindows int   `json:"positiveWindows"`
	NegativeWindows int   `json:"negativeWindows"`
	NeutralWindows  int   `json:"neutralWindows"`
	UpdatedAt       int64 `json:"updatedAt"`
}

func (s *Store) saveEvolution() { saveJSON(s.path(evolutionFile), &s.evolution) }

// RecordWindow folds a resolved feedback window into the snapshot.
// outcome is "positive", "negative" or "neutral".
func (s *Store) RecordWindow(outcome string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evolution.WindowsResolved++
	switch outcome {
	case "positive":
		s.evolution.PositiveWindows++
	case "negative":
		s.evolution.NegativeWindows++
	default:
		s.evolution.NeutralWindows++
	}
	s.evolution.UpdatedAt = s.nowMilli()
	s.saveEvolution()
}

// Stats summarizes the store for the stats endpoint.
type Stats struct {
	TotalEntries      int     `json:"totalEntries"`
	TotalUsed         int     `json:"totalUsed"`
	TotalHelpful      int     `json:"totalHelpful"`
	TotalUnhelpful    int     `json:"totalUnhelpful"`
	EffectivenessRate float64 `json:"effectivenessRate"`
}

// GetStats reports entry counts and the aggregate effectiveness rate.
func (s *Store) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Stats{
		TotalUsed:      s.evolution.TotalUsed,
		TotalHelpful:   s.evolution.TotalHelpful,
		TotalUnhelpful: s.evolution.TotalUnhelpful,
	}
	for _, e := range s.entries {
		if !e.Disabled() {
			st.TotalEntries++
		}
	}
	if n := st.TotalHelpful + st.TotalUnhelpful; n > 0 {
		st.EffectivenessRate = float64(st.TotalHelpful) / float64(n)
	}
	return st
}
