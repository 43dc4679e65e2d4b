package store

// VectorRecord caches the embedding for an entry at a specific revision.
// The record is trusted only while UpdatedAt matches the entry's current
// revision timestamp; any content edit makes it stale.
type VectorRecord struct {
	UpdatedAt int64     `json:"updatedAt"`
	Vector    []float64 `json:"vector"`
}

func (s *Store) saveVectors() { saveJSON(s.path(vectorsFile), s.vectors) }

// SaveVector stores or replaces the cached embedding for an entry.
func (s *Store) SaveVector(entryID string, revision int64, vector []float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[entryID]; !ok {
		return
	}
	s.vectors[entryID] = VectorRecord{UpdatedAt: revision, Vector: vector}
	s.saveVectors()
}

// FreshVector returns the cached vector for an entry when its revision stamp
// still matches. A stale or missing record returns nil.
func (s *Store) FreshVector(entryID string, revision int64) []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.vectors[entryID]
	if !ok || rec.UpdatedAt != revision {
		return nil
	}
	return rec.Vector
}

// StaleVectorIDs lists active entries whose cached vector is missing or no
// longer matches their revision. These are the re-embedding candidates.
func (s *Store) StaleVectorIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for _, e := range s.entries {
		if e.Disabled() {
			continue
		}
		rec, ok := s.vectors[e.ID]
		if !ok || rec.UpdatedAt != e.Revision() {
			ids = append(ids, e.ID)
		}
	}
	return ids
}
