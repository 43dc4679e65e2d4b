// Package store holds the persisted memory state: the entry table, the
// dialogue table, the vector cache and the evolution snapshot. All files are
// plain JSON, rewritten whole on every save.
package store

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hollowshell/mnemo/internal/token"
)

const (
	entriesFile   = "entries.json"
	dialoguesFile = "dialogues.json"
	vectorsFile   = "vectors.json"
	evolutionFile = "evolution.json"
)

// DefaultMaxEntries caps the entry table before eviction kicks in.
const DefaultMaxEntries = 500

// Store owns all persisted memory state. A single logical writer is assumed;
// the mutex only serializes the background sweeps against request handlers.
type Store struct {
	mu sync.Mutex

	// Dir is the data directory, or "" for an in-memory store.
	Dir string

	// AgentName marks entries authored by the agent itself as global.
	AgentName string

	// MaxEntries caps the table; lowest-count, oldest entries are evicted.
	MaxEntries int

	entries   []*MemoryEntry
	byID      map[string]*MemoryEntry
	dialogues []*DialogueEntry
	vectors   map[string]VectorRecord
	evolution EvolutionStats

	now func() time.Time
}

// Open loads (or creates) the store rooted at dir. Malformed files are reset
// to an empty valid state rather than failing startup.
func Open(dir, agentName string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	s := newStore(agentName)
	s.Dir = dir
	s.load()
	return s, nil
}

// OpenMemory creates a store with no backing files, for tests.
func OpenMemory(agentName string) *Store {
	return newStore(agentName)
}

func newStore(agentName string) *Store {
	return &Store{
		AgentName:  agentName,
		MaxEntries: DefaultMaxEntries,
		byID:       make(map[string]*MemoryEntry),
		vectors:    make(map[string]VectorRecord),
		now:        time.Now,
	}
}

// DefaultDataDir returns ~/.mnemo.
func DefaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".mnemo"), nil
}

// SetClock overrides the store's time source, for tests.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

func (s *Store) nowMilli() int64 { return s.now().UnixMilli() }

// ---- persistence ----

func (s *Store) load() {
	var records []entryRecord
	if loadJSON(s.path(entriesFile), &records) {
		for i := range records {
			e := records[i].normalize()
			if e.ID == "" {
				e.ID = uuid.NewString()
			}
			if _, dup := s.byID[e.ID]; dup {
				continue
			}
			ptr := &e
			s.entries = append(s.entries, ptr)
			s.byID[e.ID] = ptr
		}
	}
	loadJSON(s.path(dialoguesFile), &s.dialogues)
	loadJSON(s.path(vectorsFile), &s.vectors)
	if s.vectors == nil {
		s.vectors = make(map[string]VectorRecord)
	}
	loadJSON(s.path(evolutionFile), &s.evolution)
}

func (s *Store) path(name string) string {
	if s.Dir == "" {
		return ""
	}
	return filepath.Join(s.Dir, name)
}

// loadJSON reads path into v. Returns false (leaving v untouched) when the
// file is absent or malformed; a corrupt file never blocks startup.
func loadJSON(path string, v any) bool {
	if path == "" {
		return false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		log.Printf("store: %s is malformed, starting empty: %v", filepath.Base(path), err)
		return false
	}
	return true
}

// saveJSON writes v to path via temp-file + rename, replacing the whole file.
func saveJSON(path string, v any) {
	if path == "" {
		return
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Printf("store: marshal %s: %v", filepath.Base(path), err)
		return
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		log.Printf("store: write %s: %v", filepath.Base(path), err)
		return
	}
	if err := os.Rename(tmp, path); err != nil {
		log.Printf("store: replace %s: %v", filepath.Base(path), err)
	}
}

func (s *Store) saveEntries() { saveJSON(s.path(entriesFile), s.entries) }

// Flush persists every table. Best effort; called on shutdown.
func (s *Store) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveEntries()
	s.saveDialogues()
	s.saveVectors()
	s.saveEvolution()
}

// ---- entry operations ----

// AddInput is the payload for AddEntry. Zero values are coerced, not rejected.
type AddInput struct {
	Text       string
	Summary    string
	Author     string
	Source     string
	Importance int
	Tags       []string
	Triggers   []string
	Location   *Location
	Scope      string
	Owners     []string
}

// AddEntry deduplicates-or-creates an entry. A duplicate (same normalized
// text, or same location key) reinforces the existing row instead of adding
// a new one. Returns the entry and whether it was newly created.
func (s *Store) AddEntry(in AddInput) (*MemoryEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	text := NormalizeText(in.Text)
	if text == "" {
		return nil, false
	}
	now := s.nowMilli()

	if e := s.findDuplicate(text, in.Location); e != nil {
		e.Count = clampCount(e.Count + max(1, in.Importance))
		e.Tags = uniqueStrings(append(e.Tags, in.Tags...))
		e.Triggers = uniqueStrings(append(e.Triggers, in.Triggers...))
		if in.Summary != "" {
			e.Summary = in.Summary
		}
		if e.Scope == ScopePlayer && in.Author != "" && in.Author != s.AgentName {
			e.Owners = uniqueStrings(append(e.Owners, in.Author))
		}
		e.UpdatedAt = now
		delete(s.vectors, e.ID) // content revision changed
		s.saveEntries()
		s.saveVectors()
		return e, false
	}

	e := &MemoryEntry{
		ID:        uuid.NewString(),
		Text:      text,
		Summary:   in.Summary,
		Tags:      uniqueStrings(in.Tags),
		Triggers:  uniqueStrings(in.Triggers),
		Location:  in.Location,
		Author:    in.Author,
		Source:    in.Source,
		Count:     clampCount(max(1, in.Importance)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.inferScope(e, in.Scope, in.Owners)
	s.entries = append(s.entries, e)
	s.byID[e.ID] = e
	s.evictOverCap()
	s.saveEntries()
	return e, true
}

// inferScope applies the namespace rules: explicit scope wins; entries with a
// spatial anchor are shared; agent-authored entries are shared; entries from
// a named human default to player scope owned by the author.
func (s *Store) inferScope(e *MemoryEntry, scope string, owners []string) {
	switch scope {
	case ScopeGlobal:
		e.Scope = ScopeGlobal
		return
	case ScopePlayer:
		e.Scope = ScopePlayer
		e.Owners = uniqueStrings(owners)
		if len(e.Owners) == 0 && e.Author != "" {
			e.Owners = []string{e.Author}
		}
		return
	}
	if e.Location != nil || e.Author == "" || e.Author == s.AgentName {
		e.Scope = ScopeGlobal
		return
	}
	e.Scope = ScopePlayer
	e.Owners = []string{e.Author}
}

func (s *Store) findDuplicate(text string, loc *Location) *MemoryEntry {
	key := TextKey(text)
	locKey := loc.Key()
	for _, e := range s.entries {
		if e.Disabled() {
			continue
		}
		if TextKey(e.Text) == key {
			return e
		}
		if locKey != "" && e.Location.Key() == locKey {
			return e
		}
	}
	return nil
}

// evictOverCap removes lowest-count, then oldest, entries past MaxEntries.
// Disabled entries count against the cap and evict first within their tier.
func (s *Store) evictOverCap() {
	if s.MaxEntries <= 0 || len(s.entries) <= s.MaxEntries {
		return
	}
	sorted := make([]*MemoryEntry, len(s.entries))
	copy(sorted, s.entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Count != sorted[j].Count {
			return sorted[i].Count < sorted[j].Count
		}
		return sorted[i].UpdatedAt < sorted[j].UpdatedAt
	})
	drop := make(map[string]bool)
	for _, e := range sorted[:len(s.entries)-s.MaxEntries] {
		drop[e.ID] = true
	}
	kept := s.entries[:0]
	for _, e := range s.entries {
		if drop[e.ID] {
			delete(s.byID, e.ID)
			delete(s.vectors, e.ID)
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	s.saveVectors()
}

// FindByID returns a copy of the entry, or nil.
func (s *Store) FindByID(id string) *MemoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[id]
	if !ok {
		return nil
	}
	cp := *e
	return &cp
}

// Snapshot returns value copies of every active entry visible to actor,
// in insertion order. Scoring works on these copies without holding the lock.
func (s *Store) Snapshot(actor string) []MemoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]MemoryEntry, 0, len(s.entries))
	for _, e := range s.entries {
		if e.Disabled() || !allowedForActor(e, actor) {
			continue
		}
		out = append(out, *e)
	}
	return out
}

// Recent returns the limit most recently updated entries visible to actor.
func (s *Store) Recent(limit int, actor string) []MemoryEntry {
	entries := s.Snapshot(actor)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].UpdatedAt > entries[j].UpdatedAt
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

// allowedForActor implements the visibility rule: global entries are shared,
// player entries require ownership. Legacy player entries without explicit
// owners fall back to the authorship heuristic.
func allowedForActor(e *MemoryEntry, actor string) bool {
	if e.Scope != ScopePlayer {
		return true
	}
	if len(e.Owners) == 0 {
		return e.Author == "" || e.Author == actor
	}
	for _, o := range e.Owners {
		if o == actor {
			return true
		}
	}
	return false
}

// AllowedForActor is the exported visibility check.
func (s *Store) AllowedForActor(e *MemoryEntry, actor string) bool {
	return allowedForActor(e, actor)
}

// Disable soft-deletes entries matching query: an exact id, or a tokenized
// substring match across summary, text, tags and triggers. With
// scope="owned", only entries the actor owns are touched. Returns disabled ids.
func (s *Store) Disable(query, actor, reason, scope string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowMilli()
	var disabled []string

	mark := func(e *MemoryEntry) {
		e.DisabledAt = now
		e.DisabledReason = reason
		e.DisabledBy = actor
		disabled = append(disabled, e.ID)
	}

	if e, ok := s.byID[strings.TrimSpace(query)]; ok && !e.Disabled() {
		if scope == "owned" && !ownedBy(e, actor) {
			return nil
		}
		mark(e)
		s.saveEntries()
		return disabled
	}

	tokens := token.Tokenize(query)
	if len(tokens) == 0 {
		return nil
	}
	for _, e := range s.entries {
		if e.Disabled() {
			continue
		}
		if scope == "owned" && !ownedBy(e, actor) {
			continue
		}
		if entryMatchesTokens(e, tokens) {
			mark(e)
		}
	}
	if len(disabled) > 0 {
		s.saveEntries()
	}
	return disabled
}

func ownedBy(e *MemoryEntry, actor string) bool {
	for _, o := range e.Owners {
		if o == actor {
			return true
		}
	}
	return len(e.Owners) == 0 && e.Author == actor
}

func entryMatchesTokens(e *MemoryEntry, tokens []string) bool {
	hay := strings.ToLower(e.Summary + " " + e.Text + " " +
		strings.Join(e.Tags, " ") + " " + strings.Join(e.Triggers, " "))
	for _, t := range tokens {
		if strings.Contains(hay, t) {
			return true
		}
	}
	return false
}

// ---- feedback + decay mutations ----

// ApplyFeedback reinforces or penalizes the referenced entries. The ±0.3
// band around zero is neutral: usage is counted but count stays put.
// Feedback never touches UpdatedAt; recency stays about content freshness.
func (s *Store) ApplyFeedback(ids []string, score, posThreshold, negThreshold float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowMilli()
	touched := false
	for _, id := range ids {
		e, ok := s.byID[id]
		if !ok || e.Disabled() {
			continue
		}
		touched = true
		eff := &e.Effectiveness
		eff.TimesUsed++
		s.evolution.TotalUsed++

		delta := int(math.Ceil(math.Abs(score)))
		switch {
		case score > posThreshold:
			eff.TimesHelpful++
			eff.LastPositiveFeedback = now
			e.Count = clampCount(e.Count + delta)
			s.evolution.TotalHelpful++
		case score < negThreshold:
			eff.TimesUnhelpful++
			eff.LastNegativeFeedback = now
			e.Count = clampCount(e.Count - delta)
			s.evolution.TotalUnhelpful++
		}
		if n := eff.TimesHelpful + eff.TimesUnhelpful; n > 0 {
			eff.AverageScore = float64(eff.TimesHelpful-eff.TimesUnhelpful) / float64(n)
		}
	}
	if touched {
		s.saveEntries()
		s.saveEvolution()
	}
}

// Decay shrinks the count of non-protected, non-disabled entries idle longer
// than after. Returns how many entries were touched. UpdatedAt is preserved.
func (s *Store) Decay(after time.Duration, rate float64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowMilli()
	cutoff := now - after.Milliseconds()
	updated := 0
	for _, e := range s.entries {
		if e.Disabled() || e.DecayInfo.Protected {
			continue
		}
		if e.LastActivity() > cutoff {
			continue
		}
		next := e.Count - int(math.Ceil(float64(e.Count)*rate))
		if next < MinCount {
			next = MinCount
		}
		if next == e.Count {
			continue
		}
		e.Count = next
		e.DecayInfo.LastDecayAt = now
		updated++
	}
	if updated > 0 {
		s.saveEntries()
	}
	return updated
}

// TotalEntries counts active (non-disabled) entries.
func (s *Store) TotalEntries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.entries {
		if !e.Disabled() {
			n++
		}
	}
	return n
}
