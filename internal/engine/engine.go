// Package engine is the retrieval, feedback and maintenance core: it ranks
// stored entries for prompt injection, turns user reactions into
// reinforcement, decays stale entries and rolls dialogue history into
// coarser time buckets.
package engine

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hollowshell/mnemo/internal/config"
	"github.com/hollowshell/mnemo/internal/llm"
	"github.com/hollowshell/mnemo/internal/store"
)

// Engine orchestrates retrieval, feedback windows, decay and aggregation
// over a single Store. One Engine per agent session.
type Engine struct {
	Store    *store.Store
	LLM      llm.Client
	Embedder Embedder

	cfg config.Config

	winMu   sync.Mutex
	windows []*Window

	embedCh chan string
	stopCh  chan struct{}

	decayRunning atomic.Bool
	aggRunning   atomic.Bool

	now func() time.Time
}

// New creates an Engine. The LLM client may be nil; summarization then
// degrades to deterministic truncation.
func New(st *store.Store, client llm.Client, cfg config.Config) *Engine {
	return &Engine{
		Store:    st,
		LLM:      client,
		Embedder: NewHashEmbedder(cfg.Embedding.Dimensions),
		cfg:      cfg,
		embedCh:  make(chan string, 256),
		stopCh:   make(chan struct{}),
		now:      time.Now,
	}
}

// SetEmbedder swaps the embedding provider.
func (e *Engine) SetEmbedder(emb Embedder) { e.Embedder = emb }

// SetClock overrides the engine's time source, for tests. The store shares it.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
	e.Store.SetClock(now)
}

func (e *Engine) nowMilli() int64 { return e.now().UnixMilli() }

// Start launches the background loops: the single-flight embed worker and
// the three independent sweeps (feedback tick, decay, dialogue aggregation).
// Each sweep tolerates overlapping invocations via its already-running guard.
func (e *Engine) Start() {
	go e.embedWorker()

	if updated := e.DecayUnused(); updated > 0 {
		log.Printf("decay: updated %d entries at startup", updated)
	}

	go e.loop(e.cfg.Feedback.TickInterval, func() { e.FeedbackTick() })
	go e.loop(e.cfg.Decay.Interval, func() {
		if updated := e.DecayUnused(); updated > 0 {
			log.Printf("decay: updated %d entries", updated)
		}
	})
	go e.loop(e.cfg.Dialogue.Interval, func() {
		ctx, cancel := context.WithTimeout(context.Background(), e.cfg.LLM.Timeout+time.Minute)
		defer cancel()
		if n := e.AggregateDialogues(ctx); n > 0 {
			log.Printf("dialogue: created %d aggregates", n)
		}
	})
}

func (e *Engine) loop(interval time.Duration, fn func()) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			fn()
		case <-e.stopCh:
			return
		}
	}
}

// Stop shuts down the background loops and flushes the store.
func (e *Engine) Stop() {
	close(e.stopCh)
	e.Store.Flush()
}

// EnqueueEmbed schedules a background re-embed for an entry. A full queue
// drops the request; the stale-vector sweep will pick the entry up later.
func (e *Engine) EnqueueEmbed(entryID string) {
	if !usesCache(e.Embedder) {
		return
	}
	select {
	case e.embedCh <- entryID:
	default:
	}
}

// embedWorker processes embed requests one at a time, bounding concurrent
// outbound calls to a single flight.
func (e *Engine) embedWorker() {
	for {
		select {
		case id := <-e.embedCh:
			e.embedEntry(id)
		case <-e.stopCh:
			return
		}
	}
}

func (e *Engine) embedEntry(id string) {
	entry := e.Store.FindByID(id)
	if entry == nil || entry.Disabled() {
		return
	}
	if e.Store.FreshVector(entry.ID, entry.Revision()) != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.Embedding.Timeout)
	defer cancel()
	vec, err := e.Embedder.Embed(ctx, embedText(entry))
	if err != nil {
		log.Printf("embed %s: %v", entry.ID, err)
		return
	}
	e.Store.SaveVector(entry.ID, entry.Revision(), vec)
}

// EmbedStale re-embeds every entry whose cached vector is missing or stale.
// No-op for the hash provider. Returns how many vectors were written.
func (e *Engine) EmbedStale(ctx context.Context) int {
	if !usesCache(e.Embedder) {
		return 0
	}
	embedded := 0
	for _, id := range e.Store.StaleVectorIDs() {
		entry := e.Store.FindByID(id)
		if entry == nil || entry.Disabled() {
			continue
		}
		vec, err := e.Embedder.Embed(ctx, embedText(entry))
		if err != nil {
			log.Printf("embed stale %s: %v", id, err)
			continue
		}
		e.Store.SaveVector(id, entry.Revision(), vec)
		embedded++
	}
	return embedded
}

// AddEntry stores a fact and schedules its embedding.
func (e *Engine) AddEntry(in store.AddInput) (*store.MemoryEntry, bool) {
	entry, created := e.Store.AddEntry(in)
	if entry != nil {
		e.EnqueueEmbed(entry.ID)
	}
	return entry, created
}

// DisableMemories soft-deletes matching entries.
func (e *Engine) DisableMemories(query, actor, reason, scope string) []string {
	return e.Store.Disable(query, actor, reason, scope)
}

// embedText is the canonical text embedded for an entry.
func embedText(entry *store.MemoryEntry) string {
	if entry.Summary != "" && entry.Summary != entry.Text {
		return entry.Text + " " + entry.Summary
	}
	return entry.Text
}

// queryVector embeds the query, returning nil on any failure so hybrid
// retrieval degrades to lexical-only instead of erroring.
func (e *Engine) queryVector(query string) []float64 {
	if e.Embedder == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.Embedding.Timeout)
	defer cancel()
	vec, err := e.Embedder.Embed(ctx, query)
	if err != nil {
		log.Printf("embed query: %v", err)
		return nil
	}
	if isZero(vec) {
		return nil
	}
	return vec
}

// entryVector returns an entry's vector for dense scoring. Hash embeddings
// are recomputed on demand; cached providers only trust fresh records and
// enqueue a re-embed otherwise.
func (e *Engine) entryVector(entry *store.MemoryEntry) []float64 {
	if e.Embedder == nil {
		return nil
	}
	if !usesCache(e.Embedder) {
		vec, _ := e.Embedder.Embed(context.Background(), embedText(entry))
		if isZero(vec) {
			return nil
		}
		return vec
	}
	vec := e.Store.FreshVector(entry.ID, entry.Revision())
	if vec == nil {
		e.EnqueueEmbed(entry.ID)
	}
	return vec
}

func isZero(vec []float64) bool {
	for _, v := range vec {
		if v != 0 {
			return false
		}
	}
	return true
}
