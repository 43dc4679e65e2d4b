package engine

// DecayUnused shrinks the reinforcement weight of entries untouched by
// content edits or positive feedback for longer than the configured idle
// threshold. The already-running guard makes overlapping timer fires no-ops.
// Runs at startup and then periodically via Engine.Start.
func (e *Engine) DecayUnused() int {
	if !e.decayRunning.CompareAndSwap(false, true) {
		return 0
	}
	defer e.decayRunning.Store(false)
	return e.Store.Decay(e.cfg.Decay.After, e.cfg.Decay.Rate)
}
