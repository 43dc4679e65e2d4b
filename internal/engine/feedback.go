package engine

import (
	"regexp"
	"time"

	"github.com/google/uuid"
)

// Signal is one detected reaction inside a feedback window.
type Signal struct {
	Type      string  `json:"type"`
	Weight    float64 `json:"weight"`
	Timestamp int64   `json:"timestamp"`
	Text      string  `json:"text,omitempty"`
}

// Window correlates one agent utterance with the user reactions that follow
// it. Windows resolve on timeout or explicitly; resolution is idempotent.
type Window struct {
	ID         string   `json:"id"`
	BotMessage string   `json:"botMessage"`
	TargetUser string   `json:"targetUser"`
	Timestamp  int64    `json:"timestamp"`
	MemoryRefs []string `json:"memoryRefs"`
	ToolUsed   string   `json:"toolUsed,omitempty"`
	Signals    []Signal `json:"signals"`
	Resolved   bool     `json:"resolved"`

	AverageScore float64 `json:"averageScore"`
	Outcome      string  `json:"outcome,omitempty"`
}

// signalSpec is one row of the reaction table: a label, its weight, and the
// patterns that detect it. The table is the single source of truth for
// signal detection; matchers are evaluated uniformly.
type signalSpec struct {
	label    string
	weight   float64
	patterns []*regexp.Regexp
}

func rx(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}

var signalTable = []signalSpec{
	{"gratitude", 1.0, rx(
		`(?i)\b(thanks|thank you|thx|ty)\b`,
		`谢谢|多谢|辛苦了`,
	)},
	{"affection", 0.8, rx(
		`(?i)\b(awesome|amazing|perfect|love (it|this|you)|good (bot|job)|well done|nice one)\b`,
		`太棒|真棒|好棒|厉害|喜欢你`,
	)},
	{"laughter", 0.5, rx(
		`(?i)\b(lol|lmao|rofl)\b|(?i)\bha(ha)+\b`,
		`哈哈|嘿嘿|笑死|233`,
	)},
	{"agreement", 0.6, rx(
		`(?i)\b(yes|yeah|yep|exactly|right|correct|sounds good)\b`,
		`没错|对的|好的|可以的`,
	)},
	{"task_given", 0.1, rx(
		`(?i)\b(go to|come|follow me|get me|make|build|mine|fetch|bring|help me)\b`,
		`帮我|给我|过来|跟我来`,
	)},
	{"frustration", -1.0, rx(
		`(?i)\b(stupid|dumb|useless|annoying|shut up|stop it)\b`,
		`笨蛋|傻|闭嘴|好烦`,
	)},
	{"correction", -0.8, rx(
		`(?i)\b(no|nope|wrong|not (that|right|it)|incorrect|i meant)\b`,
		`不对|不是|错了|别这样`,
	)},
	{"confusion", -0.5, rx(
		`(?i)\b(what\?|huh|confused|confusing|makes no sense)\b|don'?t understand`,
		`什么意思|看不懂|没听懂`,
	)},
}

// engagementSignal is appended when a message matches nothing but the window
// is open: silent continued chatting is not a miss.
var engagementSignal = Signal{Type: "engagement", Weight: 0.1}

func matchSignals(text string, now int64) []Signal {
	var out []Signal
	for _, spec := range signalTable {
		for _, p := range spec.patterns {
			if p.MatchString(text) {
				out = append(out, Signal{
					Type:      spec.label,
					Weight:    spec.weight,
					Timestamp: now,
					Text:      p.FindString(text),
				})
				break
			}
		}
	}
	return out
}

// OpenFeedbackWindow starts tracking reactions to an agent reply. The oldest
// window is dropped once the cap is reached.
func (e *Engine) OpenFeedbackWindow(botMessage, targetUser string, memoryRefs []string, toolUsed string) *Window {
	e.winMu.Lock()
	defer e.winMu.Unlock()

	w := &Window{
		ID:         uuid.NewString(),
		BotMessage: botMessage,
		TargetUser: targetUser,
		Timestamp:  e.nowMilli(),
		MemoryRefs: append([]string(nil), memoryRefs...),
		ToolUsed:   toolUsed,
	}
	e.windows = append(e.windows, w)
	if limit := e.cfg.Feedback.MaxWindows; limit > 0 && len(e.windows) > limit {
		e.windows = e.windows[len(e.windows)-limit:]
	}
	return w
}

// ProcessPlayerMessage scans a user message for reaction signals and feeds
// them into the user's open window, if any.
func (e *Engine) ProcessPlayerMessage(user, text string) {
	e.winMu.Lock()
	defer e.winMu.Unlock()

	w := e.openWindowFor(user)
	if w == nil {
		return
	}
	now := e.nowMilli()
	signals := matchSignals(text, now)
	if len(signals) == 0 {
		s := engagementSignal
		s.Timestamp = now
		s.Text = text
		signals = []Signal{s}
	}
	w.Signals = append(w.Signals, signals...)
}

// openWindowFor returns the newest unresolved, unexpired window for user.
// Callers hold winMu.
func (e *Engine) openWindowFor(user string) *Window {
	cutoff := e.nowMilli() - e.cfg.Feedback.WindowTTL.Milliseconds()
	for i := len(e.windows) - 1; i >= 0; i-- {
		w := e.windows[i]
		if w.Resolved || w.TargetUser != user {
			continue
		}
		if w.Timestamp < cutoff {
			continue
		}
		return w
	}
	return nil
}

// ResolveWindow closes a window and applies its score to the referenced
// entries. Calling it again returns the original resolution unchanged.
func (e *Engine) ResolveWindow(id string) *Window {
	e.winMu.Lock()
	var w *Window
	for _, cand := range e.windows {
		if cand.ID == id {
			w = cand
			break
		}
	}
	if w == nil || w.Resolved {
		e.winMu.Unlock()
		return w
	}
	e.resolveLocked(w)
	e.winMu.Unlock()

	e.applyResolution(w)
	return w
}

// resolveLocked computes the window's score and outcome. Callers hold winMu;
// store mutation happens outside the lock via applyResolution.
func (e *Engine) resolveLocked(w *Window) {
	fb := e.cfg.Feedback
	if len(w.Signals) == 0 {
		// The reply was ignored outright.
		w.AverageScore = fb.IgnoredScore
	} else {
		var sum float64
		for _, s := range w.Signals {
			sum += s.Weight
		}
		w.AverageScore = sum / float64(len(w.Signals))
	}
	switch {
	case w.AverageScore > fb.PositiveThreshold:
		w.Outcome = "positive"
	case w.AverageScore < fb.NegativeThreshold:
		w.Outcome = "negative"
	default:
		w.Outcome = "neutral"
	}
	w.Resolved = true
}

func (e *Engine) applyResolution(w *Window) {
	fb := e.cfg.Feedback
	e.Store.RecordWindow(w.Outcome)
	e.Store.ApplyFeedback(w.MemoryRefs, w.AverageScore, fb.PositiveThreshold, fb.NegativeThreshold)
}

// FeedbackTick force-resolves windows past their TTL and evicts resolved
// windows beyond the cap. Driven by a timer; safe to call any time.
func (e *Engine) FeedbackTick() {
	e.winMu.Lock()
	cutoff := e.nowMilli() - e.cfg.Feedback.WindowTTL.Milliseconds()
	var expired []*Window
	for _, w := range e.windows {
		if !w.Resolved && w.Timestamp < cutoff {
			e.resolveLocked(w)
			expired = append(expired, w)
		}
	}
	if limit := e.cfg.Feedback.MaxWindows; limit > 0 && len(e.windows) > limit {
		kept := e.windows[:0]
		over := len(e.windows) - limit
		for _, w := range e.windows {
			if over > 0 && w.Resolved {
				over--
				continue
			}
			kept = append(kept, w)
		}
		e.windows = kept
	}
	e.winMu.Unlock()

	for _, w := range expired {
		e.applyResolution(w)
	}
}

// Windows returns a copy of the current window list, newest last.
func (e *Engine) Windows() []Window {
	e.winMu.Lock()
	defer e.winMu.Unlock()
	out := make([]Window, 0, len(e.windows))
	for _, w := range e.windows {
		out = append(out, *w)
	}
	return out
}

// WindowTTL exposes the configured window lifetime.
func (e *Engine) WindowTTL() time.Duration { return e.cfg.Feedback.WindowTTL }
