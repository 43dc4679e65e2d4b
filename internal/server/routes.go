package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hollowshell/mnemo/internal/engine"
	"github.com/hollowshell/mnemo/internal/store"
)

func (s *Server) handleBuildContext(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query    string          `json:"query"`
		Actor    string          `json:"actor"`
		Limit    int             `json:"limit"`
		Mode     string          `json:"mode"`
		Debug    bool            `json:"debug"`
		Position *store.Location `json:"position"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	res := s.engine.BuildContext(engine.ContextRequest{
		Query:    req.Query,
		Actor:    req.Actor,
		Limit:    req.Limit,
		Mode:     req.Mode,
		Debug:    req.Debug,
		Position: req.Position,
	})
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAddMemory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text       string          `json:"text"`
		Summary    string          `json:"summary"`
		Author     string          `json:"author"`
		Source     string          `json:"source"`
		Importance int             `json:"importance"`
		Tags       []string        `json:"tags"`
		Triggers   []string        `json:"triggers"`
		Location   *store.Location `json:"location"`
		Scope      string          `json:"scope"`
		Owners     []string        `json:"owners"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text required")
		return
	}

	entry, created := s.engine.AddEntry(store.AddInput{
		Text:       req.Text,
		Summary:    req.Summary,
		Author:     req.Author,
		Source:     req.Source,
		Importance: req.Importance,
		Tags:       req.Tags,
		Triggers:   req.Triggers,
		Location:   req.Location,
		Scope:      req.Scope,
		Owners:     req.Owners,
	})
	if entry == nil {
		writeError(w, http.StatusBadRequest, "empty text")
		return
	}
	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	writeJSON(w, code, map[string]any{"ok": true, "created": created, "entry": entry})
}

func (s *Server) handleDisableMemories(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query  string `json:"query"`
		Actor  string `json:"actor"`
		Reason string `json:"reason"`
		Scope  string `json:"scope"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query required")
		return
	}

	disabled := s.engine.DisableMemories(req.Query, req.Actor, req.Reason, req.Scope)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "disabled": disabled})
}

func (s *Server) handleRecentMemories(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 10
	}
	entries := s.engine.Store.Recent(limit, r.URL.Query().Get("actor"))
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) handleOpenWindow(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BotMessage string   `json:"bot_message"`
		TargetUser string   `json:"target_user"`
		MemoryRefs []string `json:"memory_refs"`
		ToolUsed   string   `json:"tool_used"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.TargetUser == "" {
		writeError(w, http.StatusBadRequest, "target_user required")
		return
	}

	win := s.engine.OpenFeedbackWindow(req.BotMessage, req.TargetUser, req.MemoryRefs, req.ToolUsed)
	writeJSON(w, http.StatusCreated, map[string]any{"id": win.ID, "timestamp": win.Timestamp})
}

func (s *Server) handlePlayerMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		User string `json:"user"`
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.User == "" {
		writeError(w, http.StatusBadRequest, "user required")
		return
	}

	s.engine.ProcessPlayerMessage(req.User, req.Text)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleResolveWindow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "windowID")
	win := s.engine.ResolveWindow(id)
	if win == nil {
		writeError(w, http.StatusNotFound, "window not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":      win.ID,
		"score":   win.AverageScore,
		"outcome": win.Outcome,
	})
}

func (s *Server) handleAddDialogue(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Participants []string `json:"participants"`
		Summary      string   `json:"summary"`
		StartedAt    int64    `json:"started_at"`
		EndedAt      int64    `json:"ended_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Summary == "" {
		writeError(w, http.StatusBadRequest, "summary required")
		return
	}

	d := s.engine.Store.AddDialogue(req.Participants, req.Summary, req.StartedAt, req.EndedAt)
	writeJSON(w, http.StatusCreated, map[string]any{"id": d.ID})
}

func (s *Server) handleDecay(w http.ResponseWriter, r *http.Request) {
	updated := s.engine.DecayUnused()
	writeJSON(w, http.StatusOK, map[string]any{"updated": updated})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Store.GetStats())
}
