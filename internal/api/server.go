// Package api provides the HTTP surface of the shelter.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/talgya/shelter/internal/config"
	"github.com/talgya/shelter/internal/persistence"
	"github.com/talgya/shelter/internal/shelter"
)

// Server serves simulation state over HTTP and drives day advancement.
type Server struct {
	Shelter  *shelter.Shelter
	Cfg      config.Config
	DB       *persistence.DB // optional audit store, nil = disabled
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	mux := http.NewServeMux()

	// Public endpoints (GET, read-only — anyone can check in on the shelter).
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/agents", s.handleAgents)
	mux.HandleFunc("/api/v1/agent/", s.handleAgentDetail)
	mux.HandleFunc("/api/v1/live", s.handleLive)
	mux.HandleFunc("/api/v1/proposals", s.handleProposals)
	mux.HandleFunc("/api/v1/history", s.handleHistory)
	mux.HandleFunc("/api/v1/events", s.handleEvents)

	// Admin endpoints (POST, require bearer token).
	mux.HandleFunc("/api/v1/run", s.adminOnly(s.handleRun))
	mux.HandleFunc("/api/v1/reset", s.adminOnly(s.handleReset))

	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth and the POST method.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if s.AdminKey == "" {
			http.Error(w, "admin endpoints disabled (no SHELTER_ADMIN_KEY set)", http.StatusForbidden)
			return
		}
		if !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.Shelter.State()

	alive := 0
	for _, a := range snap.Agents {
		if a.Alive {
			alive++
		}
	}

	status := map[string]any{
		"day":                 snap.Day,
		"remaining_resources": snap.RemainingResources,
		"total_resources":     snap.TotalResources,
		"system_efficiency":   snap.SystemEfficiency,
		"elimination_count":   snap.EliminationCount,
		"allocation_method":   snap.AllocationMethod,
		"alive_count":         alive,
		"agent_count":         len(snap.Agents),
		"global_tokens":       snap.GlobalTokensConsumed,
		"token_budget":        snap.TotalSimulationBudget,
	}
	if over := s.Shelter.GameOver(); over != nil {
		status["game_over"] = over
	}
	writeJSON(w, status)
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Shelter.State().Agents)
}

func (s *Server) handleAgentDetail(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/api/v1/agent/")
	if name == "" || strings.Contains(name, "/") {
		http.Error(w, "usage: /api/v1/agent/:name", http.StatusBadRequest)
		return
	}

	view, ok := s.Shelter.AgentState(name)
	if !ok {
		http.Error(w, "agent not found", http.StatusNotFound)
		return
	}
	writeJSON(w, view)
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Shelter.LiveState())
}

func (s *Server) handleProposals(w http.ResponseWriter, r *http.Request) {
	proposals := s.Shelter.State().Proposals
	if proposals == nil {
		proposals = []shelter.ProposalView{}
	}
	writeJSON(w, proposals)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	history := s.Shelter.History()
	if history == nil {
		history = []shelter.DaySummary{}
	}
	writeJSON(w, history)
}

// handleEvents serves the archived event log when the audit store is enabled,
// falling back to the in-memory history otherwise.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	if s.DB != nil {
		events, err := s.DB.RecentEvents(limit)
		if err == nil {
			if events == nil {
				events = []persistence.ArchivedEvent{}
			}
			writeJSON(w, events)
			return
		}
		slog.Error("event query failed", "error", err)
	}

	var events []shelter.Event
	for _, summary := range s.Shelter.History() {
		events = append(events, summary.Events...)
	}
	if len(events) > limit {
		events = events[len(events)-limit:]
	}
	if events == nil {
		events = []shelter.Event{}
	}
	writeJSON(w, events)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if over := s.Shelter.GameOver(); over != nil {
		w.WriteHeader(http.StatusConflict)
		writeJSON(w, map[string]any{"error": "game over", "game_over": over})
		return
	}

	summary, err := s.Shelter.RunDay(r.Context())
	if errors.Is(err, shelter.ErrDayRunning) {
		w.WriteHeader(http.StatusConflict)
		writeJSON(w, map[string]any{"error": "day already running"})
		return
	}
	if err != nil {
		slog.Error("day failed", "error", err)
		http.Error(w, "day failed", http.StatusInternalServerError)
		return
	}

	if s.DB != nil {
		if err := s.DB.SaveDay(summary); err != nil {
			slog.Error("audit save failed", "day", summary.Day, "error", err)
		}
	}

	resp := map[string]any{"summary": summary}
	if over := s.Shelter.GameOver(); over != nil {
		resp["game_over"] = over
	}
	writeJSON(w, resp)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.Shelter.Reset(); err != nil {
		w.WriteHeader(http.StatusConflict)
		writeJSON(w, map[string]any{"error": "day already running"})
		return
	}

	if s.DB != nil {
		if _, err := s.DB.BeginRun(s.Cfg.AgentNames(), s.Cfg.TotalResources,
			s.Cfg.SurvivalCostBase, s.Cfg.TotalSimulationBudget); err != nil {
			slog.Error("audit run start failed", "error", err)
		}
	}

	writeJSON(w, map[string]any{"status": "reset", "day": s.Shelter.Day()})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("JSON encode error", "error", err)
	}
}
