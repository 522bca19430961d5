// Package api provides the HTTP API for observing the market.
// GET endpoints are public (read-only observation of the published snapshot).
// POST endpoints require a bearer token.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/talgya/harvest-market/internal/agents"
	"github.com/talgya/harvest-market/internal/commodity"
	"github.com/talgya/harvest-market/internal/engine"
	"github.com/talgya/harvest-market/internal/persistence"
)

// Server serves the market state over HTTP.
type Server struct {
	Sim         *engine.Simulation
	Eng         *engine.Engine
	DB          *persistence.DB // Optional; history endpoints answer 503 without it
	Metrics     http.Handler    // Optional
	MetricsPath string
	Addr        string
	AdminKey    string // Bearer token for POST endpoints. Empty = POST disabled.
	RunID       string

	// History queries hit SQLite; they are limited per client.
	HistoryLimiter *RateLimiter
}

// Handler builds the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/market", s.handleMarket)
	mux.HandleFunc("/api/v1/agents", s.handleAgents)
	mux.HandleFunc("/api/v1/agent/", s.handleAgentDetail)

	history := s.handleHistory
	fills := s.handleFills
	days := s.handleDays
	if s.HistoryLimiter != nil {
		history = RateLimitMiddleware(s.HistoryLimiter, history)
		fills = RateLimitMiddleware(s.HistoryLimiter, fills)
		days = RateLimitMiddleware(s.HistoryLimiter, days)
	}
	mux.HandleFunc("/api/v1/market/history", history)
	mux.HandleFunc("/api/v1/fills", fills)
	mux.HandleFunc("/api/v1/days", days)

	mux.HandleFunc("/api/v1/speed", s.adminOnly(s.handleSpeed))

	if s.Metrics != nil {
		path := s.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		mux.Handle(path, s.Metrics)
	}

	return corsMiddleware(mux)
}

// Start serves the API until ctx is done.
func (s *Server) Start(ctx context.Context) {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", s.Addr, "admin_auth", s.AdminKey != "", "journal", s.DB != nil)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("HTTP shutdown", "error", err)
		}
	}()
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS env var to a comma-separated list of allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
// GET requests pass through.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no MARKETSIM_ADMIN_KEY set)", http.StatusForbidden)
				return
			}
			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.Sim.Snapshot()
	writeJSON(w, map[string]any{
		"name":    "harvest-market",
		"run_id":  s.RunID,
		"speed":   s.Eng.Speed(),
		"running": s.Eng.Running(),
		"market":  snap.Status,
	})
}

func (s *Server) handleMarket(w http.ResponseWriter, r *http.Request) {
	snap := s.Sim.Snapshot()
	writeJSON(w, map[string]any{
		"tick":        snap.Status.Tick,
		"commodities": snap.Market,
		"trends":      snap.Trends,
		"last_report": snap.Last,
	})
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	role := r.URL.Query().Get("role")
	if role != "" && !slices.Contains(roleNames, role) {
		http.Error(w, "unknown role", http.StatusBadRequest)
		return
	}
	bankruptOnly := r.URL.Query().Get("bankrupt") == "true"

	snap := s.Sim.Snapshot()
	result := make([]engine.AgentView, 0, len(snap.Agents))
	for _, a := range snap.Agents {
		if role != "" && a.Role.String() != role {
			continue
		}
		if bankruptOnly && !a.Bankrupt {
			continue
		}
		result = append(result, a)
	}
	writeJSON(w, result)
}

// handleAgentDetail serves GET /api/v1/agent/{index}.
func (s *Server) handleAgentDetail(w http.ResponseWriter, r *http.Request) {
	idx, err := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/api/v1/agent/"))
	if err != nil {
		http.Error(w, "invalid agent index", http.StatusBadRequest)
		return
	}
	snap := s.Sim.Snapshot()
	if idx < 0 || idx >= len(snap.Agents) {
		http.Error(w, "agent not found", http.StatusNotFound)
		return
	}
	writeJSON(w, snap.Agents[idx])
}

// handleHistory serves GET /api/v1/market/history?commodity=corn&limit=50.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "journal not available", http.StatusServiceUnavailable)
		return
	}
	k, err := commodity.Parse(r.URL.Query().Get("commodity"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	stats, err := s.DB.RecentStats(k, queryLimit(r, 50, 1000))
	if err != nil {
		slog.Error("history query failed", "commodity", k, "error", err)
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, stats)
}

// handleFills serves GET /api/v1/fills?limit=100, newest first.
func (s *Server) handleFills(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "journal not available", http.StatusServiceUnavailable)
		return
	}
	fills, err := s.DB.RecentFills(queryLimit(r, 100, 1000))
	if err != nil {
		slog.Error("fills query failed", "error", err)
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, fills)
}

// handleDays serves GET /api/v1/days?limit=30.
func (s *Server) handleDays(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "journal not available", http.StatusServiceUnavailable)
		return
	}
	days, err := s.DB.RecentDays(queryLimit(r, 30, 365))
	if err != nil {
		slog.Error("days query failed", "error", err)
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, days)
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var req struct {
			Speed float64 `json:"speed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.Speed < 0 || req.Speed > 1000 {
			http.Error(w, "speed must be 0-1000", http.StatusBadRequest)
			return
		}
		s.Eng.SetSpeed(req.Speed)
		slog.Info("speed changed", "speed", req.Speed)
	}

	writeJSON(w, map[string]float64{"speed": s.Eng.Speed()})
}

func queryLimit(r *http.Request, def, ceiling int) int {
	limit := def
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > ceiling {
		limit = ceiling
	}
	return limit
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}

// roleNames lists the values accepted by the agents role filter.
var roleNames = []string{
	agents.RoleHousehold.String(),
	agents.RoleSeedMerchant.String(),
	agents.RoleFarmer.String(),
}
