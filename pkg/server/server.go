// Package server exposes the HTTP API: dashboard reads, live risk
// scoring, what-if simulation, and the management surface for peer
// groups, watchlists, alert thresholds, and feedback.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/elonfeng/repradar/internal/cache"
	"github.com/elonfeng/repradar/internal/store"
	"github.com/elonfeng/repradar/pkg/assistant"
	"github.com/elonfeng/repradar/pkg/bank"
	"github.com/elonfeng/repradar/pkg/risk"
)

// CollectFunc triggers a one-off collection pass across all sources.
type CollectFunc func(context.Context) store.ApplyStats

// Options carries the server's optional collaborators. Any of them may be
// nil; the matching endpoints degrade instead of failing at startup.
type Options struct {
	Assistant *assistant.Client
	Cache     *cache.Cache
	Collect   CollectFunc
	Log       *logrus.Logger
}

// Server provides the HTTP API.
type Server struct {
	store     store.Store
	engine    *risk.Engine
	assistant *assistant.Client
	cache     *cache.Cache
	collect   CollectFunc
	log       *logrus.Logger
	port      int
}

// New creates a new HTTP server.
func New(s store.Store, engine *risk.Engine, port int, opts Options) *Server {
	if port == 0 {
		port = 8080
	}
	log := opts.Log
	if log == nil {
		log = logrus.New()
	}
	return &Server{
		store:     s,
		engine:    engine,
		assistant: opts.Assistant,
		cache:     opts.Cache,
		collect:   opts.Collect,
		log:       log,
		port:      port,
	}
}

// Handler returns the route table. Split out of ListenAndServe so tests
// can drive it through httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/banks", s.handleBanks)
	mux.HandleFunc("GET /api/banks/{id}/risk-score", s.handleRiskScore)
	mux.HandleFunc("GET /api/banks/{id}/risk-history", s.handleRiskHistory)
	mux.HandleFunc("GET /api/banks/{id}/market-data", s.handleMarketData)
	mux.HandleFunc("GET /api/banks/{id}/enforcement-actions", s.handleEnforcementActions)
	mux.HandleFunc("GET /api/banks/{id}/sec-filings", s.handleFilings)
	mux.HandleFunc("GET /api/dashboard/overview", s.handleOverview)
	mux.HandleFunc("GET /api/signals", s.handleSignals)
	mux.HandleFunc("GET /api/signals/volume", s.handleSignalVolume)
	mux.HandleFunc("GET /api/complaints/summary", s.handleComplaintSummary)
	mux.HandleFunc("GET /api/regulatory/timeline", s.handleRegulatoryTimeline)

	mux.HandleFunc("GET /api/peer-groups", s.handleListPeerGroups)
	mux.HandleFunc("POST /api/peer-groups", s.handleCreatePeerGroup)
	mux.HandleFunc("GET /api/peer-groups/{id}", s.handleGetPeerGroup)
	mux.HandleFunc("PUT /api/peer-groups/{id}", s.handleUpdatePeerGroup)
	mux.HandleFunc("DELETE /api/peer-groups/{id}", s.handleDeletePeerGroup)
	mux.HandleFunc("GET /api/peer-groups/{id}/statistics", s.handlePeerStatistics)

	mux.HandleFunc("GET /api/watchlist", s.handleGetWatchlist)
	mux.HandleFunc("PUT /api/watchlist", s.handleSetWatchlist)
	mux.HandleFunc("GET /api/alert-thresholds", s.handleGetThresholds)
	mux.HandleFunc("PUT /api/alert-thresholds", s.handleSetThresholds)

	mux.HandleFunc("GET /api/feedback", s.handleListFeedback)
	mux.HandleFunc("POST /api/feedback", s.handleCreateFeedback)
	mux.HandleFunc("POST /api/feedback/{id}/vote", s.handleVoteFeedback)

	mux.HandleFunc("GET /api/scenarios", s.handleScenarios)
	mux.HandleFunc("POST /api/banks/{id}/simulate", s.handleSimulate)
	mux.HandleFunc("POST /api/assistant/chat", s.handleAssistantChat)

	mux.HandleFunc("GET /api/export/overview.csv", s.handleExportOverview)
	mux.HandleFunc("GET /api/export/banks/{id}/history.csv", s.handleExportHistory)

	mux.HandleFunc("POST /api/collect", s.handleCollect)

	return mux
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.log.WithField("addr", addr).Info("api server listening")
	return http.ListenAndServe(addr, s.Handler())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCollect(w http.ResponseWriter, r *http.Request) {
	if s.collect == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("collection is not wired on this server"))
		return
	}
	stats := s.collect(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"collected": stats, "total": stats.Total()})
}

// bankFromPath resolves the {id} path segment to a registered bank,
// writing the error response itself when that fails.
func (s *Server) bankFromPath(w http.ResponseWriter, r *http.Request) (*bank.Bank, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid bank id"))
		return nil, false
	}
	bk, err := s.store.GetBank(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, fmt.Errorf("bank %d not found", id))
		return nil, false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return nil, false
	}
	return bk, true
}

// serveCached writes the cached response body for key if present.
func (s *Server) serveCached(w http.ResponseWriter, key string) bool {
	if s.cache == nil {
		return false
	}
	body, ok := s.cache.Get(key)
	if !ok {
		return false
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
	return true
}

// writeCacheable marshals data once, stores it under key, and serves it.
func (s *Server) writeCacheable(w http.ResponseWriter, key string, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if s.cache != nil {
		s.cache.Set(key, body)
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

// queryInt reads an integer query parameter, clamped to [min, max].
// Missing or malformed values fall back to def.
func queryInt(r *http.Request, name string, def, min, max int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return def
	}
	if v < min {
		v = min
	}
	if v > max {
		v = max
	}
	return v
}

func queryInt64(r *http.Request, name string) int64 {
	v, _ := strconv.ParseInt(r.URL.Query().Get(name), 10, 64)
	return v
}

// clip bounds free text for feed responses.
func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
