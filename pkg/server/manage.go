package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/elonfeng/repradar/internal/store"
	"github.com/elonfeng/repradar/pkg/assistant"
	"github.com/elonfeng/repradar/pkg/bank"
	"github.com/elonfeng/repradar/pkg/export"
	"github.com/elonfeng/repradar/pkg/risk"
)

// peerGroupRequest is the create and update body for a peer group.
type peerGroupRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	BankIDs     []int64 `json:"bank_ids"`
}

func (s *Server) handleListPeerGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.store.ListPeerGroups(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  groups,
		"count": len(groups),
	})
}

func (s *Server) handleCreatePeerGroup(w http.ResponseWriter, r *http.Request) {
	var req peerGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, errors.New("name is required"))
		return
	}

	now := time.Now().UTC()
	group := &store.PeerGroup{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
		BankIDs:     req.BankIDs,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreatePeerGroup(r.Context(), group); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, group)
}

func (s *Server) handleGetPeerGroup(w http.ResponseWriter, r *http.Request) {
	group, err := s.store.GetPeerGroup(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, group)
}

func (s *Server) handleUpdatePeerGroup(w http.ResponseWriter, r *http.Request) {
	group, err := s.store.GetPeerGroup(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	var req peerGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if strings.TrimSpace(req.Name) != "" {
		group.Name = req.Name
	}
	group.Description = req.Description
	group.BankIDs = req.BankIDs
	group.UpdatedAt = time.Now().UTC()

	if err := s.store.UpdatePeerGroup(r.Context(), group); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, group)
}

func (s *Server) handleDeletePeerGroup(w http.ResponseWriter, r *http.Request) {
	err := s.store.DeletePeerGroup(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handlePeerStatistics scores the whole fleet live and benchmarks the
// group's members against their own average.
func (s *Server) handlePeerStatistics(w http.ResponseWriter, r *http.Request) {
	group, err := s.store.GetPeerGroup(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	assessments, err := s.engine.ScoreAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	stats := risk.ComputePeerStatistics(assessments, group.BankIDs)
	writeJSON(w, http.StatusOK, map[string]any{
		"group":      group,
		"statistics": stats,
	})
}

func (s *Server) handleGetWatchlist(w http.ResponseWriter, r *http.Request) {
	ids, err := s.store.Watchlist(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	banks, err := s.store.ListBanks(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	watched := make(map[int64]bool, len(ids))
	for _, id := range ids {
		watched[id] = true
	}

	data := make([]bank.Bank, 0, len(ids))
	for _, b := range banks {
		if watched[b.ID] {
			data = append(data, b)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  data,
		"count": len(data),
	})
}

func (s *Server) handleSetWatchlist(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BankIDs []int64 `json:"bank_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if err := s.store.SetWatchlist(r.Context(), req.BankIDs); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bank_ids": req.BankIDs})
}

func (s *Server) handleGetThresholds(w http.ResponseWriter, r *http.Request) {
	thresholds, err := s.store.Thresholds(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  thresholds,
		"count": len(thresholds),
	})
}

func (s *Server) handleSetThresholds(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Thresholds []store.Threshold `json:"thresholds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	for _, t := range req.Thresholds {
		if t.MaxScore < 0 || t.MaxScore > 100 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("max_score %v outside [0,100]", t.MaxScore))
			return
		}
	}
	if err := s.store.SetThresholds(r.Context(), req.Thresholds); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  req.Thresholds,
		"count": len(req.Thresholds),
	})
}

func (s *Server) handleListFeedback(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.ListFeedback(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  items,
		"count": len(items),
	})
}

func (s *Server) handleCreateFeedback(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type        string `json:"type"`
		Title       string `json:"title"`
		Description string `json:"description"`
		Category    string `json:"category"`
		Priority    string `json:"priority"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(w, http.StatusBadRequest, errors.New("title is required"))
		return
	}
	if req.Type == "" {
		req.Type = "feature"
	}
	if req.Priority == "" {
		req.Priority = "medium"
	}

	item := &store.Feedback{
		ID:          uuid.NewString(),
		Type:        req.Type,
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Priority:    req.Priority,
		Status:      "open",
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.CreateFeedback(r.Context(), item); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (s *Server) handleVoteFeedback(w http.ResponseWriter, r *http.Request) {
	err := s.store.VoteFeedback(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleScenarios(w http.ResponseWriter, r *http.Request) {
	presets := risk.Presets()
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  presets,
		"count": len(presets),
	})
}

// simulateRequest selects a preset scenario by name, or supplies custom
// per-component shock deltas.
type simulateRequest struct {
	Scenario string             `json:"scenario"`
	Shocks   map[string]float64 `json:"shocks"`
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	bk, ok := s.bankFromPath(w, r)
	if !ok {
		return
	}

	var req simulateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	var sc risk.Scenario
	switch {
	case req.Scenario != "":
		preset, found := risk.PresetByName(req.Scenario)
		if !found {
			writeError(w, http.StatusBadRequest, fmt.Errorf("unknown scenario %q", req.Scenario))
			return
		}
		sc = preset
	case len(req.Shocks) > 0:
		sc = risk.Scenario{Name: "custom", Label: "Custom shock", Shocks: make(map[risk.Component]float64, len(req.Shocks))}
		for name, delta := range req.Shocks {
			sc.Shocks[risk.Component(name)] = delta
		}
	default:
		writeError(w, http.StatusBadRequest, errors.New("scenario or shocks required"))
		return
	}

	baseline, err := s.engine.Score(r.Context(), *bk)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	simulated, err := risk.Simulate(baseline.Composite.SubScores, sc)
	if errors.Is(err, risk.ErrInvalidInput) {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"bank":      bk,
		"scenario":  sc,
		"baseline":  baseline.Composite,
		"simulated": simulated,
		"delta":     simulated.Score - baseline.Composite.Score,
	})
}

// chatRequest is the analyst Q&A body: prior turns plus the new question.
type chatRequest struct {
	Messages []assistant.Message `json:"messages"`
}

func (s *Server) handleAssistantChat(w http.ResponseWriter, r *http.Request) {
	if s.assistant == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("assistant is not configured"))
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, errors.New("messages required"))
		return
	}

	reply, err := s.assistant.Chat(r.Context(), s.assistantContext(r), req.Messages)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"reply": reply,
		"model": s.assistant.Model(),
	})
}

// assistantContext builds the system prompt: the assistant's role plus the
// latest stored score for every bank so answers cite current numbers.
func (s *Server) assistantContext(r *http.Request) string {
	var b strings.Builder
	b.WriteString("You are a reputation risk analyst assistant for a banking intelligence platform. ")
	b.WriteString("Answer concisely using the current data below. Scores run 0-100, higher is riskier.\n")

	banks, err := s.store.ListBanks(r.Context())
	if err != nil {
		return b.String()
	}
	b.WriteString("Latest composite risk scores:\n")
	for _, bk := range banks {
		rs, err := s.store.LatestRiskScore(r.Context(), bk.ID)
		if err != nil || rs == nil {
			continue
		}
		fmt.Fprintf(&b, "- %s (%s): %.0f (%s) as of %s\n",
			bk.Name, bk.Ticker, rs.CompositeScore, risk.Level(rs.CompositeScore), rs.ScoreDate.Format("2006-01-02"))
	}
	return b.String()
}

func (s *Server) handleExportOverview(w http.ResponseWriter, r *http.Request) {
	assessments, err := s.engine.ScoreAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	sort.SliceStable(assessments, func(i, j int) bool {
		return assessments[i].Composite.Score > assessments[j].Composite.Score
	})

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="risk-overview.csv"`)
	if err := export.WriteOverview(w, assessments); err != nil {
		s.log.WithError(err).Error("write overview csv")
	}
}

func (s *Server) handleExportHistory(w http.ResponseWriter, r *http.Request) {
	bk, ok := s.bankFromPath(w, r)
	if !ok {
		return
	}

	days := queryInt(r, "days", 90, 1, 1095)
	since := time.Now().UTC().AddDate(0, 0, -days)
	scores, err := s.store.ListRiskScores(r.Context(), bk.ID, since)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("%s-history.csv", bk.Ticker)))
	if err := export.WriteHistory(w, bk.Name, scores); err != nil {
		s.log.WithError(err).Error("write history csv")
	}
}
