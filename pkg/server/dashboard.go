package server

import (
	"fmt"
	"math"
	"net/http"
	"sort"
	"time"

	"github.com/elonfeng/repradar/internal/store"
	"github.com/elonfeng/repradar/pkg/bank"
	"github.com/elonfeng/repradar/pkg/risk"
	"github.com/elonfeng/repradar/pkg/source"
)

// payloadKeys maps scoring components to their API field names.
var payloadKeys = map[risk.Component]string{
	risk.ComponentMedia:        "media_sentiment_score",
	risk.ComponentRegulatory:   "regulatory_score",
	risk.ComponentComplaints:   "complaint_score",
	risk.ComponentMarket:       "market_score",
	risk.ComponentPeerRelative: "peer_relative_score",
}

// scorePayload flattens an assessment into the response shape the
// dashboard consumes: the composite and each component as its own field,
// plus the top three drivers under display names.
func scorePayload(a *risk.Assessment) map[string]any {
	payload := map[string]any{
		"bank":            a.Bank,
		"score_date":      a.Date.Format("2006-01-02"),
		"composite_score": a.Composite.Score,
		"level":           risk.Level(a.Composite.Score),
	}
	for _, sub := range a.Composite.SubScores {
		payload[payloadKeys[sub.Component]] = sub.Value
	}

	drivers := make([]map[string]any, 0, len(a.Composite.TopDrivers))
	for _, d := range a.Composite.TopDrivers {
		drivers = append(drivers, map[string]any{
			"name":  risk.DisplayName(d.Component),
			"score": d.Value,
		})
	}
	payload["top_drivers"] = drivers
	return payload
}

func (s *Server) handleBanks(w http.ResponseWriter, r *http.Request) {
	banks, err := s.store.ListBanks(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  banks,
		"count": len(banks),
	})
}

func (s *Server) handleRiskScore(w http.ResponseWriter, r *http.Request) {
	bk, ok := s.bankFromPath(w, r)
	if !ok {
		return
	}

	a, err := s.engine.Score(r.Context(), *bk)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, scorePayload(a))
}

func (s *Server) handleRiskHistory(w http.ResponseWriter, r *http.Request) {
	bk, ok := s.bankFromPath(w, r)
	if !ok {
		return
	}

	days := queryInt(r, "days", 30, 1, 365)
	since := time.Now().UTC().AddDate(0, 0, -days)
	scores, err := s.store.ListRiskScores(r.Context(), bk.ID, since)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  scores,
		"count": len(scores),
	})
}

// handleOverview computes today's composite for every bank, highest risk
// first. The response is cached; a dashboard refresh inside the TTL does
// not rescore the fleet.
func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	const cacheKey = "overview"
	if s.serveCached(w, cacheKey) {
		return
	}

	assessments, err := s.engine.ScoreAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	sort.SliceStable(assessments, func(i, j int) bool {
		return assessments[i].Composite.Score > assessments[j].Composite.Score
	})

	payloads := make([]map[string]any, 0, len(assessments))
	for i := range assessments {
		payloads = append(payloads, scorePayload(&assessments[i]))
	}
	s.writeCacheable(w, cacheKey, map[string]any{
		"data":  payloads,
		"count": len(payloads),
	})
}

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	opts := store.SignalOpts{
		BankID: queryInt64(r, "bank_id"),
		Source: source.SignalSource(r.URL.Query().Get("source")),
		Limit:  queryInt(r, "limit", 50, 1, 200),
	}
	signals, err := s.store.ListSignals(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	for i := range signals {
		signals[i].Content = clip(signals[i].Content, 200)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  signals,
		"count": len(signals),
	})
}

func (s *Server) handleSignalVolume(w http.ResponseWriter, r *http.Request) {
	bankID := queryInt64(r, "bank_id")
	days := queryInt(r, "days", 30, 1, 90)
	cacheKey := fmt.Sprintf("volume:%d:%d", bankID, days)
	if s.serveCached(w, cacheKey) {
		return
	}

	since := time.Now().UTC().AddDate(0, 0, -days)
	rows, err := s.store.SignalVolume(r.Context(), bankID, since)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	for i := range rows {
		rows[i].AvgSentiment = math.Round(rows[i].AvgSentiment*1000) / 1000
	}
	s.writeCacheable(w, cacheKey, map[string]any{
		"data":  rows,
		"count": len(rows),
	})
}

func (s *Server) handleComplaintSummary(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", 90, 1, 365)
	since := time.Now().UTC().AddDate(0, 0, -days)

	rows, err := s.store.ComplaintProducts(r.Context(), queryInt64(r, "bank_id"), since, 10)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  rows,
		"count": len(rows),
	})
}

func (s *Server) handleMarketData(w http.ResponseWriter, r *http.Request) {
	bk, ok := s.bankFromPath(w, r)
	if !ok {
		return
	}

	days := queryInt(r, "days", 30, 1, 365)
	since := time.Now().UTC().AddDate(0, 0, -days)
	bars, err := s.store.MarketWindow(r.Context(), bk.ID, since)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  bars,
		"count": len(bars),
	})
}

func (s *Server) handleEnforcementActions(w http.ResponseWriter, r *http.Request) {
	bk, ok := s.bankFromPath(w, r)
	if !ok {
		return
	}

	actions, err := s.store.ListActions(r.Context(), store.ActionOpts{BankID: bk.ID, Limit: 1000})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	for i := range actions {
		actions[i].Description = clip(actions[i].Description, 500)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  actions,
		"count": len(actions),
	})
}

func (s *Server) handleFilings(w http.ResponseWriter, r *http.Request) {
	bk, ok := s.bankFromPath(w, r)
	if !ok {
		return
	}

	filings, err := s.store.ListFilings(r.Context(), bk.ID, 50)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  filings,
		"count": len(filings),
	})
}

// timelineEntry joins the acting bank onto each enforcement action for the
// cross-bank regulatory view.
type timelineEntry struct {
	Bank bank.Bank `json:"bank"`
	source.EnforcementAction
}

func (s *Server) handleRegulatoryTimeline(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", 365, 1, 1095)
	since := time.Now().UTC().AddDate(0, 0, -days)

	actions, err := s.store.ListActions(r.Context(), store.ActionOpts{Since: since, Limit: 1000})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	banks, err := s.store.ListBanks(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	bankByID := make(map[int64]bank.Bank, len(banks))
	for _, b := range banks {
		bankByID[b.ID] = b
	}

	entries := make([]timelineEntry, 0, len(actions))
	for _, a := range actions {
		a.Description = clip(a.Description, 300)
		entries = append(entries, timelineEntry{
			Bank:              bankByID[a.BankID],
			EnforcementAction: a,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  entries,
		"count": len(entries),
	})
}
