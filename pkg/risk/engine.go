package risk

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/elonfeng/repradar/internal/metrics"
	"github.com/elonfeng/repradar/internal/store"
	"github.com/elonfeng/repradar/pkg/bank"
	"github.com/elonfeng/repradar/pkg/source"
)

// Engine computes composite scores from the records collectors have stored.
type Engine struct {
	store        store.Store
	log          *logrus.Logger
	lookbackDays int
	now          func() time.Time
}

// NewEngine creates a scoring engine. lookbackDays <= 0 falls back to 30.
// Regulatory records are read over a window three times longer, since
// filings and enforcement actions arrive far less often than headlines.
func NewEngine(s store.Store, log *logrus.Logger, lookbackDays int) *Engine {
	if lookbackDays <= 0 {
		lookbackDays = 30
	}
	return &Engine{store: s, log: log, lookbackDays: lookbackDays, now: time.Now}
}

// Assessment is one bank's computed composite for one day.
type Assessment struct {
	Bank      bank.Bank `json:"bank"`
	Date      time.Time `json:"date"`
	Composite Composite `json:"composite"`
}

// Score computes a bank's composite as of today without persisting it.
func (e *Engine) Score(ctx context.Context, b bank.Bank) (*Assessment, error) {
	banks, err := e.store.ListBanks(ctx)
	if err != nil {
		return nil, err
	}
	return e.scoreAt(ctx, b, banks, dateOf(e.now()))
}

// ScoreAll computes today's composite for every tracked bank.
func (e *Engine) ScoreAll(ctx context.Context) ([]Assessment, error) {
	banks, err := e.store.ListBanks(ctx)
	if err != nil {
		return nil, err
	}

	asOf := dateOf(e.now())
	assessments := make([]Assessment, 0, len(banks))
	for _, b := range banks {
		a, err := e.scoreAt(ctx, b, banks, asOf)
		if err != nil {
			return nil, err
		}
		assessments = append(assessments, *a)
	}
	return assessments, nil
}

// CalculateAndStore computes a bank's composite and persists it under
// today's date, replacing any earlier calculation for the same day.
func (e *Engine) CalculateAndStore(ctx context.Context, b bank.Bank) (*store.RiskScore, error) {
	banks, err := e.store.ListBanks(ctx)
	if err != nil {
		return nil, err
	}
	return e.calculateAndStore(ctx, b, banks)
}

// CalculateAll scores and persists every tracked bank. A failure for one
// bank is logged and skipped so the rest of the fleet still gets scored.
func (e *Engine) CalculateAll(ctx context.Context) ([]store.RiskScore, error) {
	banks, err := e.store.ListBanks(ctx)
	if err != nil {
		return nil, err
	}

	var out []store.RiskScore
	for _, b := range banks {
		rs, err := e.calculateAndStore(ctx, b, banks)
		if err != nil {
			e.log.WithError(err).WithField("bank", b.Name).Error("score calculation failed")
			continue
		}
		out = append(out, *rs)
	}
	return out, nil
}

func (e *Engine) calculateAndStore(ctx context.Context, b bank.Bank, banks []bank.Bank) (*store.RiskScore, error) {
	a, err := e.scoreAt(ctx, b, banks, dateOf(e.now()))
	if err != nil {
		return nil, err
	}

	rs := assessmentRow(a)
	if err := e.store.UpsertRiskScore(ctx, rs); err != nil {
		return nil, err
	}
	metrics.ScoreCalculations.Inc()
	return rs, nil
}

func (e *Engine) scoreAt(ctx context.Context, b bank.Bank, banks []bank.Bank, asOf time.Time) (*Assessment, error) {
	since := asOf.AddDate(0, 0, -e.lookbackDays)
	regulatorySince := asOf.AddDate(0, 0, -e.lookbackDays*3)

	media, err := e.mediaRisk(ctx, b.ID, since)
	if err != nil {
		return nil, err
	}

	peerAvgCount, err := e.peerAverageComplaints(ctx, b.ID, banks, since)
	if err != nil {
		return nil, err
	}
	complaints, err := e.complaintRisk(ctx, b.ID, since, peerAvgCount)
	if err != nil {
		return nil, err
	}

	market, err := e.marketRisk(ctx, b.ID, since)
	if err != nil {
		return nil, err
	}

	regulatory, err := e.regulatoryRisk(ctx, b.ID, asOf, regulatorySince)
	if err != nil {
		return nil, err
	}

	raw := Weight(ComponentMedia)*media +
		Weight(ComponentRegulatory)*regulatory +
		Weight(ComponentComplaints)*complaints +
		Weight(ComponentMarket)*market
	// The four observed components carry 85% of the weight; scale back to
	// the full range before comparing against peers.
	rawNormalized := raw / (1 - Weight(ComponentPeerRelative))

	peerRaws, err := e.peerRawScores(ctx, b.ID, banks, since)
	if err != nil {
		return nil, err
	}
	peerRelative := PeerRelativeRisk(rawNormalized, peerRaws)

	subs := NewSubScores(
		round1(media),
		round1(regulatory),
		round1(complaints),
		round1(market),
		round1(peerRelative),
	)
	composite, err := Aggregate(subs)
	if err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", b.Name, err)
	}

	e.log.WithFields(logrus.Fields{
		"bank":  b.Name,
		"score": composite.Score,
		"level": Level(composite.Score),
	}).Debug("computed composite score")

	return &Assessment{Bank: b, Date: asOf, Composite: composite}, nil
}

func (e *Engine) mediaRisk(ctx context.Context, bankID int64, since time.Time) (float64, error) {
	avg, ok, err := e.store.AvgSignalSentiment(ctx, bankID, source.SignalNews, since)
	if err != nil {
		return 0, fmt.Errorf("media component: %w", err)
	}
	if !ok {
		return NeutralScore, nil
	}
	return SentimentToRisk(avg), nil
}

func (e *Engine) complaintRisk(ctx context.Context, bankID int64, since time.Time, peerAvgCount float64) (float64, error) {
	total, err := e.store.CountComplaints(ctx, bankID, since)
	if err != nil {
		return 0, fmt.Errorf("complaint component: %w", err)
	}
	disputed, untimely, err := e.store.CountDisputedUntimely(ctx, bankID, since)
	if err != nil {
		return 0, fmt.Errorf("complaint component: %w", err)
	}
	return ComplaintRiskFromCounts(total, disputed, untimely, peerAvgCount), nil
}

func (e *Engine) marketRisk(ctx context.Context, bankID int64, since time.Time) (float64, error) {
	bars, err := e.store.MarketWindow(ctx, bankID, since)
	if err != nil {
		return 0, fmt.Errorf("market component: %w", err)
	}
	if len(bars) == 0 {
		return NeutralScore, nil
	}
	return NormalizeMarketWindow(MarketWindow{
		EarliestClose: bars[0].ClosePrice,
		LatestClose:   bars[len(bars)-1].ClosePrice,
		Volatility30d: bars[len(bars)-1].Volatility30d,
	}), nil
}

func (e *Engine) regulatoryRisk(ctx context.Context, bankID int64, asOf, since time.Time) (float64, error) {
	filingRisk := NeutralScore
	avg, ok, err := e.store.AvgFilingSentiment(ctx, bankID, since)
	if err != nil {
		return 0, fmt.Errorf("filing component: %w", err)
	}
	if ok {
		filingRisk = SentimentToRisk(avg)
	}

	actions, err := e.store.ListActions(ctx, store.ActionOpts{BankID: bankID, Since: since, Limit: 1000})
	if err != nil {
		return 0, fmt.Errorf("enforcement component: %w", err)
	}
	enforcementRisk := NormalizeEnforcement(actions, asOf, e.lookbackDays*3)

	return filingRisk*0.4 + enforcementRisk*0.6, nil
}

// peerAverageComplaints is the mean complaint count across the other
// tracked banks over the same window.
func (e *Engine) peerAverageComplaints(ctx context.Context, bankID int64, banks []bank.Bank, since time.Time) (float64, error) {
	sum, n := 0, 0
	for _, peer := range banks {
		if peer.ID == bankID {
			continue
		}
		count, err := e.store.CountComplaints(ctx, peer.ID, since)
		if err != nil {
			return 0, fmt.Errorf("peer complaints: %w", err)
		}
		sum += count
		n++
	}
	if n == 0 {
		return 0, nil
	}
	return float64(sum) / float64(n), nil
}

// peerRawScores estimates a raw composite for every other bank from media
// sentiment and complaint volume alone, with the remaining components held
// neutral. Good enough for relative positioning without scoring the whole
// fleet recursively.
func (e *Engine) peerRawScores(ctx context.Context, bankID int64, banks []bank.Bank, since time.Time) ([]float64, error) {
	var raws []float64
	for _, peer := range banks {
		if peer.ID == bankID {
			continue
		}

		mediaRisk := NeutralScore
		avg, ok, err := e.store.AvgSignalSentiment(ctx, peer.ID, source.SignalNews, since)
		if err != nil {
			return nil, fmt.Errorf("peer media: %w", err)
		}
		if ok {
			mediaRisk = SentimentToRisk(avg)
		}

		count, err := e.store.CountComplaints(ctx, peer.ID, since)
		if err != nil {
			return nil, fmt.Errorf("peer complaints: %w", err)
		}

		raws = append(raws, mediaRisk*0.5+complaintVolumeRisk(count)*0.3+NeutralScore*0.2)
	}
	return raws, nil
}

func assessmentRow(a *Assessment) *store.RiskScore {
	sub := func(c Component) *float64 {
		for _, s := range a.Composite.SubScores {
			if s.Component == c {
				v := s.Value
				return &v
			}
		}
		return nil
	}
	return &store.RiskScore{
		BankID:              a.Bank.ID,
		ScoreDate:           a.Date,
		CompositeScore:      a.Composite.Score,
		MediaSentimentScore: sub(ComponentMedia),
		RegulatoryScore:     sub(ComponentRegulatory),
		ComplaintScore:      sub(ComponentComplaints),
		MarketScore:         sub(ComponentMarket),
		PeerRelativeScore:   sub(ComponentPeerRelative),
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func dateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
