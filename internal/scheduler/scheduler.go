// Package scheduler drives the daemon: collection at three cadences,
// daily score recalculation, and threshold alerting.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/elonfeng/repradar/internal/metrics"
	"github.com/elonfeng/repradar/internal/store"
	"github.com/elonfeng/repradar/pkg/alert"
	"github.com/elonfeng/repradar/pkg/bank"
	"github.com/elonfeng/repradar/pkg/risk"
	"github.com/elonfeng/repradar/pkg/source"
)

// Groups partitions collectors by cadence: complaints and news run often,
// market data daily, filings and enforcement weekly.
type Groups struct {
	Frequent   []source.Collector
	Market     []source.Collector
	Regulatory []source.Collector
}

// Intervals sets the tick cadence per concern. Zero values fall back to
// the defaults.
type Intervals struct {
	Collect    time.Duration
	Market     time.Duration
	Regulatory time.Duration
	Score      time.Duration
}

// Scheduler runs periodic collection, scoring, and alerting.
type Scheduler struct {
	store     store.Store
	groups    Groups
	engine    *risk.Engine
	alerts    *alert.Manager
	log       *logrus.Logger
	intervals Intervals
}

// New creates a scheduler.
func New(s store.Store, groups Groups, engine *risk.Engine, alerts *alert.Manager, log *logrus.Logger, iv Intervals) *Scheduler {
	if iv.Collect <= 0 {
		iv.Collect = 6 * time.Hour
	}
	if iv.Market <= 0 {
		iv.Market = 24 * time.Hour
	}
	if iv.Regulatory <= 0 {
		iv.Regulatory = 7 * 24 * time.Hour
	}
	if iv.Score <= 0 {
		iv.Score = 24 * time.Hour
	}
	if log == nil {
		log = logrus.New()
	}
	return &Scheduler{
		store:     s,
		groups:    groups,
		engine:    engine,
		alerts:    alerts,
		log:       log,
		intervals: iv,
	}
}

// Run starts the scheduler loop. Blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	collectTicker := time.NewTicker(s.intervals.Collect)
	marketTicker := time.NewTicker(s.intervals.Market)
	regulatoryTicker := time.NewTicker(s.intervals.Regulatory)
	scoreTicker := time.NewTicker(s.intervals.Score)
	defer collectTicker.Stop()
	defer marketTicker.Stop()
	defer regulatoryTicker.Stop()
	defer scoreTicker.Stop()

	// Fill the store before the first tick.
	s.CollectAll(ctx)
	s.Recalculate(ctx)

	s.log.WithFields(logrus.Fields{
		"collect":    s.intervals.Collect,
		"market":     s.intervals.Market,
		"regulatory": s.intervals.Regulatory,
		"score":      s.intervals.Score,
	}).Info("scheduler running")

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return ctx.Err()
		case <-collectTicker.C:
			s.collectGroup(ctx, "frequent", s.groups.Frequent)
		case <-marketTicker.C:
			s.collectGroup(ctx, "market", s.groups.Market)
		case <-regulatoryTicker.C:
			s.collectGroup(ctx, "regulatory", s.groups.Regulatory)
		case <-scoreTicker.C:
			s.Recalculate(ctx)
		}
	}
}

// CollectAll runs every collector group once and reports what landed.
func (s *Scheduler) CollectAll(ctx context.Context) store.ApplyStats {
	stats := s.collectGroup(ctx, "frequent", s.groups.Frequent)
	stats.Add(s.collectGroup(ctx, "market", s.groups.Market))
	stats.Add(s.collectGroup(ctx, "regulatory", s.groups.Regulatory))
	return stats
}

// Recalculate recomputes every bank's composite score, then fires alerts
// for banks whose score crossed their configured threshold.
func (s *Scheduler) Recalculate(ctx context.Context) {
	scores, err := s.engine.CalculateAll(ctx)
	if err != nil {
		s.log.WithError(err).Error("score recalculation failed")
		return
	}
	s.evaluateAlerts(ctx, scores)
}

// collectGroup fans the group's collectors out across every tracked bank
// and applies each batch as it lands.
func (s *Scheduler) collectGroup(ctx context.Context, name string, collectors []source.Collector) store.ApplyStats {
	if len(collectors) == 0 {
		return store.ApplyStats{}
	}

	banks, err := s.store.ListBanks(ctx)
	if err != nil {
		s.log.WithError(err).Error("list banks")
		return store.ApplyStats{}
	}

	var (
		mu    sync.Mutex
		total store.ApplyStats
		wg    sync.WaitGroup
		sem   = make(chan struct{}, 4) // concurrency limit across upstreams
	)

	for _, c := range collectors {
		for _, bk := range banks {
			wg.Add(1)
			go func(c source.Collector, bk bank.Bank) {
				defer wg.Done()
				sem <- struct{}{}
				defer func() { <-sem }()

				batch, err := c.Collect(ctx, bk)
				switch {
				case errors.Is(err, source.ErrUnavailable):
					metrics.CollectorRuns.WithLabelValues(string(c.Name()), "unavailable").Inc()
					s.log.WithFields(logrus.Fields{"source": c.Name(), "bank": bk.Name}).Debug(err)
					return
				case err != nil:
					metrics.CollectorRuns.WithLabelValues(string(c.Name()), "error").Inc()
					s.log.WithError(err).WithFields(logrus.Fields{"source": c.Name(), "bank": bk.Name}).Warn("collection failed")
					return
				}

				stats, err := s.store.ApplyBatch(ctx, batch)
				if err != nil {
					metrics.CollectorRuns.WithLabelValues(string(c.Name()), "error").Inc()
					s.log.WithError(err).WithFields(logrus.Fields{"source": c.Name(), "bank": bk.Name}).Error("store batch failed")
					return
				}

				metrics.CollectorRuns.WithLabelValues(string(c.Name()), "ok").Inc()
				recordIngested(stats)

				mu.Lock()
				total.Add(stats)
				mu.Unlock()
			}(c, bk)
		}
	}
	wg.Wait()

	s.log.WithFields(logrus.Fields{
		"group":   name,
		"records": total.Total(),
	}).Info("collection finished")
	return total
}

func (s *Scheduler) evaluateAlerts(ctx context.Context, scores []store.RiskScore) {
	if s.alerts == nil || !s.alerts.HasNotifiers() {
		return
	}

	thresholds, err := s.store.Thresholds(ctx)
	if err != nil {
		s.log.WithError(err).Error("load alert thresholds")
		return
	}
	if len(thresholds) == 0 {
		return
	}
	maxByBank := make(map[int64]float64, len(thresholds))
	for _, t := range thresholds {
		maxByBank[t.BankID] = t.MaxScore
	}

	banks, err := s.store.ListBanks(ctx)
	if err != nil {
		s.log.WithError(err).Error("list banks")
		return
	}
	bankByID := make(map[int64]bank.Bank, len(banks))
	for _, b := range banks {
		bankByID[b.ID] = b
	}

	for i := range scores {
		rs := &scores[i]
		maxScore, ok := maxByBank[rs.BankID]
		if !ok || rs.CompositeScore <= maxScore || rs.Alerted {
			continue
		}
		bk, ok := bankByID[rs.BankID]
		if !ok {
			continue
		}

		n := &alert.Notification{
			Bank:      bk,
			Score:     rs.CompositeScore,
			Threshold: maxScore,
			Level:     risk.Level(rs.CompositeScore),
			Drivers:   topDrivers(rs),
			Body: fmt.Sprintf("%s's composite reputation risk score reached %.0f, above the configured threshold of %.0f.",
				bk.Name, rs.CompositeScore, maxScore),
			At: time.Now().UTC(),
		}
		if err := s.alerts.Broadcast(ctx, n); err != nil {
			s.log.WithError(err).WithField("bank", bk.Name).Warn("alert delivery failed")
			continue
		}
		if err := s.store.MarkAlerted(ctx, rs.ID); err != nil {
			s.log.WithError(err).WithField("bank", bk.Name).Warn("mark alerted")
		}
		metrics.AlertsSent.Inc()
		s.log.WithFields(logrus.Fields{"bank": bk.Name, "score": rs.CompositeScore}).Info("alert sent")
	}
}

// topDrivers returns the recorded sub-scores sorted highest first, at
// most three.
func topDrivers(rs *store.RiskScore) []alert.Driver {
	subs := []struct {
		name  string
		value *float64
	}{
		{risk.DisplayName(risk.ComponentMedia), rs.MediaSentimentScore},
		{risk.DisplayName(risk.ComponentRegulatory), rs.RegulatoryScore},
		{risk.DisplayName(risk.ComponentComplaints), rs.ComplaintScore},
		{risk.DisplayName(risk.ComponentMarket), rs.MarketScore},
		{risk.DisplayName(risk.ComponentPeerRelative), rs.PeerRelativeScore},
	}

	var drivers []alert.Driver
	for _, sub := range subs {
		if sub.value == nil {
			continue
		}
		drivers = append(drivers, alert.Driver{Name: sub.name, Score: *sub.value})
	}
	sort.SliceStable(drivers, func(i, j int) bool { return drivers[i].Score > drivers[j].Score })
	if len(drivers) > 3 {
		drivers = drivers[:3]
	}
	return drivers
}

func recordIngested(stats store.ApplyStats) {
	if stats.Signals > 0 {
		metrics.RecordsIngested.WithLabelValues("signals").Add(float64(stats.Signals))
	}
	if stats.Complaints > 0 {
		metrics.RecordsIngested.WithLabelValues("complaints").Add(float64(stats.Complaints))
	}
	if stats.Bars > 0 {
		metrics.RecordsIngested.WithLabelValues("market_bars").Add(float64(stats.Bars))
	}
	if stats.Actions > 0 {
		metrics.RecordsIngested.WithLabelValues("enforcement_actions").Add(float64(stats.Actions))
	}
	if stats.Filings > 0 {
		metrics.RecordsIngested.WithLabelValues("filings").Add(float64(stats.Filings))
	}
}
