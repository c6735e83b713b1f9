package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/repradar/internal/store"
	"github.com/elonfeng/repradar/pkg/alert"
	"github.com/elonfeng/repradar/pkg/bank"
	"github.com/elonfeng/repradar/pkg/risk"
	"github.com/elonfeng/repradar/pkg/source"
)

type stubCollector struct {
	kind  source.Kind
	err   error
	batch func(bk bank.Bank) source.Batch
	calls atomic.Int32
}

func (s *stubCollector) Name() source.Kind { return s.kind }

func (s *stubCollector) Collect(ctx context.Context, bk bank.Bank) (source.Batch, error) {
	s.calls.Add(1)
	if s.err != nil {
		return source.Batch{}, s.err
	}
	if s.batch == nil {
		return source.Batch{}, nil
	}
	return s.batch(bk), nil
}

type captureNotifier struct {
	err  error
	sent []*alert.Notification
}

func (c *captureNotifier) Name() string { return "capture" }

func (c *captureNotifier) Send(ctx context.Context, n *alert.Notification) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, n)
	return nil
}

func discardLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newSchedulerStore(t *testing.T) (*store.SQLiteStore, []bank.Bank) {
	t.Helper()

	st, err := store.New(filepath.Join(t.TempDir(), "sched.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	banks, err := st.EnsureBanks(context.Background(), []bank.Bank{
		{Name: "First National", Ticker: "FNB"},
		{Name: "Second Street", Ticker: "SSB"},
	})
	require.NoError(t, err)
	return st, banks
}

func TestNew_IntervalDefaults(t *testing.T) {
	s := New(nil, Groups{}, nil, nil, nil, Intervals{})
	assert.Equal(t, 6*time.Hour, s.intervals.Collect)
	assert.Equal(t, 24*time.Hour, s.intervals.Market)
	assert.Equal(t, 7*24*time.Hour, s.intervals.Regulatory)
	assert.Equal(t, 24*time.Hour, s.intervals.Score)

	s = New(nil, Groups{}, nil, nil, nil, Intervals{Collect: time.Hour})
	assert.Equal(t, time.Hour, s.intervals.Collect)
}

func TestScheduler_CollectAll(t *testing.T) {
	st, _ := newSchedulerStore(t)

	news := &stubCollector{kind: source.KindNewsAPI, batch: func(bk bank.Bank) source.Batch {
		return source.Batch{Signals: []source.Signal{{
			BankID:      bk.ID,
			Source:      source.SignalNews,
			Title:       "headline for " + bk.Name,
			URL:         fmt.Sprintf("https://example.com/%d", bk.ID),
			PublishedAt: time.Date(2026, 2, 14, 8, 0, 0, 0, time.UTC),
			CollectedAt: time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC),
		}}}
	}}
	broken := &stubCollector{kind: source.KindGDELT, err: errors.New("boom")}
	market := &stubCollector{kind: source.KindMarket, batch: func(bk bank.Bank) source.Batch {
		return source.Batch{Bars: []source.MarketBar{{
			BankID:     bk.ID,
			Date:       time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC),
			ClosePrice: 100,
		}}}
	}}
	offline := &stubCollector{kind: source.KindOCC, err: fmt.Errorf("occ: %w", source.ErrUnavailable)}

	s := New(st, Groups{
		Frequent:   []source.Collector{news, broken},
		Market:     []source.Collector{market},
		Regulatory: []source.Collector{offline},
	}, nil, nil, discardLogger(), Intervals{})

	stats := s.CollectAll(context.Background())
	assert.Equal(t, 2, stats.Signals, "one signal per bank")
	assert.Equal(t, 2, stats.Bars)
	assert.Equal(t, 4, stats.Total(), "failing and unavailable collectors contribute nothing")

	assert.EqualValues(t, 2, news.calls.Load(), "each collector runs once per bank")
	assert.EqualValues(t, 2, broken.calls.Load())
	assert.EqualValues(t, 2, offline.calls.Load())

	signals, err := st.ListSignals(context.Background(), store.SignalOpts{})
	require.NoError(t, err)
	assert.Len(t, signals, 2)
}

func TestCollectGroup_Empty(t *testing.T) {
	s := New(nil, Groups{}, nil, nil, discardLogger(), Intervals{})
	assert.Zero(t, s.collectGroup(context.Background(), "frequent", nil).Total())
}

func TestScheduler_Recalculate_FiresAlerts(t *testing.T) {
	st, banks := newSchedulerStore(t)
	ctx := context.Background()

	engine := risk.NewEngine(st, discardLogger(), 30)
	notifier := &captureNotifier{}
	manager := alert.NewManager([]alert.Notifier{notifier})

	s := New(st, Groups{}, engine, manager, discardLogger(), Intervals{})

	// No thresholds configured yet: scores land but nothing fires.
	s.Recalculate(ctx)
	assert.Empty(t, notifier.sent)

	require.NoError(t, st.SetThresholds(ctx, []store.Threshold{
		{BankID: banks[0].ID, MaxScore: 40},
	}))

	s.Recalculate(ctx)
	require.Len(t, notifier.sent, 1, "only the bank with a crossed threshold alerts")

	n := notifier.sent[0]
	assert.Equal(t, banks[0].ID, n.Bank.ID)
	assert.Equal(t, "First National", n.Bank.Name)
	assert.Equal(t, 40.0, n.Threshold)
	assert.Greater(t, n.Score, 40.0)
	assert.Equal(t, risk.Level(n.Score), n.Level)
	assert.Contains(t, n.Body, "First National")
	assert.NotEmpty(t, n.Drivers)
	assert.LessOrEqual(t, len(n.Drivers), 3)

	latest, err := st.LatestRiskScore(ctx, banks[0].ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.True(t, latest.Alerted)

	other, err := st.LatestRiskScore(ctx, banks[1].ID)
	require.NoError(t, err)
	require.NotNil(t, other)
	assert.False(t, other.Alerted, "no threshold, no alert")

	// Recalculating the same day must not re-alert.
	s.Recalculate(ctx)
	assert.Len(t, notifier.sent, 1)
}

func TestEvaluateAlerts_BroadcastFailureLeavesUnalerted(t *testing.T) {
	st, banks := newSchedulerStore(t)
	ctx := context.Background()

	rs := &store.RiskScore{
		BankID:         banks[0].ID,
		ScoreDate:      time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC),
		CompositeScore: 80,
	}
	require.NoError(t, st.UpsertRiskScore(ctx, rs))
	require.NoError(t, st.SetThresholds(ctx, []store.Threshold{{BankID: banks[0].ID, MaxScore: 75}}))

	notifier := &captureNotifier{err: errors.New("webhook down")}
	manager := alert.NewManager([]alert.Notifier{notifier})
	s := New(st, Groups{}, nil, manager, discardLogger(), Intervals{})

	s.evaluateAlerts(ctx, []store.RiskScore{*rs})

	latest, err := st.LatestRiskScore(ctx, banks[0].ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.False(t, latest.Alerted, "a failed delivery stays eligible for the next run")
}

func TestEvaluateAlerts_NoNotifiers(t *testing.T) {
	st, banks := newSchedulerStore(t)
	ctx := context.Background()

	require.NoError(t, st.SetThresholds(ctx, []store.Threshold{{BankID: banks[0].ID, MaxScore: 10}}))

	s := New(st, Groups{}, nil, alert.NewManager(nil), discardLogger(), Intervals{})
	s.evaluateAlerts(ctx, []store.RiskScore{{BankID: banks[0].ID, CompositeScore: 90}})

	s = New(st, Groups{}, nil, nil, discardLogger(), Intervals{})
	s.evaluateAlerts(ctx, []store.RiskScore{{BankID: banks[0].ID, CompositeScore: 90}})
}

func TestTopDrivers(t *testing.T) {
	media, complaints, market, peer := 90.0, 62.5, 80.0, 100.0
	rs := &store.RiskScore{
		MediaSentimentScore: &media,
		ComplaintScore:      &complaints,
		MarketScore:         &market,
		PeerRelativeScore:   &peer,
	}

	drivers := topDrivers(rs)
	require.Len(t, drivers, 3)
	assert.Equal(t, alert.Driver{Name: "Peer Relative", Score: 100}, drivers[0])
	assert.Equal(t, alert.Driver{Name: "Media Sentiment", Score: 90}, drivers[1])
	assert.Equal(t, alert.Driver{Name: "Market Signal", Score: 80}, drivers[2])
}

func TestTopDrivers_SkipsMissing(t *testing.T) {
	media := 55.0
	drivers := topDrivers(&store.RiskScore{MediaSentimentScore: &media})
	require.Len(t, drivers, 1)
	assert.Equal(t, "Media Sentiment", drivers[0].Name)

	assert.Empty(t, topDrivers(&store.RiskScore{}))
}
