package risk

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/repradar/internal/store"
	"github.com/elonfeng/repradar/pkg/bank"
	"github.com/elonfeng/repradar/pkg/source"
)

func newEngineFixture(t *testing.T) (*Engine, *store.SQLiteStore, []bank.Bank) {
	t.Helper()

	st, err := store.New(filepath.Join(t.TempDir(), "engine.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	banks, err := st.EnsureBanks(context.Background(), []bank.Bank{
		{Name: "First National", Ticker: "FNB"},
		{Name: "Second Street", Ticker: "SSB"},
		{Name: "Third Coast", Ticker: "TCB"},
	})
	require.NoError(t, err)

	log := logrus.New()
	log.SetOutput(io.Discard)

	e := NewEngine(st, log, 30)
	e.now = func() time.Time { return time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC) }
	return e, st, banks
}

func TestNewEngine_LookbackDefault(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	e := NewEngine(nil, log, 0)
	assert.Equal(t, 30, e.lookbackDays)

	e = NewEngine(nil, log, 14)
	assert.Equal(t, 14, e.lookbackDays)
}

func TestEngine_Score_NoDataIsNeutral(t *testing.T) {
	e, _, banks := newEngineFixture(t)

	a, err := e.Score(context.Background(), banks[0])
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC), a.Date)

	// media and market sit at neutral, complaints read the neutral-low 30,
	// and regulatory blends a neutral filing read with the empty-docket 10
	subs := a.Composite.SubScores
	require.Len(t, subs, 5)
	assert.Equal(t, 50.0, subs[0].Value)
	assert.Equal(t, 26.0, subs[1].Value)
	assert.Equal(t, 30.0, subs[2].Value)
	assert.Equal(t, 50.0, subs[3].Value)
	assert.Equal(t, 59.2, subs[4].Value)

	assert.Equal(t, 41.0, a.Composite.Score)
	assert.Equal(t, "medium", Level(a.Composite.Score))
}

func seedEngineData(t *testing.T, st *store.SQLiteStore, banks []bank.Bank) {
	t.Helper()
	ctx := context.Background()
	b1, b2, b3 := banks[0], banks[1], banks[2]

	awful, bad, filing := -1.0, -0.6, -0.5
	batch := source.Batch{
		Signals: []source.Signal{
			{BankID: b1.ID, Source: source.SignalNews, Title: "money laundering probe", URL: "https://n.example/1",
				PublishedAt: time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC), SentimentScore: &awful,
				CollectedAt: time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)},
			{BankID: b1.ID, Source: source.SignalNews, Title: "branch layoffs", URL: "https://n.example/2",
				PublishedAt: time.Date(2026, 2, 12, 9, 0, 0, 0, time.UTC), SentimentScore: &bad,
				CollectedAt: time.Date(2026, 2, 12, 0, 0, 0, 0, time.UTC)},
		},
		Bars: []source.MarketBar{
			{BankID: b1.ID, Date: time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC), ClosePrice: 100},
			{BankID: b1.ID, Date: time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC), ClosePrice: 90},
		},
		Actions: []source.EnforcementAction{
			{ActionID: "occ:1", BankID: b1.ID, Agency: "OCC", ActionDate: time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC),
				ActionType: "Cease and Desist Order", Severity: 5},
		},
		Filings: []source.Filing{
			{BankID: b1.ID, CIK: "1", FilingType: "10-Q", FiledDate: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
				URL: "https://sec.example/10q", SentimentScore: &filing},
		},
	}
	for i := 0; i < 4; i++ {
		c := source.Complaint{
			ComplaintID:    string(rune('A' + i)),
			BankID:         b1.ID,
			DateReceived:   time.Date(2026, 2, 5, 0, 0, 0, 0, time.UTC),
			Product:        "Checking account",
			TimelyResponse: true,
		}
		switch i {
		case 0:
			c.ConsumerDisputed = true
		case 1:
			c.TimelyResponse = false
		}
		batch.Complaints = append(batch.Complaints, c)
	}
	for i, peer := range []bank.Bank{b2, b3} {
		for j := 0; j < 2; j++ {
			batch.Complaints = append(batch.Complaints, source.Complaint{
				ComplaintID:    string(rune('P'+i)) + string(rune('0'+j)),
				BankID:         peer.ID,
				DateReceived:   time.Date(2026, 2, 6, 0, 0, 0, 0, time.UTC),
				Product:        "Mortgage",
				TimelyResponse: true,
			})
		}
	}

	_, err := st.ApplyBatch(ctx, batch)
	require.NoError(t, err)
}

func TestEngine_Score_BlendsComponents(t *testing.T) {
	e, st, banks := newEngineFixture(t)
	seedEngineData(t, st, banks)

	a, err := e.Score(context.Background(), banks[0])
	require.NoError(t, err)

	subs := a.Composite.SubScores
	require.Len(t, subs, 5)

	// avg sentiment -0.8 maps to 90
	assert.Equal(t, 90.0, subs[0].Value)
	// filing risk 75 at 40% plus a fresh severity-5 action at 60%
	assert.InDelta(t, 50.0, subs[1].Value, 1e-9)
	// twice the peer complaint volume plus dispute and untimely rates
	assert.Equal(t, 62.5, subs[2].Value)
	// a 10% selloff with no volatility series
	assert.Equal(t, 80.0, subs[3].Value)
	// far above the quiet peers, clamped at the ceiling
	assert.Equal(t, 100.0, subs[4].Value)

	assert.Equal(t, 75.0, a.Composite.Score)
	assert.Equal(t, "high", Level(a.Composite.Score))

	require.Len(t, a.Composite.TopDrivers, 3)
	assert.Equal(t, ComponentPeerRelative, a.Composite.TopDrivers[0].Component)
	assert.Equal(t, ComponentMedia, a.Composite.TopDrivers[1].Component)
}

func TestEngine_ScoreAll(t *testing.T) {
	e, st, banks := newEngineFixture(t)
	seedEngineData(t, st, banks)

	assessments, err := e.ScoreAll(context.Background())
	require.NoError(t, err)
	require.Len(t, assessments, 3)

	assert.Equal(t, banks[0].ID, assessments[0].Bank.ID)
	for _, a := range assessments {
		assert.GreaterOrEqual(t, a.Composite.Score, 0.0)
		assert.LessOrEqual(t, a.Composite.Score, 100.0)
		assert.Len(t, a.Composite.SubScores, 5)
	}
}

func TestEngine_CalculateAndStore(t *testing.T) {
	e, st, banks := newEngineFixture(t)
	seedEngineData(t, st, banks)
	ctx := context.Background()

	rs, err := e.CalculateAndStore(ctx, banks[0])
	require.NoError(t, err)
	assert.NotZero(t, rs.ID)
	assert.Equal(t, banks[0].ID, rs.BankID)
	assert.Equal(t, 75.0, rs.CompositeScore)
	assert.True(t, rs.ScoreDate.Equal(time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)))
	require.NotNil(t, rs.MediaSentimentScore)
	assert.Equal(t, 90.0, *rs.MediaSentimentScore)
	require.NotNil(t, rs.PeerRelativeScore)
	assert.Equal(t, 100.0, *rs.PeerRelativeScore)
	assert.False(t, rs.Alerted)

	// recalculating the same day keeps the alerted flag
	require.NoError(t, st.MarkAlerted(ctx, rs.ID))
	again, err := e.CalculateAndStore(ctx, banks[0])
	require.NoError(t, err)
	assert.Equal(t, rs.ID, again.ID)
	assert.True(t, again.Alerted)
}

func TestEngine_CalculateAll(t *testing.T) {
	e, st, banks := newEngineFixture(t)
	seedEngineData(t, st, banks)
	ctx := context.Background()

	rows, err := e.CalculateAll(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	for _, b := range banks {
		latest, err := st.LatestRiskScore(ctx, b.ID)
		require.NoError(t, err)
		require.NotNil(t, latest, b.Name)
	}
}
