package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/elonfeng/repradar/pkg/source"
)

func TestSentimentToRisk(t *testing.T) {
	tests := []struct {
		name     string
		polarity float64
		want     float64
	}{
		{"fully negative coverage", -1, 100},
		{"neutral coverage", 0, 50},
		{"fully positive coverage", 1, 0},
		{"mildly negative", -0.5, 75},
		{"clamps below -1", -3, 100},
		{"clamps above 1", 3, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, SentimentToRisk(tt.polarity), 1e-9)
		})
	}
}

func TestNormalizeComplaintVolume(t *testing.T) {
	t.Run("no records reads neutral-low", func(t *testing.T) {
		assert.Equal(t, 30.0, NormalizeComplaintVolume(nil, 5))
	})

	t.Run("counts disputes and untimely responses", func(t *testing.T) {
		records := []source.Complaint{
			{TimelyResponse: true, ConsumerDisputed: true},
			{TimelyResponse: false, ConsumerDisputed: false},
		}
		// Twice the peer average caps volume at 50, plus 12.5 for the
		// one dispute and 12.5 for the one late response.
		assert.InDelta(t, 75, NormalizeComplaintVolume(records, 1), 1e-9)
	})
}

func TestComplaintRiskFromCounts(t *testing.T) {
	tests := []struct {
		name                      string
		total, disputed, untimely int
		peerAvg                   float64
		want                      float64
	}{
		{"zero total", 0, 0, 0, 5, 30},
		{"volume capped at 50", 100, 0, 0, 1, 50},
		{"well below peers", 1, 0, 0, 10, 2.5},
		{"peer average floors at one", 1, 0, 0, 0, 25},
		{"rates stack on volume", 4, 2, 1, 4, 43.75},
		{"saturates at 100", 200, 200, 200, 1, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComplaintRiskFromCounts(tt.total, tt.disputed, tt.untimely, tt.peerAvg)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestNormalizeMarketWindow(t *testing.T) {
	tests := []struct {
		name string
		w    MarketWindow
		want float64
	}{
		{"no usable closes", MarketWindow{}, NeutralScore},
		{"negative close", MarketWindow{EarliestClose: -1, LatestClose: 100}, NeutralScore},
		{"flat window no volatility", MarketWindow{EarliestClose: 100, LatestClose: 100}, 50},
		{"ten percent rally", MarketWindow{EarliestClose: 100, LatestClose: 110}, 20},
		{"ten percent selloff", MarketWindow{EarliestClose: 100, LatestClose: 90}, 80},
		{"crash clamps return risk", MarketWindow{EarliestClose: 100, LatestClose: 60}, 80},
		{"volatility at scale ceiling", MarketWindow{EarliestClose: 100, LatestClose: 100, Volatility30d: floatPtr(3)}, 70},
		{"moderate volatility", MarketWindow{EarliestClose: 100, LatestClose: 100, Volatility30d: floatPtr(1.5)}, 50},
		{"extreme volatility clamps", MarketWindow{EarliestClose: 100, LatestClose: 100, Volatility30d: floatPtr(9)}, 70},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, NormalizeMarketWindow(tt.w), 1e-9)
		})
	}
}

func TestNormalizeEnforcement(t *testing.T) {
	asOf := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	t.Run("no actions is a low baseline", func(t *testing.T) {
		assert.Equal(t, 10.0, NormalizeEnforcement(nil, asOf, 90))
	})

	t.Run("fresh consent order", func(t *testing.T) {
		actions := []source.EnforcementAction{
			{ActionDate: asOf, Severity: 5},
		}
		assert.InDelta(t, 100.0/3, NormalizeEnforcement(actions, asOf, 90), 1e-9)
	})

	t.Run("stale action decays to the recency floor", func(t *testing.T) {
		actions := []source.EnforcementAction{
			{ActionDate: asOf.AddDate(0, 0, -200), Severity: 5},
		}
		// recency floors at 0.1 once the action ages past the lookback
		assert.InDelta(t, 0.5/15*100, NormalizeEnforcement(actions, asOf, 90), 1e-9)
	})

	t.Run("unknown severity defaults to 2", func(t *testing.T) {
		actions := []source.EnforcementAction{
			{ActionDate: asOf, Severity: 0},
		}
		assert.InDelta(t, 2.0/15*100, NormalizeEnforcement(actions, asOf, 90), 1e-9)
	})

	t.Run("heavy docket saturates", func(t *testing.T) {
		actions := make([]source.EnforcementAction, 5)
		for i := range actions {
			actions[i] = source.EnforcementAction{ActionDate: asOf, Severity: 5}
		}
		assert.Equal(t, 100.0, NormalizeEnforcement(actions, asOf, 90))
	})
}

func TestPeerRelativeRisk(t *testing.T) {
	tests := []struct {
		name  string
		raw   float64
		peers []float64
		want  float64
	}{
		{"no peers", 60, nil, NeutralScore},
		{"degenerate zero mean", 60, []float64{0, 0}, NeutralScore},
		{"at the mean", 50, []float64{40, 60}, 50},
		{"half above the mean", 75, []float64{50, 50}, 100},
		{"half below the mean", 25, []float64{50, 50}, 0},
		{"twenty percent above", 60, []float64{50, 50}, 70},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, PeerRelativeRisk(tt.raw, tt.peers), 1e-9)
		})
	}
}

func TestComplaintVolumeRisk(t *testing.T) {
	assert.Equal(t, 0.0, complaintVolumeRisk(0))
	assert.Equal(t, 50.0, complaintVolumeRisk(250))
	assert.Equal(t, 100.0, complaintVolumeRisk(500))
	assert.Equal(t, 100.0, complaintVolumeRisk(2000))
}

func floatPtr(v float64) *float64 { return &v }
