package risk

import (
	"math"
	"time"

	"github.com/elonfeng/repradar/pkg/source"
)

// NeutralScore stands in for any component with no underlying data.
const NeutralScore = 50.0

// NormalizeComplaintVolume folds a window of complaint records into a 0-100
// sub-score. Three additive terms: volume relative to the peer average
// (capped at 50, reached at twice the average), dispute rate, and untimely
// response rate (up to 25 each). No records at all reads as a neutral-low
// 30 rather than zero, since a large bank with zero complaints usually
// means the fetch returned nothing.
func NormalizeComplaintVolume(records []source.Complaint, peerAverageCount float64) float64 {
	disputed := 0
	untimely := 0
	for _, c := range records {
		if c.ConsumerDisputed {
			disputed++
		}
		if !c.TimelyResponse {
			untimely++
		}
	}
	return ComplaintRiskFromCounts(len(records), disputed, untimely, peerAverageCount)
}

// ComplaintRiskFromCounts is NormalizeComplaintVolume for callers that
// already hold aggregate counts instead of full records.
func ComplaintRiskFromCounts(total, disputed, untimely int, peerAverageCount float64) float64 {
	if total <= 0 {
		return 30
	}

	n := float64(total)
	volume := math.Min(50, n/math.Max(peerAverageCount, 1)*25)
	score := volume + float64(disputed)/n*25 + float64(untimely)/n*25
	return clamp(score, 0, 100)
}

// SentimentToRisk maps an average polarity in [-1,1] onto the risk scale:
// fully positive coverage scores 0, fully negative 100.
func SentimentToRisk(avgPolarity float64) float64 {
	return clamp((1-avgPolarity)*50, 0, 100)
}

// MarketWindow summarizes the trading window the market component scores.
// Volatility30d is the latest rolling 30-day stddev of daily returns in
// percent, nil when fewer than 30 sessions are available.
type MarketWindow struct {
	EarliestClose float64
	LatestClose   float64
	Volatility30d *float64
}

// NormalizeMarketWindow scores price action on 0-100. The window return
// maps +10% to 0 risk and -10% to 100; daily volatility maps 0% to 0 and
// 3%+ to 100. Return contributes 60%, volatility 40%. A window without
// usable closes is neutral.
func NormalizeMarketWindow(w MarketWindow) float64 {
	if w.EarliestClose <= 0 || w.LatestClose <= 0 {
		return NeutralScore
	}

	changePct := (w.LatestClose - w.EarliestClose) / w.EarliestClose * 100
	returnRisk := clamp((-changePct+10)/20*100, 0, 100)

	volRisk := NeutralScore
	if w.Volatility30d != nil {
		volRisk = clamp(*w.Volatility30d/3*100, 0, 100)
	}

	return returnRisk*0.6 + volRisk*0.4
}

// NormalizeEnforcement scores enforcement pressure from action severity and
// recency. Each action contributes its severity (1-5) scaled by how
// recently it landed within the lookback; a weighted total of 15 saturates
// the scale. No actions on record is a low 10 baseline, not zero.
func NormalizeEnforcement(actions []source.EnforcementAction, asOf time.Time, lookbackDays int) float64 {
	if len(actions) == 0 {
		return 10
	}

	total := 0.0
	for _, a := range actions {
		daysAgo := asOf.Sub(a.ActionDate).Hours() / 24
		recency := math.Max(0.1, 1-daysAgo/float64(lookbackDays))
		severity := a.Severity
		if severity <= 0 {
			severity = 2
		}
		total += float64(severity) * recency
	}

	return clamp(total/15*100, 0, 100)
}

// PeerRelativeRisk positions a bank's raw score against the peer mean.
// Deviation is relative: 50% below the mean scores 0, 50% above scores
// 100. With no peers, or a degenerate zero mean, the component is neutral.
func PeerRelativeRisk(rawScore float64, peerScores []float64) float64 {
	if len(peerScores) == 0 {
		return NeutralScore
	}

	sum := 0.0
	for _, s := range peerScores {
		sum += s
	}
	peerAvg := sum / float64(len(peerScores))
	if peerAvg == 0 {
		return NeutralScore
	}

	deviation := (rawScore - peerAvg) / peerAvg
	return clamp((deviation+0.5)*100, 0, 100)
}

// complaintVolumeRisk is the coarse volume-only estimate used when scoring
// peers, where pulling full complaint records for every bank in the group
// would be wasteful. 500 complaints in a window saturates the scale.
func complaintVolumeRisk(count int) float64 {
	return math.Min(float64(count)/500, 1) * 100
}
