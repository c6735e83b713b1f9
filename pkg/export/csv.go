// Package export renders scoring data as CSV downloads.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/elonfeng/repradar/internal/store"
	"github.com/elonfeng/repradar/pkg/risk"
)

// WriteOverview writes one row per assessment: the bank, its composite,
// the risk level, then the five component scores in canonical order.
func WriteOverview(w io.Writer, assessments []risk.Assessment) error {
	cw := csv.NewWriter(w)

	header := []string{"bank", "ticker", "date", "composite_score", "level"}
	for _, c := range risk.Components() {
		header = append(header, string(c)+"_score")
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write overview header: %w", err)
	}

	for _, a := range assessments {
		row := []string{
			a.Bank.Name,
			a.Bank.Ticker,
			a.Date.Format("2006-01-02"),
			formatScore(a.Composite.Score, 0),
			risk.Level(a.Composite.Score),
		}
		for _, sub := range a.Composite.SubScores {
			row = append(row, formatScore(sub.Value, 1))
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write overview row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteHistory writes one row per stored daily score for a bank. Component
// scores not recorded on a given day are left empty.
func WriteHistory(w io.Writer, bankName string, scores []store.RiskScore) error {
	cw := csv.NewWriter(w)

	header := []string{
		"bank", "date", "composite_score",
		"media_sentiment_score", "regulatory_score", "complaint_score",
		"market_score", "peer_relative_score",
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write history header: %w", err)
	}

	for _, rs := range scores {
		row := []string{
			bankName,
			rs.ScoreDate.Format("2006-01-02"),
			formatScore(rs.CompositeScore, 0),
			formatOptional(rs.MediaSentimentScore),
			formatOptional(rs.RegulatoryScore),
			formatOptional(rs.ComplaintScore),
			formatOptional(rs.MarketScore),
			formatOptional(rs.PeerRelativeScore),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write history row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatScore(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatScore(*v, 1)
}
