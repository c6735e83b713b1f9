// Package sentiment estimates the polarity of banking news and complaint
// text by keyword counting. It is deliberately model-free: scores are a
// fixed increment per matched term, which keeps the estimator deterministic
// and cheap enough to run inline during collection.
package sentiment

import "strings"

// Label buckets a polarity for display and filtering.
type Label string

const (
	LabelNegative Label = "negative"
	LabelNeutral  Label = "neutral"
	LabelPositive Label = "positive"
)

// PositiveKeywords lift polarity by 0.2 per matched term.
var PositiveKeywords = []string{
	"growth", "profit", "strong", "beat", "exceed",
	"upgrade", "award", "expansion", "partnership", "dividend",
	"innovation", "investment", "launch", "improve", "resolved",
	"settlement reached", "community reinvestment",
}

// NegativeKeywords lower polarity by 0.2 per matched term.
var NegativeKeywords = []string{
	"lawsuit", "fraud", "fine", "penalty", "investigation",
	"breach", "hack", "scandal", "layoff", "downgrade",
	"loss", "decline", "violation", "misconduct", "settlement",
	"probe", "subpoena", "discrimination", "overdraft", "outage",
	"scrutiny", "restructuring", "failure", "default", "money laundering",
}

const increment = 0.2

// Result is the outcome of estimating one piece of text.
type Result struct {
	Polarity float64 `json:"polarity"`
	Label    Label   `json:"label"`
}

// Estimate scores free text against the keyword lists. Each keyword present
// as a case-insensitive substring contributes a fixed +-0.2, and the sum is
// clamped to [-1,1]. Empty text is neutral.
func Estimate(text string) Result {
	if strings.TrimSpace(text) == "" {
		return Result{Polarity: 0, Label: LabelNeutral}
	}

	lower := strings.ToLower(text)
	polarity := 0.0
	for _, kw := range PositiveKeywords {
		if strings.Contains(lower, kw) {
			polarity += increment
		}
	}
	for _, kw := range NegativeKeywords {
		if strings.Contains(lower, kw) {
			polarity -= increment
		}
	}

	polarity = clamp(polarity, -1, 1)
	return Result{Polarity: polarity, Label: LabelFor(polarity)}
}

// LabelFor maps a polarity to its display label. The neutral band is
// (-0.1, 0.1) inclusive of the endpoints.
func LabelFor(polarity float64) Label {
	switch {
	case polarity > 0.1:
		return LabelPositive
	case polarity < -0.1:
		return LabelNegative
	default:
		return LabelNeutral
	}
}

// FromComplaintCounts derives polarity from complaint metadata when no
// narrative text is available. Disputed and untimely responses each count
// as one negativity mark out of two possible per complaint.
func FromComplaintCounts(total, disputed, untimely int) float64 {
	if total <= 0 {
		return 0
	}
	negativity := float64(disputed+untimely) / float64(2*total)
	return clamp(0.1-negativity*2, -1, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
