package sentiment

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimate_PositiveHeadline(t *testing.T) {
	res := Estimate("Bank reports record profit and strong growth this quarter")

	// profit, strong, growth
	assert.InDelta(t, 0.6, res.Polarity, 1e-9)
	assert.Equal(t, LabelPositive, res.Label)
}

func TestEstimate_NegativeHeadline(t *testing.T) {
	res := Estimate("Regulators open fraud investigation into the bank")

	// fraud, investigation
	assert.InDelta(t, -0.4, res.Polarity, 1e-9)
	assert.Equal(t, LabelNegative, res.Label)
}

func TestEstimate_CaseInsensitive(t *testing.T) {
	upper := Estimate("MASSIVE DATA BREACH AT MAJOR LENDER")
	lower := Estimate("massive data breach at major lender")

	assert.Equal(t, lower, upper)
	assert.Equal(t, LabelNegative, upper.Label)
}

func TestEstimate_EmptyTextIsNeutral(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t"} {
		res := Estimate(text)
		assert.Zero(t, res.Polarity)
		assert.Equal(t, LabelNeutral, res.Label)
	}
}

func TestEstimate_SettlementReachedOffsetsSettlement(t *testing.T) {
	// "settlement reached" matches the positive phrase and the negative
	// "settlement" term at the same time, so the two cancel out.
	res := Estimate("Bank confirms settlement reached with state attorneys")

	assert.InDelta(t, 0, res.Polarity, 1e-9)
	assert.Equal(t, LabelNeutral, res.Label)
}

func TestEstimate_ClampsToUnitRange(t *testing.T) {
	res := Estimate(strings.Join(NegativeKeywords, " "))
	assert.Equal(t, -1.0, res.Polarity)
	assert.Equal(t, LabelNegative, res.Label)

	res = Estimate(strings.Join(PositiveKeywords, " "))
	assert.Equal(t, 1.0, res.Polarity)
	assert.Equal(t, LabelPositive, res.Label)
}

func TestLabelFor(t *testing.T) {
	tests := []struct {
		polarity float64
		want     Label
	}{
		{0.5, LabelPositive},
		{0.11, LabelPositive},
		{0.1, LabelNeutral},
		{0, LabelNeutral},
		{-0.1, LabelNeutral},
		{-0.11, LabelNegative},
		{-1, LabelNegative},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LabelFor(tt.polarity), "polarity %v", tt.polarity)
	}
}

func TestFromComplaintCounts(t *testing.T) {
	tests := []struct {
		name                      string
		total, disputed, untimely int
		want                      float64
	}{
		{"no complaints", 0, 0, 0, 0},
		{"all smooth", 10, 0, 0, 0.1},
		{"half disputed", 10, 5, 0, -0.4},
		{"disputed and untimely", 4, 1, 1, -0.4},
		{"everything went wrong", 10, 10, 10, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromComplaintCounts(tt.total, tt.disputed, tt.untimely)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}
