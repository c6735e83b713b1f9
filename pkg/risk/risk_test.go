package risk

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSubScores_CanonicalOrder(t *testing.T) {
	subs := NewSubScores(10, 20, 30, 40, 50)

	require.Len(t, subs, 5)
	assert.Equal(t, ComponentMedia, subs[0].Component)
	assert.Equal(t, ComponentRegulatory, subs[1].Component)
	assert.Equal(t, ComponentComplaints, subs[2].Component)
	assert.Equal(t, ComponentMarket, subs[3].Component)
	assert.Equal(t, ComponentPeerRelative, subs[4].Component)

	total := 0.0
	for _, s := range subs {
		assert.Equal(t, Weight(s.Component), s.Weight)
		total += s.Weight
	}
	assert.InDelta(t, 1.0, total, 1e-9)
}

func TestAggregate_WeightedComposite(t *testing.T) {
	comp, err := Aggregate(NewSubScores(80, 60, 40, 20, 50))
	require.NoError(t, err)

	// 80*.25 + 60*.25 + 40*.20 + 20*.15 + 50*.15 = 53.5, rounded up
	assert.Equal(t, 54.0, comp.Score)

	require.Len(t, comp.TopDrivers, 3)
	assert.Equal(t, ComponentMedia, comp.TopDrivers[0].Component)
	assert.Equal(t, ComponentRegulatory, comp.TopDrivers[1].Component)
	assert.Equal(t, ComponentPeerRelative, comp.TopDrivers[2].Component)
}

func TestAggregate_TiedDriversKeepCanonicalOrder(t *testing.T) {
	comp, err := Aggregate(NewSubScores(60, 60, 10, 10, 10))
	require.NoError(t, err)

	require.Len(t, comp.TopDrivers, 3)
	assert.Equal(t, ComponentMedia, comp.TopDrivers[0].Component)
	assert.Equal(t, ComponentRegulatory, comp.TopDrivers[1].Component)
	assert.Equal(t, ComponentComplaints, comp.TopDrivers[2].Component)
}

func TestAggregate_Bounds(t *testing.T) {
	comp, err := Aggregate(NewSubScores(0, 0, 0, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, 0.0, comp.Score)

	comp, err = Aggregate(NewSubScores(100, 100, 100, 100, 100))
	require.NoError(t, err)
	assert.Equal(t, 100.0, comp.Score)
}

func TestAggregate_RejectsInvalidInput(t *testing.T) {
	valid := func() []SubScore { return NewSubScores(50, 50, 50, 50, 50) }

	tests := []struct {
		name string
		subs []SubScore
	}{
		{"too few components", valid()[:4]},
		{"no components", nil},
		{"unknown component", func() []SubScore {
			s := valid()
			s[0].Component = "astrology"
			return s
		}()},
		{"duplicate component", func() []SubScore {
			s := valid()
			s[1] = s[0]
			return s
		}()},
		{"wrong weight", func() []SubScore {
			s := valid()
			s[2].Weight = 0.5
			return s
		}()},
		{"value below range", func() []SubScore {
			s := valid()
			s[3].Value = -0.5
			return s
		}()},
		{"value above range", func() []SubScore {
			s := valid()
			s[3].Value = 100.5
			return s
		}()},
		{"NaN value", func() []SubScore {
			s := valid()
			s[4].Value = math.NaN()
			return s
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Aggregate(tt.subs)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestLevel(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{100, "high"},
		{70, "high"},
		{69.9, "medium"},
		{40, "medium"},
		{39.9, "low"},
		{0, "low"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Level(tt.score), "score %v", tt.score)
	}
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Media Sentiment", DisplayName(ComponentMedia))
	assert.Equal(t, "Customer Complaints", DisplayName(ComponentComplaints))
	assert.Equal(t, "mystery", DisplayName(Component("mystery")))
}

func TestComponents_ReturnsCopy(t *testing.T) {
	first := Components()
	first[0] = "tampered"

	assert.Equal(t, ComponentMedia, Components()[0])
}
