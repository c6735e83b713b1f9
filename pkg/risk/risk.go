// Package risk implements the composite reputation risk score: five
// weighted component scores in [0,100] folded into a single 0-100 value,
// higher meaning riskier. The normalizers that produce the component
// scores from raw signals live in normalize.go; peer statistics and
// what-if scenarios build on the same types.
package risk

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Component identifies one of the five weighted inputs to the composite.
type Component string

const (
	ComponentMedia        Component = "media_sentiment"
	ComponentRegulatory   Component = "regulatory"
	ComponentComplaints   Component = "complaints"
	ComponentMarket       Component = "market"
	ComponentPeerRelative Component = "peer_relative"
)

// componentOrder is the canonical enumeration order. NewSubScores emits it
// and driver tie-breaks preserve it.
var componentOrder = []Component{
	ComponentMedia,
	ComponentRegulatory,
	ComponentComplaints,
	ComponentMarket,
	ComponentPeerRelative,
}

// componentWeights must sum to 1.0.
var componentWeights = map[Component]float64{
	ComponentMedia:        0.25,
	ComponentRegulatory:   0.25,
	ComponentComplaints:   0.20,
	ComponentMarket:       0.15,
	ComponentPeerRelative: 0.15,
}

// ErrInvalidInput reports malformed aggregator input: wrong sub-score
// count, unknown or duplicate components, mismatched weights, or values
// outside [0,100].
var ErrInvalidInput = errors.New("risk: invalid input")

// SubScore is one weighted component value.
type SubScore struct {
	Component Component `json:"component"`
	Value     float64   `json:"value"`
	Weight    float64   `json:"weight"`
}

// Composite is the aggregated score for one institution.
type Composite struct {
	Score      float64    `json:"score"`
	SubScores  []SubScore `json:"sub_scores"`
	TopDrivers []SubScore `json:"top_drivers"`
}

// Components returns the five components in canonical order.
func Components() []Component {
	out := make([]Component, len(componentOrder))
	copy(out, componentOrder)
	return out
}

// Weight returns the canonical weight for a component, 0 if unknown.
func Weight(c Component) float64 {
	return componentWeights[c]
}

// NewSubScores builds the five sub-scores in canonical order with their
// standard weights.
func NewSubScores(media, regulatory, complaints, market, peerRelative float64) []SubScore {
	values := []float64{media, regulatory, complaints, market, peerRelative}
	subs := make([]SubScore, len(componentOrder))
	for i, c := range componentOrder {
		subs[i] = SubScore{Component: c, Value: values[i], Weight: componentWeights[c]}
	}
	return subs
}

// Aggregate folds exactly five weighted sub-scores into a composite.
// The composite is round(sum of value*weight) clamped to [0,100]. Top
// drivers are the sub-scores sorted descending by value, first three kept,
// with ties left in input order.
func Aggregate(subs []SubScore) (Composite, error) {
	if len(subs) != len(componentOrder) {
		return Composite{}, fmt.Errorf("%w: expected %d sub-scores, got %d", ErrInvalidInput, len(componentOrder), len(subs))
	}

	seen := make(map[Component]bool, len(subs))
	sum := 0.0
	weightSum := 0.0
	for _, s := range subs {
		want, ok := componentWeights[s.Component]
		if !ok {
			return Composite{}, fmt.Errorf("%w: unknown component %q", ErrInvalidInput, s.Component)
		}
		if seen[s.Component] {
			return Composite{}, fmt.Errorf("%w: duplicate component %q", ErrInvalidInput, s.Component)
		}
		seen[s.Component] = true
		if math.Abs(s.Weight-want) > 1e-9 {
			return Composite{}, fmt.Errorf("%w: component %s has weight %v, want %v", ErrInvalidInput, s.Component, s.Weight, want)
		}
		if s.Value < 0 || s.Value > 100 || math.IsNaN(s.Value) {
			return Composite{}, fmt.Errorf("%w: component %s value %v outside [0,100]", ErrInvalidInput, s.Component, s.Value)
		}
		sum += s.Value * s.Weight
		weightSum += s.Weight
	}
	// Guards the weight table itself, not the caller.
	if math.Abs(weightSum-1.0) > 1e-9 {
		return Composite{}, fmt.Errorf("%w: weights sum to %v, want 1.0", ErrInvalidInput, weightSum)
	}

	kept := make([]SubScore, len(subs))
	copy(kept, subs)

	drivers := make([]SubScore, len(subs))
	copy(drivers, subs)
	sort.SliceStable(drivers, func(i, j int) bool {
		return drivers[i].Value > drivers[j].Value
	})
	if len(drivers) > 3 {
		drivers = drivers[:3]
	}

	return Composite{
		Score:      clamp(math.Round(sum), 0, 100),
		SubScores:  kept,
		TopDrivers: drivers,
	}, nil
}

// displayNames are the component labels shown in dashboards and alerts.
var displayNames = map[Component]string{
	ComponentMedia:        "Media Sentiment",
	ComponentRegulatory:   "Regulatory",
	ComponentComplaints:   "Customer Complaints",
	ComponentMarket:       "Market Signal",
	ComponentPeerRelative: "Peer Relative",
}

// DisplayName returns the human-readable label for a component, falling
// back to the raw identifier.
func DisplayName(c Component) string {
	if name, ok := displayNames[c]; ok {
		return name
	}
	return string(c)
}

// Level buckets a composite score for display.
func Level(score float64) string {
	switch {
	case score >= 70:
		return "high"
	case score >= 40:
		return "medium"
	default:
		return "low"
	}
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
