// Package demo generates deterministic synthetic data so the dashboard
// renders something sensible before the collectors have pulled anything
// real. All randomness flows through a seeded Park-Miller LCG: the same
// seed always yields the same series, which keeps screenshots and tests
// stable.
package demo

import (
	"math"
	"time"
)

const (
	lcgMultiplier = 16807
	lcgModulus    = 2147483647
)

// LCG is a Park-Miller linear congruential generator. It is deliberately
// not math/rand: the exact sequence is part of the demo data contract.
type LCG struct {
	state int64
}

// NewLCG seeds the generator. Seeds are folded into [1, modulus-1]; a
// multiple of the modulus would pin the sequence at zero forever.
func NewLCG(seed int64) *LCG {
	s := seed % lcgModulus
	if s < 0 {
		s += lcgModulus
	}
	if s == 0 {
		s = 1
	}
	return &LCG{state: s}
}

// Uniform returns the next draw in the open interval (0,1).
func (g *LCG) Uniform() float64 {
	g.state = g.state * lcgMultiplier % lcgModulus
	return float64(g.state) / lcgModulus
}

// Gauss returns a normally distributed draw via the Box-Muller transform.
// Uniform never returns 0, so the log is safe.
func (g *LCG) Gauss(mean, stddev float64) float64 {
	u1 := g.Uniform()
	u2 := g.Uniform()
	z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
	return mean + stddev*z
}

// Intn returns a draw in [0,n).
func (g *LCG) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	v := int(g.Uniform() * float64(n))
	if v >= n {
		v = n - 1
	}
	return v
}

// IntBetween returns a draw in [lo,hi] inclusive.
func (g *LCG) IntBetween(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + g.Intn(hi-lo+1)
}

// Point is one day in a generated risk series. Regulatory and
// peer-relative components are left to the live engine; the demo series
// covers the three that chart well.
type Point struct {
	Date       time.Time `json:"date"`
	Composite  float64   `json:"composite_score"`
	Media      float64   `json:"media_sentiment_score"`
	Complaints float64   `json:"complaint_score"`
	Market     float64   `json:"market_score"`
}

// GenerateSeries produces a daily risk series ending at end: a
// mean-reverting random walk for the composite, clamped to [5,95], with
// media, complaint, and market sub-series derived from each day's
// composite plus independent noise, clamped to [0,100]. Identical
// arguments produce identical output.
func GenerateSeries(seed int64, end time.Time, days int, baseline, volatility float64) []Point {
	if days <= 0 {
		return nil
	}

	g := NewLCG(seed)
	endDay := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)

	points := make([]Point, 0, days)
	score := baseline
	for i := 0; i < days; i++ {
		score += (baseline-score)*0.05 + g.Gauss(0, volatility*0.1)
		score = clamp(score, 5, 95)

		media := clamp(score+g.Gauss(0, 5), 0, 100)
		complaints := clamp(score+g.Gauss(5, 8), 0, 100)
		market := clamp(score+g.Gauss(-5, 6), 0, 100)

		points = append(points, Point{
			Date:       endDay.AddDate(0, 0, -(days - 1 - i)),
			Composite:  round1(score),
			Media:      round1(media),
			Complaints: round1(complaints),
			Market:     round1(market),
		})
	}
	return points
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

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
