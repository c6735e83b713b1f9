package risk

import (
	"math"
	"sort"
)

// Statistics describes how a set of scored institutions sits relative to
// its own average. Deviations keep full precision; callers round for
// display.
type Statistics struct {
	GroupAverage float64           `json:"group_average"`
	Deviations   map[int64]float64 `json:"deviations"`
	Ranking      []Assessment      `json:"ranking"`
}

// ComputePeerStatistics computes the group average, per-institution
// deviation, and descending ranking for a peer group. A nil or empty
// member list means the whole population; a member list that matches
// nothing falls back to the whole population too, so the benchmarking
// view always has a baseline.
func ComputePeerStatistics(all []Assessment, memberIDs []int64) Statistics {
	group := filterByBankID(all, memberIDs)
	if len(group) == 0 {
		group = all
	}

	avg := 0.0
	if len(group) > 0 {
		sum := 0.0
		for _, a := range group {
			sum += a.Composite.Score
		}
		avg = math.Round(sum / float64(len(group)))
	}

	devs := make(map[int64]float64, len(group))
	for _, a := range group {
		devs[a.Bank.ID] = a.Composite.Score - avg
	}

	ranking := make([]Assessment, len(group))
	copy(ranking, group)
	sort.Slice(ranking, func(i, j int) bool {
		if ranking[i].Composite.Score != ranking[j].Composite.Score {
			return ranking[i].Composite.Score > ranking[j].Composite.Score
		}
		return ranking[i].Bank.ID < ranking[j].Bank.ID
	})

	return Statistics{GroupAverage: avg, Deviations: devs, Ranking: ranking}
}

func filterByBankID(all []Assessment, ids []int64) []Assessment {
	if len(ids) == 0 {
		return all
	}
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []Assessment
	for _, a := range all {
		if want[a.Bank.ID] {
			out = append(out, a)
		}
	}
	return out
}
