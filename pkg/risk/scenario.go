package risk

// Scenario is a named set of component shocks applied to a baseline
// assessment for what-if analysis. Shock deltas are added to the matching
// sub-scores and re-clamped before aggregation.
type Scenario struct {
	Name   string                `json:"name"`
	Label  string                `json:"label"`
	Shocks map[Component]float64 `json:"shocks"`
}

// Presets returns the built-in crisis scenarios.
func Presets() []Scenario {
	return []Scenario{
		{
			Name:  "data_breach",
			Label: "Customer data breach",
			Shocks: map[Component]float64{
				ComponentMedia:      30,
				ComponentComplaints: 15,
				ComponentMarket:     10,
			},
		},
		{
			Name:  "enforcement_action",
			Label: "Regulatory enforcement action",
			Shocks: map[Component]float64{
				ComponentRegulatory: 35,
				ComponentMedia:      15,
			},
		},
		{
			Name:  "earnings_miss",
			Label: "Earnings miss",
			Shocks: map[Component]float64{
				ComponentMarket: 25,
				ComponentMedia:  10,
			},
		},
		{
			Name:  "service_outage",
			Label: "Online banking outage",
			Shocks: map[Component]float64{
				ComponentComplaints: 25,
				ComponentMedia:      15,
			},
		},
	}
}

// PresetByName looks up a built-in scenario.
func PresetByName(name string) (Scenario, bool) {
	for _, s := range Presets() {
		if s.Name == name {
			return s, true
		}
	}
	return Scenario{}, false
}

// Simulate applies a scenario to baseline sub-scores and re-aggregates.
// Each shocked value is clamped to [0,100] before weighting, so a stacked
// shock cannot push a component past the scale.
func Simulate(base []SubScore, sc Scenario) (Composite, error) {
	shocked := make([]SubScore, len(base))
	copy(shocked, base)
	for i := range shocked {
		if delta, ok := sc.Shocks[shocked[i].Component]; ok {
			shocked[i].Value = clamp(shocked[i].Value+delta, 0, 100)
		}
	}
	return Aggregate(shocked)
}
