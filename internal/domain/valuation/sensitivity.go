package valuation

import (
	"fmt"
	"math"
	"sort"
)

// DefaultShock is the ±20% relative perturbation used when none is given.
const DefaultShock = 0.20

// SensitivityDriver is one bar of a tornado chart.
type SensitivityDriver struct {
	Assumption string  `json:"assumption"`
	Label      string  `json:"label"`
	BaseInput  float64 `json:"base_input"`
	LowInput   float64 `json:"low_input"`
	HighInput  float64 `json:"high_input"`
	LowNPV     float64 `json:"low_npv"`
	HighNPV    float64 `json:"high_npv"`
	Spread     float64 `json:"spread"`
	Direction  string  `json:"direction"`
}

// SensitivityResult is the base NPV at Phase with drivers sorted by spread.
type SensitivityResult struct {
	Phase   Phase               `json:"phase"`
	Shock   float64             `json:"shock"`
	BaseNPV float64             `json:"base_npv"`
	Drivers []SensitivityDriver `json:"drivers"`
}

type sensitivityCandidate struct {
	name  string
	label string
	base  float64
	upper float64
	set   func(*ValuationInputs, float64)
}

// Sensitivity recomputes NPV(phase) with each assumption moved down and up
// by shock (relative). Probabilities and the discount rate stay within
// [0,1]. R&D costs are only perturbed when they are included.
func Sensitivity(in ValuationInputs, sched EntrySchedule, phase Phase, shock float64) (SensitivityResult, error) {
	if shock == 0 {
		shock = DefaultShock
	}
	if err := checkFinite("shock", shock); err != nil {
		return SensitivityResult{}, err
	}
	if shock < 0 || shock > 1 {
		return SensitivityResult{}, invalidf("shock", "must be in (0, 1], got %g", shock)
	}
	if !phase.Valid() {
		return SensitivityResult{}, invalidf("phase", "unknown phase %d", int(phase))
	}
	base, err := ComputeNPV(in, sched)
	if err != nil {
		return SensitivityResult{}, err
	}

	cands := []sensitivityCandidate{
		{name: "launch_value", label: "Launch value", base: in.LaunchValue, upper: math.Inf(1),
			set: func(v *ValuationInputs, x float64) { v.LaunchValue = x }},
		{name: "discount_rate", label: "Discount rate", base: in.DiscountRate, upper: 1,
			set: func(v *ValuationInputs, x float64) { v.DiscountRate = x }},
	}
	for q := phase; q < Launched; q++ {
		q := q
		params := in.Phases.Get(q)
		cands = append(cands,
			sensitivityCandidate{name: "phases." + q.String() + ".probability", label: q.Label() + " probability",
				base: params.Probability, upper: 1,
				set: func(v *ValuationInputs, x float64) { v.Phases[q].Probability = x }},
			sensitivityCandidate{name: "phases." + q.String() + ".duration", label: q.Label() + " duration",
				base: params.Duration, upper: math.Inf(1),
				set: func(v *ValuationInputs, x float64) { v.Phases[q].Duration = x }},
		)
		if in.IncludeRDCosts {
			cands = append(cands, sensitivityCandidate{name: "phases." + q.String() + ".cost", label: q.Label() + " cost",
				base: params.Cost, upper: math.Inf(1),
				set: func(v *ValuationInputs, x float64) { v.Phases[q].Cost = x }})
		}
	}

	out := SensitivityResult{
		Phase:   phase,
		Shock:   shock,
		BaseNPV: base.Value(phase),
		Drivers: make([]SensitivityDriver, 0, len(cands)),
	}
	for _, c := range cands {
		lowIn := math.Max(c.base*(1-shock), 0)
		highIn := math.Min(c.base*(1+shock), c.upper)
		lowNPV, err := shockedNPV(in, sched, phase, c.set, lowIn)
		if err != nil {
			return SensitivityResult{}, err
		}
		highNPV, err := shockedNPV(in, sched, phase, c.set, highIn)
		if err != nil {
			return SensitivityResult{}, err
		}
		d := SensitivityDriver{
			Assumption: c.name,
			Label:      c.label,
			BaseInput:  c.base,
			LowInput:   lowIn,
			HighInput:  highIn,
			LowNPV:     lowNPV,
			HighNPV:    highNPV,
			Spread:     math.Abs(highNPV - lowNPV),
		}
		d.Direction = direction(c.label, lowNPV, highNPV)
		out.Drivers = append(out.Drivers, d)
	}
	sort.SliceStable(out.Drivers, func(i, j int) bool {
		return out.Drivers[i].Spread > out.Drivers[j].Spread
	})
	return out, nil
}

func shockedNPV(in ValuationInputs, sched EntrySchedule, phase Phase, set func(*ValuationInputs, float64), x float64) (float64, error) {
	shocked := in
	set(&shocked, x)
	if shocked.LaunchValue <= 0 {
		// launch value may not reach zero; the NPV there is the cost floor.
		shocked.LaunchValue = math.SmallestNonzeroFloat64
	}
	res, err := ComputeNPV(shocked, sched)
	if err != nil {
		return 0, err
	}
	return res.Value(phase), nil
}

func direction(label string, low, high float64) string {
	switch {
	case high > low:
		return fmt.Sprintf("Higher %s increases NPV by $%.1fM", label, high-low)
	case high < low:
		return fmt.Sprintf("Lower %s increases NPV by $%.1fM", label, low-high)
	default:
		return fmt.Sprintf("%s has no effect on NPV", label)
	}
}
