package valuation

import "math"

// PhaseValuation is the asset's value if it were valued at Phase.
type PhaseValuation struct {
	Phase Phase `json:"phase"`

	// CumulativeProbability is the product of success probabilities from
	// Phase through launch.
	CumulativeProbability float64 `json:"cumulative_probability"`

	// Periods is the number of years from the start of Phase to launch.
	Periods float64 `json:"periods"`

	// DiscountFactor is (1+r)^Periods.
	DiscountFactor float64 `json:"discount_factor"`

	// RiskAdjustedValue is launch value × CumulativeProbability / DiscountFactor.
	RiskAdjustedValue float64 `json:"risk_adjusted_value"`

	// DiscountedCosts is the present value at Phase of the remaining R&D
	// spend. Zero when costs are excluded.
	DiscountedCosts float64 `json:"discounted_costs"`

	OrderFactor float64 `json:"order_factor"`
	NPV         float64 `json:"npv"`
}

// LaunchContribution is the risk-adjusted, discounted launch value after
// the order-of-entry factor and before R&D costs.
func (pv PhaseValuation) LaunchContribution() float64 {
	return pv.RiskAdjustedValue * pv.OrderFactor
}

// NPVResult carries one PhaseValuation per phase in development order.
type NPVResult struct {
	LaunchValue  float64          `json:"launch_value"`
	DiscountRate float64          `json:"discount_rate"`
	OrderOfEntry int              `json:"order_of_entry"`
	Phases       []PhaseValuation `json:"phases"`
}

// Valuation returns the entry for p.
func (r NPVResult) Valuation(p Phase) (PhaseValuation, bool) {
	for _, pv := range r.Phases {
		if pv.Phase == p {
			return pv, true
		}
	}
	return PhaseValuation{}, false
}

// Value returns NPV(p), or 0 when p is absent.
func (r NPVResult) Value(p Phase) float64 {
	pv, _ := r.Valuation(p)
	return pv.NPV
}

// ComputeNPV values the asset at every phase.
//
// For phase p with success probabilities P, durations D, costs C and rate r:
//
//	cumProb  = Π P[q] for q in p..Launched
//	periods  = Σ D[q] for q in p..Launched
//	value    = launch × cumProb / (1+r)^periods
//	costs    = Σ C[q] / (1+r)^elapsed(p,q)   (only when R&D costs are included)
//	NPV      = (value − costs) × orderFactor(rank)
//
// elapsed(p,q) is the time from the start of p to the start of q. Costs are
// not risk-adjusted: the sponsor spends them whether or not later phases
// succeed.
func ComputeNPV(in ValuationInputs, sched EntrySchedule) (NPVResult, error) {
	if err := in.Validate(); err != nil {
		return NPVResult{}, err
	}
	if len(sched) == 0 {
		sched = DefaultEntrySchedule()
	} else if err := sched.Validate(); err != nil {
		return NPVResult{}, err
	}
	factor, err := sched.Factor(in.OrderOfEntry)
	if err != nil {
		return NPVResult{}, err
	}

	out := NPVResult{
		LaunchValue:  in.LaunchValue,
		DiscountRate: in.DiscountRate,
		OrderOfEntry: in.OrderOfEntry,
		Phases:       make([]PhaseValuation, 0, len(Phases())),
	}
	for _, p := range Phases() {
		out.Phases = append(out.Phases, valueAt(in, p, factor))
	}
	return out, nil
}

func valueAt(in ValuationInputs, p Phase, factor float64) PhaseValuation {
	growth := 1 + in.DiscountRate
	cumProb := 1.0
	var periods, costs float64
	for q := p; q < Launched; q++ {
		params := in.Phases.Get(q)
		cumProb *= params.Probability
		if in.IncludeRDCosts {
			costs += params.Cost / math.Pow(growth, periods)
		}
		periods += params.Duration
	}

	df := math.Pow(growth, periods)
	risk := in.LaunchValue * cumProb / df
	return PhaseValuation{
		Phase:                 p,
		CumulativeProbability: cumProb,
		Periods:               periods,
		DiscountFactor:        df,
		RiskAdjustedValue:     risk,
		DiscountedCosts:       costs,
		OrderFactor:           factor,
		NPV:                   (risk - costs) * factor,
	}
}

// discount returns the present value of amount received after years.
func discount(amount, rate, years float64) float64 {
	return amount / math.Pow(1+rate, years)
}
