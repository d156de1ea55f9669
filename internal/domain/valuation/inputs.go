package valuation

// ValuationInputs is the complete, immutable input set of an NPV
// calculation. Money is in $M, the discount rate is a fraction.
type ValuationInputs struct {
	LaunchValue    float64    `json:"launch_value" yaml:"launch_value"`
	OrderOfEntry   int        `json:"order_of_entry" yaml:"order_of_entry"`
	DiscountRate   float64    `json:"discount_rate" yaml:"discount_rate"`
	IncludeRDCosts bool       `json:"include_rd_costs" yaml:"include_rd_costs"`
	Phases         PhaseTable `json:"phases" yaml:"phases"`
}

// DefaultInputs returns a $1B first-to-market asset at a 12% discount rate
// with R&D costs included.
func DefaultInputs() ValuationInputs {
	return ValuationInputs{
		LaunchValue:    1000,
		OrderOfEntry:   1,
		DiscountRate:   0.12,
		IncludeRDCosts: true,
		Phases:         DefaultPhaseTable(),
	}
}

// WithPhase returns a copy of in with one phase overridden.
func (in ValuationInputs) WithPhase(p Phase, params PhaseParams) (ValuationInputs, error) {
	t, err := in.Phases.With(p, params)
	if err != nil {
		return in, err
	}
	in.Phases = t
	return in, nil
}

// Validate reports the first constraint violation as an InvalidInputError.
func (in ValuationInputs) Validate() error {
	if err := checkPositive("launch_value", in.LaunchValue); err != nil {
		return err
	}
	if in.OrderOfEntry < 1 {
		return invalidf("order_of_entry", "must be at least 1, got %d", in.OrderOfEntry)
	}
	if err := checkFraction("discount_rate", in.DiscountRate); err != nil {
		return err
	}
	return in.Phases.Validate()
}
