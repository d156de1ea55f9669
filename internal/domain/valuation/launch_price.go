package valuation

import "math"

// DefaultElasticity is unit elasticity, under which the recommended price
// equals the value-based price.
const DefaultElasticity = 1.0

// LaunchPriceInputs describe the target market. MarketValue is the total
// disease market in $M, MarketSize the eligible patient count.
type LaunchPriceInputs struct {
	MarketValue     float64 `json:"market_value" yaml:"market_value"`
	MarketSize      int64   `json:"market_size" yaml:"market_size"`
	PenetrationRate float64 `json:"penetration_rate" yaml:"penetration_rate"`
	AdoptionRate    float64 `json:"adoption_rate" yaml:"adoption_rate"`
	OrderOfEntry    int     `json:"order_of_entry" yaml:"order_of_entry"`
	Elasticity      float64 `json:"elasticity" yaml:"elasticity"`
}

// DefaultLaunchPriceInputs is a $1B market of 100k patients.
func DefaultLaunchPriceInputs() LaunchPriceInputs {
	return LaunchPriceInputs{
		MarketValue:     1000,
		MarketSize:      100000,
		PenetrationRate: 0.5,
		AdoptionRate:    0.5,
		OrderOfEntry:    1,
		Elasticity:      DefaultElasticity,
	}
}

// Validate reports the first constraint violation.
func (in LaunchPriceInputs) Validate() error {
	if err := checkNonNegative("market_value", in.MarketValue); err != nil {
		return err
	}
	if in.MarketSize <= 0 {
		return invalidf("market_size", "must be greater than 0, got %d", in.MarketSize)
	}
	if err := checkFraction("penetration_rate", in.PenetrationRate); err != nil {
		return err
	}
	if err := checkFraction("adoption_rate", in.AdoptionRate); err != nil {
		return err
	}
	if in.OrderOfEntry < 1 {
		return invalidf("order_of_entry", "must be at least 1, got %d", in.OrderOfEntry)
	}
	return checkPositive("elasticity", in.Elasticity)
}

// LaunchPriceResult holds prices in $ per patient and revenue in $M.
type LaunchPriceResult struct {
	MarketValue         float64 `json:"market_value"`
	OrderFactor         float64 `json:"order_factor"`
	AdjustedMarketValue float64 `json:"adjusted_market_value"`

	EffectivePatients int64   `json:"effective_patients"`
	ValueBasedPrice   float64 `json:"value_based_price"`
	GeneralPrice      float64 `json:"general_price"`

	AdoptionPatients int64   `json:"adoption_patients"`
	AdoptionPrice    float64 `json:"adoption_price"`

	// MarketShareRevenue is penetration × adjusted market value.
	MarketShareRevenue float64 `json:"market_share_revenue"`

	Elasticity          float64 `json:"elasticity"`
	RecommendedPrice    float64 `json:"recommended_price"`
	AchievedPenetration float64 `json:"achieved_penetration"`
	ProjectedRevenue    float64 `json:"projected_revenue"`
}

// ComputeLaunchPrice derives a launch price from the share of the market
// value the product can capture.
//
//	adjusted    = marketValue × orderFactor(rank)
//	valuePrice  = adjusted × 1e6 / ⌊marketSize × penetration⌋
//	recommended = valuePrice × (1+ε) / (2ε)
//	achieved    = clamp(penetration × (1+ε) / 2, 0, 1)
//	revenue     = marketSize × achieved × recommended / 1e6
//
// Demand is linear and passes through (valuePrice, penetration) with point
// elasticity ε there; recommended is its revenue-maximising price.
func ComputeLaunchPrice(in LaunchPriceInputs, sched EntrySchedule) (LaunchPriceResult, error) {
	if err := in.Validate(); err != nil {
		return LaunchPriceResult{}, err
	}
	if len(sched) == 0 {
		sched = DefaultEntrySchedule()
	} else if err := sched.Validate(); err != nil {
		return LaunchPriceResult{}, err
	}
	factor, err := sched.Factor(in.OrderOfEntry)
	if err != nil {
		return LaunchPriceResult{}, err
	}

	adjusted := in.MarketValue * factor
	dollars := adjusted * 1e6
	out := LaunchPriceResult{
		MarketValue:         in.MarketValue,
		OrderFactor:         factor,
		AdjustedMarketValue: adjusted,
		EffectivePatients:   int64(float64(in.MarketSize) * in.PenetrationRate),
		AdoptionPatients:    int64(float64(in.MarketSize) * in.AdoptionRate),
		GeneralPrice:        dollars / float64(in.MarketSize),
		MarketShareRevenue:  in.PenetrationRate * adjusted,
		Elasticity:          in.Elasticity,
	}
	if out.EffectivePatients > 0 {
		out.ValueBasedPrice = dollars / float64(out.EffectivePatients)
	}
	if out.AdoptionPatients > 0 {
		out.AdoptionPrice = dollars / float64(out.AdoptionPatients)
	}

	eps := in.Elasticity
	out.RecommendedPrice = out.ValueBasedPrice * (1 + eps) / (2 * eps)
	out.AchievedPenetration = clamp01(in.PenetrationRate * (1 + eps) / 2)
	if out.ValueBasedPrice == 0 {
		out.AchievedPenetration = 0
	}
	out.ProjectedRevenue = float64(in.MarketSize) * out.AchievedPenetration * out.RecommendedPrice / 1e6
	return out, nil
}

// PenetrationEstimate is derived from treatment and adoption rates.
type PenetrationEstimate struct {
	TreatmentRate     float64 `json:"treatment_rate"`
	Penetration       float64 `json:"penetration"`
	EffectivePatients int64   `json:"effective_patients"`
}

// EstimatePenetration computes penetration = treated/diagnosed × adoption,
// rounded to a tenth of a percentage point and clamped to [0,1].
func EstimatePenetration(treated, diagnosed int64, adoptionRate float64) (PenetrationEstimate, error) {
	if err := checkFraction("adoption_rate", adoptionRate); err != nil {
		return PenetrationEstimate{}, err
	}
	if treated < 0 {
		return PenetrationEstimate{}, invalidf("treated_patients", "must not be negative, got %d", treated)
	}
	if diagnosed < 0 {
		return PenetrationEstimate{}, invalidf("diagnosed_patients", "must not be negative, got %d", diagnosed)
	}

	var out PenetrationEstimate
	if diagnosed > 0 {
		out.TreatmentRate = float64(treated) / float64(diagnosed)
	}
	out.Penetration = clamp01(math.Round(out.TreatmentRate*adoptionRate*1000) / 1000)
	out.EffectivePatients = int64(float64(diagnosed) * out.Penetration)
	return out, nil
}

func clamp01(v float64) float64 {
	return math.Min(math.Max(v, 0), 1)
}
