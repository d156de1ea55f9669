package client

import (
	"context"
	"fmt"
)

// Phase names accepted by the API.
const (
	PhasePreclinical = "preclinical"
	Phase1           = "phase1"
	Phase2           = "phase2"
	Phase3           = "phase3"
	PhaseFiled       = "filed"
	PhaseLaunched    = "launched"
)

// ---------------------------------------------------------------------------
// Requests. Nil fields are filled from the server defaults.
// ---------------------------------------------------------------------------

// PhaseParams overrides the assumptions of one development phase.
// Probability is a fraction, Cost is in $M and Duration in years.
type PhaseParams struct {
	Probability *float64 `json:"probability,omitempty"`
	Cost        *float64 `json:"cost,omitempty"`
	Duration    *float64 `json:"duration,omitempty"`
}

// Inputs are the NPV assumptions. DiscountRate is a fraction.
type Inputs struct {
	LaunchValue    *float64               `json:"launch_value,omitempty"`
	OrderOfEntry   *int                   `json:"order_of_entry,omitempty"`
	DiscountRate   *float64               `json:"discount_rate,omitempty"`
	IncludeRDCosts *bool                  `json:"include_rd_costs,omitempty"`
	Phases         map[string]PhaseParams `json:"phases,omitempty"`
}

type Milestone struct {
	Label  string  `json:"label,omitempty"`
	Amount float64 `json:"amount"`
	Years  float64 `json:"years"`
}

// DealTerms describe a licensing offer. A nil DiscountRate uses the
// discount rate of the inputs.
type DealTerms struct {
	Stage        string      `json:"stage"`
	Upfront      float64     `json:"upfront"`
	Milestones   []Milestone `json:"milestones,omitempty"`
	RoyaltyRate  float64     `json:"royalty_rate"`
	DiscountRate *float64    `json:"discount_rate,omitempty"`
}

type DealRequest struct {
	Inputs          *Inputs   `json:"inputs,omitempty"`
	Terms           DealTerms `json:"terms"`
	DesiredSharePct *float64  `json:"desired_share_pct,omitempty"`
}

type StrategyRequest struct {
	Inputs        *Inputs `json:"inputs,omitempty"`
	Stage         string  `json:"stage"`
	OutLicensePct float64 `json:"out_license_pct"`
}

// LaunchPriceInputs describe the target market. MarketValue is in $M.
type LaunchPriceInputs struct {
	MarketValue     *float64 `json:"market_value,omitempty"`
	MarketSize      *int64   `json:"market_size,omitempty"`
	PenetrationRate *float64 `json:"penetration_rate,omitempty"`
	AdoptionRate    *float64 `json:"adoption_rate,omitempty"`
	OrderOfEntry    *int     `json:"order_of_entry,omitempty"`
	Elasticity      *float64 `json:"elasticity,omitempty"`
}

// Funnel derives penetration from patient counts.
type Funnel struct {
	TreatedPatients   int64   `json:"treated_patients"`
	DiagnosedPatients int64   `json:"diagnosed_patients"`
	AdoptionRate      float64 `json:"adoption_rate,omitempty"`
}

type LaunchPriceRequest struct {
	Inputs *LaunchPriceInputs `json:"inputs,omitempty"`
	Funnel *Funnel            `json:"funnel,omitempty"`
}

type SensitivityRequest struct {
	Inputs *Inputs `json:"inputs,omitempty"`
	Phase  string  `json:"phase,omitempty"`
	Shock  float64 `json:"shock,omitempty"`
}

// ---------------------------------------------------------------------------
// Responses
// ---------------------------------------------------------------------------

type PhaseValuation struct {
	Phase                 string  `json:"phase"`
	CumulativeProbability float64 `json:"cumulative_probability"`
	Periods               float64 `json:"periods"`
	DiscountFactor        float64 `json:"discount_factor"`
	RiskAdjustedValue     float64 `json:"risk_adjusted_value"`
	DiscountedCosts       float64 `json:"discounted_costs"`
	OrderFactor           float64 `json:"order_factor"`
	NPV                   float64 `json:"npv"`
}

type NPVResult struct {
	LaunchValue  float64          `json:"launch_value"`
	DiscountRate float64          `json:"discount_rate"`
	OrderOfEntry int              `json:"order_of_entry"`
	Phases       []PhaseValuation `json:"phases"`
}

// Phase returns the valuation at name, if present.
func (r *NPVResult) Phase(name string) (PhaseValuation, bool) {
	for _, p := range r.Phases {
		if p.Phase == name {
			return p, true
		}
	}
	return PhaseValuation{}, false
}

type MilestoneValue struct {
	Milestone
	PresentValue float64 `json:"present_value"`
}

// OwnershipSplit is in percent; the two shares always sum to 100.
type OwnershipSplit struct {
	Licensee float64 `json:"licensee"`
	Licensor float64 `json:"licensor"`
}

type DealValuation struct {
	Stage           string           `json:"stage"`
	StageValue      float64          `json:"stage_value"`
	Upfront         float64          `json:"upfront"`
	Milestones      []MilestoneValue `json:"milestones"`
	MilestoneValue  float64          `json:"milestone_value"`
	RoyaltyValue    float64          `json:"royalty_value"`
	TotalDealValue  float64          `json:"total_deal_value"`
	Split           OwnershipSplit   `json:"split"`
	ValuePerPercent float64          `json:"value_per_percent"`
	FairnessRatio   float64          `json:"fairness_ratio"`
	Fairness        string           `json:"fairness"`
}

type DealResponse struct {
	Deal              DealValuation `json:"deal"`
	DesiredSharePct   *float64      `json:"desired_share_pct,omitempty"`
	RequiredDealValue *float64      `json:"required_deal_value,omitempty"`
}

type StrategicDecision struct {
	Stage              string  `json:"stage"`
	NextPhase          *string `json:"next_phase"`
	CurrentValue       float64 `json:"current_value"`
	NextPhaseValue     float64 `json:"next_phase_value"`
	SuccessProbability float64 `json:"success_probability"`
	ContinueValue      float64 `json:"continue_value"`
	OutLicensePercent  float64 `json:"out_license_percent"`
	DealValue          float64 `json:"deal_value"`
	RetainedValue      float64 `json:"retained_value"`
	OutLicenseNowValue float64 `json:"out_license_now_value"`
	ValueDifference    float64 `json:"value_difference"`
	Recommendation     string  `json:"recommendation"`
}

type PenetrationEstimate struct {
	TreatmentRate     float64 `json:"treatment_rate"`
	Penetration       float64 `json:"penetration"`
	EffectivePatients int64   `json:"effective_patients"`
}

type LaunchPriceResult struct {
	MarketValue         float64 `json:"market_value"`
	OrderFactor         float64 `json:"order_factor"`
	AdjustedMarketValue float64 `json:"adjusted_market_value"`
	EffectivePatients   int64   `json:"effective_patients"`
	ValueBasedPrice     float64 `json:"value_based_price"`
	GeneralPrice        float64 `json:"general_price"`
	AdoptionPatients    int64   `json:"adoption_patients"`
	AdoptionPrice       float64 `json:"adoption_price"`
	MarketShareRevenue  float64 `json:"market_share_revenue"`
	Elasticity          float64 `json:"elasticity"`
	RecommendedPrice    float64 `json:"recommended_price"`
	AchievedPenetration float64 `json:"achieved_penetration"`
	ProjectedRevenue    float64 `json:"projected_revenue"`
}

type LaunchPriceResponse struct {
	Penetration *PenetrationEstimate `json:"penetration,omitempty"`
	Result      LaunchPriceResult    `json:"result"`
}

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

type SensitivityResult struct {
	Phase   string              `json:"phase"`
	Shock   float64             `json:"shock"`
	BaseNPV float64             `json:"base_npv"`
	Drivers []SensitivityDriver `json:"drivers"`
}

// Defaults are the server's current default inputs and engine constants.
type Defaults struct {
	Inputs        Inputs            `json:"inputs"`
	LaunchPrice   LaunchPriceInputs `json:"launch_price"`
	EntrySchedule []float64         `json:"entry_schedule"`
	Elasticity    float64           `json:"elasticity"`
	Shock         float64           `json:"sensitivity_shock"`
}

// ---------------------------------------------------------------------------
// ValuationClient
// ---------------------------------------------------------------------------

// ValuationClient calls the stateless calculators under /api/v1.
type ValuationClient struct {
	client *Client
}

// NPV values the asset at every phase. A nil in uses the server defaults.
func (v *ValuationClient) NPV(ctx context.Context, in *Inputs) (*NPVResult, error) {
	if in == nil {
		in = &Inputs{}
	}
	var out NPVResult
	if err := v.client.post(ctx, "/api/v1/npv", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (v *ValuationClient) Deal(ctx context.Context, req *DealRequest) (*DealResponse, error) {
	if req == nil || req.Terms.Stage == "" {
		return nil, fmt.Errorf("deal: terms.stage is required")
	}
	var out DealResponse
	if err := v.client.post(ctx, "/api/v1/deal", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (v *ValuationClient) Strategy(ctx context.Context, req *StrategyRequest) (*StrategicDecision, error) {
	if req == nil || req.Stage == "" {
		return nil, fmt.Errorf("strategy: stage is required")
	}
	var out StrategicDecision
	if err := v.client.post(ctx, "/api/v1/strategy", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (v *ValuationClient) LaunchPrice(ctx context.Context, req *LaunchPriceRequest) (*LaunchPriceResponse, error) {
	if req == nil {
		req = &LaunchPriceRequest{}
	}
	var out LaunchPriceResponse
	if err := v.client.post(ctx, "/api/v1/launch-price", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (v *ValuationClient) Sensitivity(ctx context.Context, req *SensitivityRequest) (*SensitivityResult, error) {
	if req == nil {
		req = &SensitivityRequest{}
	}
	var out SensitivityResult
	if err := v.client.post(ctx, "/api/v1/sensitivity", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (v *ValuationClient) Defaults(ctx context.Context) (*Defaults, error) {
	var out Defaults
	if err := v.client.get(ctx, "/api/v1/defaults", &out); err != nil {
		return nil, err
	}
	return &out, nil
}
