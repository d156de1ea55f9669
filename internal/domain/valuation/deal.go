package valuation

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/JohanRGustafsson/valuation-model/pkg/errors"
)

// Fairness thresholds as a share of the asset value at the deal stage.
const (
	UndervaluedBelow = 0.10
	OvervaluedAbove  = 0.90
)

// Milestone is a contingent payment expected Years after signing.
type Milestone struct {
	Label  string  `json:"label,omitempty" yaml:"label,omitempty"`
	Amount float64 `json:"amount" yaml:"amount"`
	Years  float64 `json:"years" yaml:"years"`
}

// DealTerms describes a licensing transaction struck at Stage. Money is in
// $M; RoyaltyRate and DiscountRate are fractions.
type DealTerms struct {
	Stage        Phase       `json:"stage" yaml:"stage"`
	Upfront      float64     `json:"upfront" yaml:"upfront"`
	Milestones   []Milestone `json:"milestones,omitempty" yaml:"milestones,omitempty"`
	RoyaltyRate  float64     `json:"royalty_rate" yaml:"royalty_rate"`
	DiscountRate float64     `json:"discount_rate" yaml:"discount_rate"`
}

// Validate reports the first constraint violation.
func (d DealTerms) Validate() error {
	if !d.Stage.Valid() {
		return newInvalidInput(errors.CodeUnknownPhase, "stage", "unknown phase %d", int(d.Stage))
	}
	if err := checkNonNegative("upfront", d.Upfront); err != nil {
		return err
	}
	for i, m := range d.Milestones {
		if err := checkNonNegative(fmt.Sprintf("milestones[%d].amount", i), m.Amount); err != nil {
			return err
		}
		if err := checkNonNegative(fmt.Sprintf("milestones[%d].years", i), m.Years); err != nil {
			return err
		}
	}
	if err := checkFraction("royalty_rate", d.RoyaltyRate); err != nil {
		return err
	}
	return checkFraction("discount_rate", d.DiscountRate)
}

// Fairness classifies a deal against the asset value it buys into.
type Fairness string

const (
	Undervalued Fairness = "undervalued"
	FairValue   Fairness = "fair"
	Overvalued  Fairness = "overvalued"
)

// Label is the display text for the fairness assessment.
func (f Fairness) Label() string {
	switch f {
	case Undervalued:
		return "Potentially Undervalued"
	case Overvalued:
		return "Potentially Overvalued"
	default:
		return "Fair Value Range"
	}
}

// ClassifyFairness applies the 10% / 90% thresholds to a deal/asset ratio.
func ClassifyFairness(ratio float64) Fairness {
	switch {
	case ratio < UndervaluedBelow:
		return Undervalued
	case ratio > OvervaluedAbove:
		return Overvalued
	default:
		return FairValue
	}
}

// OwnershipSplit is the percentage of the asset attributed to each party.
// Licensee is rounded to one decimal place and Licensor is its exact
// complement, so the two always sum to 100.
type OwnershipSplit struct {
	Licensee decimal.Decimal
	Licensor decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// NewOwnershipSplit builds a split from the licensee's share in percent,
// clamped to [0, 100]. NaN counts as 0.
func NewOwnershipSplit(licenseePct float64) OwnershipSplit {
	switch {
	case math.IsNaN(licenseePct) || licenseePct < 0:
		licenseePct = 0
	case licenseePct > 100:
		licenseePct = 100
	}
	d := decimal.NewFromFloat(licenseePct).Round(1)
	return OwnershipSplit{Licensee: d, Licensor: hundred.Sub(d)}
}

// Total is Licensee + Licensor.
func (s OwnershipSplit) Total() decimal.Decimal { return s.Licensee.Add(s.Licensor) }

type ownershipSplitJSON struct {
	Licensee json.Number `json:"licensee"`
	Licensor json.Number `json:"licensor"`
}

// MarshalJSON writes both shares as exact JSON numbers.
func (s OwnershipSplit) MarshalJSON() ([]byte, error) {
	return json.Marshal(ownershipSplitJSON{
		Licensee: json.Number(s.Licensee.String()),
		Licensor: json.Number(s.Licensor.String()),
	})
}

func (s *OwnershipSplit) UnmarshalJSON(data []byte) error {
	var raw ownershipSplitJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	licensee, err := decimal.NewFromString(raw.Licensee.String())
	if err != nil {
		return fmt.Errorf("licensee: %w", err)
	}
	licensor, err := decimal.NewFromString(raw.Licensor.String())
	if err != nil {
		return fmt.Errorf("licensor: %w", err)
	}
	s.Licensee, s.Licensor = licensee, licensor
	return nil
}

// MilestoneValue is a milestone with its present value.
type MilestoneValue struct {
	Milestone
	PresentValue float64 `json:"present_value"`
}

// DealValuation is the outcome of valuing DealTerms against an NPVResult.
type DealValuation struct {
	Stage           Phase            `json:"stage"`
	StageValue      float64          `json:"stage_value"`
	Upfront         float64          `json:"upfront"`
	Milestones      []MilestoneValue `json:"milestones"`
	MilestoneValue  float64          `json:"milestone_value"`
	RoyaltyValue    float64          `json:"royalty_value"`
	TotalDealValue  float64          `json:"total_deal_value"`
	Split           OwnershipSplit   `json:"split"`
	ValuePerPercent float64          `json:"value_per_percent"`
	FairnessRatio   float64          `json:"fairness_ratio"`
	Fairness        Fairness         `json:"fairness"`
}

// ComputeDealValue prices deal against the asset value at its stage.
//
//	total    = upfront + Σ amount/(1+r)^years + royalty × launchContribution(stage)
//	licensee = clamp(total / NPV(stage) × 100, 0, 100)
//
// launchContribution is the risk-adjusted, discounted launch value at the
// stage after the order-of-entry factor, gross of R&D costs. A stage whose
// NPV is zero or negative has nothing to split and yields VAL_002.
func ComputeDealValue(deal DealTerms, npv NPVResult) (DealValuation, error) {
	if err := deal.Validate(); err != nil {
		return DealValuation{}, err
	}
	pv, ok := npv.Valuation(deal.Stage)
	if !ok {
		return DealValuation{}, invalidf("stage", "no valuation computed for %s", deal.Stage.Label())
	}
	if pv.NPV <= 0 {
		return DealValuation{}, newInvalidInput(errors.CodeNonPositiveStageValue, "stage",
			"deal stage %s has no positive asset value to split (NPV %.2f)", deal.Stage.Label(), pv.NPV)
	}

	out := DealValuation{
		Stage:      deal.Stage,
		StageValue: pv.NPV,
		Upfront:    deal.Upfront,
		Milestones: make([]MilestoneValue, 0, len(deal.Milestones)),
	}
	for _, m := range deal.Milestones {
		present := discount(m.Amount, deal.DiscountRate, m.Years)
		out.Milestones = append(out.Milestones, MilestoneValue{Milestone: m, PresentValue: present})
		out.MilestoneValue += present
	}
	out.RoyaltyValue = deal.RoyaltyRate * pv.LaunchContribution()
	out.TotalDealValue = out.Upfront + out.MilestoneValue + out.RoyaltyValue
	if math.IsInf(out.TotalDealValue, 0) || math.IsNaN(out.TotalDealValue) {
		return DealValuation{}, invalidf("total_deal_value", "deal value overflows; reduce the upfront or milestone amounts")
	}

	out.FairnessRatio = out.TotalDealValue / pv.NPV
	if math.IsInf(out.FairnessRatio, 0) {
		return DealValuation{}, newInvalidInput(errors.CodeNonPositiveStageValue, "stage",
			"deal stage %s value %g is too small to compare a $%gM deal against", deal.Stage.Label(), pv.NPV, out.TotalDealValue)
	}
	out.Split = NewOwnershipSplit(out.FairnessRatio * 100)
	out.ValuePerPercent = pv.NPV / 100
	out.Fairness = ClassifyFairness(out.FairnessRatio)
	return out, nil
}

// RequiredDealValue is the deal value ($M) that buys desiredShare percent of
// the asset at stage.
func RequiredDealValue(npv NPVResult, stage Phase, desiredShare float64) (float64, error) {
	if err := checkPercent("desired_share", desiredShare); err != nil {
		return 0, err
	}
	pv, ok := npv.Valuation(stage)
	if !ok {
		return 0, invalidf("stage", "no valuation computed for %s", stage.Label())
	}
	if pv.NPV <= 0 {
		return 0, newInvalidInput(errors.CodeNonPositiveStageValue, "stage",
			"deal stage %s has no positive asset value to split (NPV %.2f)", stage.Label(), pv.NPV)
	}
	return desiredShare / 100 * pv.NPV, nil
}
