package valuation

// Recommendation is the outcome of the develop-or-license comparison.
type Recommendation string

const (
	ContinueDevelopment Recommendation = "Continue Development"
	OutLicenseNow       Recommendation = "Out-License Now"
	EitherOption        Recommendation = "Either Option Viable"
)

// StrategicDecision compares advancing the asset one more phase against
// out-licensing it at Stage.
type StrategicDecision struct {
	Stage     Phase  `json:"stage"`
	NextPhase *Phase `json:"next_phase"`

	CurrentValue       float64 `json:"current_value"`
	NextPhaseValue     float64 `json:"next_phase_value"`
	SuccessProbability float64 `json:"success_probability"`

	// ContinueValue is NPV(next) × P(stage).
	ContinueValue float64 `json:"continue_value"`

	OutLicensePercent float64 `json:"out_license_percent"`
	DealValue         float64 `json:"deal_value"`
	RetainedValue     float64 `json:"retained_value"`

	// OutLicenseNowValue equals DealValue + RetainedValue = NPV(stage).
	OutLicenseNowValue float64 `json:"out_license_now_value"`

	// ValueDifference is ContinueValue − OutLicenseNowValue.
	ValueDifference float64        `json:"value_difference"`
	Recommendation  Recommendation `json:"recommendation"`
}

// ComputeStrategicDecision evaluates whether to keep developing past stage
// or out-license outLicensePct percent of the asset now. At Launched there
// is no next phase and the continue value is zero.
func ComputeStrategicDecision(npv NPVResult, in ValuationInputs, stage Phase, outLicensePct float64) (StrategicDecision, error) {
	if !stage.Valid() {
		return StrategicDecision{}, invalidf("stage", "unknown phase %d", int(stage))
	}
	if err := checkPercent("out_license_percent", outLicensePct); err != nil {
		return StrategicDecision{}, err
	}
	if err := in.Phases.Validate(); err != nil {
		return StrategicDecision{}, err
	}
	current, ok := npv.Valuation(stage)
	if !ok {
		return StrategicDecision{}, invalidf("stage", "no valuation computed for %s", stage.Label())
	}

	out := StrategicDecision{
		Stage:              stage,
		CurrentValue:       current.NPV,
		SuccessProbability: in.Phases.Get(stage).Probability,
		OutLicensePercent:  outLicensePct,
		DealValue:          current.NPV * outLicensePct / 100,
		OutLicenseNowValue: current.NPV,
	}
	out.RetainedValue = current.NPV - out.DealValue

	if next, ok := stage.Next(); ok {
		out.NextPhase = &next
		out.NextPhaseValue = npv.Value(next)
		out.ContinueValue = out.NextPhaseValue * out.SuccessProbability
	}

	out.ValueDifference = out.ContinueValue - out.OutLicenseNowValue
	out.Recommendation = recommend(out.ValueDifference)
	return out, nil
}

func recommend(diff float64) Recommendation {
	switch {
	case diff > 0:
		return ContinueDevelopment
	case diff < 0:
		return OutLicenseNow
	default:
		return EitherOption
	}
}
