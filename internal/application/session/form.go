// Package session holds per-user form state between page interactions.
//
// A Form is the flat field-name → value view of every control on the four
// screens. It is only ever changed through Set/Apply, which validate one
// field at a time and leave the previous value in place on error. The
// engine never sees a Form: ValuationInputs, DealTerms and
// LaunchPriceInputs build immutable inputs from it.
package session

import (
	"fmt"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/JohanRGustafsson/valuation-model/internal/domain/valuation"
)

// MilestoneSlots is the number of milestone rows on the deal screen.
const MilestoneSlots = 3

// PhaseForm is the per-phase block of the NPV screen. Probability is in
// percent; YearsToMarket counts from the start of the phase to launch.
type PhaseForm struct {
	ProbabilityPct float64 `json:"probability_pct"`
	Cost           float64 `json:"cost"`
	YearsToMarket  float64 `json:"years_to_market"`
}

// MilestoneForm is one optional milestone row; a zero amount leaves it out.
type MilestoneForm struct {
	Amount float64 `json:"amount"`
	Years  float64 `json:"years"`
}

// Form is the state of every input control. Percentages are stored as the
// user typed them and converted to fractions by the builders.
type Form struct {
	// NPV calculator
	LaunchValue     float64                                    `json:"launch_value"`
	OrderOfEntry    int64                                      `json:"order_of_entry"`
	DiscountRatePct float64                                    `json:"discount_rate_pct"`
	IncludeRDCosts  bool                                       `json:"include_rd_costs"`
	Phases          [valuation.DevelopmentPhaseCount]PhaseForm `json:"phases"`
	ShowAssumptions bool                                       `json:"show_assumptions"`
	ShowFormulas    bool                                       `json:"show_formulas"`

	// Deal analysis
	DealStage       valuation.Phase               `json:"deal_stage"`
	DealValue       float64                       `json:"deal_value"`
	DesiredSharePct float64                       `json:"desired_share_pct"`
	RoyaltyPct      float64                       `json:"royalty_pct"`
	Milestones      [MilestoneSlots]MilestoneForm `json:"milestones"`

	// Strategic decision
	StrategyStage valuation.Phase `json:"strategy_stage"`
	OutLicensePct float64         `json:"out_license_pct"`

	// Launch price
	MarketValue        float64 `json:"market_value"`
	LaunchOrderOfEntry int64   `json:"launch_order_of_entry"`
	EstimatedPatients  int64   `json:"estimated_patients"`
	DiagnosedPatients  int64   `json:"diagnosed_patients"`
	TreatedPatients    int64   `json:"treated_patients"`
	AdoptionPct        float64 `json:"adoption_pct"`
	Elasticity         float64 `json:"elasticity"`
}

// DefaultForm mirrors valuation.DefaultInputs and the default screen values.
func DefaultForm() Form {
	f := Form{
		DealStage:       valuation.Phase2,
		DealValue:       200,
		DesiredSharePct: 50,

		StrategyStage: valuation.Phase2,
		OutLicensePct: 50,

		MarketValue:        1000,
		LaunchOrderOfEntry: 1,
		EstimatedPatients:  100000,
		DiagnosedPatients:  500000,
		TreatedPatients:    300000,
		AdoptionPct:        50,
		Elasticity:         valuation.DefaultElasticity,
	}
	f.SetInputs(valuation.DefaultInputs())
	return f
}

// SetInputs overwrites the NPV screen with in. Durations become cumulative
// years to market.
func (f *Form) SetInputs(in valuation.ValuationInputs) {
	f.LaunchValue = in.LaunchValue
	f.OrderOfEntry = int64(in.OrderOfEntry)
	f.DiscountRatePct = math.Round(in.DiscountRate*1e4) / 100
	f.IncludeRDCosts = in.IncludeRDCosts
	for _, p := range valuation.DevelopmentPhases() {
		params := in.Phases.Get(p)
		f.Phases[p] = PhaseForm{
			ProbabilityPct: math.Round(params.Probability*1000) / 10,
			Cost:           params.Cost,
			YearsToMarket:  in.Phases.YearsToMarket(p),
		}
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Field registry
// ─────────────────────────────────────────────────────────────────────────────

type fieldKind int

const (
	kindFloat fieldKind = iota
	kindInt
	kindBool
	kindPhase
)

type fieldSpec struct {
	name  string
	kind  fieldKind
	min   float64
	max   float64
	above bool // min is exclusive
	ref   func(*Form) interface{}
}

var (
	fieldIndex = map[string]fieldSpec{}
	fieldOrder []string
)

func register(spec fieldSpec) {
	fieldIndex[spec.name] = spec
	fieldOrder = append(fieldOrder, spec.name)
}

func init() {
	inf := math.Inf(1)
	register(fieldSpec{name: "launch_value", kind: kindFloat, min: 0, max: inf, above: true,
		ref: func(f *Form) interface{} { return &f.LaunchValue }})
	register(fieldSpec{name: "order_of_entry", kind: kindInt, min: 1, max: 20,
		ref: func(f *Form) interface{} { return &f.OrderOfEntry }})
	register(fieldSpec{name: "discount_rate", kind: kindFloat, min: 0, max: 100,
		ref: func(f *Form) interface{} { return &f.DiscountRatePct }})
	register(fieldSpec{name: "include_rd_costs", kind: kindBool,
		ref: func(f *Form) interface{} { return &f.IncludeRDCosts }})
	register(fieldSpec{name: "show_assumptions", kind: kindBool,
		ref: func(f *Form) interface{} { return &f.ShowAssumptions }})
	register(fieldSpec{name: "show_formulas", kind: kindBool,
		ref: func(f *Form) interface{} { return &f.ShowFormulas }})

	for _, p := range valuation.DevelopmentPhases() {
		p := p
		register(fieldSpec{name: "probability_" + p.String(), kind: kindFloat, min: 0, max: 100,
			ref: func(f *Form) interface{} { return &f.Phases[p].ProbabilityPct }})
		register(fieldSpec{name: "cost_" + p.String(), kind: kindFloat, min: 0, max: inf,
			ref: func(f *Form) interface{} { return &f.Phases[p].Cost }})
		register(fieldSpec{name: "time_to_market_" + p.String(), kind: kindFloat, min: 0, max: 30,
			ref: func(f *Form) interface{} { return &f.Phases[p].YearsToMarket }})
	}

	register(fieldSpec{name: "deal_stage", kind: kindPhase,
		ref: func(f *Form) interface{} { return &f.DealStage }})
	register(fieldSpec{name: "deal_value", kind: kindFloat, min: 0, max: inf,
		ref: func(f *Form) interface{} { return &f.DealValue }})
	register(fieldSpec{name: "desired_share", kind: kindFloat, min: 0, max: 100,
		ref: func(f *Form) interface{} { return &f.DesiredSharePct }})
	register(fieldSpec{name: "royalty_rate", kind: kindFloat, min: 0, max: 100,
		ref: func(f *Form) interface{} { return &f.RoyaltyPct }})
	for i := 0; i < MilestoneSlots; i++ {
		i := i
		register(fieldSpec{name: fmt.Sprintf("milestone_%d_amount", i+1), kind: kindFloat, min: 0, max: inf,
			ref: func(f *Form) interface{} { return &f.Milestones[i].Amount }})
		register(fieldSpec{name: fmt.Sprintf("milestone_%d_years", i+1), kind: kindFloat, min: 0, max: 30,
			ref: func(f *Form) interface{} { return &f.Milestones[i].Years }})
	}

	register(fieldSpec{name: "strategy_stage", kind: kindPhase,
		ref: func(f *Form) interface{} { return &f.StrategyStage }})
	register(fieldSpec{name: "out_license_pct", kind: kindFloat, min: 0, max: 100,
		ref: func(f *Form) interface{} { return &f.OutLicensePct }})

	register(fieldSpec{name: "market_value", kind: kindFloat, min: 0, max: inf,
		ref: func(f *Form) interface{} { return &f.MarketValue }})
	register(fieldSpec{name: "launch_order_of_entry", kind: kindInt, min: 1, max: 20,
		ref: func(f *Form) interface{} { return &f.LaunchOrderOfEntry }})
	register(fieldSpec{name: "estimated_patients", kind: kindInt, min: 1, max: 1e10,
		ref: func(f *Form) interface{} { return &f.EstimatedPatients }})
	register(fieldSpec{name: "diagnosed_patients", kind: kindInt, min: 0, max: 1e10,
		ref: func(f *Form) interface{} { return &f.DiagnosedPatients }})
	register(fieldSpec{name: "treated_patients", kind: kindInt, min: 0, max: 1e10,
		ref: func(f *Form) interface{} { return &f.TreatedPatients }})
	register(fieldSpec{name: "adoption_rate", kind: kindFloat, min: 0, max: 100,
		ref: func(f *Form) interface{} { return &f.AdoptionPct }})
	register(fieldSpec{name: "elasticity", kind: kindFloat, min: 0, max: 10, above: true,
		ref: func(f *Form) interface{} { return &f.Elasticity }})
}

// Fields lists every settable field name in screen order.
func Fields() []string {
	return append([]string(nil), fieldOrder...)
}

// FieldErrors maps field names to inline validation messages.
type FieldErrors map[string]string

// Field returns the message for name, or "".
func (fe FieldErrors) Field(name string) string { return fe[name] }

// Fields returns the names with errors, sorted.
func (fe FieldErrors) Fields() []string {
	out := make([]string, 0, len(fe))
	for k := range fe {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Get renders the current value of name the way a form control posts it.
func (f Form) Get(name string) (string, bool) {
	spec, ok := fieldIndex[name]
	if !ok {
		return "", false
	}
	switch v := spec.ref(&f).(type) {
	case *float64:
		return strconv.FormatFloat(*v, 'f', -1, 64), true
	case *int64:
		return strconv.FormatInt(*v, 10), true
	case *bool:
		return strconv.FormatBool(*v), true
	case *valuation.Phase:
		return v.String(), true
	}
	return "", false
}

// Set parses raw for field name and stores it when valid. On error the
// previous value is kept.
func (f *Form) Set(name, raw string) error {
	spec, ok := fieldIndex[name]
	if !ok {
		return fmt.Errorf("unknown field %q", name)
	}
	raw = strings.TrimSpace(raw)

	switch spec.kind {
	case kindBool:
		b, err := parseBool(raw)
		if err != nil {
			return err
		}
		*(spec.ref(f).(*bool)) = b
	case kindPhase:
		p, err := valuation.ParsePhase(raw)
		if err != nil {
			return fmt.Errorf("unknown phase %q", raw)
		}
		if p == valuation.Launched && name != "strategy_stage" && name != "deal_stage" {
			return fmt.Errorf("launched is not a development phase")
		}
		*(spec.ref(f).(*valuation.Phase)) = p
	case kindInt:
		n, err := strconv.ParseInt(strings.ReplaceAll(raw, ",", ""), 10, 64)
		if err != nil {
			return fmt.Errorf("must be a whole number")
		}
		if err := spec.checkRange(float64(n)); err != nil {
			return err
		}
		*(spec.ref(f).(*int64)) = n
	default:
		x, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
		if err != nil || math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Errorf("must be a number")
		}
		if err := spec.checkRange(x); err != nil {
			return err
		}
		*(spec.ref(f).(*float64)) = x
	}
	return nil
}

func (spec fieldSpec) checkRange(x float64) error {
	switch {
	case spec.above && x <= spec.min:
		return fmt.Errorf("must be greater than %s", formatBound(spec.min))
	case !spec.above && x < spec.min:
		return fmt.Errorf("must be at least %s", formatBound(spec.min))
	case x > spec.max:
		return fmt.Errorf("must be at most %s", formatBound(spec.max))
	}
	return nil
}

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(raw) {
	case "on", "yes", "1", "true":
		return true, nil
	case "", "off", "no", "0", "false":
		return false, nil
	}
	return false, fmt.Errorf("must be true or false")
}

// Apply diffs submitted form values against f and sets every known field
// whose value changed. Unknown keys are ignored. When a key repeats, the
// last value wins, so a hidden "false" followed by a checkbox works.
func (f *Form) Apply(values url.Values) (changed []string, errs FieldErrors) {
	errs = FieldErrors{}
	for _, name := range fieldOrder {
		vals, ok := values[name]
		if !ok || len(vals) == 0 {
			continue
		}
		raw := vals[len(vals)-1]
		before, _ := f.Get(name)
		if err := f.Set(name, raw); err != nil {
			errs[name] = err.Error()
			continue
		}
		if after, _ := f.Get(name); after != before {
			changed = append(changed, name)
		}
	}
	return changed, errs
}

// ─────────────────────────────────────────────────────────────────────────────
// Engine input builders
// ─────────────────────────────────────────────────────────────────────────────

// ValuationInputs converts the NPV screen state. Phase durations are the
// differences between consecutive years-to-market values, so they must not
// increase towards launch.
func (f Form) ValuationInputs() (valuation.ValuationInputs, FieldErrors) {
	errs := FieldErrors{}
	in := valuation.ValuationInputs{
		LaunchValue:    f.LaunchValue,
		OrderOfEntry:   int(f.OrderOfEntry),
		DiscountRate:   f.DiscountRatePct / 100,
		IncludeRDCosts: f.IncludeRDCosts,
	}
	dev := valuation.DevelopmentPhases()
	for i, p := range dev {
		next := 0.0
		if i+1 < len(dev) {
			next = f.Phases[dev[i+1]].YearsToMarket
		}
		duration := f.Phases[p].YearsToMarket - next
		if duration < 0 {
			errs["time_to_market_"+p.String()] = fmt.Sprintf("must be at least the %s value (%s years)",
				dev[i+1].Label(), formatBound(next))
			duration = 0
		}
		in.Phases[p] = valuation.PhaseParams{
			Probability: f.Phases[p].ProbabilityPct / 100,
			Cost:        f.Phases[p].Cost,
			Duration:    duration,
		}
	}
	if len(errs) > 0 {
		return in, errs
	}
	return in, nil
}

// DealTerms converts the deal screen state; the NPV discount rate applies
// to milestones.
func (f Form) DealTerms() valuation.DealTerms {
	d := valuation.DealTerms{
		Stage:        f.DealStage,
		Upfront:      f.DealValue,
		RoyaltyRate:  f.RoyaltyPct / 100,
		DiscountRate: f.DiscountRatePct / 100,
	}
	for i, m := range f.Milestones {
		if m.Amount == 0 {
			continue
		}
		d.Milestones = append(d.Milestones, valuation.Milestone{
			Label:  fmt.Sprintf("Milestone %d", i+1),
			Amount: m.Amount,
			Years:  m.Years,
		})
	}
	return d
}

// PenetrationEstimate derives penetration from the patient funnel.
func (f Form) PenetrationEstimate() (valuation.PenetrationEstimate, error) {
	return valuation.EstimatePenetration(f.TreatedPatients, f.DiagnosedPatients, f.AdoptionPct/100)
}

// LaunchPriceInputs converts the launch price screen state, using the
// estimated penetration.
func (f Form) LaunchPriceInputs() (valuation.LaunchPriceInputs, error) {
	est, err := f.PenetrationEstimate()
	if err != nil {
		return valuation.LaunchPriceInputs{}, err
	}
	return valuation.LaunchPriceInputs{
		MarketValue:     f.MarketValue,
		MarketSize:      f.EstimatedPatients,
		PenetrationRate: est.Penetration,
		AdoptionRate:    f.AdoptionPct / 100,
		OrderOfEntry:    int(f.LaunchOrderOfEntry),
		Elasticity:      f.Elasticity,
	}, nil
}
