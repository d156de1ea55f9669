// Package valuation is the calculation engine for pharmaceutical asset
// valuation: risk-adjusted NPV per clinical phase, deal value and ownership
// split, strategic out-licensing comparison, launch pricing and sensitivity.
//
// Every function here is pure. Inputs are plain structs passed by value and
// results are freshly allocated, so the engine is safe for concurrent use
// without locking.
package valuation

import (
	"strings"

	"github.com/JohanRGustafsson/valuation-model/pkg/errors"
)

// Phase is a position in the fixed clinical development sequence.
type Phase int

const (
	Preclinical Phase = iota
	Phase1
	Phase2
	Phase3
	Filed
	Launched
)

// DevelopmentPhaseCount is the number of phases before Launched.
const DevelopmentPhaseCount = int(Launched)

var phaseNames = [...]string{"preclinical", "phase1", "phase2", "phase3", "filed", "launched"}

var phaseLabels = [...]string{"Preclinical", "Phase 1", "Phase 2", "Phase 3", "Filed", "Launched"}

var phaseAliases = map[string]Phase{
	"preclinical":  Preclinical,
	"pre-clinical": Preclinical,
	"pre_clinical": Preclinical,
	"phase1":       Phase1,
	"phase_1":      Phase1,
	"phase-1":      Phase1,
	"phase 1":      Phase1,
	"p1":           Phase1,
	"phase2":       Phase2,
	"phase_2":      Phase2,
	"phase-2":      Phase2,
	"phase 2":      Phase2,
	"p2":           Phase2,
	"phase3":       Phase3,
	"phase_3":      Phase3,
	"phase-3":      Phase3,
	"phase 3":      Phase3,
	"p3":           Phase3,
	"filed":        Filed,
	"registration": Filed,
	"nda":          Filed,
	"bla":          Filed,
	"launched":     Launched,
	"launch":       Launched,
	"market":       Launched,
}

// Phases returns every phase in development order, ending with Launched.
func Phases() []Phase {
	return []Phase{Preclinical, Phase1, Phase2, Phase3, Filed, Launched}
}

// DevelopmentPhases returns the phases that carry a probability, cost and
// duration, i.e. all phases except Launched.
func DevelopmentPhases() []Phase {
	return []Phase{Preclinical, Phase1, Phase2, Phase3, Filed}
}

// Valid reports whether p is one of the defined phases.
func (p Phase) Valid() bool { return p >= Preclinical && p <= Launched }

func (p Phase) String() string {
	if !p.Valid() {
		return "unknown"
	}
	return phaseNames[p]
}

// Label is the human-readable name shown in tables and dropdowns.
func (p Phase) Label() string {
	if !p.Valid() {
		return "Unknown"
	}
	return phaseLabels[p]
}

// Next returns the following phase. Launched has none.
func (p Phase) Next() (Phase, bool) {
	if !p.Valid() || p == Launched {
		return p, false
	}
	return p + 1, true
}

// ParsePhase accepts canonical names and the common aliases used in
// scenario files and form posts ("registration", "phase_1", "p1", ...).
func ParsePhase(s string) (Phase, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if p, ok := phaseAliases[key]; ok {
		return p, nil
	}
	return Preclinical, newInvalidInput(errors.CodeUnknownPhase, "phase", "unknown phase %q", s)
}

func (p Phase) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, newInvalidInput(errors.CodeUnknownPhase, "phase", "unknown phase %d", int(p))
	}
	return []byte(p.String()), nil
}

func (p *Phase) UnmarshalText(text []byte) error {
	parsed, err := ParsePhase(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Phase parameters
// ─────────────────────────────────────────────────────────────────────────────

// PhaseParams are the per-phase assumptions. Probability is the chance of
// advancing out of the phase, Cost is the R&D spend in $M and Duration is
// the phase length in years.
type PhaseParams struct {
	Probability float64 `json:"probability" yaml:"probability"`
	Cost        float64 `json:"cost" yaml:"cost"`
	Duration    float64 `json:"duration" yaml:"duration"`
}

// launchedParams is the terminal phase: the asset is on the market.
var launchedParams = PhaseParams{Probability: 1}

// Validate checks one phase's assumptions, prefixing fields with the phase.
func (pp PhaseParams) Validate(p Phase) error {
	prefix := "phases." + p.String() + "."
	if err := checkFraction(prefix+"probability", pp.Probability); err != nil {
		return err
	}
	if err := checkNonNegative(prefix+"cost", pp.Cost); err != nil {
		return err
	}
	return checkNonNegative(prefix+"duration", pp.Duration)
}

// PhaseTable holds the parameters of every development phase. It is an
// array so that copies never alias.
type PhaseTable [DevelopmentPhaseCount]PhaseParams

// DefaultPhaseTable returns the bundled industry-average assumptions.
// Durations derive from years-to-market of 8, 6, 4, 2 and 0.5.
func DefaultPhaseTable() PhaseTable {
	return PhaseTable{
		Preclinical: {Probability: 0.40, Cost: 10, Duration: 2},
		Phase1:      {Probability: 0.60, Cost: 50, Duration: 2},
		Phase2:      {Probability: 0.80, Cost: 100, Duration: 2},
		Phase3:      {Probability: 0.90, Cost: 200, Duration: 1.5},
		Filed:       {Probability: 0.95, Cost: 50, Duration: 0.5},
	}
}

// Get returns the parameters of p. Launched always yields probability 1
// with zero cost and duration.
func (t PhaseTable) Get(p Phase) PhaseParams {
	if p < Preclinical || p >= Launched {
		return launchedParams
	}
	return t[p]
}

// With returns a copy of t with p's parameters replaced.
func (t PhaseTable) With(p Phase, params PhaseParams) (PhaseTable, error) {
	if !p.Valid() {
		return t, newInvalidInput(errors.CodeUnknownPhase, "phase", "unknown phase %d", int(p))
	}
	if p == Launched {
		return t, invalidf("phases.launched", "launched is terminal and cannot be overridden")
	}
	t[p] = params
	return t, nil
}

// Validate checks every development phase.
func (t PhaseTable) Validate() error {
	for _, p := range DevelopmentPhases() {
		if err := t[p].Validate(p); err != nil {
			return err
		}
	}
	return nil
}

// YearsToMarket is the summed duration from the start of p to launch.
func (t PhaseTable) YearsToMarket(p Phase) float64 {
	var years float64
	for q := p; q < Launched; q++ {
		years += t.Get(q).Duration
	}
	return years
}

// phasePatch overlays selected fields of a phase onto the table being
// decoded into, so partial scenario files and request bodies act as
// overrides of whatever the table already holds.
type phasePatch struct {
	Probability *float64 `json:"probability,omitempty" yaml:"probability,omitempty"`
	Cost        *float64 `json:"cost,omitempty" yaml:"cost,omitempty"`
	Duration    *float64 `json:"duration,omitempty" yaml:"duration,omitempty"`
}

func (t PhaseTable) toMap() map[string]PhaseParams {
	out := make(map[string]PhaseParams, DevelopmentPhaseCount)
	for _, p := range DevelopmentPhases() {
		out[p.String()] = t[p]
	}
	return out
}

// withPatches applies patches on top of t. A zero table starts from
// DefaultPhaseTable.
func (t PhaseTable) withPatches(patches map[string]phasePatch) (PhaseTable, error) {
	if t == (PhaseTable{}) {
		t = DefaultPhaseTable()
	}
	for name, patch := range patches {
		p, err := ParsePhase(name)
		if err != nil {
			return t, err
		}
		if p == Launched {
			return t, invalidf("phases.launched", "launched is terminal and cannot be overridden")
		}
		if patch.Probability != nil {
			t[p].Probability = *patch.Probability
		}
		if patch.Cost != nil {
			t[p].Cost = *patch.Cost
		}
		if patch.Duration != nil {
			t[p].Duration = *patch.Duration
		}
	}
	return t, nil
}
