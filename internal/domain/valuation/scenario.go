package valuation

import (
	"encoding/json"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/JohanRGustafsson/valuation-model/pkg/errors"
)

// Scenario is a saved set of inputs for every screen. Deal and LaunchPrice
// are optional.
type Scenario struct {
	Name        string             `json:"name,omitempty" yaml:"name,omitempty"`
	Description string             `json:"description,omitempty" yaml:"description,omitempty"`
	Inputs      ValuationInputs    `json:"inputs" yaml:"inputs"`
	Deal        *DealTerms         `json:"deal,omitempty" yaml:"deal,omitempty"`
	LaunchPrice *LaunchPriceInputs `json:"launch_price,omitempty" yaml:"launch_price,omitempty"`
}

// DefaultScenario populates every section with defaults.
func DefaultScenario() Scenario {
	in := DefaultInputs()
	lp := DefaultLaunchPriceInputs()
	return Scenario{
		Name:   "default",
		Inputs: in,
		Deal: &DealTerms{
			Stage:        Phase2,
			Upfront:      200,
			DiscountRate: in.DiscountRate,
		},
		LaunchPrice: &lp,
	}
}

// Validate checks every present section.
func (s Scenario) Validate() error {
	if err := s.Inputs.Validate(); err != nil {
		return err
	}
	if s.Deal != nil {
		if err := s.Deal.Validate(); err != nil {
			return err
		}
	}
	if s.LaunchPrice != nil {
		return s.LaunchPrice.Validate()
	}
	return nil
}

// LoadScenario decodes a YAML (or JSON, which is valid YAML) scenario.
// Missing phase fields fall back to the defaults; unknown keys are rejected.
func LoadScenario(r io.Reader) (Scenario, error) {
	s := Scenario{Inputs: DefaultInputs()}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		if _, ok := AsInvalidInput(err); ok {
			return Scenario{}, err
		}
		return Scenario{}, errors.Wrap(err, errors.CodeScenarioInvalid, "decode scenario")
	}
	if err := s.Validate(); err != nil {
		return Scenario{}, err
	}
	return s, nil
}

// SaveScenario writes s as YAML with every phase spelled out.
func SaveScenario(w io.Writer, s Scenario) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return errors.Wrap(err, errors.CodeScenarioInvalid, "encode scenario")
	}
	return enc.Close()
}

// ─────────────────────────────────────────────────────────────────────────────
// PhaseTable encoding: an object keyed by phase name
// ─────────────────────────────────────────────────────────────────────────────

func (t PhaseTable) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.toMap())
}

func (t *PhaseTable) UnmarshalJSON(data []byte) error {
	var patches map[string]phasePatch
	if err := json.Unmarshal(data, &patches); err != nil {
		return err
	}
	parsed, err := t.withPatches(patches)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t PhaseTable) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, p := range DevelopmentPhases() {
		var val yaml.Node
		if err := val.Encode(t[p]); err != nil {
			return nil, err
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: p.String()}, &val)
	}
	return node, nil
}

func (t *PhaseTable) UnmarshalYAML(value *yaml.Node) error {
	var patches map[string]phasePatch
	if err := value.Decode(&patches); err != nil {
		return err
	}
	parsed, err := t.withPatches(patches)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
