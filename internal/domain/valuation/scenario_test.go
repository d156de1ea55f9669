package valuation

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/JohanRGustafsson/valuation-model/pkg/errors"
)

func TestScenario_YAMLRoundTripRecomputesIdentically(t *testing.T) {
	s := DefaultScenario()
	s.Inputs.DiscountRate = 0.0937
	s.Inputs.Phases[Phase2] = PhaseParams{Probability: 1.0 / 3, Cost: 87.123456789, Duration: 2.75}
	s.Deal.Milestones = []Milestone{{Label: "approval", Amount: 40, Years: 3.5}}

	var buf bytes.Buffer
	require.NoError(t, SaveScenario(&buf, s))

	loaded, err := LoadScenario(&buf)
	require.NoError(t, err)
	assert.Equal(t, s, loaded)

	before, err := ComputeNPV(s.Inputs, nil)
	require.NoError(t, err)
	after, err := ComputeNPV(loaded.Inputs, nil)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestScenario_JSONRoundTrip(t *testing.T) {
	in := DefaultInputs()
	in.LaunchValue = 1234.5678
	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"phase3":{"probability":0.9,"cost":200,"duration":1.5}`)

	var decoded ValuationInputs
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, in, decoded)
}

func TestSaveScenario_PhasesInOrder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, SaveScenario(&buf, DefaultScenario()))
	out := buf.String()

	prev := -1
	for _, p := range DevelopmentPhases() {
		idx := strings.Index(out, p.String()+":")
		require.GreaterOrEqual(t, idx, 0, p.String())
		assert.Greater(t, idx, prev)
		prev = idx
	}
	assert.Contains(t, out, "stage: phase2")
}

func TestLoadScenario_PartialOverrides(t *testing.T) {
	doc := `
name: oncology asset
inputs:
  launch_value: 2500
  order_of_entry: 2
  discount_rate: 0.1
  include_rd_costs: false
  phases:
    phase3:
      probability: 0.65
    registration:
      duration: 1
`
	s, err := LoadScenario(strings.NewReader(doc))
	require.NoError(t, err)

	assert.Equal(t, "oncology asset", s.Name)
	assert.Equal(t, 2500.0, s.Inputs.LaunchValue)
	assert.Equal(t, 0.65, s.Inputs.Phases.Get(Phase3).Probability)
	assert.Equal(t, 200.0, s.Inputs.Phases.Get(Phase3).Cost)
	assert.Equal(t, 1.0, s.Inputs.Phases.Get(Filed).Duration)
	assert.Nil(t, s.Deal)
}

func TestLoadScenario_Errors(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		code errors.ErrorCode
	}{
		{"unknown key", "inputs:\n  launch_valu: 10\n", errors.CodeScenarioInvalid},
		{"not yaml", "inputs: [1, 2\n", errors.CodeScenarioInvalid},
		{"invalid value", "inputs:\n  discount_rate: -0.1\n", errors.CodeInvalidInput},
		{"unknown phase", "inputs:\n  phases:\n    phase9:\n      cost: 1\n", errors.CodeUnknownPhase},
		{"launched override", "inputs:\n  phases:\n    launched:\n      probability: 0.5\n", errors.CodeInvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadScenario(strings.NewReader(tc.doc))
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, tc.code), "got %v", err)
		})
	}
}

func TestPhaseTable_DecodeOverlaysExistingValues(t *testing.T) {
	base := DefaultInputs()
	base.Phases[Phase3].Cost = 999

	t.Run("json", func(t *testing.T) {
		in := base
		require.NoError(t, json.Unmarshal([]byte(`{"phases":{"phase1":{"cost":5}}}`), &in))
		assert.Equal(t, 5.0, in.Phases[Phase1].Cost)
		assert.Equal(t, 999.0, in.Phases[Phase3].Cost)
		assert.Equal(t, base.Phases[Phase1].Probability, in.Phases[Phase1].Probability)
	})

	t.Run("yaml", func(t *testing.T) {
		in := base
		require.NoError(t, yaml.Unmarshal([]byte("phases:\n  phase1:\n    cost: 5\n"), &in))
		assert.Equal(t, 5.0, in.Phases[Phase1].Cost)
		assert.Equal(t, 999.0, in.Phases[Phase3].Cost)
	})

	t.Run("zero table starts from defaults", func(t *testing.T) {
		var in ValuationInputs
		require.NoError(t, json.Unmarshal([]byte(`{"phases":{"phase1":{"cost":5}}}`), &in))
		assert.Equal(t, 5.0, in.Phases[Phase1].Cost)
		assert.Equal(t, DefaultPhaseTable()[Phase3], in.Phases[Phase3])
	})
}
