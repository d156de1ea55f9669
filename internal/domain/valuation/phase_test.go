package valuation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JohanRGustafsson/valuation-model/pkg/errors"
)

func TestParsePhase(t *testing.T) {
	cases := map[string]Phase{
		"preclinical":  Preclinical,
		"Phase1":       Phase1,
		"phase_1":      Phase1,
		"p2":           Phase2,
		" Phase 3 ":    Phase3,
		"registration": Filed,
		"filed":        Filed,
		"launched":     Launched,
	}
	for in, want := range cases {
		got, err := ParsePhase(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestParsePhase_Unknown(t *testing.T) {
	_, err := ParsePhase("phase9")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.True(t, errors.IsCode(err, errors.CodeUnknownPhase))
	assert.Equal(t, "phase", errors.FieldOf(err))
}

func TestPhase_Next(t *testing.T) {
	next, ok := Phase3.Next()
	assert.True(t, ok)
	assert.Equal(t, Filed, next)

	next, ok = Filed.Next()
	assert.True(t, ok)
	assert.Equal(t, Launched, next)

	_, ok = Launched.Next()
	assert.False(t, ok)
}

func TestPhase_Labels(t *testing.T) {
	assert.Equal(t, "phase2", Phase2.String())
	assert.Equal(t, "Phase 2", Phase2.Label())
	assert.Equal(t, "unknown", Phase(42).String())
	assert.Len(t, Phases(), 6)
	assert.Len(t, DevelopmentPhases(), 5)
}

func TestPhase_TextRoundTrip(t *testing.T) {
	data, err := json.Marshal(map[string]Phase{"stage": Phase3})
	require.NoError(t, err)
	assert.JSONEq(t, `{"stage":"phase3"}`, string(data))

	var decoded struct {
		Stage Phase `json:"stage"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"stage":"registration"}`), &decoded))
	assert.Equal(t, Filed, decoded.Stage)

	assert.Error(t, json.Unmarshal([]byte(`{"stage":"phase7"}`), &decoded))
}

func TestPhaseTable_Defaults(t *testing.T) {
	tbl := DefaultPhaseTable()
	require.NoError(t, tbl.Validate())

	assert.Equal(t, 0.40, tbl.Get(Preclinical).Probability)
	assert.Equal(t, 200.0, tbl.Get(Phase3).Cost)
	assert.Equal(t, 0.5, tbl.Get(Filed).Duration)
	assert.Equal(t, PhaseParams{Probability: 1}, tbl.Get(Launched))

	// years-to-market of the original assumptions
	assert.InDelta(t, 8.0, tbl.YearsToMarket(Preclinical), 1e-12)
	assert.InDelta(t, 6.0, tbl.YearsToMarket(Phase1), 1e-12)
	assert.InDelta(t, 4.0, tbl.YearsToMarket(Phase2), 1e-12)
	assert.InDelta(t, 2.0, tbl.YearsToMarket(Phase3), 1e-12)
	assert.InDelta(t, 0.5, tbl.YearsToMarket(Filed), 1e-12)
	assert.Zero(t, tbl.YearsToMarket(Launched))
}

func TestPhaseTable_WithDoesNotAlias(t *testing.T) {
	orig := DefaultPhaseTable()
	changed, err := orig.With(Phase2, PhaseParams{Probability: 0.5, Cost: 1, Duration: 3})
	require.NoError(t, err)

	assert.Equal(t, 0.5, changed.Get(Phase2).Probability)
	assert.Equal(t, 0.80, orig.Get(Phase2).Probability)
}

func TestPhaseTable_LaunchedOverrideRejected(t *testing.T) {
	_, err := DefaultPhaseTable().With(Launched, PhaseParams{Probability: 0.5})
	require.Error(t, err)
	assert.Equal(t, "phases.launched", errors.FieldOf(err))
}

func TestPhaseTable_JSONPartialOverride(t *testing.T) {
	var tbl PhaseTable
	require.NoError(t, json.Unmarshal([]byte(`{"phase3":{"probability":0.7},"registration":{"cost":75}}`), &tbl))

	assert.Equal(t, 0.7, tbl.Get(Phase3).Probability)
	assert.Equal(t, 200.0, tbl.Get(Phase3).Cost, "unset fields keep defaults")
	assert.Equal(t, 75.0, tbl.Get(Filed).Cost)
	assert.Equal(t, 0.40, tbl.Get(Preclinical).Probability)
}
