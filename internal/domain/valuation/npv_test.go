package valuation

import (
	stderrors "errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JohanRGustafsson/valuation-model/pkg/errors"
)

func noCostInputs() ValuationInputs {
	in := DefaultInputs()
	in.IncludeRDCosts = false
	return in
}

func TestComputeNPV_LaunchedEqualsLaunchValue(t *testing.T) {
	for _, lv := range []float64{1, 250, 1000, 12345.6} {
		in := noCostInputs()
		in.LaunchValue = lv

		res, err := ComputeNPV(in, nil)
		require.NoError(t, err)
		assert.Equal(t, lv, res.Value(Launched))
	}
}

func TestComputeNPV_Phase3Example(t *testing.T) {
	in := ValuationInputs{
		LaunchValue:  1000,
		OrderOfEntry: 1,
		DiscountRate: 0.1,
		Phases:       DefaultPhaseTable(),
	}
	in.Phases[Phase3] = PhaseParams{Probability: 0.8, Duration: 1}
	in.Phases[Filed] = PhaseParams{Probability: 1, Duration: 0}

	res, err := ComputeNPV(in, DefaultEntrySchedule())
	require.NoError(t, err)

	pv, ok := res.Valuation(Phase3)
	require.True(t, ok)
	assert.InDelta(t, 727.27, pv.NPV, 0.005)
	assert.InDelta(t, 0.8, pv.CumulativeProbability, 1e-12)
	assert.InDelta(t, 1.0, pv.Periods, 1e-12)
	assert.InDelta(t, 1.1, pv.DiscountFactor, 1e-12)
}

func TestComputeNPV_ResultCoversEveryPhaseInOrder(t *testing.T) {
	res, err := ComputeNPV(DefaultInputs(), nil)
	require.NoError(t, err)
	require.Len(t, res.Phases, 6)
	for i, p := range Phases() {
		assert.Equal(t, p, res.Phases[i].Phase)
	}
	assert.Equal(t, 0.12, res.DiscountRate)
	assert.Equal(t, 1, res.OrderOfEntry)
}

func TestComputeNPV_MonotoneBeforeCosts(t *testing.T) {
	res, err := ComputeNPV(noCostInputs(), nil)
	require.NoError(t, err)

	for i := 1; i < len(res.Phases); i++ {
		earlier, later := res.Phases[i-1], res.Phases[i]
		assert.LessOrEqual(t, earlier.CumulativeProbability, later.CumulativeProbability)
		assert.LessOrEqual(t, earlier.NPV, later.NPV, "%s must not exceed %s", earlier.Phase, later.Phase)
	}
}

func TestComputeNPV_LowerProbabilityLowersValue(t *testing.T) {
	base, err := ComputeNPV(noCostInputs(), nil)
	require.NoError(t, err)

	in := noCostInputs()
	in.Phases[Phase2].Probability = 0.5
	lower, err := ComputeNPV(in, nil)
	require.NoError(t, err)

	assert.Less(t, lower.Value(Phase2), base.Value(Phase2))
	assert.Equal(t, base.Value(Phase3), lower.Value(Phase3), "later phases are unaffected")
}

func TestComputeNPV_OrderOfEntryMonotone(t *testing.T) {
	prev := math.Inf(1)
	for rank := 1; rank <= 6; rank++ {
		in := noCostInputs()
		in.OrderOfEntry = rank
		res, err := ComputeNPV(in, nil)
		require.NoError(t, err)

		v := res.Value(Phase2)
		assert.LessOrEqual(t, v, prev, "rank %d", rank)
		prev = v
	}
}

func TestComputeNPV_OrderFactorApplied(t *testing.T) {
	in := noCostInputs()
	in.OrderOfEntry = 2
	res, err := ComputeNPV(in, nil)
	require.NoError(t, err)
	assert.InDelta(t, 670.0, res.Value(Launched), 1e-9)
	assert.Equal(t, 0.67, res.Phases[0].OrderFactor)
}

func TestComputeNPV_CustomSchedule(t *testing.T) {
	in := noCostInputs()
	in.OrderOfEntry = 2
	res, err := ComputeNPV(in, EntrySchedule{1, 0.8})
	require.NoError(t, err)
	assert.InDelta(t, 800.0, res.Value(Launched), 1e-9)

	_, err = ComputeNPV(in, EntrySchedule{0.5, 0.9})
	assert.Error(t, err)
}

func TestComputeNPV_RDCosts(t *testing.T) {
	in := DefaultInputs()
	res, err := ComputeNPV(in, nil)
	require.NoError(t, err)

	filed, _ := res.Valuation(Filed)
	wantRisk := 1000 * 0.95 / math.Pow(1.12, 0.5)
	assert.InDelta(t, wantRisk, filed.RiskAdjustedValue, 1e-9)
	assert.InDelta(t, 50.0, filed.DiscountedCosts, 1e-9, "filing cost is incurred immediately")
	assert.InDelta(t, wantRisk-50, filed.NPV, 1e-9)

	p3, _ := res.Valuation(Phase3)
	wantCosts := 200 + 50/math.Pow(1.12, 1.5)
	assert.InDelta(t, wantCosts, p3.DiscountedCosts, 1e-9)

	launched, _ := res.Valuation(Launched)
	assert.Zero(t, launched.DiscountedCosts)
	assert.Equal(t, 1000.0, launched.NPV)
}

func TestComputeNPV_ZeroDiscountRate(t *testing.T) {
	in := noCostInputs()
	in.DiscountRate = 0
	res, err := ComputeNPV(in, nil)
	require.NoError(t, err)
	assert.InDelta(t, 1000*0.9*0.95, res.Value(Phase3), 1e-9)
}

func TestComputeNPV_InvalidInputs(t *testing.T) {
	cases := []struct {
		name  string
		mod   func(*ValuationInputs)
		field string
	}{
		{"negative discount rate", func(in *ValuationInputs) { in.DiscountRate = -0.1 }, "discount_rate"},
		{"discount rate above one", func(in *ValuationInputs) { in.DiscountRate = 1.5 }, "discount_rate"},
		{"probability above one", func(in *ValuationInputs) { in.Phases[Phase2].Probability = 1.5 }, "phases.phase2.probability"},
		{"negative cost", func(in *ValuationInputs) { in.Phases[Phase1].Cost = -1 }, "phases.phase1.cost"},
		{"negative duration", func(in *ValuationInputs) { in.Phases[Filed].Duration = -0.5 }, "phases.filed.duration"},
		{"zero launch value", func(in *ValuationInputs) { in.LaunchValue = 0 }, "launch_value"},
		{"NaN launch value", func(in *ValuationInputs) { in.LaunchValue = math.NaN() }, "launch_value"},
		{"rank zero", func(in *ValuationInputs) { in.OrderOfEntry = 0 }, "order_of_entry"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := DefaultInputs()
			tc.mod(&in)

			_, err := ComputeNPV(in, nil)
			require.Error(t, err)

			iie, ok := AsInvalidInput(err)
			require.True(t, ok)
			assert.Equal(t, tc.field, iie.Field)
			assert.Equal(t, errors.CodeInvalidInput, iie.Code())

			var ae *errors.AppError
			require.True(t, stderrors.As(err, &ae))
			assert.Equal(t, errors.CodeInvalidInput, ae.Code)
			assert.True(t, errors.IsValidation(err))
		})
	}
}

func TestComputeNPV_DoesNotMutateInputs(t *testing.T) {
	in := DefaultInputs()
	before := in
	_, err := ComputeNPV(in, nil)
	require.NoError(t, err)
	assert.Equal(t, before, in)
}
