package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JohanRGustafsson/valuation-model/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// New / Wrap
// ─────────────────────────────────────────────────────────────────────────────

func TestNew_FieldsAreSetCorrectly(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		code    errors.ErrorCode
		message string
	}{
		{"internal error", errors.CodeInternal, "unexpected failure"},
		{"session not found", errors.CodeSessionNotFound, "session abc not found"},
		{"invalid input", errors.CodeInvalidInput, "discount rate must be between 0 and 1"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ae := errors.New(tc.code, tc.message)

			require.NotNil(t, ae)
			assert.Equal(t, tc.code, ae.Code)
			assert.Equal(t, tc.message, ae.Message)
			assert.Empty(t, ae.Detail)
			assert.Nil(t, ae.Cause)
			assert.NotEmpty(t, ae.Stack)
		})
	}
}

func TestError_Format(t *testing.T) {
	ae := errors.New(errors.CodeInvalidInput, "bad rate")
	assert.Equal(t, "[VAL_001] bad rate", ae.Error())

	withDetail := ae.WithDetail("got -0.1")
	assert.Equal(t, "[VAL_001] bad rate: got -0.1", withDetail.Error())
	assert.Empty(t, ae.Detail, "WithDetail must not mutate the receiver")
}

func TestNewf(t *testing.T) {
	ae := errors.Newf(errors.CodeUnknownPhase, "unknown phase %q", "phase9")
	assert.Equal(t, `unknown phase "phase9"`, ae.Message)
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, errors.Wrap(nil, errors.CodeInternal, "ignored"))
}

func TestWrap_PreservesCodeWhenUnknown(t *testing.T) {
	inner := errors.Validation("launch_value", "must be positive")
	outer := errors.Wrap(inner, errors.CodeUnknown, "compute npv")

	assert.Equal(t, errors.ErrCodeValidation, outer.Code)
	assert.Equal(t, "launch_value", outer.Field)
	assert.True(t, stderrors.Is(outer, inner))
}

func TestWrap_OverridesCode(t *testing.T) {
	cause := fmt.Errorf("dial tcp: refused")
	ae := errors.Wrap(cause, errors.CodeStoreUnavailable, "redis unavailable")

	assert.Equal(t, errors.CodeStoreUnavailable, ae.Code)
	assert.ErrorIs(t, ae, cause)
}

// ─────────────────────────────────────────────────────────────────────────────
// Builders
// ─────────────────────────────────────────────────────────────────────────────

func TestBuilders_NilSafe(t *testing.T) {
	var ae *errors.AppError
	assert.Nil(t, ae.WithDetail("x"))
	assert.Nil(t, ae.WithCause(stderrors.New("x")))
	assert.Nil(t, ae.WithField("x"))
}

func TestWithField(t *testing.T) {
	ae := errors.New(errors.CodeInvalidInput, "out of range").WithField("penetration_rate")
	assert.Equal(t, "penetration_rate", ae.Field)
	assert.Equal(t, "penetration_rate", errors.FieldOf(fmt.Errorf("wrapped: %w", ae)))
}

// ─────────────────────────────────────────────────────────────────────────────
// Chain inspection
// ─────────────────────────────────────────────────────────────────────────────

func TestIsCode_ThroughFmtWrap(t *testing.T) {
	ae := errors.New(errors.CodeNonPositiveStageValue, "no value")
	wrapped := fmt.Errorf("deal: %w", ae)

	assert.True(t, errors.IsCode(wrapped, errors.CodeNonPositiveStageValue))
	assert.False(t, errors.IsCode(wrapped, errors.CodeInvalidInput))
	assert.False(t, errors.IsCode(nil, errors.CodeInvalidInput))
}

func TestIsNotFound(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		expected bool
	}{
		{"generic not found", errors.NotFound("missing"), true},
		{"session not found", errors.New(errors.CodeSessionNotFound, "missing"), true},
		{"session expired", errors.New(errors.CodeSessionExpired, "gone"), true},
		{"wrapped", fmt.Errorf("get: %w", errors.NotFound("missing")), true},
		{"validation", errors.Validation("x", "bad"), false},
		{"plain error", stderrors.New("x"), false},
		{"nil", nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, errors.IsNotFound(tc.err))
		})
	}
}

func TestIsValidation(t *testing.T) {
	assert.True(t, errors.IsValidation(errors.Validation("x", "bad")))
	assert.True(t, errors.IsValidation(errors.New(errors.CodeInvalidInput, "bad")))
	assert.True(t, errors.IsValidation(errors.New(errors.CodeNonPositiveStageValue, "bad")))
	assert.True(t, errors.IsValidation(errors.New(errors.CodeUnknownPhase, "bad")))
	assert.False(t, errors.IsValidation(errors.Internal("boom")))
	assert.False(t, errors.IsValidation(nil))
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, errors.CodeOK, errors.GetCode(nil))
	assert.Equal(t, errors.CodeUnknown, errors.GetCode(stderrors.New("plain")))
	assert.Equal(t, errors.CodeConflict, errors.GetCode(errors.Conflict("dup")))
	assert.Equal(t, errors.ErrCodeServiceUnavailable, errors.GetCode(errors.Unavailable("down")))
}

func TestFactories_Codes(t *testing.T) {
	assert.Equal(t, errors.CodeNotFound, errors.NotFound("x").Code)
	assert.Equal(t, errors.CodeInvalidParam, errors.InvalidParam("x").Code)
	assert.Equal(t, errors.CodeInternal, errors.Internal("x").Code)
	assert.Equal(t, errors.ErrCodeValidation, errors.Validation("f", "x").Code)
}

func TestAsAppError(t *testing.T) {
	base := errors.Validation("royalty_rate", "must be between 0 and 100")
	wrapped := fmt.Errorf("deal: %w", base)

	ae, ok := errors.AsAppError(wrapped)
	require.True(t, ok)
	assert.Equal(t, "royalty_rate", ae.Field)

	_, ok = errors.AsAppError(fmt.Errorf("plain"))
	assert.False(t, ok)
}
