package valuation

import (
	stderrors "errors"
	"fmt"
	"math"

	"github.com/JohanRGustafsson/valuation-model/pkg/errors"
)

// ErrInvalidInput matches every InvalidInputError via errors.Is.
var ErrInvalidInput = stderrors.New("invalid input")

// InvalidInputError is the single validation failure raised by the engine.
// Field names the offending input using its JSON name so that the HTTP and
// web layers can place the message next to the right control.
type InvalidInputError struct {
	Field  string
	Reason string

	app *errors.AppError
}

func newInvalidInput(code errors.ErrorCode, field, format string, args ...interface{}) *InvalidInputError {
	reason := fmt.Sprintf(format, args...)
	return &InvalidInputError{
		Field:  field,
		Reason: reason,
		app:    errors.New(code, reason).WithField(field),
	}
}

func invalidf(field, format string, args ...interface{}) *InvalidInputError {
	return newInvalidInput(errors.CodeInvalidInput, field, format, args...)
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Unwrap exposes the coded AppError so callers can use errors.As.
func (e *InvalidInputError) Unwrap() error { return e.app }

func (e *InvalidInputError) Is(target error) bool { return target == ErrInvalidInput }

// Code returns VAL_001, or VAL_002 for a deal stage without positive value.
func (e *InvalidInputError) Code() errors.ErrorCode { return e.app.Code }

// AsInvalidInput extracts an InvalidInputError from err's chain.
func AsInvalidInput(err error) (*InvalidInputError, bool) {
	var iie *InvalidInputError
	if stderrors.As(err, &iie) {
		return iie, true
	}
	return nil, false
}

// ─────────────────────────────────────────────────────────────────────────────
// Range checks
// ─────────────────────────────────────────────────────────────────────────────

func checkFinite(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return invalidf(field, "must be a finite number")
	}
	return nil
}

func checkFraction(field string, v float64) error {
	if err := checkFinite(field, v); err != nil {
		return err
	}
	if v < 0 || v > 1 {
		return invalidf(field, "must be between 0 and 1, got %g", v)
	}
	return nil
}

func checkNonNegative(field string, v float64) error {
	if err := checkFinite(field, v); err != nil {
		return err
	}
	if v < 0 {
		return invalidf(field, "must not be negative, got %g", v)
	}
	return nil
}

func checkPositive(field string, v float64) error {
	if err := checkFinite(field, v); err != nil {
		return err
	}
	if v <= 0 {
		return invalidf(field, "must be greater than 0, got %g", v)
	}
	return nil
}

func checkPercent(field string, v float64) error {
	if err := checkFinite(field, v); err != nil {
		return err
	}
	if v < 0 || v > 100 {
		return invalidf(field, "must be between 0 and 100, got %g", v)
	}
	return nil
}
