package calibration

import (
	"errors"
	"fmt"
)

// ErrorCode identifies the category of a calibration failure.
type ErrorCode string

const (
	// Precondition failures
	ErrNotHomed               ErrorCode = "NOT_HOMED"
	ErrAlignmentNotConfigured ErrorCode = "ALIGNMENT_NOT_CONFIGURED"
	ErrAlignmentNotApplied    ErrorCode = "ALIGNMENT_NOT_APPLIED"

	// Probing failures
	ErrProbeNoTrigger    ErrorCode = "PROBE_NO_TRIGGER"
	ErrProbeOutOfRange   ErrorCode = "PROBE_OUT_OF_RANGE"
	ErrProbeInconsistent ErrorCode = "PROBE_INCONSISTENT"

	// Result validation failures
	ErrOffsetTooLow  ErrorCode = "OFFSET_TOO_LOW"
	ErrOffsetTooHigh ErrorCode = "OFFSET_TOO_HIGH"

	// Everything else
	ErrConfig   ErrorCode = "CONFIG"
	ErrMachine  ErrorCode = "MACHINE"
	ErrCanceled ErrorCode = "CANCELED"
)

// ErrCalibrationInProgress is returned when a run is requested while another
// run holds the machine.
var ErrCalibrationInProgress = errors.New("calibration: already in progress")

// CalibrationError is the error type for calibration failures. Value and
// Bound carry the measured or computed number and the limit it violated when
// a measurement or result is rejected.
type CalibrationError struct {
	Code    ErrorCode
	Message string
	Value   float64
	Bound   float64
	Err     error
}

// Error implements the error interface.
func (e *CalibrationError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *CalibrationError) Unwrap() error {
	return e.Err
}

// newError creates a CalibrationError with a formatted message.
func newError(code ErrorCode, format string, args ...any) *CalibrationError {
	return &CalibrationError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// wrapMachine wraps a Machine call failure.
func wrapMachine(err error, op string) *CalibrationError {
	return &CalibrationError{
		Code:    ErrMachine,
		Message: fmt.Sprintf("%s failed: %v", op, err),
		Err:     err,
	}
}

// canceledError converts a context error into a calibration error.
func canceledError(err error) *CalibrationError {
	return &CalibrationError{
		Code:    ErrCanceled,
		Message: "calibration canceled",
		Err:     err,
	}
}

// offsetTooLowError rejects an offset below the fail-safe window.
func offsetTooLowError(offset, min float64) *CalibrationError {
	return &CalibrationError{
		Code:    ErrOffsetTooLow,
		Message: fmt.Sprintf("calculated offset is out of config limits (offset: %.3f mm, min: %.3f mm)", offset, min),
		Value:   offset,
		Bound:   min,
	}
}

// offsetTooHighError rejects an offset above the fail-safe window.
func offsetTooHighError(offset, max float64) *CalibrationError {
	return &CalibrationError{
		Code:    ErrOffsetTooHigh,
		Message: fmt.Sprintf("calculated offset is out of config limits (offset: %.3f mm, max: %.3f mm)", offset, max),
		Value:   offset,
		Bound:   max,
	}
}

// endstopOutOfRangeError rejects an endstop pin measurement outside the
// configured window.
func endstopOutOfRangeError(height, bound float64, side string) *CalibrationError {
	return &CalibrationError{
		Code:    ErrProbeOutOfRange,
		Message: fmt.Sprintf("endstop value is out of config limits (%s: %.3f mm, measured: %.3f mm)", side, bound, height),
		Value:   height,
		Bound:   bound,
	}
}

// IsCode checks whether err is a CalibrationError with the given code.
func IsCode(err error, code ErrorCode) bool {
	var cerr *CalibrationError
	if errors.As(err, &cerr) {
		return cerr.Code == code
	}
	return false
}

// IsAlignment checks whether err is an alignment precondition failure.
func IsAlignment(err error) bool {
	return IsCode(err, ErrAlignmentNotConfigured) || IsCode(err, ErrAlignmentNotApplied)
}

// IsProbe checks whether err is a probing failure.
func IsProbe(err error) bool {
	return IsCode(err, ErrProbeNoTrigger) ||
		IsCode(err, ErrProbeOutOfRange) ||
		IsCode(err, ErrProbeInconsistent)
}

// IsBounds checks whether err is a fail-safe bounds rejection.
func IsBounds(err error) bool {
	return IsCode(err, ErrOffsetTooLow) || IsCode(err, ErrOffsetTooHigh)
}
