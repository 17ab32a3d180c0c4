package apperrors

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates a missing asset, valuation or other record. Callers
// that can treat absence as an empty result should check for it with
// errors.Is and recover locally.
var ErrNotFound = errors.New("record not found")

// ErrScanAlreadyRunning indicates another scan loop holds the run token.
// Starting the scanner is idempotent, so callers treat this as a no-op.
var ErrScanAlreadyRunning = errors.New("scan already running")

// ErrInsufficientData indicates a statistical helper did not have enough
// history points to produce a meaningful result.
var ErrInsufficientData = errors.New("insufficient valuation history")

// ValidationError reports malformed caller input. It is never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidation builds a ValidationError for the given field.
func NewValidation(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// DataSourceError reports a failed external provider call after retries were
// exhausted. The enclosing scan cycle logs it and skips the unit of work.
type DataSourceError struct {
	Source string
	Code   string
	Err    error
}

func (e *DataSourceError) Error() string {
	return fmt.Sprintf("data source %s failed for %s: %v", e.Source, e.Code, e.Err)
}

func (e *DataSourceError) Unwrap() error { return e.Err }

// RiskBlockedError is returned when the risk gate produced at least one BLOCK
// finding. The attached findings travel with the rejection record.
type RiskBlockedError struct {
	Findings []string
}

func (e *RiskBlockedError) Error() string {
	return fmt.Sprintf("action blocked by risk control: %v", e.Findings)
}

// IsRiskBlocked reports whether err is a RiskBlockedError.
func IsRiskBlocked(err error) bool {
	var rbe *RiskBlockedError
	return errors.As(err, &rbe)
}
