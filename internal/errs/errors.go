package errs

import (
	"errors"
	"strings"
)

// Common sentinel errors for cross-layer signaling.
var (
	ErrNotFound = errors.New("not_found")
	// ErrState marks an operation invalid for the record's current status.
	ErrState = errors.New("state_error")
	// ErrConflict marks a concurrent mutation or a uniqueness collision;
	// callers may retry after re-reading state.
	ErrConflict = errors.New("conflict")
	// ErrIntegrity marks a broken ledger invariant (cycle, cache/ledger
	// drift). Not locally recoverable; must be surfaced, never swallowed.
	ErrIntegrity = errors.New("integrity_error")
)

// Violation is a single field-addressable validation failure.
type Violation struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Violation codes shared between services and the HTTP layer.
const (
	CodeRequired         = "required"
	CodeTooFewEntries    = "too_few_entries"
	CodeMissingDebit     = "missing_debit"
	CodeMissingCredit    = "missing_credit"
	CodeUnbalanced       = "unbalanced_entry"
	CodeInvalidAmount    = "invalid_amount"
	CodeInvalidSide      = "invalid_side"
	CodeInvalidType      = "invalid_type"
	CodeInvalidCategory  = "invalid_category"
	CodeNarrationShort   = "narration_too_short"
	CodeAccountNotFound  = "account_not_found"
	CodeAccountInactive  = "account_inactive"
	CodeAccountNotLeaf   = "account_not_postable"
	CodeParentInvalid    = "parent_invalid"
	CodeCurrencyMismatch = "currency_mismatch"
)

// ValidationError aggregates violations so the caller can address each field.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Violations) == 0 {
		return "validation_error"
	}
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.Field+": "+v.Message)
	}
	return "validation_error: " + strings.Join(parts, "; ")
}

// Validation builds a ValidationError from one or more violations.
func Validation(violations ...Violation) *ValidationError {
	return &ValidationError{Violations: violations}
}

// AsValidation unwraps err into a ValidationError if it is one.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
