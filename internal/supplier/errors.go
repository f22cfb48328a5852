package supplier

import (
	"errors"

	"github.com/wolfman30/supplier-onboarding/pkg/supplierapi"
)

// ErrNotAuthenticated is returned when no CRM session is available.
var ErrNotAuthenticated = errors.New("supplier: not authenticated with the CRM")

// ValidationError reports a missing or malformed form field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// DuplicateConflict is returned when the CRM refuses the Account because a
// unique value already exists.
type DuplicateConflict struct {
	Message    string
	Duplicates []supplierapi.Duplicate
}

func (e *DuplicateConflict) Error() string {
	return e.Message
}

// CRMError is a sanitized Account creation failure. Validation errors can be
// fixed by the user; the rest are reported generically.
type CRMError struct {
	Validation bool
	Message    string
	Err        error
}

func (e *CRMError) Error() string {
	return e.Message
}

func (e *CRMError) Unwrap() error {
	return e.Err
}

// StepError carries the failure of one saga step. Hard errors stop the run;
// soft errors become warnings.
type StepError struct {
	Step    string
	Hard    bool
	Warning string
	Err     error
}

func (e *StepError) Error() string {
	if e.Err == nil {
		return e.Step + ": " + e.Warning
	}
	return e.Step + ": " + e.Err.Error()
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Hard aborts the remaining steps.
func Hard(err error) error {
	return &StepError{Hard: true, Err: err}
}

// Soft records warning and lets the run continue.
func Soft(warning string, err error) error {
	return &StepError{Warning: warning, Err: err}
}
