package services

import (
	"errors"
	"fmt"

	"visitauto/models"
)

// Error taxonomy for the automation engine. Field-level errors are caught at
// the record boundary and converted to a RecordResult; session-level errors
// abort the whole batch.
var (
	ErrElementNotFound      = errors.New("element not found")
	ErrVerificationFailed   = errors.New("value verification failed")
	ErrAmbiguousStructure   = errors.New("ambiguous container structure")
	ErrConfirmationTimeout  = errors.New("confirmation deadline expired")
	ErrIdentifierTaken      = errors.New("identifier already in use")
	ErrSessionEstablishment = errors.New("session establishment failed")
)

// FieldError wraps an underlying failure with the logical field name and the
// locator that was being attempted, so a mapping fix does not require
// re-running the batch to reproduce.
type FieldError struct {
	Field   string
	Locator string
	Err     error
}

func (e *FieldError) Error() string {
	if e.Locator != "" {
		return fmt.Sprintf("field %q (locator %s): %v", e.Field, e.Locator, e.Err)
	}
	return fmt.Sprintf("field %q: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

func fieldErr(field, locator string, err error) error {
	return &FieldError{Field: field, Locator: locator, Err: err}
}

// ReasonFor maps an error to the coarse per-record failure reason.
func ReasonFor(err error) models.FailureReason {
	switch {
	case err == nil:
		return models.ReasonNone
	case errors.Is(err, ErrElementNotFound):
		return models.ReasonElementNotFound
	case errors.Is(err, ErrVerificationFailed):
		return models.ReasonVerificationFailed
	case errors.Is(err, ErrAmbiguousStructure):
		return models.ReasonAmbiguousStructure
	case errors.Is(err, ErrConfirmationTimeout):
		return models.ReasonConfirmationTimeout
	case errors.Is(err, ErrIdentifierTaken):
		return models.ReasonIdentifierTaken
	case errors.Is(err, ErrSessionEstablishment):
		return models.ReasonSessionEstablishment
	default:
		return models.ReasonProcessingFailed
	}
}
