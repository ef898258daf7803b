package models

// FailureReason is the coarse classification attached to a failed record.
type FailureReason string

const (
	ReasonNone                 FailureReason = ""
	ReasonElementNotFound      FailureReason = "element_not_found"
	ReasonVerificationFailed   FailureReason = "verification_failed"
	ReasonAmbiguousStructure   FailureReason = "ambiguous_structure"
	ReasonConfirmationTimeout  FailureReason = "confirmation_timeout"
	ReasonIdentifierTaken      FailureReason = "identifier_taken"
	ReasonInvalidRecord        FailureReason = "invalid_record"
	ReasonProcessingPanic      FailureReason = "processing_panic"
	ReasonProcessingFailed     FailureReason = "processing_failed"
	ReasonSessionEstablishment FailureReason = "session_establishment_failed"
)

// FieldStats counts how far the field-fill sequence got for one record.
type FieldStats struct {
	Attempted int `json:"fields_attempted"`
	Succeeded int `json:"fields_succeeded"`
}

// RecordResult is the per-record outcome produced by the orchestrator.
type RecordResult struct {
	Index   int           `json:"index"`
	Success bool          `json:"success"`
	Reason  FailureReason `json:"failure_reason,omitempty"`
	Error   string        `json:"error,omitempty"`
	FieldStats
}

// BatchResult is the sole surface the external caller consumes: aggregate
// counts plus every record's outcome in input order.
type BatchResult struct {
	TotalRecords int            `json:"total_records"`
	SuccessCount int            `json:"success_count"`
	FailedCount  int            `json:"failed_count"`
	Records      []RecordResult `json:"records"`
}

// Availability is the answer of a duplicate-identifier check.
type Availability string

const (
	Available   Availability = "available"
	Unavailable Availability = "unavailable"
	Unknown     Availability = "unknown"
)

// ConfirmationSource records which observer produced the availability answer.
type ConfirmationSource string

const (
	SourceNetwork ConfirmationSource = "network"
	SourceDOMPoll ConfirmationSource = "dom-poll"
	SourceAssumed ConfirmationSource = "assumed"
)

// ConfirmationOutcome is produced once per duplicate-check invocation and
// consumed immediately; it is never cached.
type ConfirmationOutcome struct {
	Availability Availability       `json:"availability"`
	Source       ConfirmationSource `json:"source"`
	RawMessage   string             `json:"raw_message,omitempty"`
}

// Definitive reports whether the outcome carries a real answer rather than
// the assumed-success fallback.
func (o ConfirmationOutcome) Definitive() bool {
	return o.Availability != Unknown && o.Source != SourceAssumed
}
