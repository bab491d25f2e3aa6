package sync

import "errors"

// Sentinel errors of the sync domain
var (
	ErrStateNotFound       = errors.New("sync: sync state not found")
	ErrLogNotFound         = errors.New("sync: sync log not found")
	ErrMappingNotFound     = errors.New("sync: external mapping not found")
	ErrInvalidTransition   = errors.New("sync: invalid sync log status transition")
	ErrInvalidEntityType   = errors.New("sync: invalid entity type")
	ErrInvalidDirection    = errors.New("sync: invalid sync direction")
	ErrAlreadyInvoiced     = errors.New("sync: order already invoiced")
	ErrManualReviewPending = errors.New("sync: item requires manual review")

	// ErrValidation marks data that cannot be mapped between the two systems.
	// It is never retried automatically; the underlying data has to be fixed.
	ErrValidation = errors.New("sync: validation failed")
)

// FailureClass groups errors by how the engine must react to them
type FailureClass string

const (
	// FailureTransient covers timeouts, connection failures and ERP 5xx
	// responses; retried with backoff.
	FailureTransient FailureClass = "TRANSIENT"
	// FailureValidation covers malformed or unmappable data; never retried.
	FailureValidation FailureClass = "VALIDATION"
	// FailureManualReview covers conflicts the resolver cannot decide.
	FailureManualReview FailureClass = "MANUAL_REVIEW"
	// FailureHardRejection covers explicit ERP rejections such as a duplicate
	// invoice or an unknown ledger account; dead-lettered immediately.
	FailureHardRejection FailureClass = "HARD_REJECTION"
)

// Retryable reports whether items failing with this class may be retried
func (c FailureClass) Retryable() bool {
	return c == FailureTransient
}

// RequiresOperator reports whether an operator has to act before the item can
// make progress again
func (c FailureClass) RequiresOperator() bool {
	return c == FailureValidation || c == FailureManualReview || c == FailureHardRejection
}

// Description returns a human readable summary for operator tooling
func (c FailureClass) Description() string {
	switch c {
	case FailureTransient:
		return "Transient failure, will be retried with backoff"
	case FailureValidation:
		return "Data cannot be mapped, fix the source data and requeue"
	case FailureManualReview:
		return "Conflicting changes on both sides, review required"
	case FailureHardRejection:
		return "Rejected by the ERP, manual remediation required"
	default:
		return "Unknown failure"
	}
}
