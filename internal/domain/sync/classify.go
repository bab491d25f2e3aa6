package sync

import (
	"context"
	"errors"
	"net"

	"github.com/shopfront/backend/internal/domain/erp"
)

// Classify maps an error to its failure class. The retry service and the
// sync logger use this to decide between backoff, manual-fix and immediate
// dead-letter handling.
func Classify(err error) FailureClass {
	switch {
	case err == nil:
		return FailureTransient
	case errors.Is(err, ErrManualReviewPending):
		return FailureManualReview
	case errors.Is(err, ErrValidation), errors.Is(err, ErrMappingNotFound):
		return FailureValidation
	case errors.Is(err, erp.ErrRejected),
		errors.Is(err, erp.ErrDuplicateInvoice),
		errors.Is(err, erp.ErrAuthFailed):
		return FailureHardRejection
	case errors.Is(err, erp.ErrUnavailable),
		errors.Is(err, erp.ErrRateLimited),
		errors.Is(err, erp.ErrInvalidResponse),
		errors.Is(err, context.DeadlineExceeded),
		isNetError(err):
		return FailureTransient
	default:
		// Unknown errors are retried; exhaustion still dead-letters them
		return FailureTransient
	}
}

// IsRetryable reports whether the error may be retried with backoff
func IsRetryable(err error) bool {
	return Classify(err).Retryable()
}

func isNetError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr)
}
