package erp

import "errors"

// Sentinel errors returned by ERP adapters. The sync engine's retry
// classification is built on these; adapters must wrap transport failures
// into the matching sentinel with %w.
var (
	// ErrUnavailable covers connection failures, timeouts and 5xx responses
	ErrUnavailable = errors.New("erp: temporarily unavailable")
	// ErrRateLimited is returned when the ERP throttles the caller
	ErrRateLimited = errors.New("erp: rate limited")
	// ErrInvalidResponse is returned when the response cannot be decoded
	ErrInvalidResponse = errors.New("erp: invalid response")
	// ErrRecordNotFound is returned by lookups that find nothing
	ErrRecordNotFound = errors.New("erp: record not found")
	// ErrRejected is a hard business rejection (invalid account, closed
	// period, ...); never retried
	ErrRejected = errors.New("erp: request rejected")
	// ErrDuplicateInvoice is returned when the ERP already issued an invoice
	// for the order; a hard rejection with its own identity because the
	// invoice service treats it as proof of prior issuance
	ErrDuplicateInvoice = errors.New("erp: duplicate invoice")
	// ErrAuthFailed is returned when the signature or credentials are wrong
	ErrAuthFailed = errors.New("erp: authentication failed")
)
