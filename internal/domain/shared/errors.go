package shared

// DomainError is an error the HTTP layer can map to a status code without
// inspecting the message. Code is stable, Message is for operators.
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a domain error with a stable code
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Errors shared across the sync domain. Repositories return ErrNotFound for
// missing mappings, logs and storefront records; the state machines return
// ErrInvalidState when an operation does not apply to the current status.
var (
	ErrNotFound            = NewDomainError("NOT_FOUND", "Record not found")
	ErrAlreadyExists       = NewDomainError("ALREADY_EXISTS", "Record already exists")
	ErrInvalidInput        = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError("CONCURRENCY_CONFLICT", "Record was modified by another process")
	ErrInvalidState        = NewDomainError("INVALID_STATE", "Operation not allowed in current status")
)
