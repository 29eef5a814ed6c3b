package shared

import "errors"

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound            = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists       = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput        = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrUnknownPlan         = NewDomainError("UNKNOWN_PLAN", "Plan identifier is not recognized")
	ErrInvalidQuantity     = NewDomainError("INVALID_QUANTITY", "Quantity must be non-negative")
	ErrInsufficientFunds   = NewDomainError("INSUFFICIENT_FUNDS", "Wallet balance is insufficient")
	ErrQuotaExceeded       = NewDomainError("QUOTA_EXCEEDED", "Plan quota has been exceeded")
	ErrStorageUnavailable  = NewDomainError("STORAGE_UNAVAILABLE", "Storage is temporarily unavailable")
)

// IsRetryable reports whether the error is transient and the mutation may be
// retried without caller intervention.
func IsRetryable(err error) bool {
	var de *DomainError
	if !errors.As(err, &de) {
		return false
	}
	return de.Code == ErrConcurrencyConflict.Code || de.Code == ErrStorageUnavailable.Code
}

// IsDenial reports whether the error is an expected business outcome
// (insufficient funds, quota exceeded) rather than a fault.
func IsDenial(err error) bool {
	var de *DomainError
	if !errors.As(err, &de) {
		return false
	}
	return de.Code == ErrInsufficientFunds.Code || de.Code == ErrQuotaExceeded.Code
}
