package dto

import "net/http"

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	// ErrCodeUnknown is used when the error type is unknown
	ErrCodeUnknown = "ERR_UNKNOWN"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
)

// Validation error codes
const (
	// ErrCodeValidation is the base code for validation errors
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidInput is used for invalid input data
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	// ErrCodeInvalidJSON is used when JSON parsing fails
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
	// ErrCodeInvalidQuantity is used when a count or amount is out of range
	ErrCodeInvalidQuantity = "ERR_INVALID_QUANTITY"
	// ErrCodeUnknownPlan is used when a plan identifier is not recognized
	ErrCodeUnknownPlan = "ERR_UNKNOWN_PLAN"
)

// Resource error codes
const (
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeAlreadyExists is used when trying to create a duplicate resource
	ErrCodeAlreadyExists = "ERR_ALREADY_EXISTS"
	// ErrCodeConflict is used for general resource conflicts
	ErrCodeConflict = "ERR_CONFLICT"
	// ErrCodeConcurrencyConflict is used when optimistic locking keeps failing
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
)

// Metering denial codes. These are expected business outcomes, not faults.
const (
	// ErrCodeInsufficientFunds is used when the wallet cannot cover a charge
	ErrCodeInsufficientFunds = "ERR_INSUFFICIENT_FUNDS"
	// ErrCodeQuotaExceeded is used when a plan quota would be exceeded
	ErrCodeQuotaExceeded = "ERR_QUOTA_EXCEEDED"
)

// Infrastructure error codes
const (
	// ErrCodeStorageUnavailable is used when the backing store is unreachable
	ErrCodeStorageUnavailable = "ERR_STORAGE_UNAVAILABLE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	// General errors
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	// Validation errors -> 400 Bad Request
	ErrCodeValidation:      http.StatusBadRequest,
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeInvalidInput:    http.StatusBadRequest,
	ErrCodeInvalidJSON:     http.StatusBadRequest,
	ErrCodeInvalidQuantity: http.StatusBadRequest,
	ErrCodeUnknownPlan:     http.StatusBadRequest,

	// Resource errors
	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,

	// Metering denials
	ErrCodeInsufficientFunds: http.StatusPaymentRequired,
	ErrCodeQuotaExceeded:     http.StatusTooManyRequests,

	// Infrastructure errors
	ErrCodeStorageUnavailable: http.StatusServiceUnavailable,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to API error codes
var DomainErrorCodeMapping = map[string]string{
	"NOT_FOUND":            ErrCodeNotFound,
	"ALREADY_EXISTS":       ErrCodeAlreadyExists,
	"INVALID_INPUT":        ErrCodeInvalidInput,
	"INVALID_ACCOUNT":      ErrCodeInvalidInput,
	"INVALID_OPERATION":    ErrCodeInvalidInput,
	"CURRENCY_MISMATCH":    ErrCodeInvalidInput,
	"INVALID_QUANTITY":     ErrCodeInvalidQuantity,
	"UNKNOWN_PLAN":         ErrCodeUnknownPlan,
	"CONCURRENCY_CONFLICT": ErrCodeConcurrencyConflict,
	"INSUFFICIENT_FUNDS":   ErrCodeInsufficientFunds,
	"QUOTA_EXCEEDED":       ErrCodeQuotaExceeded,
	"STORAGE_UNAVAILABLE":  ErrCodeStorageUnavailable,
}

// NormalizeErrorCode converts a domain error code to the API format
// If the code is already in the API format or unknown, returns it as-is
func NormalizeErrorCode(code string) string {
	if apiCode, ok := DomainErrorCodeMapping[code]; ok {
		return apiCode
	}
	return code
}
