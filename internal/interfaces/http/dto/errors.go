package dto

import (
	"net/http"

	"github.com/erp/allocation/internal/domain/shared"
)

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
	// ErrCodeSessionRequired is used when the caller sent no client header
	ErrCodeSessionRequired = "ERR_SESSION_REQUIRED"
)

// Resource error codes
const (
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeNotActive is used when a referenced resource is deactivated
	ErrCodeNotActive = "ERR_NOT_ACTIVE"
	// ErrCodeConcurrencyConflict is used when optimistic locking fails
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
)

// Business rule error codes
const (
	// ErrCodeInvalidState is used when an operation is invalid for current state
	ErrCodeInvalidState = "ERR_INVALID_STATE"
	// ErrCodeConversionNotFound is used when no exchange rate applies
	ErrCodeConversionNotFound = "ERR_CONVERSION_NOT_FOUND"
	// ErrCodeProcessFailed is used when the document engine rejects completion
	ErrCodeProcessFailed = "ERR_PROCESS_FAILED"
	// ErrCodePaymentDeclined is used when the payment gateway declines an authorization
	ErrCodePaymentDeclined = "ERR_PAYMENT_DECLINED"
)

// Input error codes
const (
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidJSON is used when JSON parsing fails
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
	// ErrCodeRequestTooLarge is used when the body exceeds the configured limit
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	// General errors
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	// Validation errors -> 400 Bad Request
	ErrCodeValidation:      http.StatusBadRequest,
	ErrCodeSessionRequired: http.StatusBadRequest,

	// Resource errors
	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeNotActive:           http.StatusUnprocessableEntity,
	ErrCodeConcurrencyConflict: http.StatusConflict,

	// Business rule errors -> 422 Unprocessable Entity
	ErrCodeInvalidState:       http.StatusUnprocessableEntity,
	ErrCodeConversionNotFound: http.StatusUnprocessableEntity,
	ErrCodeProcessFailed:      http.StatusUnprocessableEntity,
	ErrCodePaymentDeclined:    http.StatusUnprocessableEntity,

	// Input errors
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeInvalidJSON:     http.StatusBadRequest,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
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
	shared.CodeValidation:         ErrCodeValidation,
	shared.CodeNotFound:           ErrCodeNotFound,
	shared.CodeNotActive:          ErrCodeNotActive,
	shared.CodeInvalidState:       ErrCodeInvalidState,
	shared.CodeConcurrency:        ErrCodeConcurrencyConflict,
	shared.CodeConversionNotFound: ErrCodeConversionNotFound,
	shared.CodeProcessFailed:      ErrCodeProcessFailed,
	shared.CodePaymentDeclined:    ErrCodePaymentDeclined,
}

// NormalizeErrorCode converts a domain error code to the API format.
// Codes already in the API format, or unknown, are returned as-is.
func NormalizeErrorCode(code string) string {
	if apiCode, ok := DomainErrorCodeMapping[code]; ok {
		return apiCode
	}
	return code
}
