package finance

import (
	"fmt"
	"time"

	"github.com/erp/allocation/internal/domain/shared"
	"github.com/erp/allocation/internal/domain/shared/valueobject"
)

// Sentinel errors for errors.Is matching; constructors below attach the detail message.
var (
	ErrValidation         = shared.NewDomainError(shared.CodeValidation, "validation failed")
	ErrNotFound           = shared.NewDomainError(shared.CodeNotFound, "not found")
	ErrNotActive          = shared.NewDomainError(shared.CodeNotActive, "not active")
	ErrConversionNotFound = shared.NewDomainError(shared.CodeConversionNotFound, "currency conversion not found")
	ErrProcessFailed      = shared.NewDomainError(shared.CodeProcessFailed, "document processing failed")
	ErrPaymentDeclined    = shared.NewDomainError(shared.CodePaymentDeclined, "payment authorization declined")
)

// NewValidationError reports a missing or malformed mandatory input
func NewValidationError(field, message string) *shared.DomainError {
	return shared.NewDomainError(shared.CodeValidation, fmt.Sprintf("%s: %s", field, message))
}

// NewNotFoundError reports a referenced entity that does not exist
func NewNotFoundError(entity string, id fmt.Stringer) *shared.DomainError {
	return shared.NewDomainError(shared.CodeNotFound, fmt.Sprintf("%s %s not found", entity, id))
}

// NewNotActiveError reports a referenced entity that exists but is inactive
func NewNotActiveError(entity string, id fmt.Stringer) *shared.DomainError {
	return shared.NewDomainError(shared.CodeNotActive, fmt.Sprintf("%s %s is not active", entity, id))
}

// NewConversionNotFoundError reports that no rate could be resolved
func NewConversionNotFoundError(from, to valueobject.Currency, asOf time.Time, conversionType string) *shared.DomainError {
	return shared.NewDomainError(shared.CodeConversionNotFound,
		fmt.Sprintf("no conversion rate from %s to %s on %s (type %s)", from, to, asOf.Format(time.DateOnly), conversionType))
}

// NewProcessFailedError wraps the document engine's rejection message without altering it
func NewProcessFailedError(message string) *shared.DomainError {
	return shared.NewDomainError(shared.CodeProcessFailed, message)
}

// NewPaymentDeclinedError reports a gateway decline
func NewPaymentDeclinedError(reason string) *shared.DomainError {
	return shared.NewDomainError(shared.CodePaymentDeclined, "payment declined: "+reason)
}
