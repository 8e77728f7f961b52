package finance

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/erp/allocation/internal/domain/finance"
	"github.com/go-playground/validator/v10"
)

var requestValidator = newRequestValidator()

func newRequestValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report json field names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateRequest checks the validate tags of req. The first failing field becomes a
// ValidationError; the full validator.ValidationErrors stays reachable through errors.As.
func validateRequest(req any) error {
	err := requestValidator.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return finance.NewValidationError(fieldPath(fe), fmt.Sprintf("failed %q check", fe.Tag())).WithCause(fieldErrs)
	}
	return finance.NewValidationError("request", err.Error()).WithCause(err)
}

// fieldPath drops the struct name prefix from the namespace, e.g. payment_selections[0].id
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}
