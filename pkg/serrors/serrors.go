package serrors

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Base is a coded error. Code is a stable machine-readable identifier used in
// API envelopes and log fields; Message is a human-readable default.
type Base struct {
	Code    string
	Message string
	Details string
}

func (e *Base) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Details)
	}
	return e.Message
}

func NewError(code, message, details string) *Base {
	return &Base{Code: code, Message: message, Details: details}
}

// WithDetails returns a copy carrying extra context. errors.Is still matches
// the original because comparison goes through Is below.
func (e *Base) WithDetails(format string, args ...any) *Base {
	return &Base{Code: e.Code, Message: e.Message, Details: fmt.Sprintf(format, args...)}
}

func (e *Base) Is(target error) bool {
	t, ok := target.(*Base)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Code extracts the stable code from err if it is (or wraps) a Base.
func Code(err error) string {
	var b *Base
	if errors.As(err, &b) {
		return b.Code
	}
	return ""
}

// ValidationErrors maps struct field names to messages.
type ValidationErrors map[string]string

// ProcessValidatorErrors flattens validator.ValidationErrors into field messages.
func ProcessValidatorErrors(errs validator.ValidationErrors) ValidationErrors {
	out := make(ValidationErrors, len(errs))
	for _, fieldErr := range errs {
		switch fieldErr.Tag() {
		case "required":
			out[fieldErr.Field()] = fmt.Sprintf("%s is required", fieldErr.Field())
		case "min":
			out[fieldErr.Field()] = fmt.Sprintf("%s must be at least %s", fieldErr.Field(), fieldErr.Param())
		case "max":
			out[fieldErr.Field()] = fmt.Sprintf("%s must be at most %s", fieldErr.Field(), fieldErr.Param())
		case "oneof":
			out[fieldErr.Field()] = fmt.Sprintf("%s must be one of: %s", fieldErr.Field(), fieldErr.Param())
		default:
			out[fieldErr.Field()] = fmt.Sprintf("%s is invalid", fieldErr.Field())
		}
	}
	return out
}
