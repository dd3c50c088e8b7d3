package core

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

// ValidationError is returned when a form fails client-side validation.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if len(err.Fields) > 0 {
		msgs := make([]string, 0, len(err.Fields))
		for _, fld := range err.Fields {
			msgs = append(msgs, fld.Error)
		}
		return strings.Join(msgs, ", ")
	}
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// APIError is a non-2xx response of the PracticeHub API.
type APIError struct {
	Status  int
	Message string
	Fields  []string // per-field messages of a validation failure, in server order
}

func (err *APIError) Error() string {
	if len(err.Fields) > 0 {
		return strings.Join(err.Fields, ", ")
	}
	if err.Message != "" {
		return err.Message
	}
	return fmt.Sprintf("request failed with status %d", err.Status)
}

// IsUnauthorized reports whether err carries a 401 response.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// Message returns a human-readable message for err: server or validation messages are used as is,
// anything else (network failures, decoding errors..) is replaced by fallback.
func Message(err error, fallback string) string {
	var (
		apiErr *APIError
		valErr *ValidationError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &valErr):
		if msg := valErr.Error(); msg != "" {
			return msg
		}
	case errors.As(err, &apiErr):
		if len(apiErr.Fields) > 0 || apiErr.Message != "" {
			return apiErr.Error()
		}
	}
	return fallback
}
