package apperr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("already exists")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrRevoked           = errors.New("certificate revoked")
)

// NotFound wraps ErrNotFound with the kind and id of the missing record.
func NotFound(kind, id string) error {
	return fmt.Errorf("%s %q: %w", kind, id, ErrNotFound)
}

type ValidationError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// FromValidator converts validator/v10 errors into a single ValidationError.
// Errors of any other type are returned unchanged.
func FromValidator(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}

	messages := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg := fmt.Sprintf("field '%s' failed on the '%s' tag", fe.Field(), fe.Tag())
		if fe.Param() != "" {
			msg = fmt.Sprintf("%s (value: %s)", msg, fe.Param())
		}
		messages = append(messages, msg)
	}

	return &ValidationError{Field: verrs[0].Field(), Message: strings.Join(messages, "; ")}
}

// RenderError reports a failed or timed out render bridge call.
type RenderError struct {
	Op  string
	Err error
}

func (e *RenderError) Error() string {
	if e.Err == nil {
		return "render " + e.Op + " failed"
	}
	return fmt.Sprintf("render %s failed: %v", e.Op, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// SecurityError reports a signature mismatch or tampered record. It is never
// folded into NotFound so callers can alert on it.
type SecurityError struct {
	CertificateID string
	Reason        string
}

func (e *SecurityError) Error() string {
	return fmt.Sprintf("security check failed for certificate %s: %s", e.CertificateID, e.Reason)
}

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsRender(err error) bool {
	var re *RenderError
	return errors.As(err, &re)
}

func IsSecurity(err error) bool {
	var se *SecurityError
	return errors.As(err, &se)
}
