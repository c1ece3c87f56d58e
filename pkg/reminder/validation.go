package reminder

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
)

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors collects field errors. It is always returned joined with ErrValidation.
type ValidationErrors []FieldError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "validation failed"
	}

	parts := make([]string, 0, len(ve))
	for _, e := range ve {
		parts = append(parts, fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (ve *ValidationErrors) add(field, message string) {
	*ve = append(*ve, FieldError{Field: field, Message: message})
}

func (ve ValidationErrors) err() error {
	if len(ve) == 0 {
		return nil
	}
	return errors.Join(ErrValidation, ve)
}

// ExtractValidationErrors returns the field errors wrapped in err, if any.
func ExtractValidationErrors(err error) ValidationErrors {
	var ve ValidationErrors
	if errors.As(err, &ve) {
		return ve
	}
	return nil
}

func validateEmail(ve *ValidationErrors, field, email string) {
	if email == "" {
		ve.add(field, "field is required")
		return
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		ve.add(field, "must be a valid email address")
	}
}
