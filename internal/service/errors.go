// Package service holds what the scheduling services share.
package service

import (
	"errors"
	"strings"
)

// ValidationError rejects malformed input before anything is written. Field
// names the offending input when there is one.
type ValidationError struct {
	Field string
	msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.msg
	}
	return e.Field + ": " + e.msg
}

func (e *ValidationError) Message() string {
	return e.msg
}

func Invalid(field, msg string) error {
	return &ValidationError{Field: field, msg: msg}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// TrimOptional trims s and maps the empty result to nil.
func TrimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
