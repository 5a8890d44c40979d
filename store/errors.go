package store

import (
	"errors"
	"strings"
)

var (
	// ErrPostNotFound is returned when no post has the requested id.
	ErrPostNotFound = errors.New("post not found")
	// ErrStaleEdit is returned when an update targets an outdated post version.
	ErrStaleEdit = errors.New("post was modified by someone else")
	// ErrUserExists is returned when creating a user with a taken username.
	ErrUserExists = errors.New("username already taken")
)

// ValidationError reports required fields that were empty and fields that
// exceed their length bound.
type ValidationError struct {
	Fields  []string
	TooLong []string
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Fields) > 0 {
		parts = append(parts, "required field is empty: "+strings.Join(e.Fields, ", "))
	}
	if len(e.TooLong) > 0 {
		parts = append(parts, "field is too long: "+strings.Join(e.TooLong, ", "))
	}
	return strings.Join(parts, "; ")
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
