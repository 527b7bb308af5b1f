// Package validate enforces argument contracts before a request is built and
// assembles parameter mappings that carry only meaningful values.
package validate

import (
	"fmt"
	"strings"
)

// Error reports an argument that violates its contract. It is returned
// before any network call is made and is never retried.
type Error struct {
	// Field is the argument name as the caller knows it (e.g. "teamId").
	Field string

	// Reason describes the violated contract.
	Reason string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("invalid argument %s: %s", e.Field, e.Reason)
}

// Required fails when a text argument is empty or only whitespace.
func Required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &Error{Field: field, Reason: "is required"}
	}
	return nil
}

// NonNegative fails when an integer argument such as a page-size hint is
// below zero. Zero means "use the service default".
func NonNegative(field string, value int) error {
	if value < 0 {
		return &Error{Field: field, Reason: fmt.Sprintf("must be >= 0 (got %d)", value)}
	}
	return nil
}

// AtLeastOne fails when every value is empty. Names and values are given as
// alternating pairs: AtLeastOne("personId", id, "personEmail", email).
func AtLeastOne(pairs ...string) error {
	if len(pairs)%2 != 0 {
		panic("validate: AtLeastOne requires name/value pairs")
	}

	names := make([]string, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) != "" {
			return nil
		}
		names = append(names, pairs[i])
	}

	return &Error{
		Field:  strings.Join(names, "|"),
		Reason: "at least one is required",
	}
}

// First returns the first non-nil error, so call sites can check several
// contracts in one statement.
func First(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
