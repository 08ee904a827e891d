package filter

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidFilterValue matches every *ValidationError via errors.Is.
var ErrInvalidFilterValue = errors.New("invalid filter value")

// FieldError describes one filter value that could not be coerced.
type FieldError struct {
	Filter   string `json:"filter"`
	Expected string `json:"expected"`
	Value    any    `json:"value"`
	Err      error  `json:"-"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("filter %q: expected %s, got %v", e.Filter, e.Expected, e.Value)
}

func (e FieldError) Unwrap() error {
	return e.Err
}

// ValidationError is returned when one or more filter values are malformed.
// No query is produced when it is returned.
type ValidationError struct {
	Entity string
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		msgs[i] = fe.Error()
	}
	return fmt.Sprintf("invalid %s filters: %s", e.Entity, strings.Join(msgs, "; "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidFilterValue
}

// Filters returns the names of the rejected filters.
func (e *ValidationError) Filters() []string {
	names := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		names[i] = fe.Filter
	}
	return names
}

// InvalidFieldPathError is returned while building a Spec whose field
// references a path or operator the table cannot satisfy.
type InvalidFieldPathError struct {
	Entity string
	Filter string
	Path   string
	Reason string
}

func (e *InvalidFieldPathError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s filter %q: %s", e.Entity, e.Filter, e.Reason)
	}
	return fmt.Sprintf("%s filter %q: invalid path %q: %s", e.Entity, e.Filter, e.Path, e.Reason)
}
