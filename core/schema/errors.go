package schema

import (
	"fmt"
	"strings"
)

// FieldError is a failure scoped to one field of a project.
type FieldError struct {
	// Field is the path of the field, e.g. "tables[0].columns[1].generator".
	Field string

	// File is the artifact file the field came from, when parsed by ParseDir.
	File string

	Err error
}

func (e *FieldError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s: %s: %v", e.File, e.Field, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// ValidationError collects every field failure of one parse.
type ValidationError struct {
	Errors []*FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		msgs[i] = fe.Error()
	}
	return fmt.Sprintf("validation errors:\n  - %s", strings.Join(msgs, "\n  - "))
}

// Unwrap exposes the field errors to errors.Is and errors.As.
func (e *ValidationError) Unwrap() []error {
	errs := make([]error, len(e.Errors))
	for i, fe := range e.Errors {
		errs[i] = fe
	}
	return errs
}

// Field returns the first error for field, if any.
func (e *ValidationError) Field(field string) (*FieldError, bool) {
	for _, fe := range e.Errors {
		if fe.Field == field {
			return fe, true
		}
	}
	return nil, false
}

// collector accumulates field errors, at most one per field.
type collector struct {
	errs []*FieldError
	seen map[string]struct{}
}

func (c *collector) add(field, file string, err error) {
	if err == nil {
		return
	}
	if c.seen == nil {
		c.seen = make(map[string]struct{})
	}
	if _, dup := c.seen[field]; dup {
		return
	}
	c.seen[field] = struct{}{}
	c.errs = append(c.errs, &FieldError{Field: field, File: file, Err: err})
}

func (c *collector) err() error {
	if len(c.errs) == 0 {
		return nil
	}
	return &ValidationError{Errors: c.errs}
}
