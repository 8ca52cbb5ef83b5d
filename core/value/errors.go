package value

import (
	"errors"
	"fmt"
)

// ErrMultiplePrefixes is returned when a scalar holds more than one
// ${prefix:content} bracket.
var ErrMultiplePrefixes = errors.New("multiple prefixes in one value are not supported")

// ErrEmptyReference is returned for ${ref:} with nothing to refer to.
var ErrEmptyReference = errors.New("reference must not be empty")

// ErrNoResolver is returned when a reference is resolved without a resolver.
var ErrNoResolver = errors.New("reference resolution requires a context")

// InvalidLiteralError reports content that cannot be cast to its declared type.
type InvalidLiteralError struct {
	Type DataType
	Text string
	Err  error
}

func (e *InvalidLiteralError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid %s literal %q: %v", e.Type, e.Text, e.Err)
	}
	return fmt.Sprintf("invalid %s literal %q", e.Type, e.Text)
}

func (e *InvalidLiteralError) Unwrap() error {
	return e.Err
}

// UnsupportedPrefixError reports a prefix word that is not recognised where
// it appears.
type UnsupportedPrefixError struct {
	Prefix string
}

func (e *UnsupportedPrefixError) Error() string {
	return fmt.Sprintf("unsupported option prefix %q", e.Prefix)
}

// InferError reports a raw value whose runtime type has no data type.
type InferError struct {
	Value any
}

func (e *InferError) Error() string {
	return fmt.Sprintf("cannot infer type for %T", e.Value)
}
