package connection

const redacted = "********"

// Secret is a string that never prints its value.
type Secret string

// Reveal returns the underlying value.
func (s Secret) Reveal() string {
	return string(s)
}

func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return redacted
}

// GoString keeps %#v from leaking the value.
func (s Secret) GoString() string {
	return s.String()
}

// MarshalYAML writes the redacted form.
func (s Secret) MarshalYAML() (any, error) {
	return s.String(), nil
}
