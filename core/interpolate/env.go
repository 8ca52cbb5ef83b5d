// Package interpolate substitutes ${env:...} placeholders inside plain strings.
//
// Two forms are recognised:
//
//	${env:NAME}           value of NAME, error if unset
//	${env:NAME:-DEFAULT}  value of NAME, DEFAULT if unset (DEFAULT may be empty)
//
// A variable that is set to the empty string counts as set. Substituted text
// is never scanned again.
package interpolate

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

var envPattern = regexp.MustCompile(`\$\{env:([^}:]+)(?::-([^}]*))?\}`)

// LookupFunc returns the value of an environment variable and whether it is set.
type LookupFunc func(name string) (string, bool)

// MissingEnvError is returned when a referenced variable is unset and no
// default was given.
type MissingEnvError struct {
	Name string
}

func (e *MissingEnvError) Error() string {
	return fmt.Sprintf("environment variable %q is not set and no default provided", e.Name)
}

// Env interpolates environment variables from the process environment.
func Env(text string) (string, error) {
	return EnvWith(text, os.LookupEnv)
}

// EnvWith interpolates using the supplied lookup.
func EnvWith(text string, lookup LookupFunc) (string, error) {
	matches := envPattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text, nil
	}

	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, m := range matches {
		b.WriteString(text[last:m[0]])
		name := text[m[2]:m[3]]

		if v, ok := lookup(name); ok {
			b.WriteString(v)
		} else if m[4] >= 0 {
			b.WriteString(text[m[4]:m[5]])
		} else {
			return "", &MissingEnvError{Name: name}
		}
		last = m[1]
	}
	b.WriteString(text[last:])

	return b.String(), nil
}

// HasEnv reports whether text contains at least one ${env:...} placeholder.
func HasEnv(text string) bool {
	return envPattern.MatchString(text)
}

// MapLookup adapts a map to a LookupFunc, falling back to next when the map
// has no entry. next may be nil.
func MapLookup(vars map[string]string, next LookupFunc) LookupFunc {
	return func(name string) (string, bool) {
		if v, ok := vars[name]; ok {
			return v, true
		}
		if next != nil {
			return next(name)
		}
		return "", false
	}
}
