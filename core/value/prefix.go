package value

import (
	"regexp"
	"strings"
)

// Content may be empty: ${string:} is the empty string.
var prefixPattern = regexp.MustCompile(`\$\{([^:}]+):([^}]*)\}`)

// Bracket is a single ${prefix:content} occurrence inside a scalar.
type Bracket struct {
	// Prefix is trimmed and lower-cased.
	Prefix  string
	Content string
	// Start and End are byte offsets of the whole bracket in the scalar.
	Start int
	End   int
}

// Whole reports whether the bracket spans all of s.
func (b Bracket) Whole(s string) bool {
	return b.Start == 0 && b.End == len(s)
}

// Strip returns s with the bracket removed.
func (b Bracket) Strip(s string) string {
	return s[:b.Start] + s[b.End:]
}

// FindBrackets returns every bracket in s, left to right.
func FindBrackets(s string) []Bracket {
	matches := prefixPattern.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return nil
	}

	brackets := make([]Bracket, 0, len(matches))
	for _, m := range matches {
		brackets = append(brackets, Bracket{
			Prefix:  strings.ToLower(strings.TrimSpace(s[m[2]:m[3]])),
			Content: s[m[4]:m[5]],
			Start:   m[0],
			End:     m[1],
		})
	}
	return brackets
}

// SingleBracket returns the only bracket in s. found is false when s has
// none; ErrMultiplePrefixes is returned when it has more than one.
func SingleBracket(s string) (b Bracket, found bool, err error) {
	brackets := FindBrackets(s)
	switch len(brackets) {
	case 0:
		return Bracket{}, false, nil
	case 1:
		return brackets[0], true, nil
	default:
		return Bracket{}, false, ErrMultiplePrefixes
	}
}
