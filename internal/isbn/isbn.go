// Package isbn finds and validates ISBN-10 and ISBN-13 identifiers in text.
package isbn

import (
	"regexp"
	"strings"
)

// DefaultSeparator joins multiple ISBNs for consumers that expect a single string.
const DefaultSeparator = ","

// candidatePattern matches ISBN-like sequences: an optional 978/979 prefix
// followed by ten digit-or-dash groups, the last of which may be an X.
// Go's regexp has no lookaround, so the "not next to another digit" guard
// is enforced by Find.
var candidatePattern = regexp.MustCompile(`(?:-?9-?7[89][- ]?)?(?:-?[0-9]-?){9}[0-9xX]`)

// Find returns the distinct, checksum-valid ISBNs in text in first-seen order.
// Invalid candidates are dropped silently.
func Find(text string) []string {
	var found []string
	seen := make(map[string]struct{})

	pos := 0
	for pos < len(text) {
		loc := candidatePattern.FindStringIndex(text[pos:])
		if loc == nil {
			break
		}
		start, end := pos+loc[0], pos+loc[1]

		// Reject matches glued to longer digit runs, then retry one byte later.
		// Every match starts with an ASCII byte, so start+1 is a rune boundary.
		if (start > 0 && isDigit(text[start-1])) || (end < len(text) && isDigit(text[end])) {
			pos = start + 1
			continue
		}
		pos = end

		candidate := Normalize(text[start:end])
		if _, ok := seen[candidate]; ok {
			continue
		}
		seen[candidate] = struct{}{}

		if Valid(candidate) {
			found = append(found, candidate)
		}
	}
	return found
}

// Join renders ISBNs as one string using sep.
func Join(isbns []string, sep string) string {
	return strings.Join(isbns, sep)
}

// Normalize strips everything except digits and X, uppercasing x.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case isDigit(c):
			b.WriteByte(c)
		case c == 'x' || c == 'X':
			b.WriteByte('X')
		}
	}
	return b.String()
}

// Valid reports whether s is a normalized ISBN-10 or ISBN-13 with a correct
// check digit. It does not normalize its input.
func Valid(s string) bool {
	switch len(s) {
	case 10:
		return validISBN10(s)
	case 13:
		return validISBN13(s)
	default:
		return false
	}
}

func validISBN10(s string) bool {
	sum := 0
	for i := 0; i < 10; i++ {
		var v int
		switch {
		case isDigit(s[i]):
			v = int(s[i] - '0')
		case i == 9 && s[i] == 'X':
			v = 10
		default:
			return false
		}
		sum += v * (10 - i)
	}
	return sum%11 == 0
}

func validISBN13(s string) bool {
	if s[:3] != "978" && s[:3] != "979" {
		return false
	}
	sum := 0
	for i := 0; i < 13; i++ {
		if !isDigit(s[i]) {
			return false
		}
		v := int(s[i] - '0')
		if i%2 == 1 {
			v *= 3
		}
		sum += v
	}
	return sum%10 == 0
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
