// Package reorder rearranges document lines so that the front and back
// matter of a book, where publishers print ISBNs, is scanned first.
package reorder

import (
	"os"
	"strings"
)

// Defaults for Options.
const (
	DefaultScanFirst   = 400
	DefaultReverseLast = 50
)

// Options controls the reordering. A disabled Options leaves content untouched.
type Options struct {
	Enabled     bool
	ScanFirst   int // leading lines passed through unchanged
	ReverseLast int // trailing lines passed next, in reverse order
}

// DefaultOptions returns reordering enabled with the default window sizes.
func DefaultOptions() Options {
	return Options{
		Enabled:     true,
		ScanFirst:   DefaultScanFirst,
		ReverseLast: DefaultReverseLast,
	}
}

// Lines returns the lines in scan order: the first ScanFirst lines, then the
// last ReverseLast lines reversed, then the remaining middle. The windows
// never overlap, so the result is a permutation of the input.
func Lines(lines []string, first, last int) []string {
	if first < 0 {
		first = 0
	}
	if last < 0 {
		last = 0
	}

	n := len(lines)
	head := min(first, n)
	rest := lines[head:]
	tailLen := min(last, len(rest))
	middle := rest[:len(rest)-tailLen]
	tail := rest[len(rest)-tailLen:]

	out := make([]string, 0, n)
	out = append(out, lines[:head]...)
	for i := len(tail) - 1; i >= 0; i-- {
		out = append(out, tail[i])
	}
	out = append(out, middle...)
	return out
}

// Text applies Lines to a text blob split on newlines.
func (o Options) Text(text string) string {
	if !o.Enabled || text == "" {
		return text
	}
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	return strings.Join(Lines(lines, o.ScanFirst, o.ReverseLast), "\n") + "\n"
}

// File reads path and returns its content in scan order.
func (o Options) File(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return o.Text(string(data)), nil
}
