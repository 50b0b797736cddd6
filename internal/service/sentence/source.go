package sentence

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Source produces candidate practice sentences. nonce differs on every call
// so that generators do not return a cached answer.
type Source interface {
	Fetch(ctx context.Context, n int, nonce string) ([]string, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, n int, nonce string) ([]string, error)

// Fetch implements Source.
func (f SourceFunc) Fetch(ctx context.Context, n int, nonce string) ([]string, error) {
	return f(ctx, n, nonce)
}

var listMarker = regexp.MustCompile(`^(?:\d+[.)]|[-*•])\s+`)

// ParseLines splits generated text into candidate sentences, one per line,
// dropping blank lines and list markers.
func ParseLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = listMarker.ReplaceAllString(line, "")
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

const closers = `"'”’»)]`

// HasTerminalPunctuation reports whether s ends in '.', '!' or '?',
// optionally followed by closing quotes or brackets.
func HasTerminalPunctuation(s string) bool {
	s = strings.TrimRight(strings.TrimSpace(s), closers)
	if s == "" {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(s)
	return r == '.' || r == '!' || r == '?'
}
