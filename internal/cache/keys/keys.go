// Package keys builds the Redis keys of the value and summary caches.
package keys

import (
	"fmt"
	"strings"
)

// ValueKey addresses the materialized value of a graph by its fingerprint.
func ValueKey(fingerprint uint64) string {
	return fmt.Sprintf("val:%016x", fingerprint)
}

// SummaryKey addresses the hash holding every cached summary of one cell.
// Hash fields are graph fingerprints (see Field).
func SummaryKey(platform string, res int, cell string) string {
	return fmt.Sprintf("sum:%s:%d:%s", sanitizePlatform(strings.TrimSpace(platform)), res, cell)
}

// Field renders a graph fingerprint as a hash field.
func Field(fingerprint uint64) string {
	return fmt.Sprintf("%016x", fingerprint)
}

// sanitizePlatform maps a platform id onto [A-Za-z0-9_-]; whitespace becomes
// '_' and every other rune '-', with runs collapsed.
func sanitizePlatform(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	var prev rune
	for _, r := range s {
		var out rune
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f':
			out = '_'
		case isASCIIAlphaNum(r) || r == '_' || r == '-':
			out = r
		default:
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func isASCIIAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
