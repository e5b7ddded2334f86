package client

import (
	"fmt"
	"strings"
)

// escapeLiteral escapes s for inclusion inside a single-quoted SQL literal.
// Quotes are doubled; without standard conforming strings, backslashes are
// escape characters too and must also be doubled. A NUL byte has no
// representation in a literal.
func escapeLiteral(s string, stdStrings bool) (string, error) {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch == 0:
			return "", fmt.Errorf("string literal contains a NUL byte")
		case ch == '\'':
			b.WriteByte('\'')
		case ch == '\\' && !stdStrings:
			b.WriteByte('\\')
		}
		b.WriteByte(ch)
	}
	return b.String(), nil
}
