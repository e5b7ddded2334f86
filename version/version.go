// Package version parses and compares server version strings. Server
// behavior is gated on a handful of fixed version thresholds, so the
// comparison must be numeric: lexicographic ordering would sort "10.0"
// below "9.6".
package version

import (
	"fmt"
	"strconv"
	"strings"
)

// Server is a parsed server version. Raw preserves the original token.
type Server struct {
	Major int
	Minor int
	Raw   string
}

// FromBanner extracts the version from the output of version(): the first
// whitespace token is the product name, the second is the version.
func FromBanner(banner string) (Server, error) {
	fields := strings.Fields(banner)
	if len(fields) < 2 {
		return Server{}, fmt.Errorf("unrecognized server version banner %q", banner)
	}
	return Parse(fields[1])
}

// Parse parses a dotted version like "9.6.1". Only the major and minor
// components matter; a missing minor counts as zero, and trailing non-digit
// suffixes ("8.4beta1") are ignored.
func Parse(s string) (Server, error) {
	parts := strings.SplitN(s, ".", 3)
	major, ok := leadingInt(parts[0])
	if !ok {
		return Server{}, fmt.Errorf("unrecognized server version %q", s)
	}
	minor := 0
	if len(parts) > 1 {
		if m, ok := leadingInt(parts[1]); ok {
			minor = m
		}
	}
	return Server{Major: major, Minor: minor, Raw: s}, nil
}

// AtLeast reports whether the server is at or above the given "major.minor"
// threshold. Thresholds are fixed literals in the callers, so a malformed
// one is a programming error and panics.
func (v Server) AtLeast(threshold string) bool {
	t, err := Parse(threshold)
	if err != nil {
		panic(fmt.Sprintf("version: bad threshold %q", threshold))
	}
	if v.Major != t.Major {
		return v.Major > t.Major
	}
	return v.Minor >= t.Minor
}

func (v Server) String() string {
	if v.Raw != "" {
		return v.Raw
	}
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// leadingInt parses the leading digit run of s.
func leadingInt(s string) (int, bool) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(s[:i])
	if err != nil {
		return 0, false
	}
	return n, true
}
