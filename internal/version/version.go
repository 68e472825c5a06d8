// SPDX-License-Identifier: MPL-2.0

package version

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidVersion is the sentinel error wrapped by ParseError.
var ErrInvalidVersion = errors.New("invalid version")

type (
	// Version is a parsed major.minor.patch triple. Pre-release and build
	// metadata are not supported; a tag carrying them fails to parse.
	Version struct {
		Major int
		Minor int
		Patch int
	}

	// ParseError is returned when a version string does not match the
	// major.minor.patch grammar. It wraps ErrInvalidVersion for errors.Is().
	ParseError struct {
		Input  string
		Reason string
	}
)

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid version %q: %s", e.Input, e.Reason)
}

// Unwrap returns ErrInvalidVersion so callers can use errors.Is.
func (e *ParseError) Unwrap() error { return ErrInvalidVersion }

// Parse converts text into a Version. Surrounding whitespace is trimmed and
// a single leading "v" or "V" is stripped before parsing. The remainder must
// be exactly three dot-separated non-negative integers.
func Parse(text string) (Version, error) {
	trimmed := TrimVersion(text)
	if trimmed == "" {
		return Version{}, &ParseError{Input: text, Reason: "empty input"}
	}

	parts := strings.Split(trimmed, ".")
	if len(parts) != 3 {
		return Version{}, &ParseError{
			Input:  text,
			Reason: fmt.Sprintf("expected 3 components, got %d", len(parts)),
		}
	}

	nums := make([]int, 3)
	for i, part := range parts {
		n, err := parseComponent(part)
		if err != nil {
			return Version{}, &ParseError{
				Input:  text,
				Reason: fmt.Sprintf("component %q is not a non-negative integer", part),
			}
		}
		nums[i] = n
	}

	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// parseComponent parses one version segment. strconv.Atoi alone would accept
// "+1" and "-0", which the grammar does not.
func parseComponent(s string) (int, error) {
	if s == "" {
		return 0, errors.New("empty component")
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, errors.New("non-digit character")
		}
	}
	return strconv.Atoi(s)
}

// String formats the version as "major.minor.patch".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare returns -1 if v is older than other, 0 if equal, and +1 if newer.
// Ordering is lexicographic over (major, minor, patch).
func (v Version) Compare(other Version) int {
	if c := compareInt(v.Major, other.Major); c != 0 {
		return c
	}
	if c := compareInt(v.Minor, other.Minor); c != 0 {
		return c
	}
	return compareInt(v.Patch, other.Patch)
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// TrimVersion normalizes raw script output into a comparable version string:
// surrounding whitespace is trimmed and a single leading "v" or "V" is
// stripped (e.g. "v1.2.3\n" becomes "1.2.3").
func TrimVersion(s string) string {
	trimmed := strings.TrimSpace(s)
	if len(trimmed) > 0 && (trimmed[0] == 'v' || trimmed[0] == 'V') {
		return trimmed[1:]
	}
	return trimmed
}
