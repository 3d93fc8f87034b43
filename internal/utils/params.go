// Package utils holds small parsing helpers shared by the HTTP layer.
package utils

import "strconv"

// AtoiDefault parses s as a base-10 int, returning def when s is empty or
// not a valid integer. Surrounding whitespace is not trimmed.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// ClampInt bounds v to [lo, hi].
func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// LimitParam parses a ?limit= style value: missing or malformed input yields
// def, anything else is clamped to [1, max].
func LimitParam(raw string, def, max int) int {
	if max < 1 {
		max = 1
	}
	return ClampInt(AtoiDefault(raw, def), 1, max)
}
