package engine

import "strings"

// depth reports the number of '/' characters in key.
func depth(key string) int {
	return strings.Count(key, "/")
}

// parent returns the longest prefix of key ending in '/', computed after
// stripping a single trailing '/' from key first. It returns "" when key
// has no interior slash.
func parent(key string) string {
	trimmed := strings.TrimSuffix(key, "/")
	idx := strings.LastIndexByte(trimmed, '/')
	if idx == -1 {
		return ""
	}
	return key[:idx+1]
}

// prefixUpperBound computes the exclusive upper bound of the half-open
// range [prefix, upperBound) that contains exactly the keys beginning with
// prefix, without resorting to SQL LIKE pattern matching. It increments
// the last byte of prefix; ok is false for an empty prefix, which has no
// finite upper bound (callers should skip the upper-bound clause in that
// case).
func prefixUpperBound(prefix string) (upperBound string, ok bool) {
	if prefix == "" {
		return "", false
	}
	b := []byte(prefix)
	b[len(b)-1]++
	return string(b), true
}
