package idb

import (
	"regexp"
	"strings"
)

var identifierRe = regexp.MustCompile(`^[a-z_][A-Za-z0-9_\-$]*$`)

// IsValidIdentifier reports whether s is acceptable as a database, object
// store or index name.
func IsValidIdentifier(s string) bool {
	return identifierRe.MatchString(s)
}

// IsValidKeyPath reports whether s is a valid key path: one identifier, or a
// dot-separated chain of identifiers for nested field access.
func IsValidKeyPath(s string) bool {
	if s == "" {
		return false
	}
	for _, seg := range strings.Split(s, ".") {
		if !identifierRe.MatchString(seg) {
			return false
		}
	}
	return true
}

// IsValidMultiKeyPath reports whether every element of paths is a valid key
// path. An empty list is not valid.
func IsValidMultiKeyPath(paths []string) bool {
	if len(paths) == 0 {
		return false
	}
	for _, p := range paths {
		if !IsValidKeyPath(p) {
			return false
		}
	}
	return true
}

// IsValidVersion reports whether n is a legal database version (a positive
// integer).
func IsValidVersion(n uint64) bool {
	return n > 0
}

// IsValidKey reports whether v is a valid key: a finite number, a string, or
// a date.
func IsValidKey(v any) bool {
	_, ok := canonicalKey(v)
	return ok
}

// IsValidKeyRange reports whether r is a well-formed key range: each present
// bound is a valid key, and lower ≤ upper when both are present.
func IsValidKeyRange(r *KeyRange) bool {
	if r == nil {
		return false
	}
	lower, upper := r.Lower, r.Upper
	if lower != nil {
		if _, ok := canonicalKey(lower); !ok {
			return false
		}
	}
	if upper != nil {
		if _, ok := canonicalKey(upper); !ok {
			return false
		}
	}
	if lower != nil && upper != nil && CompareKeys(lower, upper) > 0 {
		return false
	}
	return true
}
