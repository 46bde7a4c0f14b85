package probe

import "strings"

// Filter decides which call sites are never recorded.
type Filter struct {
	// Functions are exact function names to skip.
	Functions []string
	// ScopePrefixes skip every scope starting with one of the strings.
	ScopePrefixes []string
}

// Ignored reports whether a call site in scope named function is skipped.
func (f Filter) Ignored(scope, function string) bool {
	for _, fn := range f.Functions {
		if fn == function {
			return true
		}
	}
	for _, p := range f.ScopePrefixes {
		if strings.HasPrefix(scope, p) {
			return true
		}
	}
	return false
}

// Empty reports whether the filter skips nothing.
func (f Filter) Empty() bool {
	return len(f.Functions) == 0 && len(f.ScopePrefixes) == 0
}
