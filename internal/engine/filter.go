package engine

import (
	"path"
	"slices"
	"strings"
)

// FilterNames keeps names matching at least one include pattern (when any are
// given) and no exclude pattern. Patterns use path.Match syntax; blank or
// malformed patterns match nothing.
func FilterNames(names, include, exclude []string) []string {
	var kept []string
	for _, name := range names {
		if len(include) > 0 && !matchesAny(include, name) {
			continue
		}
		if matchesAny(exclude, name) {
			continue
		}
		kept = append(kept, name)
	}
	return kept
}

func matchesAny(patterns []string, name string) bool {
	return slices.ContainsFunc(patterns, func(p string) bool {
		p = strings.TrimSpace(p)
		if p == "" {
			return false
		}
		ok, _ := path.Match(p, name)
		return ok
	})
}
