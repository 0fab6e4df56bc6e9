package appcache

import (
	"strings"

	"github.com/sahilm/fuzzy"
)

type titleSource []App

func (s titleSource) String(i int) string {
	if s[i].LowerTitle == "" {
		return strings.ToLower(s[i].Title)
	}
	return s[i].LowerTitle
}

func (s titleSource) Len() int {
	return len(s)
}

// Match returns the apps whose title fuzzily matches pattern, best match first.
// An empty pattern matches everything in the original order.
func Match(apps []App, pattern string) []App {
	if pattern == "" {
		return apps
	}

	matches := fuzzy.FindFrom(strings.ToLower(pattern), titleSource(apps))
	found := make([]App, len(matches))
	for i, m := range matches {
		found[i] = apps[m.Index]
	}
	return found
}
