// Package pathmatch matches request paths against segment globs. A "*" segment
// matches exactly one path segment and a "**" segment matches all remaining
// segments, including none.
package pathmatch

import "strings"

type Whitelist struct {
	patterns [][]string
}

func New(patterns ...string) *Whitelist {
	w := &Whitelist{}
	for _, p := range patterns {
		if p = strings.TrimSpace(p); p != "" {
			w.patterns = append(w.patterns, split(p))
		}
	}
	return w
}

// Match reports whether path matches any pattern.
func (w *Whitelist) Match(path string) bool {
	if w == nil {
		return false
	}
	segments := split(path)
	for _, p := range w.patterns {
		if match(p, segments) {
			return true
		}
	}
	return false
}

func split(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func match(pattern, segments []string) bool {
	for i, p := range pattern {
		if p == "**" {
			return true
		}
		if i >= len(segments) {
			return false
		}
		if p != "*" && p != segments[i] {
			return false
		}
	}
	return len(pattern) == len(segments)
}
