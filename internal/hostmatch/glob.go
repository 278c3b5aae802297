// Package hostmatch implements netwatch.HostMatcher over hostname glob
// patterns (e.g. "*.ads.example", "cdn.*"), using gobwas/glob for the
// underlying pattern compilation.
package hostmatch

import (
	"fmt"

	"github.com/gobwas/glob"
)

// GlobMatcher matches a hostname against a set of compiled glob patterns.
type GlobMatcher struct {
	globs []glob.Glob
}

// New compiles patterns against the whole hostname string, so "*" in a
// pattern like "ads.*" or "*.example.com" can span multiple labels.
func New(patterns []string) (*GlobMatcher, error) {
	m := &GlobMatcher{globs: make([]glob.Glob, 0, len(patterns))}
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("hostmatch: invalid pattern %q: %w", p, err)
		}
		m.globs = append(m.globs, g)
	}
	return m, nil
}

// Match implements netwatch.HostMatcher: true if hostname matches any
// configured pattern.
func (m *GlobMatcher) Match(hostname string) bool {
	for _, g := range m.globs {
		if g.Match(hostname) {
			return true
		}
	}
	return false
}
