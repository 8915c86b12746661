// Package globset implements the glob grammar fileset definitions are
// matched against: `?` for any single non-separator, `*` for zero or
// more non-separators, and `**/` for zero or more path segments. It is
// built on doublestar, the glob matcher the wider example pack already
// reaches for (see DESIGN.md), rather than hand-rolling a glob-to-regexp
// compiler.
package globset

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
)

// Set matches if any of its globs matches a path.
type Set struct {
	patterns []string
}

// NewSet compiles a set of glob patterns, validating each against
// doublestar's grammar up front so a malformed fileset definition fails
// at startup rather than on the first request.
func NewSet(patterns []string) (*Set, error) {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("globset: invalid pattern %q", p)
		}
	}
	cp := make([]string, len(patterns))
	copy(cp, patterns)
	return &Set{patterns: cp}, nil
}

// Matches reports whether path matches any pattern in the set.
func (s *Set) Matches(path string) bool {
	for _, p := range s.patterns {
		if ok, _ := doublestar.Match(p, path); ok {
			return true
		}
	}
	return false
}

// Filter returns the subset of paths this set matches.
func (s *Set) Filter(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if s.Matches(p) {
			out = append(out, p)
		}
	}
	return out
}

// Complement matches iff Includes matches and Excludes does not. This is
// the matcher every fileset definition compiles to.
type Complement struct {
	Includes *Set
	Excludes *Set
}

// NewComplement compiles an include/exclude glob pair into a single
// matcher. An empty exclude set never excludes anything.
func NewComplement(include, exclude []string) (*Complement, error) {
	inc, err := NewSet(include)
	if err != nil {
		return nil, fmt.Errorf("globset: include: %w", err)
	}
	exc, err := NewSet(exclude)
	if err != nil {
		return nil, fmt.Errorf("globset: exclude: %w", err)
	}
	return &Complement{Includes: inc, Excludes: exc}, nil
}

// Matches implements core.Matcher.
func (c *Complement) Matches(path string) bool {
	return c.Includes.Matches(path) && !c.Excludes.Matches(path)
}

// Filter returns the subset of paths this complement accepts.
func (c *Complement) Filter(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if c.Matches(p) {
			out = append(out, p)
		}
	}
	return out
}
