package forge

import (
	"fmt"
	"strings"
)

// pendingInclude is one include path a fragment must deal with during a
// render. origin is set when the path was inherited unchanged from the
// enclosing fragment and must be reported upward if a descendant claims it.
type pendingInclude struct {
	path   string
	origin string
}

// includeSet is the include bookkeeping of a single render call. It is built
// fresh on every render, so the fragment itself is never mutated.
type includeSet struct {
	pending  []pendingInclude
	consumed []bool
	claimed  []string
}

// adoptIncludes merges a fragment's own include requests with the paths the
// enclosing fragment handed down. An inherited path qualified with alias is
// stripped and claimed; any other inherited path is passed through untouched
// as a candidate for this fragment's own children. An own path with an
// empty segment ("players.", ".contracts") names no relation.
func adoptIncludes(alias string, own []string, scope Scope, kind scopeKind) (*includeSet, error) {
	s := &includeSet{}
	for _, p := range own {
		if !wellFormed(p) {
			return nil, fmt.Errorf("%w: %q on %s", ErrForeignKeyNotFound, p, alias)
		}
		s.add(pendingInclude{path: p})
	}
	if scope.kind != kind {
		return s, nil
	}

	prefix := alias + "."
	for _, p := range scope.includes {
		if rest, ok := strings.CutPrefix(p, prefix); ok && rest != "" {
			s.add(pendingInclude{path: rest})
			s.claim(p)
			continue
		}
		s.add(pendingInclude{path: p, origin: p})
	}
	return s, nil
}

func wellFormed(path string) bool {
	for _, segment := range strings.Split(path, ".") {
		if segment == "" {
			return false
		}
	}
	return true
}

func (s *includeSet) add(p pendingInclude) {
	s.pending = append(s.pending, p)
	s.consumed = append(s.consumed, false)
}

func (s *includeSet) claim(path string) {
	for _, c := range s.claimed {
		if c == path {
			return
		}
	}
	s.claimed = append(s.claimed, path)
}

// local returns the single-segment paths, deduplicated, in request order.
func (s *includeSet) local() []string {
	var out []string
	seen := make(map[string]bool)
	for _, p := range s.pending {
		if strings.Contains(p.path, ".") || seen[p.path] {
			continue
		}
		seen[p.path] = true
		out = append(out, p.path)
	}
	return out
}

// scope returns what the next nested fragment inherits: every dotted path no
// earlier nested fragment has claimed.
func (s *includeSet) scope(kind scopeKind) Scope {
	var paths []string
	for i, p := range s.pending {
		if s.consumed[i] || !strings.Contains(p.path, ".") {
			continue
		}
		paths = append(paths, p.path)
	}
	return Scope{kind: kind, includes: paths}
}

// absorb marks the paths a nested fragment claimed so no later sibling sees
// them, and forwards claims on passed-through paths to the enclosing fragment.
func (s *includeSet) absorb(claimed []string) {
	for _, c := range claimed {
		for i, p := range s.pending {
			if s.consumed[i] || p.path != c {
				continue
			}
			s.consumed[i] = true
			if p.origin != "" {
				s.claim(p.origin)
			}
		}
	}
}
