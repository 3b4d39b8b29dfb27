package scanner

import (
	"path/filepath"
	"strings"
)

// exclusion is one configured directory fragment split into path segments.
// An anchored fragment must match from the source root; a floating one may
// match at any depth.
type exclusion struct {
	segments []string
	anchored bool
}

// ExclusionSet is the ordered, read-only set of excluded directory fragments
// for one run. It is safe for concurrent use.
type ExclusionSet struct {
	fragments []exclusion
}

// NewExclusionSet builds an ExclusionSet for a source root.
//
// Fragments starting with "./" and absolute fragments inside root are
// anchored at root. Absolute fragments outside root can never match and are
// dropped. Everything else floats.
func NewExclusionSet(root string, dirs []string) ExclusionSet {
	var set ExclusionSet
	absRoot, rootErr := filepath.Abs(root)

	for _, dir := range dirs {
		dir = strings.TrimSpace(dir)
		if dir == "" {
			continue
		}
		anchored := false
		switch {
		case filepath.IsAbs(dir):
			if rootErr != nil {
				continue
			}
			rel, err := filepath.Rel(absRoot, filepath.Clean(dir))
			if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
				continue
			}
			dir = rel
			anchored = true
		case strings.HasPrefix(filepath.ToSlash(dir), "./"):
			anchored = true
		}

		segments := splitSegments(dir)
		if len(segments) == 0 {
			continue
		}
		set.fragments = append(set.fragments, exclusion{segments: segments, anchored: anchored})
	}
	return set
}

// Len returns the number of active fragments.
func (s ExclusionSet) Len() int {
	return len(s.fragments)
}

// IsExcluded reports whether relPath, relative to the source root, lies under
// any excluded directory. Matching is by whole path segment, so "test" does
// not exclude "testament". It performs no I/O.
func (s ExclusionSet) IsExcluded(relPath string) bool {
	return IsExcluded(relPath, s)
}

// IsExcluded reports whether relPath falls under any fragment of set.
func IsExcluded(relPath string, set ExclusionSet) bool {
	if len(set.fragments) == 0 {
		return false
	}
	segments := splitSegments(relPath)
	for _, frag := range set.fragments {
		if frag.anchored {
			if hasSegmentPrefix(segments, frag.segments) {
				return true
			}
			continue
		}
		if containsSegments(segments, frag.segments) {
			return true
		}
	}
	return false
}

func splitSegments(path string) []string {
	parts := strings.Split(filepath.ToSlash(path), "/")
	segments := parts[:0]
	for _, p := range parts {
		if p == "" || p == "." {
			continue
		}
		segments = append(segments, p)
	}
	return segments
}

func hasSegmentPrefix(path, prefix []string) bool {
	if len(prefix) > len(path) {
		return false
	}
	for i := range prefix {
		if path[i] != prefix[i] {
			return false
		}
	}
	return true
}

func containsSegments(path, frag []string) bool {
	for start := 0; start+len(frag) <= len(path); start++ {
		if hasSegmentPrefix(path[start:], frag) {
			return true
		}
	}
	return false
}
