// Package scanner provides source discovery for the analysis scheduler.
//
// The scanner traverses a source tree on the calling goroutine, prunes
// excluded directories before descending into them, and hands every
// analyzable file to a visitor together with its classification. Paths are
// visited in lexical order so that repeated walks over an unchanged tree
// produce the same sequence.
package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/conneroisu/srcanalyze/internal/types"
)

// SourceFile is one analyzable file found during a walk.
type SourceFile struct {
	// Path is the file path as produced by the walk (root joined with RelPath)
	Path string
	// RelPath is the path relative to the source root
	RelPath string
	// Kind is the classification that routes the file to an analyzer
	Kind types.SourceKind
}

// VisitFunc receives each analyzable file. Returning an error stops the walk.
type VisitFunc func(file SourceFile) error

// WalkStats counts what a walk saw.
type WalkStats struct {
	Directories      int
	Files            int
	ExcludedDirs     int
	ExcludedFiles    int
	Unsupported      int
	Analyzable       int
	UnreadableDirs   int
	UnreadableErrors []error
}

// SourceScanner walks a source root applying an ExclusionSet.
type SourceScanner struct {
	root       string
	exclusions ExclusionSet
}

// NewSourceScanner creates a scanner for root.
func NewSourceScanner(root string, exclusions ExclusionSet) *SourceScanner {
	return &SourceScanner{
		root:       filepath.Clean(root),
		exclusions: exclusions,
	}
}

// Root returns the cleaned source root.
func (s *SourceScanner) Root() string {
	return s.root
}

// Walk traverses the source root and calls visit for each analyzable file.
//
// Exclusion is tested on every directory and file before anything else, so
// an excluded subtree is never read. Unreadable directories are counted and
// skipped; the walk continues. The returned error is non-nil when the root
// itself cannot be walked, when ctx is cancelled, or when visit fails.
func (s *SourceScanner) Walk(ctx context.Context, visit VisitFunc) (WalkStats, error) {
	var stats WalkStats

	info, err := os.Stat(s.root)
	if err != nil {
		return stats, fmt.Errorf("source root %s: %w", s.root, err)
	}
	if !info.IsDir() {
		return stats, fmt.Errorf("source root %s is not a directory", s.root)
	}

	err = filepath.WalkDir(s.root, func(path string, d fs.DirEntry, walkErr error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		rel, relErr := filepath.Rel(s.root, path)
		if relErr != nil {
			return relErr
		}

		if walkErr != nil {
			// Root failures are fatal; anything below it is skipped.
			if rel == "." {
				return walkErr
			}
			stats.UnreadableDirs++
			stats.UnreadableErrors = append(stats.UnreadableErrors, walkErr)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if rel == "." {
				stats.Directories++
				return nil
			}
			if s.exclusions.IsExcluded(rel) {
				stats.ExcludedDirs++
				return filepath.SkipDir
			}
			stats.Directories++
			return nil
		}

		stats.Files++
		if s.exclusions.IsExcluded(rel) {
			stats.ExcludedFiles++
			return nil
		}

		kind := Classify(path)
		if !kind.Analyzable() {
			stats.Unsupported++
			return nil
		}

		stats.Analyzable++
		return visit(SourceFile{Path: path, RelPath: rel, Kind: kind})
	})

	return stats, err
}
