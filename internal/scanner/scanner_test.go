package scanner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/conneroisu/srcanalyze/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTree creates files (with empty content) under root.
func writeTree(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		path := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte("// "+f+"\n"), 0644))
	}
}

func TestSourceScannerWalk(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root,
		"a.cpp",
		"b.java",
		"docs/readme.md",
		"include/a.h",
		"vendor/lib/v.cpp",
		"src/test/t.cpp",
		"src/testament/keep.cpp",
	)

	scanner := NewSourceScanner(root, NewExclusionSet(root, []string{"vendor", "test"}))

	var got []SourceFile
	stats, err := scanner.Walk(context.Background(), func(f SourceFile) error {
		got = append(got, f)
		return nil
	})
	require.NoError(t, err)

	var rels []string
	for _, f := range got {
		rels = append(rels, filepath.ToSlash(f.RelPath))
		assert.Equal(t, filepath.Join(root, f.RelPath), f.Path)
	}
	assert.Equal(t, []string{"a.cpp", "b.java", "include/a.h", "src/testament/keep.cpp"}, rels)

	assert.Equal(t, types.KindCppSource, got[0].Kind)
	assert.Equal(t, types.KindJavaSource, got[1].Kind)
	assert.Equal(t, types.KindCppHeader, got[2].Kind)

	assert.Equal(t, 2, stats.ExcludedDirs)
	assert.Equal(t, 4, stats.Analyzable)
	assert.Equal(t, 1, stats.Unsupported)
}

func TestSourceScannerExcludedFile(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "gen.cpp", "keep.cpp")

	scanner := NewSourceScanner(root, NewExclusionSet(root, []string{"./gen.cpp"}))
	var count int
	stats, err := scanner.Walk(context.Background(), func(SourceFile) error {
		count++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, 1, stats.ExcludedFiles)
}

func TestSourceScannerMissingRoot(t *testing.T) {
	scanner := NewSourceScanner(filepath.Join(t.TempDir(), "missing"), ExclusionSet{})
	_, err := scanner.Walk(context.Background(), func(SourceFile) error { return nil })
	assert.Error(t, err)
}

func TestSourceScannerRootIsFile(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "a.cpp")
	scanner := NewSourceScanner(filepath.Join(root, "a.cpp"), ExclusionSet{})
	_, err := scanner.Walk(context.Background(), func(SourceFile) error { return nil })
	assert.Error(t, err)
}

func TestSourceScannerVisitErrorStopsWalk(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "a.cpp", "b.cpp")

	stop := errors.New("stop")
	scanner := NewSourceScanner(root, ExclusionSet{})
	var count int
	_, err := scanner.Walk(context.Background(), func(SourceFile) error {
		count++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, count)
}

func TestSourceScannerCancelled(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "a.cpp")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	scanner := NewSourceScanner(root, ExclusionSet{})
	_, err := scanner.Walk(ctx, func(SourceFile) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
