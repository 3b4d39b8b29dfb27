//go:build property
// +build property

package build

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestStalenessProperties tests the timestamp oracle decision rule
func TestStalenessProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(1234)
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)
	dir := t.TempDir()
	base := time.Now().Add(-24 * time.Hour).Truncate(time.Second)
	var n int

	write := func(path string, mtime time.Time) bool {
		if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
			return false
		}
		return os.Chtimes(path, mtime, mtime) == nil
	}

	// Property: a missing artifact is always stale
	properties.Property("missing artifact is stale", prop.ForAll(
		func(offset int) bool {
			n++
			src := filepath.Join(dir, fmt.Sprintf("m%d.cpp", n))
			if !write(src, base.Add(time.Duration(offset)*time.Second)) {
				return false
			}
			stale, err := NewMTimeOracle().IsStale(src, src+".missing.xmi")
			return err == nil && stale
		},
		gen.IntRange(-3600, 3600),
	))

	// Property: stale exactly when the artifact is strictly older
	properties.Property("stale iff artifact older than source", prop.ForAll(
		func(srcOffset, outOffset int) bool {
			n++
			src := filepath.Join(dir, fmt.Sprintf("s%d.cpp", n))
			out := filepath.Join(dir, fmt.Sprintf("s%d_cpp.xmi", n))
			if !write(src, base.Add(time.Duration(srcOffset)*time.Second)) ||
				!write(out, base.Add(time.Duration(outOffset)*time.Second)) {
				return false
			}
			stale, err := NewMTimeOracle().IsStale(src, out)
			return err == nil && stale == (outOffset < srcOffset)
		},
		gen.IntRange(-3600, 3600),
		gen.IntRange(-3600, 3600),
	))

	// Property: artifact paths stay under the analysis directory
	properties.Property("artifact path is rooted in analysis dir", prop.ForAll(
		func(parts []string) bool {
			if len(parts) == 0 {
				return true
			}
			src := filepath.Join(append([]string{"/src"}, parts...)...) + ".cpp"
			got, err := ArtifactPath("/src", "/out", src, "")
			if err != nil {
				return false
			}
			rel, err := filepath.Rel("/out", got)
			return err == nil && rel != ".." && filepath.Ext(got) == DefaultArtifactExt &&
				filepath.Base(got) == parts[len(parts)-1]+"_cpp.xmi"
		},
		gen.SliceOfN(3, gen.Identifier()),
	))

	properties.TestingRun(t)
}
