package build

import (
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/conneroisu/srcanalyze/internal/errors"
)

// DefaultArtifactExt is the extension of analysis artifacts when none is configured.
const DefaultArtifactExt = ".xmi"

// ArtifactPath derives the artifact location for srcPath. The artifact lives
// under analysisDir at the same relative directory as the source, named after
// the source base name with every '.' replaced by '_' plus ext. Distinct
// sources such as a.b.cpp and a_b.cpp share a name; the Scheduler rejects
// the later one.
func ArtifactPath(srcRoot, analysisDir, srcPath, ext string) (string, error) {
	if ext == "" {
		ext = DefaultArtifactExt
	}

	rel, err := filepath.Rel(srcRoot, srcPath)
	if err != nil {
		return "", errors.NewIOError(errors.ErrCodeArtifactPath,
			"cannot derive artifact path", err).WithFile(srcPath)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.NewIOError(errors.ErrCodeArtifactPath,
			"source is outside the source root", nil).WithFile(srcPath)
	}

	dir, base := filepath.Split(rel)
	name := strings.ReplaceAll(base, ".", "_") + ext
	return filepath.Join(analysisDir, dir, name), nil
}

// StalenessOracle decides whether an artifact must be regenerated.
type StalenessOracle interface {
	IsStale(sourcePath, outputPath string) (bool, error)
}

// MTimeOracle is a pure modification-time StalenessOracle.
type MTimeOracle struct {
	stat  func(string) (os.FileInfo, error)
	stats atomic.Int64
}

// NewMTimeOracle creates an oracle backed by os.Stat.
func NewMTimeOracle() *MTimeOracle {
	return &MTimeOracle{stat: os.Stat}
}

// IsStale reports whether outputPath is missing or older than sourcePath.
// A source that cannot be stat'ed yields an io error and must be skipped.
func (o *MTimeOracle) IsStale(sourcePath, outputPath string) (bool, error) {
	o.stats.Add(1)
	srcInfo, err := o.stat(sourcePath)
	if err != nil {
		return false, errors.NewIOError(errors.ErrCodeStatFailed,
			"cannot determine staleness", err).WithFile(sourcePath)
	}

	o.stats.Add(1)
	outInfo, err := o.stat(outputPath)
	if err != nil {
		// Missing or unreadable artifacts are regenerated.
		return true, nil
	}

	return outInfo.ModTime().Before(srcInfo.ModTime()), nil
}

// StatCalls returns the number of stat calls made so far.
func (o *MTimeOracle) StatCalls() int64 {
	return o.stats.Load()
}
