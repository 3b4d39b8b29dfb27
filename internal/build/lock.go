package build

import (
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/conneroisu/srcanalyze/internal/errors"
)

// LockFileName is the lock file created inside the analysis directory.
const LockFileName = ".srcanalyze.lock"

// RunLock is an exclusive advisory lock on an analysis directory. Two runs
// writing the same artifacts would race on identical paths.
type RunLock struct {
	fl *flock.Flock
}

// AcquireRunLock creates analysisDir if needed and takes its lock without
// blocking. A lock held by another run is an error.
func AcquireRunLock(analysisDir string) (*RunLock, error) {
	if err := os.MkdirAll(analysisDir, 0755); err != nil {
		return nil, errors.NewIOError(errors.ErrCodeConfigInvalid,
			"cannot create analysis directory", err).WithFile(analysisDir)
	}

	path := filepath.Join(analysisDir, LockFileName)
	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeLocked,
			"cannot lock analysis directory", err).WithFile(path)
	}
	if !locked {
		return nil, errors.NewIOError(errors.ErrCodeLocked,
			"analysis directory is in use by another run", nil).WithFile(path)
	}
	return &RunLock{fl: fl}, nil
}

// Path returns the lock file path.
func (l *RunLock) Path() string {
	return l.fl.Path()
}

// Release unlocks the analysis directory.
func (l *RunLock) Release() error {
	return l.fl.Unlock()
}
