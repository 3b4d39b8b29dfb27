package errors

import (
	"errors"
	"sync"

	"github.com/hashicorp/go-multierror"
)

// Collector accumulates per-file failures from concurrent workers.
type Collector struct {
	errs  *multierror.Error
	mutex sync.RWMutex
}

// NewCollector creates a new, empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Add records a failure; nil errors are ignored.
func (c *Collector) Add(err error) {
	if err == nil {
		return
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.errs = multierror.Append(c.errs, err)
}

// Len returns the number of recorded failures.
func (c *Collector) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	if c.errs == nil {
		return 0
	}
	return len(c.errs.Errors)
}

// HasErrors returns true if there are any errors
func (c *Collector) HasErrors() bool {
	return c.Len() > 0
}

// Errors returns a copy of the recorded failures.
func (c *Collector) Errors() []error {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	if c.errs == nil {
		return nil
	}
	result := make([]error, len(c.errs.Errors))
	copy(result, c.errs.Errors)
	return result
}

// ErrorsByFile returns failures recorded against a specific source file.
func (c *Collector) ErrorsByFile(file string) []error {
	var fileErrors []error
	for _, err := range c.Errors() {
		var ae *AnalysisError
		if errors.As(err, &ae) && ae.FilePath == file {
			fileErrors = append(fileErrors, err)
		}
	}
	return fileErrors
}

// Err returns the combined error, or nil when nothing failed.
func (c *Collector) Err() error {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.errs.ErrorOrNil()
}
