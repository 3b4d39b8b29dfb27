package build

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/conneroisu/srcanalyze/internal/errors"
	"github.com/conneroisu/srcanalyze/internal/logging"
	"github.com/conneroisu/srcanalyze/internal/types"
)

// ResultCallback receives every task result.
type ResultCallback func(types.TaskResult)

// ResultProcessor folds task results into metrics, the run's error
// collector and the aggregate outcome. Process is safe to call from
// several workers at once.
type ResultProcessor struct {
	// callbacks receive results after they are recorded
	callbacks []ResultCallback
	metrics   *RunMetrics
	collector *errors.Collector
	logger    logging.Logger
	// mu protects callbacks
	mu        sync.RWMutex
	failed    atomic.Bool
	processed atomic.Int64
}

// NewResultProcessor creates a processor. A nil collector or logger is replaced
// by a fresh collector or a no-op logger.
func NewResultProcessor(metrics *RunMetrics, collector *errors.Collector, logger logging.Logger) *ResultProcessor {
	if collector == nil {
		collector = errors.NewCollector()
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &ResultProcessor{
		metrics:   metrics,
		collector: collector,
		logger:    logger,
	}
}

// Process records one result. Failures never stop other tasks.
func (rp *ResultProcessor) Process(result types.TaskResult) {
	rp.processed.Add(1)

	if rp.metrics != nil {
		rp.metrics.RecordResult(result)
	}
	if !result.Succeeded() {
		rp.failed.Store(true)
		err := result.Err
		if err == nil {
			err = errors.NewInternalError(errors.ErrCodeInternalFailure,
				"analysis failed without an error", nil).WithFile(result.Task.SourcePath)
		}
		rp.collector.Add(err)
	}

	rp.invokeCallbacks(result)
}

// AddCallback registers a callback for task results.
func (rp *ResultProcessor) AddCallback(callback ResultCallback) {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	rp.callbacks = append(rp.callbacks, callback)
}

// AllSucceeded reports whether every processed task succeeded.
func (rp *ResultProcessor) AllSucceeded() bool {
	return !rp.failed.Load()
}

// Processed returns the number of results seen.
func (rp *ResultProcessor) Processed() int64 {
	return rp.processed.Load()
}

// invokeCallbacks calls all registered callbacks with the result.
func (rp *ResultProcessor) invokeCallbacks(result types.TaskResult) {
	rp.mu.RLock()
	callbacks := make([]ResultCallback, len(rp.callbacks))
	copy(callbacks, rp.callbacks)
	rp.mu.RUnlock()

	// Call callbacks without holding the lock to avoid deadlocks
	for _, callback := range callbacks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					rp.logger.Error(context.Background(), fmt.Errorf("%v", r),
						"result callback panicked", "file", result.Task.DisplayName)
				}
			}()
			callback(result)
		}()
	}
}
