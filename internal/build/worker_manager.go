package build

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/conneroisu/srcanalyze/internal/errors"
	"github.com/conneroisu/srcanalyze/internal/types"
)

// WorkerCount resolves the number of workers for a run. Disabling
// concurrency always yields exactly one worker; otherwise a positive
// configured value wins over the hardware thread count.
func WorkerCount(configured int, concurrency bool) int {
	if !concurrency {
		return 1
	}
	if configured > 0 {
		return configured
	}
	if n := runtime.NumCPU(); n > 0 {
		return n
	}
	return 1
}

// WorkerManager runs a fixed pool of workers draining a TaskQueue.
type WorkerManager struct {
	workers   int
	runner    TaskRunner
	processor *ResultProcessor
	group     *errgroup.Group
	// mu protects group and started
	mu        sync.Mutex
	started   bool
	completed atomic.Int64
	busy      atomic.Int64
	totalTime atomic.Int64
}

// NewWorkerManager creates a manager with the given pool size.
func NewWorkerManager(workers int, runner TaskRunner, processor *ResultProcessor) *WorkerManager {
	if workers < 1 {
		workers = 1
	}
	return &WorkerManager{
		workers:   workers,
		runner:    runner,
		processor: processor,
	}
}

// StartWorkers launches the pool. Workers exit once queue is closed and empty.
func (wm *WorkerManager) StartWorkers(ctx context.Context, queue *TaskQueue) {
	wm.mu.Lock()
	defer wm.mu.Unlock()

	if wm.started {
		return
	}
	wm.started = true
	wm.group = new(errgroup.Group)
	for i := 0; i < wm.workers; i++ {
		wm.group.Go(func() error {
			wm.worker(ctx, queue)
			return nil
		})
	}
}

// Wait blocks until every worker has exited.
func (wm *WorkerManager) Wait() error {
	wm.mu.Lock()
	group := wm.group
	wm.mu.Unlock()

	if group == nil {
		return nil
	}
	return group.Wait()
}

// worker is the main worker loop. Tasks are never retried.
func (wm *WorkerManager) worker(ctx context.Context, queue *TaskQueue) {
	for {
		task, ok := queue.Dequeue()
		if !ok {
			return
		}
		wm.busy.Add(1)
		result := wm.execute(ctx, task)
		if wm.processor != nil {
			wm.processor.Process(result)
		}
		wm.busy.Add(-1)
		wm.completed.Add(1)
		wm.totalTime.Add(int64(result.Duration))
		queue.Done()
	}
}

// execute runs one task, converting a runner panic into a failed result so
// the pool keeps draining.
func (wm *WorkerManager) execute(ctx context.Context, task types.AnalysisTask) (result types.TaskResult) {
	defer func() {
		if r := recover(); r != nil {
			result = types.TaskResult{
				Task:     task,
				ExitCode: -1,
				Failure:  types.FailureLaunch,
				Err: errors.NewInternalError(errors.ErrCodeInternalFailure,
					fmt.Sprintf("runner panicked: %v", r), nil).WithFile(task.SourcePath),
			}
		}
	}()
	return wm.runner.Run(ctx, task)
}

// GetWorkerStats returns current worker pool statistics.
func (wm *WorkerManager) GetWorkerStats() WorkerStats {
	completed := wm.completed.Load()
	stats := WorkerStats{
		Workers:        wm.workers,
		BusyWorkers:    int(wm.busy.Load()),
		CompletedTasks: completed,
	}
	if completed > 0 {
		stats.AverageTaskTime = time.Duration(wm.totalTime.Load() / completed)
	}
	return stats
}

// WorkerStats provides worker pool performance metrics.
type WorkerStats struct {
	Workers         int
	BusyWorkers     int
	CompletedTasks  int64
	AverageTaskTime time.Duration
}
