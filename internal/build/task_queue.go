// Package build provides the incremental analysis pipeline: staleness
// detection, command synthesis, the task queue and worker pool that execute
// external analyzers, and the Scheduler that orchestrates a run.
package build

import (
	"sync"

	"github.com/conneroisu/srcanalyze/internal/types"
)

// TaskQueue is an unbounded FIFO of analysis tasks with a single producer
// and any number of consumers. Consumers block while the queue is empty and
// still open; once closed and drained, Dequeue reports false.
type TaskQueue struct {
	mu   sync.Mutex
	cond *sync.Cond
	// tasks waiting to be claimed by a worker
	tasks []types.AnalysisTask
	// outstanding counts tasks enqueued but not yet marked Done
	outstanding int
	// enqueued counts every task ever accepted
	enqueued int
	closed   bool
}

// NewTaskQueue creates an empty, open queue.
func NewTaskQueue() *TaskQueue {
	q := &TaskQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends task. It never blocks.
func (q *TaskQueue) Enqueue(task types.AnalysisTask) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	q.tasks = append(q.tasks, task)
	q.outstanding++
	q.enqueued++
	q.cond.Broadcast()
	return nil
}

// Dequeue claims the next task, blocking while the queue is empty and open.
// It returns false once the queue is closed and empty.
func (q *TaskQueue) Dequeue() (types.AnalysisTask, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.tasks) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.tasks) == 0 {
		return types.AnalysisTask{}, false
	}

	task := q.tasks[0]
	q.tasks[0] = types.AnalysisTask{}
	q.tasks = q.tasks[1:]
	return task, true
}

// Done marks one claimed task as fully processed.
func (q *TaskQueue) Done() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.outstanding > 0 {
		q.outstanding--
	}
	q.cond.Broadcast()
}

// Close stops accepting tasks. Tasks already queued are still delivered.
func (q *TaskQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.cond.Broadcast()
}

// Wait blocks until every enqueued task has been marked Done, including
// tasks enqueued while waiting.
func (q *TaskQueue) Wait() {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.outstanding > 0 {
		q.cond.Wait()
	}
}

// GetQueueStats returns current queue statistics for monitoring.
func (q *TaskQueue) GetQueueStats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()

	return QueueStats{
		Pending:     len(q.tasks),
		Outstanding: q.outstanding,
		Enqueued:    q.enqueued,
		Closed:      q.closed,
	}
}

// QueueStats provides queue health information.
type QueueStats struct {
	Pending     int
	Outstanding int
	Enqueued    int
	Closed      bool
}

// ErrQueueClosed is returned when enqueueing onto a closed queue.
var ErrQueueClosed = &QueueError{Code: "QUEUE_CLOSED", Message: "task queue has been closed"}

// QueueError represents an error in queue operations.
type QueueError struct {
	Code    string
	Message string
}

func (qe *QueueError) Error() string {
	return qe.Message
}
