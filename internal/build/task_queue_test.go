package build

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/conneroisu/srcanalyze/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func queueTask(name string) types.AnalysisTask {
	return types.NewAnalysisTask("analyzer", []string{name, "/src", "/out"}, name, name+".xmi", types.KindCppSource, "")
}

func TestTaskQueueFIFO(t *testing.T) {
	q := NewTaskQueue()
	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, q.Enqueue(queueTask(name)))
	}
	q.Close()

	var got []string
	for {
		task, ok := q.Dequeue()
		if !ok {
			break
		}
		got = append(got, task.SourcePath)
		q.Done()
	}
	assert.Equal(t, []string{"a", "b", "c"}, got)

	stats := q.GetQueueStats()
	assert.Equal(t, 3, stats.Enqueued)
	assert.Equal(t, 0, stats.Outstanding)
	assert.True(t, stats.Closed)
}

func TestTaskQueueClosedRejects(t *testing.T) {
	q := NewTaskQueue()
	q.Close()
	assert.ErrorIs(t, q.Enqueue(queueTask("a")), ErrQueueClosed)
}

func TestTaskQueueDequeueBlocksUntilEnqueue(t *testing.T) {
	q := NewTaskQueue()
	got := make(chan string, 1)

	go func() {
		task, ok := q.Dequeue()
		if ok {
			got <- task.SourcePath
		}
	}()

	select {
	case <-got:
		t.Fatal("dequeue returned before any task was enqueued")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, q.Enqueue(queueTask("late")))
	select {
	case name := <-got:
		assert.Equal(t, "late", name)
	case <-time.After(time.Second):
		t.Fatal("dequeue did not wake up")
	}
}

func TestTaskQueueWaitIncludesLateTasks(t *testing.T) {
	q := NewTaskQueue()
	var processed atomic.Int64

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				_, ok := q.Dequeue()
				if !ok {
					return
				}
				time.Sleep(time.Millisecond)
				processed.Add(1)
				q.Done()
			}
		}()
	}

	for i := 0; i < 20; i++ {
		require.NoError(t, q.Enqueue(queueTask(fmt.Sprintf("f%d", i))))
		if i == 10 {
			time.Sleep(5 * time.Millisecond)
		}
	}
	q.Close()
	q.Wait()
	assert.Equal(t, int64(20), processed.Load())
	wg.Wait()
}

type recordingRunner struct {
	mu    sync.Mutex
	seen  []string
	fail  map[string]bool
	panic map[string]bool
}

func (r *recordingRunner) Run(_ context.Context, task types.AnalysisTask) types.TaskResult {
	r.mu.Lock()
	r.seen = append(r.seen, task.SourcePath)
	r.mu.Unlock()

	if r.panic[task.SourcePath] {
		panic("boom")
	}
	if r.fail[task.SourcePath] {
		return types.TaskResult{Task: task, Spawned: true, ExitCode: 1, Failure: types.FailureExit}
	}
	return types.TaskResult{Task: task, Spawned: true}
}

func (r *recordingRunner) sorted() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]string(nil), r.seen...)
	sort.Strings(out)
	return out
}

func TestWorkerCount(t *testing.T) {
	assert.Equal(t, 1, WorkerCount(8, false))
	assert.Equal(t, 1, WorkerCount(0, false))
	assert.Equal(t, 3, WorkerCount(3, true))
	assert.GreaterOrEqual(t, WorkerCount(0, true), 1)
}

func TestWorkerManagerDrainsQueue(t *testing.T) {
	for _, workers := range []int{1, 4} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			runner := &recordingRunner{fail: map[string]bool{"f3": true}, panic: map[string]bool{"f5": true}}
			processor := NewResultProcessor(NewRunMetrics(), nil, nil)
			wm := NewWorkerManager(workers, runner, processor)

			q := NewTaskQueue()
			wm.StartWorkers(context.Background(), q)

			var want []string
			for i := 0; i < 10; i++ {
				name := fmt.Sprintf("f%d", i)
				want = append(want, name)
				require.NoError(t, q.Enqueue(queueTask(name)))
			}
			q.Close()
			require.NoError(t, wm.Wait())

			sort.Strings(want)
			assert.Equal(t, want, runner.sorted())
			assert.Equal(t, int64(10), processor.Processed())
			assert.False(t, processor.AllSucceeded())

			stats := wm.GetWorkerStats()
			assert.Equal(t, workers, stats.Workers)
			assert.Equal(t, int64(10), stats.CompletedTasks)
			assert.Equal(t, 0, stats.BusyWorkers)

			snap := processor.metrics.Snapshot()
			assert.Equal(t, 8, snap.Succeeded)
			assert.Equal(t, 1, snap.ExitFailures)
			assert.Equal(t, 1, snap.LaunchFailures)
		})
	}
}

func TestResultProcessorCallbacks(t *testing.T) {
	processor := NewResultProcessor(nil, nil, nil)

	var calls atomic.Int64
	processor.AddCallback(func(types.TaskResult) { calls.Add(1) })
	processor.AddCallback(func(types.TaskResult) { panic("callback failure") })

	processor.Process(types.TaskResult{Task: queueTask("a"), Spawned: true})
	assert.Equal(t, int64(1), calls.Load())
	assert.True(t, processor.AllSucceeded())

	processor.Process(types.TaskResult{Task: queueTask("b"), Failure: types.FailureLaunch})
	assert.False(t, processor.AllSucceeded())
	assert.Equal(t, 1, processor.collector.Len())
	assert.Equal(t, int64(2), calls.Load())
	assert.Equal(t, int64(2), processor.Processed())
}
