package build

import (
	"context"
	stderrors "errors"
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/conneroisu/srcanalyze/internal/components"
	"github.com/conneroisu/srcanalyze/internal/errors"
	"github.com/conneroisu/srcanalyze/internal/logging"
	"github.com/conneroisu/srcanalyze/internal/scanner"
	"github.com/conneroisu/srcanalyze/internal/types"
)

// State is a Scheduler lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateTraversing
	StateDraining
	StateDone
)

// String returns the string representation of the State
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTraversing:
		return "traversing"
	case StateDraining:
		return "draining"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Options configures one Scheduler run.
type Options struct {
	SourceRoot  string
	AnalysisDir string
	// Workers is the pool size; 0 means one per hardware thread
	Workers     int
	// Concurrency false forces exactly one worker
	Concurrency bool
	ArtifactExt string
	// DryRun synthesizes tasks without spawning processes or taking the lock
	DryRun      bool
	// Env is appended to the environment of every analyzer process
	Env         []string
	Build       *components.BuildConfiguration
	Resolver    components.Resolver
	Logger      logging.Logger
	Console     *logging.Console
	// Runner replaces the ProcessRunner, mainly for tests
	Runner      TaskRunner
	// OnResult, if set, receives every task result as workers finish
	OnResult    ResultCallback
}

// RunResult is the outcome of a run.
type RunResult struct {
	// Success is the AND of the traversal outcome and every task outcome
	Success bool
	// TraversalOK is false when the walk or any per-file gate failed
	TraversalOK bool
	// Err aggregates every per-file failure
	Err   error
	Stats RunStats
	// Tasks lists every scheduled task in enqueue order
	Tasks []types.AnalysisTask
}

// Scheduler walks a source tree and analyzes every stale file. A Scheduler
// runs exactly once: Idle -> Traversing -> Draining -> Done.
type Scheduler struct {
	opts        Options
	state       atomic.Int32
	oracle      *MTimeOracle
	synthesizer *Synthesizer
	resolver    components.Resolver
	exclusions  scanner.ExclusionSet
	metrics     *RunMetrics
	collector   *errors.Collector
	logger      logging.Logger
	console     *logging.Console
	workers     int
	// claimed maps each artifact to the source that produces it this run
	claimed     map[string]string
}

// NewScheduler validates opts and creates an idle scheduler. Errors returned
// here are configuration errors found before traversal.
func NewScheduler(opts Options) (*Scheduler, error) {
	if opts.SourceRoot == "" {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "source root is required", nil)
	}
	if opts.AnalysisDir == "" {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "analysis directory is required", nil)
	}

	srcRoot, err := filepath.Abs(opts.SourceRoot)
	if err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "invalid source root", err)
	}
	analysisDir, err := filepath.Abs(opts.AnalysisDir)
	if err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "invalid analysis directory", err)
	}
	opts.SourceRoot = filepath.Clean(srcRoot)
	opts.AnalysisDir = filepath.Clean(analysisDir)

	if opts.Build == nil {
		opts.Build = &components.BuildConfiguration{}
	}
	if opts.ArtifactExt == "" {
		opts.ArtifactExt = DefaultArtifactExt
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNopLogger()
	}
	if opts.Console == nil {
		opts.Console = logging.NewConsole(nil, nil)
	}
	if opts.Resolver == nil {
		opts.Resolver = components.NewConfigResolver(opts.SourceRoot, opts.Build)
	}

	s := &Scheduler{
		opts:        opts,
		oracle:      NewMTimeOracle(),
		synthesizer: NewSynthesizer(opts.Build, opts.SourceRoot, opts.AnalysisDir),
		resolver:    opts.Resolver,
		exclusions:  scanner.NewExclusionSet(opts.SourceRoot, opts.Build.ExcludeDirs),
		metrics:     NewRunMetrics(),
		collector:   errors.NewCollector(),
		logger:      opts.Logger.WithComponent("scheduler"),
		console:     opts.Console,
		workers:     WorkerCount(opts.Workers, opts.Concurrency),
		claimed:     make(map[string]string),
	}
	return s, nil
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// Metrics returns the run metrics.
func (s *Scheduler) Metrics() *RunMetrics {
	return s.metrics
}

// Workers returns the resolved pool size.
func (s *Scheduler) Workers() int {
	return s.workers
}

// Run performs the analysis. The returned error is non-nil only when the run
// could not start; per-file failures are reported through RunResult. Once
// traversal begins the run always drains every enqueued task, even if ctx is
// cancelled, which only stops the walk early.
func (s *Scheduler) Run(ctx context.Context) (*RunResult, error) {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateTraversing)) {
		return nil, errors.NewInternalError(errors.ErrCodeSchedulerState,
			fmt.Sprintf("scheduler already %s", s.State()), nil)
	}
	perf := logging.StartOperation(s.logger, "analysis")

	if !s.opts.DryRun {
		lock, err := AcquireRunLock(s.opts.AnalysisDir)
		if err != nil {
			s.state.Store(int32(StateDone))
			perf.EndWithError(ctx, err)
			return nil, err
		}
		defer func() {
			if err := lock.Release(); err != nil {
				s.logger.Warn(ctx, err, "failed to release run lock", "path", lock.Path())
			}
		}()
	}

	s.logger.Info(ctx, "analysis started",
		"source_root", s.opts.SourceRoot,
		"analysis_dir", s.opts.AnalysisDir,
		"workers", s.workers,
		"dry_run", s.opts.DryRun)

	queue := NewTaskQueue()
	processor := NewResultProcessor(s.metrics, s.collector, s.logger)
	if s.opts.OnResult != nil {
		processor.AddCallback(s.opts.OnResult)
	}

	var pool *WorkerManager
	if !s.opts.DryRun {
		runner := s.opts.Runner
		if runner == nil {
			runner = NewProcessRunner(s.console, s.opts.Logger, WithEnv(s.opts.Env))
		}
		pool = NewWorkerManager(s.workers, runner, processor)
		pool.StartWorkers(context.WithoutCancel(ctx), queue)
	}

	var tasks []types.AnalysisTask
	traversalOK := true

	walker := scanner.NewSourceScanner(s.opts.SourceRoot, s.exclusions)
	walkStats, walkErr := walker.Walk(ctx, func(file scanner.SourceFile) error {
		task, ok := s.prepare(ctx, file)
		if !ok {
			traversalOK = false
			return nil
		}
		if task == nil {
			return nil
		}
		if err := queue.Enqueue(*task); err != nil {
			return err
		}
		s.metrics.RecordScheduled(task.Kind)
		tasks = append(tasks, *task)
		return nil
	})
	s.metrics.RecordWalk(walkStats)

	if walkErr != nil {
		traversalOK = false
		s.collector.Add(errors.NewIOError(errors.ErrCodeWalkFailed,
			"source traversal failed", walkErr).WithFile(s.opts.SourceRoot))
		s.logger.Error(ctx, walkErr, "source traversal failed")
	}
	if walkStats.UnreadableDirs > 0 {
		traversalOK = false
		for _, err := range walkStats.UnreadableErrors {
			s.collector.Add(errors.NewIOError(errors.ErrCodeWalkFailed,
				"unreadable directory", err))
		}
	}

	s.state.Store(int32(StateDraining))
	queue.Close()
	if pool != nil {
		queue.Wait()
		if err := pool.Wait(); err != nil {
			s.collector.Add(err)
			traversalOK = false
		}
	}

	elapsed := perf.End(ctx)
	s.metrics.RecordDuration(elapsed)
	s.state.Store(int32(StateDone))

	result := &RunResult{
		Success:     traversalOK && processor.AllSucceeded(),
		TraversalOK: traversalOK,
		Err:         s.collector.Err(),
		Stats:       s.metrics.Snapshot(),
		Tasks:       tasks,
	}

	fields := []interface{}{
		"success", result.Success,
		"scheduled", result.Stats.Scheduled,
		"fresh", result.Stats.Fresh,
		"failed", result.Stats.Failed(),
		"enqueued", queue.GetQueueStats().Enqueued,
		"processed", processor.Processed(),
		"duration", elapsed,
	}
	if pool != nil {
		ws := pool.GetWorkerStats()
		fields = append(fields,
			"busy_workers", ws.BusyWorkers,
			"completed", ws.CompletedTasks,
			"avg_task_time", ws.AverageTaskTime)
	}
	s.logger.Info(ctx, "analysis finished", fields...)
	return result, nil
}

// prepare gates one file: artifact ownership, staleness, component settings
// and synthesis.
// It returns (nil, true) for fresh files and (nil, false) for failures,
// which are recorded and skipped.
func (s *Scheduler) prepare(ctx context.Context, file scanner.SourceFile) (*types.AnalysisTask, bool) {
	artifact, err := ArtifactPath(s.opts.SourceRoot, s.opts.AnalysisDir, file.Path, s.opts.ArtifactExt)
	if err != nil {
		s.fail(ctx, err, "cannot name artifact", file)
		s.metrics.RecordSynthesisFailure()
		return nil, false
	}
	if owner, taken := s.claimed[artifact]; taken {
		err := errors.NewConfigError(errors.ErrCodeArtifactClash,
			fmt.Sprintf("artifact %s is already produced by %s", artifact, owner), nil).WithFile(file.Path)
		s.fail(ctx, err, "artifact name collision", file)
		s.metrics.RecordSynthesisFailure()
		return nil, false
	}
	s.claimed[artifact] = file.Path

	stale, err := s.oracle.IsStale(file.Path, artifact)
	if err != nil {
		s.fail(ctx, err, "cannot determine staleness", file)
		s.metrics.RecordStatFailure()
		return nil, false
	}
	if !stale {
		s.metrics.RecordFresh()
		s.logger.Debug(ctx, "artifact up to date", "file", file.RelPath)
		return nil, true
	}

	settings := s.resolver.Settings(file.RelPath)
	task, err := s.synthesizer.Synthesize(file, settings, artifact)
	if err != nil {
		s.fail(ctx, err, "cannot synthesize analyzer command", file)
		s.metrics.RecordSynthesisFailure()
		return nil, false
	}
	return &task, true
}

func (s *Scheduler) fail(ctx context.Context, err error, msg string, file scanner.SourceFile) {
	s.collector.Add(err)
	s.logger.Warn(ctx, err, msg, "file", file.RelPath)

	header := msg
	var ae *errors.AnalysisError
	if stderrors.As(err, &ae) {
		header = fmt.Sprintf("%s: %s", msg, ae.Message)
	}
	s.console.Block("", nil, fmt.Sprintf("%s %s", header, file.Path))
}
