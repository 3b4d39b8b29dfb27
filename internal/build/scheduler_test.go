package build

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/conneroisu/srcanalyze/internal/errors"
	"github.com/conneroisu/srcanalyze/internal/logging"
	"github.com/conneroisu/srcanalyze/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T, root, out string, mutate func(*Options)) *Scheduler {
	t.Helper()
	opts := Options{
		SourceRoot:  root,
		AnalysisDir: out,
		Concurrency: true,
		Env:         fakeEnv(),
		Build:       fakeBuild(t),
		Console:     logging.NewConsole(&bytes.Buffer{}, &bytes.Buffer{}),
	}
	if mutate != nil {
		mutate(&opts)
	}
	s, err := NewScheduler(opts)
	require.NoError(t, err)
	return s
}

func TestSchedulerEndToEnd(t *testing.T) {
	root, out := t.TempDir(), t.TempDir()
	writeSources(t, root, "a.cpp", "b.java")

	// b.java already has an artifact newer than its source.
	fresh, err := ArtifactPath(root, out, filepath.Join(root, "b.java"), "")
	require.NoError(t, err)
	touch(t, fresh, time.Now())

	s := newTestScheduler(t, root, out, nil)
	assert.Equal(t, StateIdle, s.State())

	result, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateDone, s.State())

	require.Len(t, result.Tasks, 1)
	task := result.Tasks[0]
	assert.Equal(t, filepath.Join(root, "a.cpp"), task.DisplayName)

	argv := task.Argv()
	require.GreaterOrEqual(t, len(argv), 4)
	assert.Equal(t, []string{filepath.Join(root, "a.cpp"), root, out}, argv[len(argv)-3:])

	assert.True(t, result.Success)
	assert.NoError(t, result.Err)
	assert.Equal(t, 1, result.Stats.Scheduled)
	assert.Equal(t, 1, result.Stats.Fresh)
	assert.Equal(t, 1, result.Stats.Succeeded)
	assert.FileExists(t, filepath.Join(out, "a_cpp.xmi"))
}

func TestSchedulerFailureIsolation(t *testing.T) {
	root, out := t.TempDir(), t.TempDir()
	writeSources(t, root, "a.cpp", "lib/b.cpp", "pkg/C.java")

	s := newTestScheduler(t, root, out, func(o *Options) {
		o.Build.JavaCompiler = filepath.Join(t.TempDir(), "no-such-java")
	})

	result, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.True(t, result.TraversalOK)
	assert.Equal(t, 3, result.Stats.Scheduled)
	assert.Equal(t, 2, result.Stats.Succeeded)
	assert.Equal(t, 1, result.Stats.LaunchFailures)
	assert.True(t, errors.IsLaunchError(result.Err))

	assert.ElementsMatch(t, []string{"a_cpp.xmi", "lib/b_cpp.xmi"}, artifacts(t, out))
}

func TestSchedulerNonZeroExitFailsAggregate(t *testing.T) {
	root, out := t.TempDir(), t.TempDir()
	writeSources(t, root, "ok.cpp", "fail.cpp")

	result, err := newTestScheduler(t, root, out, nil).Run(context.Background())
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, 1, result.Stats.ExitFailures)
	assert.Equal(t, 1, result.Stats.Succeeded)
	assert.True(t, errors.IsExitError(result.Err))
}

func TestSchedulerIdempotentSecondRun(t *testing.T) {
	root, out := t.TempDir(), t.TempDir()
	writeSources(t, root, "a.cpp", "include/a.h", "java/Main.java")

	first, err := newTestScheduler(t, root, out, nil).Run(context.Background())
	require.NoError(t, err)
	require.True(t, first.Success)
	assert.Equal(t, 3, first.Stats.Scheduled)

	second, err := newTestScheduler(t, root, out, nil).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, second.Success)
	assert.Empty(t, second.Tasks)
	assert.Equal(t, 3, second.Stats.Fresh)
}

func TestSchedulerSingleWorkerEquivalence(t *testing.T) {
	root := t.TempDir()
	writeSources(t, root, "a.cpp", "b.cpp", "c/d.hpp", "c/e.cc", "j/F.java", "fail.cpp", "docs/notes.txt")

	run := func(mutate func(*Options)) (*RunResult, []string) {
		out := t.TempDir()
		result, err := newTestScheduler(t, root, out, mutate).Run(context.Background())
		require.NoError(t, err)
		return result, artifacts(t, out)
	}

	serial, serialArtifacts := run(func(o *Options) { o.Concurrency = false })
	parallel, parallelArtifacts := run(func(o *Options) { o.Workers = 4 })

	assert.ElementsMatch(t, serialArtifacts, parallelArtifacts)
	assert.Equal(t, serial.Success, parallel.Success)
	assert.Equal(t, serial.Stats.Scheduled, parallel.Stats.Scheduled)
	assert.Equal(t, serial.Stats.Succeeded, parallel.Stats.Succeeded)
	assert.Equal(t, serial.Stats.ExitFailures, parallel.Stats.ExitFailures)
	assert.Len(t, serialArtifacts, 5)
}

func TestSchedulerExclusionAvoidsStat(t *testing.T) {
	root, out := t.TempDir(), t.TempDir()
	writeSources(t, root, "a.cpp", "src/b.cpp", "vendor/v1.cpp", "vendor/deep/v2.cpp", "src/test/t.cpp")

	s := newTestScheduler(t, root, out, func(o *Options) {
		o.Build.ExcludeDirs = []string{"vendor", "test"}
	})
	result, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Stats.Scheduled)
	assert.Equal(t, 2, result.Stats.ExcludedDirs)
	assert.Equal(t, int64(4), s.oracle.StatCalls(), "two stats per non-excluded file")
	for _, task := range result.Tasks {
		assert.NotContains(t, task.SourcePath, "vendor")
		assert.NotContains(t, task.SourcePath, string(filepath.Separator)+"test"+string(filepath.Separator))
	}
	assert.ElementsMatch(t, []string{"a_cpp.xmi", "src/b_cpp.xmi"}, artifacts(t, out))
}

func TestSchedulerSynthesisFailureSkipsFile(t *testing.T) {
	root, out := t.TempDir(), t.TempDir()
	writeSources(t, root, "a.cpp", "B.java")

	s := newTestScheduler(t, root, out, func(o *Options) {
		o.Build.JavaJDKPath = ""
	})
	result, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.False(t, result.TraversalOK)
	assert.Equal(t, 1, result.Stats.SynthesisFailures)
	assert.Equal(t, 1, result.Stats.Succeeded)
	assert.True(t, errors.IsConfigError(result.Err))
	assert.Equal(t, StateDone, s.State())
}

func TestSchedulerDryRun(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(t.TempDir(), "analysis")
	writeSources(t, root, "a.cpp", "B.java")

	result, err := newTestScheduler(t, root, out, func(o *Options) { o.DryRun = true }).Run(context.Background())
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Len(t, result.Tasks, 2)
	assert.Equal(t, 0, result.Stats.Succeeded)
	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr), "dry run must not create the analysis directory")
}

func TestSchedulerRunsOnce(t *testing.T) {
	root, out := t.TempDir(), t.TempDir()
	s := newTestScheduler(t, root, out, nil)

	_, err := s.Run(context.Background())
	require.NoError(t, err)

	_, err = s.Run(context.Background())
	require.Error(t, err)
	var ae *errors.AnalysisError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, errors.ErrCodeSchedulerState, ae.Code)
}

func TestSchedulerLockHeld(t *testing.T) {
	root, out := t.TempDir(), t.TempDir()
	writeSources(t, root, "a.cpp")

	lock, err := AcquireRunLock(out)
	require.NoError(t, err)
	defer lock.Release()

	s := newTestScheduler(t, root, out, nil)
	_, err = s.Run(context.Background())
	require.Error(t, err)

	var ae *errors.AnalysisError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, errors.ErrCodeLocked, ae.Code)
	assert.Empty(t, artifacts(t, out))
}

func TestSchedulerMissingSourceRoot(t *testing.T) {
	out := t.TempDir()
	s := newTestScheduler(t, filepath.Join(t.TempDir(), "missing"), out, nil)

	result, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.False(t, result.TraversalOK)
	assert.Error(t, result.Err)
}

func TestNewSchedulerValidation(t *testing.T) {
	_, err := NewScheduler(Options{AnalysisDir: "/out"})
	assert.True(t, errors.IsConfigError(err))

	_, err = NewScheduler(Options{SourceRoot: "/src"})
	assert.True(t, errors.IsConfigError(err))

	s, err := NewScheduler(Options{SourceRoot: "/src", AnalysisDir: "/out", Concurrency: false, Workers: 8})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Workers())
}

func TestRunMetricsTextfile(t *testing.T) {
	root, out := t.TempDir(), t.TempDir()
	writeSources(t, root, "a.cpp")

	s := newTestScheduler(t, root, out, nil)
	_, err := s.Run(context.Background())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "srcanalyze.prom")
	require.NoError(t, s.Metrics().WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `srcanalyze_files_total{outcome="scheduled"} 1`)
	assert.Contains(t, string(data), `srcanalyze_files_total{outcome="succeeded"} 1`)
	assert.Contains(t, string(data), "srcanalyze_run_duration_seconds")
}

func TestRunLockReleased(t *testing.T) {
	dir := t.TempDir()
	lock, err := AcquireRunLock(dir)
	require.NoError(t, err)

	_, err = AcquireRunLock(dir)
	assert.Error(t, err)

	require.NoError(t, lock.Release())
	again, err := AcquireRunLock(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, LockFileName), again.Path())
	require.NoError(t, again.Release())
}

func TestSchedulerConsoleBlocksNameTheirFile(t *testing.T) {
	root, out := t.TempDir(), t.TempDir()
	var names []string
	for _, c := range "abcdefgh" {
		names = append(names, fmt.Sprintf("fail_%c.cpp", c), fmt.Sprintf("ok_%c.cpp", c))
	}
	writeSources(t, root, names...)

	var console bytes.Buffer
	s := newTestScheduler(t, root, out, func(o *Options) {
		o.Workers = 8
		o.Console = logging.NewConsole(&console, &console)
	})
	result, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Tasks, len(names))
	assert.Equal(t, 8, result.Stats.ExitFailures)

	// Every line belongs to the file named by the nearest header above it.
	// Each file has its progress line and the header of its output block.
	blocks := make(map[string][]string)
	headers := make(map[string]int)
	current := ""
	for _, line := range strings.Split(strings.TrimSpace(console.String()), "\n") {
		if name, ok := strings.CutPrefix(line, logging.ConsolePrefix+"Analyzing: "); ok {
			headers[name]++
			current = name
			continue
		}
		require.NotEmpty(t, current, "line %q appears before any header", line)
		blocks[current] = append(blocks[current], line)
	}

	require.Len(t, headers, len(names))
	for file, n := range headers {
		assert.Equal(t, 2, n, "headers for %s", file)
	}
	require.Len(t, blocks, len(names))
	for file, lines := range blocks {
		base := filepath.Base(file)
		body := strings.Join(lines, "\n")
		assert.Contains(t, body, base)
		for _, other := range names {
			if other != base {
				assert.NotContains(t, body, other, "block of %s holds output of %s", base, other)
			}
		}
		if strings.HasPrefix(base, "fail") {
			assert.Contains(t, body, "Process returned error")
		}
	}
}

func TestSchedulerRejectsArtifactCollision(t *testing.T) {
	root, out := t.TempDir(), t.TempDir()
	writeSources(t, root, "a.b.cpp", "a_b.cpp")

	s := newTestScheduler(t, root, out, nil)
	result, err := s.Run(context.Background())
	require.NoError(t, err)

	// Walk order is lexical, so a.b.cpp claims a_b_cpp.xmi first.
	require.Len(t, result.Tasks, 1)
	assert.Equal(t, filepath.Join(root, "a.b.cpp"), result.Tasks[0].SourcePath)

	assert.False(t, result.Success)
	assert.False(t, result.TraversalOK)
	assert.Equal(t, 1, result.Stats.SynthesisFailures)
	assert.Equal(t, 1, result.Stats.Succeeded)
	assert.True(t, errors.IsConfigError(result.Err))
	assert.Contains(t, result.Err.Error(), "already produced by")
	assert.Equal(t, []string{"a_b_cpp.xmi"}, artifacts(t, out))
}

func TestSchedulerReportsResultsAndPoolStats(t *testing.T) {
	root, out := t.TempDir(), t.TempDir()
	writeSources(t, root, "a.cpp", "b.cpp", "fail.cpp")

	var logs bytes.Buffer
	var seen atomic.Int64
	s := newTestScheduler(t, root, out, func(o *Options) {
		o.Workers = 2
		o.Logger = logging.NewLogger(&logging.LoggerConfig{Level: logging.LevelInfo, Format: "text", Output: &logs})
		o.OnResult = func(types.TaskResult) { seen.Add(1) }
	})
	result, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Success)

	assert.Equal(t, int64(3), seen.Load())
	text := logs.String()
	assert.Contains(t, text, "operation=analysis")
	assert.Contains(t, text, "Operation completed")
	assert.Contains(t, text, "processed=3")
	assert.Contains(t, text, "completed=3")
	assert.Contains(t, text, "avg_task_time=")
}
