package build

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"time"
	"unicode/utf8"

	"github.com/conneroisu/srcanalyze/internal/errors"
	"github.com/conneroisu/srcanalyze/internal/logging"
	"github.com/conneroisu/srcanalyze/internal/types"
)

const (
	// TooLongNote is appended to diagnostics cut at the command-line limit.
	TooLongNote = "Too long of command arguments."

	windowsCommandLineLimit = 32767
	unixCommandLineLimit    = 131072
)

// TaskRunner executes one analysis task to completion.
type TaskRunner interface {
	Run(ctx context.Context, task types.AnalysisTask) types.TaskResult
}

// ProcessRunner spawns one external analyzer process per task. A progress
// line is printed before the process starts. Process output is captured and
// written to the Console once the process exits, as one block that repeats
// the progress line as its header so every output line can be traced to its
// file.
type ProcessRunner struct {
	console *logging.Console
	logger  logging.Logger
	env     []string
	limit   int
}

// RunnerOption configures a ProcessRunner.
type RunnerOption func(*ProcessRunner)

// WithEnv appends env to the inherited environment of every spawned process.
func WithEnv(env []string) RunnerOption {
	return func(r *ProcessRunner) {
		r.env = append([]string(nil), env...)
	}
}

// WithCommandLineLimit overrides the host command-line length limit used to
// truncate diagnostics.
func WithCommandLineLimit(limit int) RunnerOption {
	return func(r *ProcessRunner) {
		r.limit = limit
	}
}

// NewProcessRunner creates a runner that reports through console and logger.
func NewProcessRunner(console *logging.Console, logger logging.Logger, opts ...RunnerOption) *ProcessRunner {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	r := &ProcessRunner{
		console: console,
		logger:  logger.WithComponent("runner"),
		limit:   CommandLineLimit(runtime.GOOS),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CommandLineLimit returns the maximum command-line length of goos.
func CommandLineLimit(goos string) int {
	if goos == "windows" {
		return windowsCommandLineLimit
	}
	return unixCommandLineLimit
}

// Run implements TaskRunner.
func (r *ProcessRunner) Run(ctx context.Context, task types.AnalysisTask) types.TaskResult {
	start := time.Now()
	result := types.TaskResult{Task: task}

	if r.console != nil {
		r.console.Line("%s", progressHeader(task))
	}

	var output bytes.Buffer
	cmd := exec.CommandContext(ctx, task.Executable, task.Args...)
	cmd.Stdout = &output
	cmd.Stderr = &output
	if len(r.env) > 0 {
		cmd.Env = append(os.Environ(), r.env...)
	}

	if err := cmd.Start(); err != nil {
		result.Failure = types.FailureLaunch
		result.ExitCode = -1
		result.Err = errors.NewLaunchError(task.Executable, err).
			WithFile(task.SourcePath).WithCommand(task.CommandLine())
		result.Duration = time.Since(start)
		r.report(ctx, result, fmt.Sprintf("Unable to execute process %s", task.Executable))
		return result
	}
	result.Spawned = true

	err := cmd.Wait()
	result.Duration = time.Since(start)
	result.Output = output.Bytes()

	if err != nil {
		var exitErr *exec.ExitError
		if stderrors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		} else {
			result.ExitCode = -1
		}
		result.Failure = types.FailureExit
		result.Err = errors.NewExitError(task.Executable, result.ExitCode).
			WithFile(task.SourcePath).WithCommand(task.CommandLine())
		r.report(ctx, result, fmt.Sprintf("Process returned error %s %d", task.Executable, result.ExitCode))
		return result
	}

	if r.console != nil && len(result.Output) > 0 {
		r.console.Block(progressHeader(task), result.Output, "")
	}
	r.logger.Debug(ctx, "analyzer finished",
		"file", task.DisplayName,
		"duration", result.Duration)
	return result
}

// report writes the failure block and logs the structured failure.
func (r *ProcessRunner) report(ctx context.Context, result types.TaskResult, header string) {
	diagnostic := FormatDiagnostic(header, result.Task.CommandLine(), r.limit)
	if r.console != nil {
		r.console.Block(progressHeader(result.Task), result.Output, diagnostic)
	}
	r.logger.Error(ctx, result.Err, "analysis failed",
		"file", result.Task.DisplayName,
		"failure", result.Failure.String(),
		"exit_code", result.ExitCode)
}

func progressHeader(task types.AnalysisTask) string {
	return "Analyzing: " + task.DisplayName
}

// FormatDiagnostic renders a failure header and the argument list. When the
// combined length exceeds limit, the argument list is truncated and
// TooLongNote is added so the diagnostic can always be reported.
func FormatDiagnostic(header, args string, limit int) string {
	if limit > 0 && len(header)+len(args) > limit {
		keep := limit - len(header)
		if keep < 0 {
			keep = 0
		}
		if keep > len(args) {
			keep = len(args)
		}
		for keep > 0 && keep < len(args) && !utf8.RuneStart(args[keep]) {
			keep--
		}
		return header + "\n" + TooLongNote + "\nArguments were: " + args[:keep] + "...\n"
	}
	return header + "\nArguments were: " + args + "\n"
}
