// Package types provides common type definitions used throughout srcanalyze.
// This package contains shared types to avoid circular dependencies between packages.
package types

import (
	"strings"
	"time"
)

// SourceKind classifies a file by the analyzer that understands it.
type SourceKind int

const (
	// KindUnsupported marks files no analyzer accepts.
	KindUnsupported SourceKind = iota
	// KindCppHeader is a C or C++ header file.
	KindCppHeader
	// KindCppSource is a C or C++ translation unit.
	KindCppSource
	// KindJavaSource is a Java compilation unit.
	KindJavaSource
)

// String returns the string representation of the SourceKind
func (k SourceKind) String() string {
	switch k {
	case KindCppHeader:
		return "cpp header"
	case KindCppSource:
		return "cpp source"
	case KindJavaSource:
		return "java source"
	default:
		return "unsupported"
	}
}

// IsNative reports whether the kind is handled by the native C/C++ analyzer.
func (k SourceKind) IsNative() bool {
	return k == KindCppHeader || k == KindCppSource
}

// Analyzable reports whether any analyzer accepts the kind.
func (k SourceKind) Analyzable() bool {
	return k != KindUnsupported
}

// AnalysisTask is one fully synthesized analyzer invocation for exactly one
// source file. A task is immutable once created; copies share nothing mutable
// because Args is copied by the constructor.
type AnalysisTask struct {
	// Executable is argv[0], the analyzer or language runtime to launch
	Executable string
	// Args are the arguments after argv[0], ending in the trailing triple
	Args []string
	// SourcePath is the file being analyzed, carried for log labelling
	SourcePath string
	// DisplayName is the label printed in progress and failure output
	DisplayName string
	// ArtifactPath is where the analyzer is expected to write its output
	ArtifactPath string
	// Kind is the classification that selected the synthesis strategy
	Kind SourceKind
	// Component is the owning component name, empty for project defaults
	Component string
}

// NewAnalysisTask builds a task, copying args so the caller cannot mutate it later.
func NewAnalysisTask(executable string, args []string, sourcePath, artifactPath string, kind SourceKind, component string) AnalysisTask {
	argsCopy := make([]string, len(args))
	copy(argsCopy, args)

	return AnalysisTask{
		Executable:   executable,
		Args:         argsCopy,
		SourcePath:   sourcePath,
		DisplayName:  sourcePath,
		ArtifactPath: artifactPath,
		Kind:         kind,
		Component:    component,
	}
}

// Argv returns the full argument vector including argv[0].
func (t AnalysisTask) Argv() []string {
	argv := make([]string, 0, len(t.Args)+1)
	argv = append(argv, t.Executable)
	return append(argv, t.Args...)
}

// CommandLine renders the invocation as a single space separated string.
func (t AnalysisTask) CommandLine() string {
	return strings.Join(t.Argv(), " ")
}

// FailureKind is the taxonomy of per-task failures.
type FailureKind int

const (
	// FailureNone means the analyzer ran and exited zero.
	FailureNone FailureKind = iota
	// FailureLaunch means the executable could not be started.
	FailureLaunch
	// FailureExit means the analyzer ran and exited non-zero.
	FailureExit
)

// String returns the string representation of the FailureKind
func (f FailureKind) String() string {
	switch f {
	case FailureNone:
		return "none"
	case FailureLaunch:
		return "launch"
	case FailureExit:
		return "exit"
	default:
		return "unknown"
	}
}

// TaskResult is the outcome of executing one AnalysisTask.
type TaskResult struct {
	Task     AnalysisTask
	Spawned  bool
	ExitCode int
	Failure  FailureKind
	Output   []byte
	Err      error
	Duration time.Duration
}

// Succeeded reports whether the process spawned and exited zero.
func (r TaskResult) Succeeded() bool {
	return r.Spawned && r.ExitCode == 0 && r.Failure == FailureNone
}
