// Package errors defines the failure taxonomy of an analysis run and a
// thread-safe collector that folds per-file failures into one run error.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeConfig   ErrorType = "config"
	ErrorTypeIO       ErrorType = "io"
	ErrorTypeLaunch   ErrorType = "launch"
	ErrorTypeExit     ErrorType = "exit"
	ErrorTypeInternal ErrorType = "internal"
)

// Common error codes.
const (
	ErrCodeConfigInvalid   = "ERR_CONFIG_INVALID"
	ErrCodeJavaHome        = "ERR_JAVA_HOME"
	ErrCodeToolPath        = "ERR_TOOL_PATH"
	ErrCodeStatFailed      = "ERR_STAT_FAILED"
	ErrCodeArtifactPath    = "ERR_ARTIFACT_PATH"
	ErrCodeArtifactClash   = "ERR_ARTIFACT_COLLISION"
	ErrCodeLaunchFailed    = "ERR_LAUNCH_FAILED"
	ErrCodeNonZeroExit     = "ERR_NON_ZERO_EXIT"
	ErrCodeWalkFailed      = "ERR_WALK_FAILED"
	ErrCodeLocked          = "ERR_ANALYSIS_DIR_LOCKED"
	ErrCodeSchedulerState  = "ERR_SCHEDULER_STATE"
	ErrCodeInternalFailure = "ERR_INTERNAL"
)

// AnalysisError is a structured error carrying the file and command it concerns.
type AnalysisError struct {
	Type     ErrorType
	Code     string
	Message  string
	Cause    error
	FilePath string
	Command  string
	ExitCode int
}

// Error implements the error interface.
func (e *AnalysisError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.FilePath != "" {
		parts = append(parts, e.FilePath)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *AnalysisError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison on type and code.
func (e *AnalysisError) Is(target error) bool {
	var t *AnalysisError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithFile adds the source file the error concerns.
func (e *AnalysisError) WithFile(filePath string) *AnalysisError {
	e.FilePath = filePath

	return e
}

// WithCommand records the full attempted command line.
func (e *AnalysisError) WithCommand(command string) *AnalysisError {
	e.Command = command

	return e
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string, cause error) *AnalysisError {
	return &AnalysisError{
		Type:    ErrorTypeConfig,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewIOError creates a filesystem error.
func NewIOError(code, message string, cause error) *AnalysisError {
	return &AnalysisError{
		Type:    ErrorTypeIO,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewLaunchError creates an error for an executable that could not be started.
func NewLaunchError(executable string, cause error) *AnalysisError {
	return &AnalysisError{
		Type:    ErrorTypeLaunch,
		Code:    ErrCodeLaunchFailed,
		Message: "unable to execute process " + executable,
		Cause:   cause,
	}
}

// NewExitError creates an error for an analyzer that exited non-zero.
func NewExitError(executable string, exitCode int) *AnalysisError {
	return &AnalysisError{
		Type:     ErrorTypeExit,
		Code:     ErrCodeNonZeroExit,
		Message:  fmt.Sprintf("process returned error %s %d", executable, exitCode),
		ExitCode: exitCode,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *AnalysisError {
	return &AnalysisError{
		Type:    ErrorTypeInternal,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// IsConfigError checks if an error is configuration related.
func IsConfigError(err error) bool {
	return hasType(err, ErrorTypeConfig)
}

// IsLaunchError checks if an error means a process could not be started.
func IsLaunchError(err error) bool {
	return hasType(err, ErrorTypeLaunch)
}

// IsExitError checks if an error means a process exited non-zero.
func IsExitError(err error) bool {
	return hasType(err, ErrorTypeExit)
}

func hasType(err error, typ ErrorType) bool {
	var ae *AnalysisError
	if errors.As(err, &ae) {
		return ae.Type == typ
	}

	return false
}
