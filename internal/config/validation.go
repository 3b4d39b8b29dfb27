package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/conneroisu/srcanalyze/internal/logging"
)

// ValidationError represents a configuration validation error with suggestions
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the result of configuration validation
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []ValidationError
}

// HasErrors returns true if there are any validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// String returns a formatted string of all validation issues
func (vr *ValidationResult) String() string {
	var builder strings.Builder

	if len(vr.Errors) > 0 {
		builder.WriteString("Validation errors:\n")
		for _, err := range vr.Errors {
			builder.WriteString(fmt.Sprintf("  - %s: %s\n", err.Field, err.Message))
			for _, suggestion := range err.Suggestions {
				builder.WriteString(fmt.Sprintf("      %s\n", suggestion))
			}
		}
	}

	if len(vr.Warnings) > 0 {
		builder.WriteString("Validation warnings:\n")
		for _, warning := range vr.Warnings {
			builder.WriteString(fmt.Sprintf("  - %s: %s\n", warning.Field, warning.Message))
			for _, suggestion := range warning.Suggestions {
				builder.WriteString(fmt.Sprintf("      %s\n", suggestion))
			}
		}
	}

	return builder.String()
}

func (vr *ValidationResult) addError(field string, value interface{}, msg string, suggestions ...string) {
	vr.Errors = append(vr.Errors, ValidationError{Field: field, Value: value, Message: msg, Suggestions: suggestions})
}

func (vr *ValidationResult) addWarning(field string, value interface{}, msg string, suggestions ...string) {
	vr.Warnings = append(vr.Warnings, ValidationError{Field: field, Value: value, Message: msg, Suggestions: suggestions})
}

// ValidateConfig performs validation with detailed feedback
func ValidateConfig(config *Config) *ValidationResult {
	result := &ValidationResult{}

	validateRunConfig(config, result)
	validateToolsConfig(&config.Tools, result)
	validateProjectConfig(&config.Project, result)
	validateComponents(config, result)
	validateAmbientConfig(config, result)

	result.Valid = !result.HasErrors()
	return result
}

func validateRunConfig(config *Config, result *ValidationResult) {
	if config.Workers < 0 || config.Workers > MaxWorkers {
		result.addError("workers", config.Workers,
			fmt.Sprintf("workers %d is not in valid range 0-%d", config.Workers, MaxWorkers),
			"Use 0 to run one worker per hardware thread")
	} else if config.Workers > runtime.NumCPU()*4 {
		result.addWarning("workers", config.Workers,
			"workers far exceed the hardware thread count",
			fmt.Sprintf("This machine has %d hardware threads", runtime.NumCPU()))
	}

	if config.ArtifactExt != "" {
		if !strings.HasPrefix(config.ArtifactExt, ".") || strings.ContainsAny(config.ArtifactExt, `/\`) {
			result.addError("artifact_ext", config.ArtifactExt,
				"artifact extension must start with '.' and contain no path separator",
				"Example: .xmi")
		}
	}

	for field, path := range map[string]string{
		"source_root":  config.SourceRoot,
		"analysis_dir": config.AnalysisDir,
	} {
		if strings.ContainsRune(path, 0) {
			result.addError(field, path, "path contains a NUL byte")
		}
	}
}

func validateToolsConfig(tools *ToolsConfig, result *ValidationResult) {
	for field, value := range map[string]string{
		"tools.cpp_analyzer":  tools.CppAnalyzer,
		"tools.java_compiler": tools.JavaCompiler,
		"tools.java_analyzer": tools.JavaAnalyzer,
	} {
		if strings.TrimSpace(value) == "" {
			result.addError(field, value, "tool name is empty")
		} else if strings.ContainsRune(value, 0) {
			result.addError(field, value, "tool name contains a NUL byte")
		}
	}

	for field, value := range map[string]string{
		"tools.bin_dir":         tools.BinDir,
		"tools.java_jdk_path":   tools.JavaJDKPath,
		"tools.java_class_path": tools.JavaClassPath,
	} {
		if strings.ContainsRune(value, 0) {
			result.addError(field, value, "path contains a NUL byte")
		}
	}

	if tools.BinDir != "" {
		if info, err := os.Stat(tools.BinDir); err != nil || !info.IsDir() {
			result.addWarning("tools.bin_dir", tools.BinDir,
				"analyzer directory does not exist",
				"Native analysis will fail to launch until the analyzers are installed")
		}
	}

	if strings.TrimSpace(strings.TrimSuffix(tools.JavaJDKPath, ";")) == "" {
		result.addWarning("tools.java_jdk_path", tools.JavaJDKPath,
			"no JDK configured; Java sources will not be analyzed",
			"Set tools.java_jdk_path or JAVA_HOME")
	}
}

func validateProjectConfig(project *ProjectConfig, result *ValidationResult) {
	for _, dir := range project.ExcludeDirs {
		if strings.TrimSpace(dir) == "" {
			result.addWarning("project.exclude_dirs", dir, "blank exclude entry is ignored")
		}
	}
	for _, dir := range project.IncludeDirs {
		if strings.ContainsRune(dir, 0) {
			result.addError("project.include_dirs", dir, "path contains a NUL byte")
		}
	}
}

func validateComponents(config *Config, result *ValidationResult) {
	for name, comp := range config.Components {
		field := "components." + name
		if len(comp.Paths) == 0 {
			result.addWarning(field+".paths", nil, "component owns no paths and is never used")
		}
		for _, p := range comp.Paths {
			if filepath.IsAbs(p) && config.SourceRoot != "" {
				if rel, err := filepath.Rel(config.SourceRoot, p); err != nil || strings.HasPrefix(rel, "..") {
					result.addWarning(field+".paths", p, "path lies outside the source root")
				}
			}
		}
	}
}

func validateAmbientConfig(config *Config, result *ValidationResult) {
	if _, err := logging.ParseLevel(config.Log.Level); err != nil {
		result.addError("log.level", config.Log.Level, err.Error(),
			"Use one of: debug, info, warn, error")
	}
	switch config.Log.Format {
	case "", "text", "json":
	default:
		result.addError("log.format", config.Log.Format, "unknown log format",
			"Use text or json")
	}
	if config.Watch.Debounce < 0 {
		result.addError("watch.debounce", config.Watch.Debounce, "debounce must not be negative")
	}
}
