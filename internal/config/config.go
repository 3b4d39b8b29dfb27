// Package config provides configuration management for srcanalyze using
// Viper for flexible configuration loading from files, environment variables,
// and command-line flags.
//
// The configuration system supports YAML files, environment variable overrides
// with the SRCANALYZE_ prefix, and validation. It carries the source and
// analysis directories, worker pool sizing, analyzer tool locations, project
// and per-component build settings, and logging, metrics and watch options.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/conneroisu/srcanalyze/internal/components"
)

// Defaults applied when a key is not configured.
const (
	DefaultArtifactExt  = ".xmi"
	DefaultCppAnalyzer  = "oovCppParser"
	DefaultJavaCompiler = "java"
	DefaultJavaAnalyzer = "oovJavaParser"
	DefaultDebounce     = 300 * time.Millisecond
	MaxWorkers          = 1024
)

type Config struct {
	SourceRoot     string                                `yaml:"source_root" mapstructure:"source_root"`
	AnalysisDir    string                                `yaml:"analysis_dir" mapstructure:"analysis_dir"`
	Workers        int                                   `yaml:"workers" mapstructure:"workers"`
	Concurrency    bool                                  `yaml:"concurrency" mapstructure:"concurrency"`
	ArtifactExt    string                                `yaml:"artifact_ext" mapstructure:"artifact_ext"`
	ComponentsFile string                                `yaml:"components_file,omitempty" mapstructure:"components_file"`
	Tools          ToolsConfig                           `yaml:"tools" mapstructure:"tools"`
	Project        ProjectConfig                         `yaml:"project" mapstructure:"project"`
	Components     map[string]components.ComponentConfig `yaml:"components,omitempty" mapstructure:"components"`
	Log            LogConfig                             `yaml:"log" mapstructure:"log"`
	Metrics        MetricsConfig                         `yaml:"metrics" mapstructure:"metrics"`
	Watch          WatchConfig                           `yaml:"watch" mapstructure:"watch"`
}

type ToolsConfig struct {
	BinDir        string `yaml:"bin_dir" mapstructure:"bin_dir"`
	CppAnalyzer   string `yaml:"cpp_analyzer" mapstructure:"cpp_analyzer"`
	JavaCompiler  string `yaml:"java_compiler" mapstructure:"java_compiler"`
	JavaAnalyzer  string `yaml:"java_analyzer" mapstructure:"java_analyzer"`
	JavaJDKPath   string `yaml:"java_jdk_path" mapstructure:"java_jdk_path"`
	JavaClassPath string `yaml:"java_class_path" mapstructure:"java_class_path"`
}

type ProjectConfig struct {
	JavaArgs    string   `yaml:"java_args" mapstructure:"java_args"`
	IncludeDirs []string `yaml:"include_dirs" mapstructure:"include_dirs"`
	CompileArgs []string `yaml:"compile_args" mapstructure:"compile_args"`
	ExcludeDirs []string `yaml:"exclude_dirs" mapstructure:"exclude_dirs"`
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

type MetricsConfig struct {
	Textfile string `yaml:"textfile" mapstructure:"textfile"`
}

type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce" mapstructure:"debounce"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("workers", 0)
	v.SetDefault("concurrency", true)
	v.SetDefault("artifact_ext", DefaultArtifactExt)
	v.SetDefault("tools.cpp_analyzer", DefaultCppAnalyzer)
	v.SetDefault("tools.java_compiler", DefaultJavaCompiler)
	v.SetDefault("tools.java_analyzer", DefaultJavaAnalyzer)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("watch.debounce", DefaultDebounce)
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads, completes and validates the configuration held by v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Handle slices set via viper (workaround for viper slice handling)
	for key, target := range map[string]*[]string{
		"project.include_dirs": &config.Project.IncludeDirs,
		"project.compile_args": &config.Project.CompileArgs,
		"project.exclude_dirs": &config.Project.ExcludeDirs,
	} {
		if v.IsSet(key) && len(*target) == 0 {
			*target = v.GetStringSlice(key)
		}
	}

	if config.Tools.BinDir == "" {
		config.Tools.BinDir = executableDir()
	}
	if config.Tools.JavaJDKPath == "" {
		config.Tools.JavaJDKPath = os.Getenv("JAVA_HOME")
	}

	if config.ComponentsFile != "" {
		fileComps, err := components.LoadComponentsFile(config.ComponentsFile)
		if err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		if config.Components == nil {
			config.Components = make(map[string]components.ComponentConfig)
		}
		// Inline components win over the components file.
		for name, comp := range fileComps {
			if _, ok := config.Components[name]; !ok {
				config.Components[name] = comp
			}
		}
	}

	if result := ValidateConfig(&config); result.HasErrors() {
		return nil, fmt.Errorf("invalid configuration: %w", &result.Errors[0])
	}

	return &config, nil
}

// BuildConfiguration returns the read-only build information for a run.
func (c *Config) BuildConfiguration() *components.BuildConfiguration {
	comps := make(map[string]components.ComponentConfig, len(c.Components))
	for name, comp := range c.Components {
		comps[name] = comp
	}
	return &components.BuildConfiguration{
		BinDir:        c.Tools.BinDir,
		CppAnalyzer:   c.Tools.CppAnalyzer,
		JavaCompiler:  c.Tools.JavaCompiler,
		JavaAnalyzer:  c.Tools.JavaAnalyzer,
		JavaJDKPath:   c.Tools.JavaJDKPath,
		JavaClassPath: c.Tools.JavaClassPath,
		JavaArgs:      c.Project.JavaArgs,
		IncludeDirs:   append([]string(nil), c.Project.IncludeDirs...),
		CompileArgs:   append([]string(nil), c.Project.CompileArgs...),
		ExcludeDirs:   append([]string(nil), c.Project.ExcludeDirs...),
		Components:    comps,
	}
}

// RequireRunPaths checks the directories a run needs.
func (c *Config) RequireRunPaths() error {
	if c.SourceRoot == "" {
		return &ValidationError{Field: "source_root", Message: "source root is required",
			Suggestions: []string{"Pass --src or set source_root in .srcanalyze.yml"}}
	}
	if c.AnalysisDir == "" {
		return &ValidationError{Field: "analysis_dir", Message: "analysis directory is required",
			Suggestions: []string{"Pass --out or set analysis_dir in .srcanalyze.yml"}}
	}
	src, err := filepath.Abs(c.SourceRoot)
	if err != nil {
		return err
	}
	out, err := filepath.Abs(c.AnalysisDir)
	if err != nil {
		return err
	}
	if src == out {
		return &ValidationError{Field: "analysis_dir", Value: c.AnalysisDir,
			Message: "analysis directory must differ from the source root"}
	}
	return nil
}

func executableDir() string {
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	return filepath.Dir(exe)
}
