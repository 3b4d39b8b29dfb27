package build

import (
	"path/filepath"
	"runtime"
	"strings"

	"github.com/google/shlex"

	"github.com/conneroisu/srcanalyze/internal/components"
	"github.com/conneroisu/srcanalyze/internal/errors"
	"github.com/conneroisu/srcanalyze/internal/scanner"
	"github.com/conneroisu/srcanalyze/internal/types"
)

// analysisOnlyFlag is a Java analyzer flag that only applies to a later
// pass and is stripped from analysis invocations.
const analysisOnlyFlag = "-dups"

// Strategy assembles the executable and leading arguments for one source kind.
// The trailing triple is appended by the Synthesizer, never by a strategy.
type Strategy interface {
	Command(file scanner.SourceFile, settings components.Settings) (string, []string, error)
}

// NativeStrategy invokes the bundled C/C++ parser directly.
type NativeStrategy struct {
	BinDir   string
	Analyzer string
	GOOS     string
}

// Command implements Strategy.
func (n NativeStrategy) Command(file scanner.SourceFile, settings components.Settings) (string, []string, error) {
	if strings.TrimSpace(n.Analyzer) == "" {
		return "", nil, errors.NewConfigError(errors.ErrCodeToolPath,
			"native analyzer is not configured", nil).WithFile(file.Path)
	}

	exe := filepath.Join(n.BinDir, n.Analyzer)
	if n.GOOS == "windows" && !strings.HasSuffix(strings.ToLower(exe), ".exe") {
		exe += ".exe"
	}

	args := make([]string, 0, len(settings.IncludeDirs)+len(settings.CompileArgs))
	for _, dir := range settings.IncludeDirs {
		args = append(args, "-I"+dir)
	}
	args = append(args, settings.CompileArgs...)
	return exe, args, nil
}

// JavaStrategy runs the Java analyzer class through the configured Java
// launcher with a synthesized class path.
type JavaStrategy struct {
	BinDir    string
	Compiler  string
	Analyzer  string
	JDKPath   string
	ClassPath string
	GOOS      string
}

// Command implements Strategy.
func (j JavaStrategy) Command(file scanner.SourceFile, settings components.Settings) (string, []string, error) {
	if strings.TrimSpace(j.Compiler) == "" || strings.TrimSpace(j.Analyzer) == "" {
		return "", nil, errors.NewConfigError(errors.ErrCodeToolPath,
			"java compiler or analyzer is not configured", nil).WithFile(file.Path)
	}

	jdk := strings.TrimSuffix(strings.TrimSpace(j.JDKPath), ";")
	if jdk == "" {
		return "", nil, errors.NewConfigError(errors.ErrCodeJavaHome,
			"java JDK path is not configured", nil).WithFile(file.Path)
	}

	javaArgs, err := FilterJavaArgs(settings.JavaArgs)
	if err != nil {
		return "", nil, errors.NewConfigError(errors.ErrCodeConfigInvalid,
			"cannot parse java arguments", err).WithFile(file.Path)
	}

	sep := ListSeparator(j.GOOS)
	classPath := filepath.Join(j.BinDir, j.Analyzer+".jar") +
		sep + filepath.Join(jdk, "lib", "tools.jar")
	if j.ClassPath != "" {
		classPath += sep + j.ClassPath
	}

	args := append(javaArgs, "-cp", classPath, j.Analyzer)
	return j.Compiler, args, nil
}

// FilterJavaArgs splits a Java argument string with shell quoting rules and
// removes every token containing the analysis-only flag.
func FilterJavaArgs(raw string) ([]string, error) {
	tokens, err := shlex.Split(raw)
	if err != nil {
		return nil, err
	}
	filtered := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if strings.Contains(tok, analysisOnlyFlag) {
			continue
		}
		filtered = append(filtered, tok)
	}
	return filtered, nil
}

// ListSeparator returns the path list separator of goos.
func ListSeparator(goos string) string {
	if goos == "windows" {
		return ";"
	}
	return ":"
}

// Synthesizer turns classified source files into analysis tasks.
type Synthesizer struct {
	srcRoot     string
	analysisDir string
	strategies  map[types.SourceKind]Strategy
}

// NewSynthesizer creates a synthesizer for the host platform.
func NewSynthesizer(cfg *components.BuildConfiguration, srcRoot, analysisDir string) *Synthesizer {
	return newSynthesizerFor(cfg, srcRoot, analysisDir, runtime.GOOS)
}

func newSynthesizerFor(cfg *components.BuildConfiguration, srcRoot, analysisDir, goos string) *Synthesizer {
	if cfg == nil {
		cfg = &components.BuildConfiguration{}
	}
	native := NativeStrategy{BinDir: cfg.BinDir, Analyzer: cfg.CppAnalyzer, GOOS: goos}
	java := JavaStrategy{
		BinDir:    cfg.BinDir,
		Compiler:  cfg.JavaCompiler,
		Analyzer:  cfg.JavaAnalyzer,
		JDKPath:   cfg.JavaJDKPath,
		ClassPath: cfg.JavaClassPath,
		GOOS:      goos,
	}

	return &Synthesizer{
		srcRoot:     srcRoot,
		analysisDir: analysisDir,
		strategies: map[types.SourceKind]Strategy{
			types.KindCppHeader:  native,
			types.KindCppSource:  native,
			types.KindJavaSource: java,
		},
	}
}

// Synthesize builds the task for file. The argument vector always ends with
// the source path, the source root and the analysis directory.
func (s *Synthesizer) Synthesize(file scanner.SourceFile, settings components.Settings, artifactPath string) (types.AnalysisTask, error) {
	strategy, ok := s.strategies[file.Kind]
	if !ok {
		return types.AnalysisTask{}, errors.NewInternalError(errors.ErrCodeInternalFailure,
			"no analyzer for "+file.Kind.String(), nil).WithFile(file.Path)
	}

	exe, args, err := strategy.Command(file, settings)
	if err != nil {
		return types.AnalysisTask{}, err
	}

	args = append(args, file.Path, s.srcRoot, s.analysisDir)
	return types.NewAnalysisTask(exe, args, file.Path, artifactPath, file.Kind, settings.Component), nil
}
