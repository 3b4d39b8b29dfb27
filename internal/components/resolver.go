// Package components maps source files to their owning build component and
// resolves the effective include directories, compile arguments and Java
// arguments for each file.
//
// A component is configured by one or more path fragments relative to the
// source root. The owner of a file is the component with the longest
// segment-aligned path prefix; files owned by no component use the project
// defaults. BuildConfiguration values are read-only once a run starts, so a
// Resolver is safe for concurrent use.
package components

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/puzpuzpuz/xsync/v3"
	"gopkg.in/yaml.v3"
)

// ComponentConfig holds per-component overrides.
type ComponentConfig struct {
	Paths       []string `yaml:"paths" mapstructure:"paths"`
	IncludeDirs []string `yaml:"include_dirs" mapstructure:"include_dirs"`
	CompileArgs []string `yaml:"compile_args" mapstructure:"compile_args"`
	JavaArgs    string   `yaml:"java_args" mapstructure:"java_args"`
}

// BuildConfiguration is the project build information the analysis core reads.
type BuildConfiguration struct {
	BinDir        string
	CppAnalyzer   string
	JavaCompiler  string
	JavaAnalyzer  string
	JavaJDKPath   string
	JavaClassPath string
	JavaArgs      string
	IncludeDirs   []string
	CompileArgs   []string
	ExcludeDirs   []string
	Components    map[string]ComponentConfig
}

// Settings are the effective build settings for one file.
type Settings struct {
	// Component is the owning component name, empty for project defaults
	Component   string
	IncludeDirs []string
	CompileArgs []string
	JavaArgs    string
}

// Resolver determines component ownership and effective settings.
type Resolver interface {
	Owner(relPath string) string
	Settings(relPath string) Settings
}

type componentPath struct {
	name     string
	segments []string
}

// ConfigResolver resolves ownership from a BuildConfiguration.
type ConfigResolver struct {
	cfg    *BuildConfiguration
	paths  []componentPath
	owners *xsync.MapOf[string, string]
}

// NewConfigResolver creates a resolver over cfg for files under root.
func NewConfigResolver(root string, cfg *BuildConfiguration) *ConfigResolver {
	if cfg == nil {
		cfg = &BuildConfiguration{}
	}
	r := &ConfigResolver{
		cfg:    cfg,
		owners: xsync.NewMapOf[string, string](),
	}

	absRoot, _ := filepath.Abs(root)
	for name, comp := range cfg.Components {
		for _, p := range comp.Paths {
			if filepath.IsAbs(p) && absRoot != "" {
				rel, err := filepath.Rel(absRoot, p)
				if err != nil || strings.HasPrefix(rel, "..") {
					continue
				}
				p = rel
			}
			segs := segments(p)
			r.paths = append(r.paths, componentPath{name: name, segments: segs})
		}
	}
	// Longest path first; ties broken by name so ownership is deterministic.
	sort.Slice(r.paths, func(i, j int) bool {
		if len(r.paths[i].segments) != len(r.paths[j].segments) {
			return len(r.paths[i].segments) > len(r.paths[j].segments)
		}
		return r.paths[i].name < r.paths[j].name
	})
	return r
}

// Owner returns the owning component of relPath, or "" when none owns it.
func (r *ConfigResolver) Owner(relPath string) string {
	dir := filepath.Dir(filepath.Clean(relPath))
	owner, _ := r.owners.LoadOrCompute(dir, func() string {
		return r.lookup(segments(dir))
	})
	return owner
}

func (r *ConfigResolver) lookup(dirSegs []string) string {
	for _, cp := range r.paths {
		if len(cp.segments) > len(dirSegs) {
			continue
		}
		match := true
		for i, s := range cp.segments {
			if dirSegs[i] != s {
				match = false
				break
			}
		}
		if match {
			return cp.name
		}
	}
	return ""
}

// Settings returns the effective settings for relPath.
func (r *ConfigResolver) Settings(relPath string) Settings {
	owner := r.Owner(relPath)
	settings := Settings{
		Component: owner,
		JavaArgs:  r.cfg.JavaArgs,
	}

	var compIncludes, compArgs []string
	if comp, ok := r.cfg.Components[owner]; ok && owner != "" {
		compIncludes = comp.IncludeDirs
		compArgs = comp.CompileArgs
		if strings.TrimSpace(comp.JavaArgs) != "" {
			settings.JavaArgs = comp.JavaArgs
		}
	}

	settings.IncludeDirs = dedupe(compIncludes, r.cfg.IncludeDirs)
	settings.CompileArgs = append(append([]string{}, compArgs...), r.cfg.CompileArgs...)
	return settings
}

// LoadComponentsFile decodes a YAML document mapping component names to
// ComponentConfig.
func LoadComponentsFile(path string) (map[string]ComponentConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading components file: %w", err)
	}
	var comps map[string]ComponentConfig
	if err := yaml.Unmarshal(data, &comps); err != nil {
		return nil, fmt.Errorf("parsing components file %s: %w", path, err)
	}
	return comps, nil
}

func segments(path string) []string {
	parts := strings.Split(filepath.ToSlash(path), "/")
	out := parts[:0]
	for _, p := range parts {
		if p == "" || p == "." {
			continue
		}
		out = append(out, p)
	}
	return out
}

func dedupe(lists ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range lists {
		for _, item := range list {
			if item == "" || seen[item] {
				continue
			}
			seen[item] = true
			out = append(out, item)
		}
	}
	return out
}
