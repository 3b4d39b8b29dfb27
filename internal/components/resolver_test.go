package components

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *BuildConfiguration {
	return &BuildConfiguration{
		JavaArgs:    "-Xmx512m",
		IncludeDirs: []string{"/usr/include/project", "/shared"},
		CompileArgs: []string{"-std=c++17"},
		Components: map[string]ComponentConfig{
			"core": {
				Paths:       []string{"src/core"},
				IncludeDirs: []string{"/core/include", "/shared"},
				CompileArgs: []string{"-DCORE"},
			},
			"core-net": {
				Paths:       []string{"src/core/net"},
				IncludeDirs: []string{"/net/include"},
			},
			"jvm": {
				Paths:    []string{"java"},
				JavaArgs: "-ea -dups",
			},
		},
	}
}

func TestConfigResolverOwner(t *testing.T) {
	r := NewConfigResolver("/src", testConfig())

	tests := []struct {
		path string
		want string
	}{
		{"src/core/a.cpp", "core"},
		{"src/core/util/b.cpp", "core"},
		{"src/core/net/sock.cpp", "core-net"},
		{"src/corex/a.cpp", ""},
		{"java/pkg/Main.java", "jvm"},
		{"main.cpp", ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Owner(tt.path))
		})
	}
}

func TestConfigResolverSettings(t *testing.T) {
	r := NewConfigResolver("/src", testConfig())

	core := r.Settings("src/core/a.cpp")
	assert.Equal(t, "core", core.Component)
	assert.Equal(t, []string{"/core/include", "/shared", "/usr/include/project"}, core.IncludeDirs)
	assert.Equal(t, []string{"-DCORE", "-std=c++17"}, core.CompileArgs)
	assert.Equal(t, "-Xmx512m", core.JavaArgs)

	jvm := r.Settings("java/Main.java")
	assert.Equal(t, "-ea -dups", jvm.JavaArgs)

	none := r.Settings("other.cpp")
	assert.Equal(t, "", none.Component)
	assert.Equal(t, []string{"/usr/include/project", "/shared"}, none.IncludeDirs)
}

func TestConfigResolverConcurrentOwner(t *testing.T) {
	r := NewConfigResolver("/src", testConfig())

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, "core-net", r.Owner("src/core/net/x.cpp"))
		}()
	}
	wg.Wait()
}

func TestConfigResolverAbsoluteComponentPath(t *testing.T) {
	root := t.TempDir()
	cfg := &BuildConfiguration{Components: map[string]ComponentConfig{
		"lib": {Paths: []string{filepath.Join(root, "lib")}},
	}}
	r := NewConfigResolver(root, cfg)
	assert.Equal(t, "lib", r.Owner("lib/a.cpp"))
}

func TestLoadComponentsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "components.yml")
	content := `
core:
  paths: [src/core]
  include_dirs: [/core/include]
  compile_args: [-DCORE]
tools:
  paths: [tools]
  java_args: "-ea"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	comps, err := LoadComponentsFile(path)
	require.NoError(t, err)
	require.Len(t, comps, 2)
	assert.Equal(t, []string{"src/core"}, comps["core"].Paths)
	assert.Equal(t, []string{"-DCORE"}, comps["core"].CompileArgs)
	assert.Equal(t, "-ea", comps["tools"].JavaArgs)

	_, err = LoadComponentsFile(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}
