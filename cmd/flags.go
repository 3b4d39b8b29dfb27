package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/conneroisu/srcanalyze/internal/config"
)

// runFlagKeys maps the flags shared by analyze and watch to configuration keys.
var runFlagKeys = map[string]string{
	"src":              "source_root",
	"out":              "analysis_dir",
	"workers":          "workers",
	"artifact-ext":     "artifact_ext",
	"components-file":  "components_file",
	"exclude":          "project.exclude_dirs",
	"metrics-textfile": "metrics.textfile",
}

// addRunFlags adds the flags every analysis command understands.
func addRunFlags(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringP("src", "s", "", "Source root to analyze")
	fs.StringP("out", "o", "", "Directory analysis artifacts are written to")
	fs.IntP("workers", "j", 0, "Analyzer processes to run at once (0 = one per CPU)")
	fs.Bool("no-concurrency", false, "Run a single analyzer at a time")
	fs.String("artifact-ext", config.DefaultArtifactExt, "Extension of analysis artifacts")
	fs.String("components-file", "", "YAML file describing components")
	fs.StringSlice("exclude", nil, "Directory fragments to skip (repeatable)")
	fs.String("metrics-textfile", "", "Write Prometheus metrics to this file after each run")
}

// bindRunFlags binds the run flags of the executing command to the global
// configuration. Binding happens at run time because analyze and watch
// share keys and only the invoked command's flags may win.
func bindRunFlags(cmd *cobra.Command, _ []string) error {
	return bindFlags(viper.GetViper(), cmd.Flags())
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	names := make([]string, 0, len(runFlagKeys))
	for name := range runFlagKeys {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		flag := fs.Lookup(name)
		if flag == nil {
			return fmt.Errorf("flag --%s is not defined", name)
		}
		if err := v.BindPFlag(runFlagKeys[name], flag); err != nil {
			return fmt.Errorf("failed to bind --%s: %w", name, err)
		}
	}

	if flag := fs.Lookup("no-concurrency"); flag != nil && flag.Changed {
		noConcurrency, err := fs.GetBool("no-concurrency")
		if err != nil {
			return err
		}
		v.Set("concurrency", !noConcurrency)
	}
	return nil
}

// loadRunConfig loads the configuration and checks the run directories.
func loadRunConfig(v *viper.Viper) (*config.Config, error) {
	cfg, err := config.LoadFrom(v)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.RequireRunPaths(); err != nil {
		return nil, err
	}
	return cfg, nil
}
