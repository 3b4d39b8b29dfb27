package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/conneroisu/srcanalyze/internal/build"
	"github.com/conneroisu/srcanalyze/internal/config"
	"github.com/conneroisu/srcanalyze/internal/logging"
)

// errAnalysisFailed is returned when at least one file could not be analyzed.
// The details have already been printed by then.
var errAnalysisFailed = errors.New("analysis failed")

var analyzeCmd = &cobra.Command{
	Use:     "analyze",
	Aliases: []string{"a"},
	Short:   "Analyze every stale source file once",
	Long: `Walk the source root and run the analyzer for every C/C++ and Java file
whose artifact is missing or older than the source. Files in excluded
directories are never examined.

Examples:
  srcanalyze analyze --src ./src --out ./analysis
  srcanalyze analyze -s ./src -o ./analysis -j 8
  srcanalyze analyze --dry-run                      # print commands only
  srcanalyze analyze --exclude test --exclude third_party`,
	PreRunE: bindRunFlags,
	RunE:    runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	addRunFlags(analyzeCmd)
	analyzeCmd.Flags().Bool("dry-run", false, "Print the analyzer commands without running them")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadRunConfig(viper.GetViper())
	if err != nil {
		return err
	}
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	console := logging.NewConsole(cmd.OutOrStdout(), cmd.ErrOrStderr())

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := analyzeOnce(ctx, cfg, logger, console, dryRun, nil)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if dryRun {
		for _, task := range result.Tasks {
			fmt.Fprintln(out, task.CommandLine())
		}
	}
	printSummary(out, result, dryRun)

	if !result.Success {
		return errAnalysisFailed
	}
	return nil
}

// analyzeOnce runs one scheduler over cfg and exports its metrics. onResult,
// if set, sees every task result as it completes.
func analyzeOnce(ctx context.Context, cfg *config.Config, logger logging.Logger, console *logging.Console, dryRun bool, onResult build.ResultCallback) (*build.RunResult, error) {
	scheduler, err := build.NewScheduler(build.Options{
		SourceRoot:  cfg.SourceRoot,
		AnalysisDir: cfg.AnalysisDir,
		Workers:     cfg.Workers,
		Concurrency: cfg.Concurrency,
		ArtifactExt: cfg.ArtifactExt,
		DryRun:      dryRun,
		Build:       cfg.BuildConfiguration(),
		Logger:      logger,
		Console:     console,
		OnResult:    onResult,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	result, err := scheduler.Run(ctx)
	if err != nil {
		return nil, err
	}

	if cfg.Metrics.Textfile != "" && !dryRun {
		if err := scheduler.Metrics().WriteTextfile(cfg.Metrics.Textfile); err != nil {
			logger.Warn(ctx, err, "failed to write metrics textfile", "path", cfg.Metrics.Textfile)
		}
	}
	return result, nil
}

// printSummary writes the end-of-run counters.
func printSummary(w io.Writer, result *build.RunResult, dryRun bool) {
	stats := result.Stats
	title := cases.Title(language.English)

	fmt.Fprintf(w, "\nScanned %d files in %d directories (%d excluded directories, %d excluded files, %d unsupported)\n",
		stats.Discovered, stats.Directories, stats.ExcludedDirs, stats.ExcludedFiles, stats.Unsupported)

	if dryRun {
		fmt.Fprintf(w, "Up to date: %d  Would analyze: %d  Failed: %d\n",
			stats.Fresh, stats.Scheduled, stats.Failed())
	} else {
		fmt.Fprintf(w, "Up to date: %d  Analyzed: %d  Failed: %d\n",
			stats.Fresh, stats.Succeeded, stats.Failed())
	}

	kinds := make([]string, 0, len(stats.ByKind))
	counts := make(map[string]int, len(stats.ByKind))
	for kind, n := range stats.ByKind {
		label := title.String(kind.String())
		kinds = append(kinds, label)
		counts[label] += n
	}
	sort.Strings(kinds)
	for _, label := range kinds {
		fmt.Fprintf(w, "  %-12s %d\n", label, counts[label])
	}

	if stats.Failed() > 0 {
		fmt.Fprintf(w, "Failures: %d stat, %d synthesis, %d launch, %d exit\n",
			stats.StatFailures, stats.SynthesisFailures, stats.LaunchFailures, stats.ExitFailures)
	}
	fmt.Fprintf(w, "Finished in %s\n", stats.RunDuration.Round(time.Millisecond))
}
