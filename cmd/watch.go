package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/conneroisu/srcanalyze/internal/build"
	"github.com/conneroisu/srcanalyze/internal/config"
	"github.com/conneroisu/srcanalyze/internal/logging"
	"github.com/conneroisu/srcanalyze/internal/scanner"
	"github.com/conneroisu/srcanalyze/internal/types"
	"github.com/conneroisu/srcanalyze/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Aliases: []string{"w"},
	Short:   "Analyze stale files, then re-analyze whenever sources change",
	Long: `Run one analysis pass, then watch the source root and run another pass
after every burst of changes. Only files whose artifacts are stale are
re-analyzed, so each pass costs what changed.

Examples:
  srcanalyze watch --src ./src --out ./analysis
  SRCANALYZE_WATCH_DEBOUNCE=1s srcanalyze watch -s ./src -o ./analysis`,
	PreRunE: bindRunFlags,
	RunE:    runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	addRunFlags(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadRunConfig(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	session := &watchSession{
		cfg:     cfg,
		logger:  logger.WithComponent("watch"),
		console: logging.NewConsole(out, cmd.ErrOrStderr()),
		out:     out,
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session.run(ctx)

	fileWatcher, err := newSourceWatcher(cfg, logger)
	if err != nil {
		return err
	}
	defer fileWatcher.Stop()

	trigger := make(chan struct{}, 1)
	fileWatcher.AddHandler(func(events []watcher.ChangeEvent) error {
		for _, event := range events {
			session.logger.Debug(ctx, "source changed", "path", event.Path, "type", event.Type.String())
		}
		// One pending re-run covers any number of batches.
		select {
		case trigger <- struct{}{}:
		default:
		}
		return nil
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return fileWatcher.Start(gctx)
	})
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-trigger:
				session.run(gctx)
			}
		}
	})

	fmt.Fprintf(out, "Watching %s (press Ctrl+C to stop)\n", cfg.SourceRoot)
	if err := g.Wait(); err != nil {
		return err
	}
	fmt.Fprintln(out, "Stopped watching")
	return nil
}

// newSourceWatcher watches every non-excluded directory under the source
// root, ignoring artifact writes and VCS metadata.
func newSourceWatcher(cfg *config.Config, logger logging.Logger) (*watcher.FileWatcher, error) {
	srcRoot, err := filepath.Abs(cfg.SourceRoot)
	if err != nil {
		return nil, err
	}
	analysisDir, err := filepath.Abs(cfg.AnalysisDir)
	if err != nil {
		return nil, err
	}

	fileWatcher, err := watcher.NewFileWatcher(cfg.Watch.Debounce, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	fileWatcher.AddFilter(watcher.NoGitFilter)
	fileWatcher.AddFilter(watcher.NoDirFilter(analysisDir))
	fileWatcher.AddFilter(watcher.AnalyzableFilter)

	excludes := scanner.NewExclusionSet(srcRoot, cfg.Project.ExcludeDirs)
	if err := fileWatcher.AddRecursive(srcRoot, excludes); err != nil {
		fileWatcher.Stop()
		return nil, fmt.Errorf("failed to watch %s: %w", srcRoot, err)
	}
	return fileWatcher, nil
}

// watchSession runs analysis passes one at a time. Each pass gets a fresh
// scheduler since a scheduler runs once.
type watchSession struct {
	cfg     *config.Config
	logger  logging.Logger
	console *logging.Console
	out     io.Writer
	passes  int
}

func (s *watchSession) run(ctx context.Context) *build.RunResult {
	s.passes++
	pass := s.passes
	s.console.Line("Pass %d: checking %s", pass, s.cfg.SourceRoot)

	var done atomic.Int64
	progress := func(r types.TaskResult) {
		s.logger.Debug(ctx, "pass progress",
			"pass", pass,
			"done", done.Add(1),
			"file", r.Task.DisplayName,
			"ok", r.Succeeded())
	}

	result, err := analyzeOnce(ctx, s.cfg, s.logger, s.console, false, progress)
	if err != nil {
		s.logger.Error(ctx, err, "analysis pass could not start", "pass", pass)
		return nil
	}
	s.logger.Info(ctx, "analysis pass finished", "pass", pass, "analyzed", done.Load())
	printSummary(s.out, result, false)
	return result
}
