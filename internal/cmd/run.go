package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"artbatch/internal/config"
	"artbatch/internal/logging"
	"artbatch/internal/orchestrator"
	"artbatch/internal/provider/webdriver"
	"artbatch/internal/store"
	"artbatch/internal/task"
)

var runFlags struct {
	headless       bool
	noSkipExisting bool
	backend        string
	kind           string
	logFile        string
}

var runCmd = &cobra.Command{
	Use:   "run <tasks-file>",
	Short: "Execute every task in a markdown task document",
	Args:  cobra.ExactArgs(1),
	RunE:  runBatch,
}

func init() {
	runCmd.Flags().BoolVar(&runFlags.headless, "headless", false,
		"run browser sessions without a visible window")
	runCmd.Flags().BoolVar(&runFlags.noSkipExisting, "no-skip-existing", false,
		"re-run tasks whose output already exists in the store")
	runCmd.Flags().StringVar(&runFlags.backend, "backend", "",
		"only run tasks for this backend")
	runCmd.Flags().StringVar(&runFlags.kind, "kind", "",
		"only run tasks of this kind (image, text, code, other)")
	runCmd.Flags().StringVar(&runFlags.logFile, "log-file", "",
		"write structured logs to this file instead of stderr")

	rootCmd.AddCommand(runCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	if cmd.Flags().Changed("headless") {
		cfg.Browser.Headless = runFlags.headless
	}
	if runFlags.noSkipExisting {
		cfg.Run.SkipExisting = false
	}
	if runFlags.logFile != "" {
		cfg.Logging.File = runFlags.logFile
	}

	log, err := newRunLogger(cfg)
	if err != nil {
		return fmt.Errorf("setting up logging: %w", err)
	}
	defer log.Close()

	tasks, err := task.ParseFile(args[0], task.Options{DefaultBackend: cfg.Run.DefaultBackend})
	if err != nil {
		return err
	}
	tasks = applyFilters(tasks, runFlags.backend, runFlags.kind)
	if len(tasks) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No tasks to run.")
		return nil
	}

	st, err := store.New(cfg.Paths.StagingDir, cfg.Paths.ArtifactsDir, log)
	if err != nil {
		return err
	}

	orch := orchestrator.New(cfg, log, st, webdriver.Factory(cfg.Browser.WebDriverURL))
	defer orch.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, runErr := orch.Run(ctx, tasks)
	fmt.Fprint(cmd.OutOrStdout(), renderSummary(summary))

	if runErr != nil {
		return fmt.Errorf("run aborted: %w", runErr)
	}
	if _, failed, _ := summary.Counts(); failed > 0 {
		return fmt.Errorf("%d task(s) failed", failed)
	}
	return nil
}

// newRunLogger builds the run's logger from config. Disabled logging still
// returns a usable no-op logger.
func newRunLogger(cfg *config.Config) (*logging.Logger, error) {
	if !cfg.Logging.Enabled {
		return logging.NopLogger(), nil
	}
	return logging.NewLogger(cfg.Logging.File, cfg.Logging.Level)
}

// applyFilters narrows the task list to the requested backend and kind.
// Empty filters keep everything.
func applyFilters(tasks []task.Task, backend, kind string) []task.Task {
	if backend != "" {
		tasks = task.FilterByBackend(tasks, backend)
	}
	if kind != "" {
		tasks = task.FilterByKind(tasks, task.ParseKind(kind))
	}
	return tasks
}
