// Package cmd implements the housekeep CLI commands.
package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/twiced-technology-gmbh/housekeep/internal/board"
	"github.com/twiced-technology-gmbh/housekeep/internal/clierr"
	"github.com/twiced-technology-gmbh/housekeep/internal/config"
	"github.com/twiced-technology-gmbh/housekeep/internal/output"
	"github.com/twiced-technology-gmbh/housekeep/internal/store"
	"github.com/twiced-technology-gmbh/housekeep/internal/syncer"
	"github.com/twiced-technology-gmbh/housekeep/internal/task"
)

// version is set at build time via ldflags.
var version = "dev"

// Global flags.
var (
	flagJSON    bool
	flagTable   bool
	flagCompact bool
	flagDir     string
	flagNoColor bool
)

var rootCmd = &cobra.Command{
	Use:   "housekeep",
	Short: "Track recurring household tasks, online or off",
	Long: `housekeep keeps track of recurring household chores. Writes made while the
task store is unreachable are queued locally and synced once it is back.
Run housekeep without a command to see what is due today.`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE:          runToday,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		if flagNoColor || os.Getenv("NO_COLOR") != "" {
			output.DisableColor()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVar(&flagTable, "table", false, "output as table")
	rootCmd.PersistentFlags().BoolVar(&flagCompact, "compact", false, "compact one-line-per-record output")
	rootCmd.PersistentFlags().BoolVar(&flagCompact, "oneline", false, "alias for --compact")
	rootCmd.PersistentFlags().StringVar(&flagDir, "dir", "", "path to housekeep directory")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "disable color output")
}

// Execute runs the root command and exits with the command's exit code.
func Execute() {
	os.Exit(Main())
}

// Main runs the root command and returns the process exit code.
func Main() int {
	_, err := rootCmd.ExecuteC()
	if err == nil {
		return 0
	}

	// SilentError: exit with code, no output.
	var silent *clierr.SilentError
	if errors.As(err, &silent) {
		return silent.Code
	}

	err = cliError(err)

	if outputFormat() == output.FormatJSON {
		output.JSONError(os.Stdout, err)
		var cliErr *clierr.Error
		if errors.As(err, &cliErr) {
			return cliErr.ExitCode()
		}
		return 2 //nolint:mnd // exit code 2 for internal errors
	}

	fmt.Fprintln(os.Stderr, "Error:", err)
	var cliErr *clierr.Error
	if errors.As(err, &cliErr) {
		return cliErr.ExitCode()
	}
	return 1
}

// cliError gives store and config errors a stable code.
func cliError(err error) error {
	var cliErr *clierr.Error
	if errors.As(err, &cliErr) {
		return err
	}
	var storeErr *store.Error
	switch {
	case store.IsNotFound(err):
		id := 0
		if errors.As(err, &storeErr) {
			id = storeErr.ID
		}
		return clierr.Newf(clierr.TaskNotFound, "task #%d not found", id).
			WithDetails(map[string]any{"id": id})
	case errors.Is(err, config.ErrNotFound):
		return clierr.New(clierr.HomeNotFound, err.Error())
	case errors.Is(err, config.ErrInvalid):
		return clierr.New(clierr.ValidationError, err.Error())
	case errors.As(err, &storeErr):
		return clierr.New(clierr.StorageError, err.Error()).
			WithDetails(map[string]any{"transient": store.IsTransient(err)})
	}
	return err
}

// resolveDir returns the housekeep directory: --dir, or the nearest
// housekeep directory above the working directory.
func resolveDir() (string, error) {
	if flagDir != "" {
		return flagDir, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting working directory: %w", err)
	}
	return config.FindDir(cwd)
}

// loadConfig finds and loads the config and applies environment overrides.
func loadConfig() (*config.Config, error) {
	dir, err := resolveDir()
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// outputFormat returns the detected output format from flags/env.
func outputFormat() output.Format {
	return output.Detect(flagJSON, flagTable, flagCompact)
}

// parseIDs splits a comma-separated ID string into deduplicated int IDs.
func parseIDs(arg string) ([]int, error) {
	return board.ParseIDs(arg)
}

// parseID parses a single task ID argument.
func parseID(arg string) (int, error) {
	ids, err := parseIDs(arg)
	if err != nil || len(ids) != 1 {
		return 0, task.ValidateTaskID(arg)
	}
	return ids[0], nil
}

// batchFunc performs one operation of a batch.
type batchFunc func(id int) (syncer.Outcome, error)

// runBatch executes fn for each ID and collects results. Returns a SilentError
// with exit code 1 if any operation failed (after outputting results).
func runBatch(ids []int, verb string, fn batchFunc) error {
	results := make([]output.TaskResult, 0, len(ids))
	anyFailed := false

	for _, id := range ids {
		out, err := fn(id)
		if err != nil {
			anyFailed = true
			err = cliError(err)
		}
		results = append(results, output.ResultFor(id, out, err))
	}

	if outputFormat() == output.FormatJSON {
		if err := output.JSON(os.Stdout, results); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			if !r.OK {
				fmt.Fprintf(os.Stderr, "Error: task #%d: %s\n", r.ID, r.Error)
			}
		}
		succeeded, queued := output.Tally(results)
		if queued > 0 {
			output.Queuedf(os.Stdout, "%s %d/%d tasks, %d", verb, succeeded, len(ids), queued)
		} else {
			output.Messagef(os.Stdout, "%s %d/%d tasks", verb, succeeded, len(ids))
		}
	}

	if anyFailed {
		return &clierr.SilentError{Code: 1}
	}
	return nil
}

// defaultName returns the household name used when init gets no --name.
func defaultName() string {
	cwd, err := os.Getwd()
	if err != nil {
		return "home"
	}
	return filepath.Base(cwd)
}
