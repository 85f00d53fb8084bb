package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/twiced-technology-gmbh/housekeep/internal/board"
	"github.com/twiced-technology-gmbh/housekeep/internal/clierr"
	"github.com/twiced-technology-gmbh/housekeep/internal/config"
	"github.com/twiced-technology-gmbh/housekeep/internal/date"
	"github.com/twiced-technology-gmbh/housekeep/internal/output"
	"github.com/twiced-technology-gmbh/housekeep/internal/watcher"
)

var flagWatch bool

var boardCmd = &cobra.Command{
	Use:     "board",
	Aliases: []string{"summary"},
	Short:   "Show household summary",
	Long: `Displays a summary of all tasks: counts per status and priority, tasks due
within a week, and the number of changes waiting to sync.

Use --watch to keep the display live-updating. The summary re-renders
whenever task files or the pending queue change on disk.
Press Ctrl+C to stop.`,
	RunE: runBoard,
}

func init() {
	rootCmd.AddCommand(boardCmd)
	boardCmd.Flags().BoolVarP(&flagWatch, "watch", "w", false, "live-update the summary on file changes")
	boardCmd.Flags().String("group-by", "", "group summary by field ("+strings.Join(board.ValidGroupByFields(), ", ")+")")
}

func runBoard(cmd *cobra.Command, _ []string) error {
	groupBy, _ := cmd.Flags().GetString("group-by")
	if groupBy != "" && !slices.Contains(board.ValidGroupByFields(), groupBy) {
		return clierr.Newf(clierr.InvalidInput, "invalid --group-by field %q; valid: %s",
			groupBy, strings.Join(board.ValidGroupByFields(), ", "))
	}

	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	// Render once.
	if err := renderBoard(ctx, a, groupBy); err != nil {
		return err
	}

	if !flagWatch {
		return nil
	}

	return watchBoard(ctx, a, groupBy)
}

func renderBoard(ctx context.Context, a *app, groupBy string) error {
	view, err := a.coord.List(ctx)
	if err != nil {
		return err
	}

	if groupBy != "" {
		return outputGroupedList(view.Tasks, groupBy)
	}

	summary := board.Summary(a.cfg.Name, view.Tasks, date.Today(), view.Pending)
	summary.Offline = view.Offline

	switch outputFormat() {
	case output.FormatJSON:
		return output.JSON(os.Stdout, summary)
	case output.FormatCompact:
		output.OverviewCompact(os.Stdout, summary)
	default:
		output.OverviewTable(os.Stdout, summary)
	}
	return nil
}

func watchBoard(ctx context.Context, a *app, groupBy string) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w, err := watcher.New(watchPaths(a.cfg), func() {
		clearScreen()
		if renderErr := renderBoard(ctx, a, groupBy); renderErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: rendering summary: %v\n", renderErr)
		}
	})
	if err != nil {
		return fmt.Errorf("starting file watcher: %w", err)
	}
	defer w.Close()

	fmt.Fprintln(os.Stderr, "Watching for changes... (Ctrl+C to stop)")

	w.Run(ctx, func(watchErr error) {
		fmt.Fprintf(os.Stderr, "Warning: file watcher: %v\n", watchErr)
	})

	return nil
}

// watchPaths returns the directories whose changes affect the task view:
// the housekeep directory (queue file) and, for the file backend, the
// tasks directory.
func watchPaths(cfg *config.Config) []string {
	paths := []string{cfg.Dir()}
	if cfg.Store.Backend == config.BackendFile {
		if _, err := os.Stat(cfg.TasksPath()); err == nil {
			paths = append(paths, cfg.TasksPath())
		}
	}
	return paths
}

// clearScreen sends ANSI escape codes to clear the terminal and move the
// cursor to the top-left corner.
func clearScreen() {
	fmt.Fprint(os.Stdout, "\033[2J\033[H")
}
