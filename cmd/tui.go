package cmd

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/twiced-technology-gmbh/housekeep/internal/tui"
	"github.com/twiced-technology-gmbh/housekeep/internal/watcher"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the interactive task board",
	Long: `Opens a full-screen board with one column per status. Tasks can be
completed, cancelled, reactivated, postponed and deleted from the board;
press s to sync queued changes. The board reloads when the tasks change on
disk.`,
	Args: cobra.NoArgs,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	model := tui.NewBoard(a.coord, a.cfg.Name)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))

	go startTUIWatcher(ctx, watchPaths(a.cfg), p)

	_, err = p.Run()
	return err
}

func startTUIWatcher(ctx context.Context, paths []string, p *tea.Program) {
	w, err := watcher.New(paths, func() {
		p.Send(tui.ReloadMsg{})
	})
	if err != nil {
		return // non-fatal: TUI works without live refresh
	}
	defer w.Close()
	w.Run(ctx, nil)
}
