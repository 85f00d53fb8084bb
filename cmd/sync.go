package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/twiced-technology-gmbh/housekeep/internal/clierr"
	"github.com/twiced-technology-gmbh/housekeep/internal/output"
	"github.com/twiced-technology-gmbh/housekeep/internal/queue"
	"github.com/twiced-technology-gmbh/housekeep/internal/store"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Replay queued changes to the store",
	Long: `Applies the changes that were queued while the store was unreachable, oldest
first. Syncing stops at the first change that fails; it and everything after
it stay queued. Exits with status 1 when changes remain.`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List changes waiting to sync",
	Args:  cobra.NoArgs,
	RunE:  runPendingList,
}

var pendingDropCmd = &cobra.Command{
	Use:   "drop OP_ID",
	Short: "Discard one queued change",
	Long: `Removes a queued change by its ID (any unique prefix). Dropping the queued
creation of a task also drops the later changes to that task.`,
	Args: cobra.ExactArgs(1),
	RunE: runPendingDrop,
}

var pendingClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Discard every queued change",
	Args:  cobra.NoArgs,
	RunE:  runPendingClear,
}

func init() {
	pendingClearCmd.Flags().BoolP("yes", "y", false, "confirm discarding all queued changes")
	pendingCmd.AddCommand(pendingDropCmd, pendingClearCmd)
	rootCmd.AddCommand(syncCmd, pendingCmd)
}

// syncResult is the JSON shape of sync output.
type syncResult struct {
	Applied   int         `json:"applied"`
	Remaining int         `json:"remaining"`
	Remapped  map[int]int `json:"remapped,omitempty"`
	Failed    *queue.Op   `json:"failed,omitempty"`
	Error     string      `json:"error,omitempty"`
}

func runSync(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	res, drainErr := a.coord.Drain(ctx)
	if drainErr != nil && res.Failed == nil {
		// The queue itself could not be read or rewritten.
		return drainErr
	}

	if outputFormat() == output.FormatJSON {
		out := syncResult{Applied: res.Applied, Remaining: res.Remaining, Remapped: res.Remapped, Failed: res.Failed}
		if drainErr != nil {
			out.Error = drainErr.Error()
		}
		if err := output.JSON(os.Stdout, out); err != nil {
			return err
		}
	} else {
		output.DrainSummary(os.Stdout, res)
		if drainErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", syncHint(drainErr))
		}
	}

	if res.Remaining > 0 {
		return &clierr.SilentError{Code: 1}
	}
	return nil
}

// syncHint explains what to do about the change that stopped a sync.
func syncHint(err error) string {
	if store.IsTransient(err) {
		return err.Error() + " (store still unreachable, try again later)"
	}
	return err.Error() + " (fix the task or discard the change with 'housekeep pending drop')"
}

func runPendingList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	ops, err := a.coord.PendingOps(ctx)
	if err != nil {
		return err
	}

	switch outputFormat() {
	case output.FormatJSON:
		if ops == nil {
			ops = []queue.Op{}
		}
		return output.JSON(os.Stdout, ops)
	case output.FormatCompact:
		output.PendingCompact(os.Stdout, ops)
	default:
		output.PendingTable(os.Stdout, ops, time.Now())
	}
	return nil
}

func runPendingDrop(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	dropped, err := a.coord.Drop(ctx, args[0])
	if err != nil {
		return err
	}

	if outputFormat() == output.FormatJSON {
		return output.JSON(os.Stdout, map[string]any{"dropped": dropped})
	}
	for _, op := range dropped {
		output.Messagef(os.Stdout, "Dropped %s", op)
	}
	return nil
}

func runPendingClear(cmd *cobra.Command, _ []string) error {
	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		return clierr.New(clierr.ConfirmationReq, "clearing the queue requires --yes")
	}

	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.coord.ClearPending(ctx)
	if err != nil {
		return err
	}

	if outputFormat() == output.FormatJSON {
		return output.JSON(os.Stdout, map[string]int{"cleared": n})
	}
	output.Messagef(os.Stdout, "Discarded %d queued change(s)", n)
	return nil
}
