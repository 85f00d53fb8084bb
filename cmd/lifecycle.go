package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/twiced-technology-gmbh/housekeep/internal/output"
	"github.com/twiced-technology-gmbh/housekeep/internal/syncer"
)

// lifecycleOp changes the status of one task.
type lifecycleOp func(ctx context.Context, c *syncer.Coordinator, id int) (syncer.Outcome, error)

func newLifecycleCmd(use, short, long, verb string, op lifecycleOp) *cobra.Command {
	return &cobra.Command{
		Use:   use + " ID[,ID,...]",
		Short: short,
		Long:  long + "\nMultiple IDs can be provided as a comma-separated list. Put -- before\nthe temporary negative ID of a queued task.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLifecycle(cmd.Context(), args[0], verb, op)
		},
	}
}

var completeCmd = newLifecycleCmd("complete", "Mark a task as done",
	"Marks a task completed and records today as its last completion date.\nCancelled tasks cannot be completed.",
	"Completed",
	func(ctx context.Context, c *syncer.Coordinator, id int) (syncer.Outcome, error) {
		return c.Complete(ctx, id)
	})

var cancelCmd = newLifecycleCmd("cancel", "Cancel a task",
	"Marks a task cancelled. Completed tasks cannot be cancelled.",
	"Cancelled",
	func(ctx context.Context, c *syncer.Coordinator, id int) (syncer.Outcome, error) {
		return c.Cancel(ctx, id)
	})

var reactivateCmd = newLifecycleCmd("reactivate", "Make a task active again",
	"Returns a completed, postponed, cancelled or overdue task to active.",
	"Reactivated",
	func(ctx context.Context, c *syncer.Coordinator, id int) (syncer.Outcome, error) {
		return c.Reactivate(ctx, id)
	})

var postponeCmd = &cobra.Command{
	Use:   "postpone ID[,ID,...]",
	Short: "Push a task's due date back",
	Long: `Moves the due date of an open task forward by --days
(default 1) and marks it postponed.
Multiple IDs can be provided as a comma-separated list.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		days, _ := cmd.Flags().GetInt("days")
		return runLifecycle(cmd.Context(), args[0], "Postponed",
			func(ctx context.Context, c *syncer.Coordinator, id int) (syncer.Outcome, error) {
				return c.Postpone(ctx, id, days)
			})
	},
}

func init() {
	postponeCmd.Flags().IntP("days", "d", 1, "number of days to postpone")
	rootCmd.AddCommand(completeCmd, cancelCmd, reactivateCmd, postponeCmd)
}

func runLifecycle(ctx context.Context, arg, verb string, op lifecycleOp) error {
	ids, err := parseIDs(arg)
	if err != nil {
		return err
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	// Single ID: full output.
	if len(ids) == 1 {
		out, err := op(ctx, a.coord, ids[0])
		if err != nil {
			return err
		}
		return outputLifecycleResult(ctx, a.coord, verb, out)
	}

	return runBatch(ids, verb, func(id int) (syncer.Outcome, error) {
		return op(ctx, a.coord, id)
	})
}

func outputLifecycleResult(ctx context.Context, c *syncer.Coordinator, verb string, out syncer.Outcome) error {
	t := out.Task
	if outputFormat() == output.FormatJSON {
		return output.JSON(os.Stdout, taskResult{Task: &t, Queued: out.Queued})
	}

	msg := "%s task #%d: %s (%s"
	args := []any{verb, t.ID, t.Name, t.Status}
	if t.Due != nil {
		msg += ", due %s"
		args = append(args, t.Due.String())
	}
	msg += ")"

	if out.Queued {
		output.Queuedf(os.Stdout, msg, args...)
		printPending(ctx, c)
		return nil
	}
	output.Messagef(os.Stdout, msg, args...)
	return nil
}
