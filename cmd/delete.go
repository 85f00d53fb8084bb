package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/twiced-technology-gmbh/housekeep/internal/clierr"
	"github.com/twiced-technology-gmbh/housekeep/internal/output"
	"github.com/twiced-technology-gmbh/housekeep/internal/store"
	"github.com/twiced-technology-gmbh/housekeep/internal/syncer"
)

var deleteCmd = &cobra.Command{
	Use:     "delete ID[,ID,...]",
	Aliases: []string{"rm"},
	Short:   "Delete a task",
	Long: `Removes a task permanently. Prompts for confirmation in interactive mode.
Use cancel to keep the task around. Multiple IDs can be provided as a
comma-separated list (requires --yes).`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func init() {
	deleteCmd.Flags().BoolP("yes", "y", false, "skip confirmation prompt")
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	ids, err := parseIDs(args[0])
	if err != nil {
		return err
	}

	yes, _ := cmd.Flags().GetBool("yes")

	// Batch mode requires --yes.
	if len(ids) > 1 && !yes {
		return clierr.New(clierr.ConfirmationReq,
			"batch delete requires --yes")
	}

	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if len(ids) > 1 {
		return runBatch(ids, "Deleted", func(id int) (syncer.Outcome, error) {
			return a.coord.Delete(ctx, id)
		})
	}

	id := ids[0]
	name := fmt.Sprintf("#%d", id)
	if t, err := a.coord.Get(ctx, id); err == nil {
		name = fmt.Sprintf("#%d %q", id, t.Name)
	} else if !store.IsTransient(err) {
		return err
	}

	// Require confirmation in TTY mode unless --yes.
	if !yes {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return clierr.New(clierr.ConfirmationReq,
				"cannot prompt for confirmation (not a terminal); use --yes")
		}
		fmt.Fprintf(os.Stderr, "Delete task %s? [y/N] ", name)
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		answer = strings.TrimSpace(strings.ToLower(answer))
		if answer != "y" && answer != "yes" {
			fmt.Fprintln(os.Stderr, "Canceled.")
			return nil
		}
	}

	out, err := a.coord.Delete(ctx, id)
	if err != nil {
		return err
	}

	if outputFormat() == output.FormatJSON {
		return output.JSON(os.Stdout, map[string]any{
			"status": "deleted",
			"id":     id,
			"queued": out.Queued,
		})
	}

	if out.Queued {
		output.Queuedf(os.Stdout, "Deleted task %s", name)
		printPending(ctx, a.coord)
		return nil
	}
	output.Messagef(os.Stdout, "Deleted task %s", name)
	return nil
}
