package cmd

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/twiced-technology-gmbh/housekeep/internal/clierr"
	"github.com/twiced-technology-gmbh/housekeep/internal/date"
	"github.com/twiced-technology-gmbh/housekeep/internal/output"
	"github.com/twiced-technology-gmbh/housekeep/internal/syncer"
	"github.com/twiced-technology-gmbh/housekeep/internal/task"
)

var editCmd = &cobra.Command{
	Use:   "edit ID[,ID,...]",
	Short: "Edit a task",
	Long: `Modifies fields of an existing task. Only specified fields are changed.
Use complete, postpone, reactivate or cancel to change the status.
Multiple IDs can be provided as a comma-separated list.`,
	Args: cobra.ExactArgs(1),
	RunE: runEdit,
}

func init() {
	editCmd.Flags().String("name", "", "new name")
	editCmd.Flags().Int("priority", 0, "new priority (1-5)")
	editCmd.Flags().String("due", "", "new due date (YYYY-MM-DD)")
	editCmd.Flags().Int("in", 0, "due in N days from today")
	editCmd.Flags().Bool("clear-due", false, "clear due date")
	editCmd.Flags().String("assigned-to", "", "new assignee")
	editCmd.Flags().Bool("unassign", false, "clear assignee")
	editCmd.Flags().String("type", "", "new type")
	editCmd.Flags().String("description", "", "new description (replaces the whole text)")
	editCmd.Flags().StringP("append-description", "a", "", "append text to the description")
	editCmd.Flags().BoolP("timestamp", "t", false, "prefix a timestamp line when appending")
	editCmd.Flags().SetNormalizeFunc(taskFlagAliases)
	rootCmd.AddCommand(editCmd)
}

func runEdit(cmd *cobra.Command, args []string) error {
	ids, err := parseIDs(args[0])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	// Single ID: full output.
	if len(ids) == 1 {
		out, err := executeEdit(ctx, a.coord, ids[0], cmd)
		if err != nil {
			return err
		}
		return outputEditResult(ctx, a.coord, out)
	}

	return runBatch(ids, "Updated", func(id int) (syncer.Outcome, error) {
		return executeEdit(ctx, a.coord, id, cmd)
	})
}

// executeEdit performs the core edit: read, apply, validate, write.
func executeEdit(ctx context.Context, c *syncer.Coordinator, id int, cmd *cobra.Command) (syncer.Outcome, error) {
	t, err := c.Get(ctx, id)
	if err != nil {
		return syncer.Outcome{}, err
	}

	changed, err := applyEditFlags(cmd, t, date.Today(), time.Now())
	if err != nil {
		return syncer.Outcome{}, err
	}
	if !changed {
		return syncer.Outcome{}, clierr.New(clierr.NoChanges, "no changes specified")
	}

	return c.Update(ctx, *t)
}

func outputEditResult(ctx context.Context, c *syncer.Coordinator, out syncer.Outcome) error {
	t := out.Task
	if outputFormat() == output.FormatJSON {
		return output.JSON(os.Stdout, taskResult{Task: &t, Queued: out.Queued})
	}
	if out.Queued {
		output.Queuedf(os.Stdout, "Updated task #%d: %s", t.ID, t.Name)
		printPending(ctx, c)
		return nil
	}
	output.Messagef(os.Stdout, "Updated task #%d: %s", t.ID, t.Name)
	return nil
}

func applyEditFlags(cmd *cobra.Command, t *task.Task, today date.Date, now time.Time) (bool, error) {
	changed := false

	for _, fn := range []func(*cobra.Command, *task.Task, date.Date) (bool, error){
		applyFieldFlags,
		applyDueFlags,
	} {
		c, err := fn(cmd, t, today)
		if err != nil {
			return false, err
		}
		if c {
			changed = true
		}
	}

	c, err := applyDescriptionFlags(cmd, t, now)
	if err != nil {
		return false, err
	}
	return changed || c, nil
}

func applyFieldFlags(cmd *cobra.Command, t *task.Task, _ date.Date) (bool, error) {
	changed := false

	if v, _ := cmd.Flags().GetString("name"); v != "" {
		t.Name = v
		changed = true
	}
	if cmd.Flags().Changed("priority") {
		v, _ := cmd.Flags().GetInt("priority")
		if err := task.ValidatePriority(v); err != nil {
			return false, err
		}
		t.Priority = v
		changed = true
	}

	assignSet := cmd.Flags().Changed("assigned-to")
	unassign, _ := cmd.Flags().GetBool("unassign")
	if assignSet && unassign {
		return false, clierr.New(clierr.InvalidInput, "cannot use --assigned-to and --unassign together")
	}
	if assignSet {
		t.AssignedTo, _ = cmd.Flags().GetString("assigned-to")
		changed = true
	}
	if unassign {
		t.AssignedTo = ""
		changed = true
	}
	if cmd.Flags().Changed("type") {
		t.Type, _ = cmd.Flags().GetString("type")
		changed = true
	}

	return changed, nil
}

func applyDueFlags(cmd *cobra.Command, t *task.Task, today date.Date) (bool, error) {
	dueSet := cmd.Flags().Changed("due")
	inSet := cmd.Flags().Changed("in")
	clearDue, _ := cmd.Flags().GetBool("clear-due")

	set := 0
	for _, b := range []bool{dueSet, inSet, clearDue} {
		if b {
			set++
		}
	}
	if set > 1 {
		return false, clierr.New(clierr.InvalidInput, "use only one of --due, --in and --clear-due")
	}

	switch {
	case dueSet:
		v, _ := cmd.Flags().GetString("due")
		d, err := date.Parse(v)
		if err != nil {
			return false, task.ValidateDate("due", v, err)
		}
		t.Due = &d
	case inSet:
		n, _ := cmd.Flags().GetInt("in")
		if n < 0 {
			return false, clierr.Newf(clierr.InvalidInput, "--in must not be negative, got %d", n)
		}
		t.Due = today.AddDays(n).Ptr()
	case clearDue:
		t.Due = nil
	default:
		return false, nil
	}
	return true, nil
}

func applyDescriptionFlags(cmd *cobra.Command, t *task.Task, now time.Time) (bool, error) {
	descSet := cmd.Flags().Changed("description")
	appendSet := cmd.Flags().Changed("append-description")
	if descSet && appendSet {
		return false, clierr.New(clierr.InvalidInput, "cannot use --description and --append-description together")
	}
	if descSet {
		t.Description, _ = cmd.Flags().GetString("description")
		return true, nil
	}
	if appendSet {
		v, _ := cmd.Flags().GetString("append-description")
		ts, _ := cmd.Flags().GetBool("timestamp")
		t.Description = appendDescription(t.Description, v, ts, now)
		return true, nil
	}
	return false, nil
}

// appendDescription appends text to the existing description, optionally
// prefixed with a timestamp line.
func appendDescription(existing, text string, addTimestamp bool, now time.Time) string {
	var b strings.Builder

	if existing != "" {
		b.WriteString(strings.TrimRight(existing, "\n"))
		b.WriteString("\n\n")
	}

	if addTimestamp {
		b.WriteString(now.Format("2006-01-02 Mon 15:04"))
		b.WriteByte('\n')
	}

	b.WriteString(text)

	return b.String()
}
