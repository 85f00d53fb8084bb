package cmd

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/twiced-technology-gmbh/housekeep/internal/clierr"
	"github.com/twiced-technology-gmbh/housekeep/internal/date"
	"github.com/twiced-technology-gmbh/housekeep/internal/output"
	"github.com/twiced-technology-gmbh/housekeep/internal/syncer"
	"github.com/twiced-technology-gmbh/housekeep/internal/task"
)

var addCmd = &cobra.Command{
	Use:     "add [NAME]",
	Aliases: []string{"create"},
	Short:   "Add a new task",
	Long: `Adds a new active task. Name can be provided as a positional argument or
via --name. When the store is unreachable the task is queued and gets a
temporary negative ID until it is synced.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAdd,
}

func init() {
	addCmd.Flags().String("name", "", "task name (alternative to positional argument)")
	addCmd.Flags().Int("priority", 0, "priority 1 (highest) to 5 (default from config)")
	addCmd.Flags().String("due", "", "due date (YYYY-MM-DD)")
	addCmd.Flags().Int("in", 0, "due in N days (alternative to --due)")
	addCmd.Flags().String("assigned-to", "", "who does the task")
	addCmd.Flags().String("type", "", "task category, e.g. kitchen or garden")
	addCmd.Flags().String("description", "", "free text description (markdown)")
	addCmd.Flags().SetNormalizeFunc(taskFlagAliases)
	rootCmd.AddCommand(addCmd)
}

// taskFlagAliases maps shorthand flag names used by add and edit.
func taskFlagAliases(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	switch name {
	case "assign", "assignee":
		name = "assigned-to"
	case "body", "desc":
		name = "description"
	}
	return pflag.NormalizedName(name)
}

func runAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	name, err := resolveAddName(cmd, args)
	if err != nil {
		return err
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	priority := a.cfg.Defaults.Priority
	if cmd.Flags().Changed("priority") {
		priority, _ = cmd.Flags().GetInt("priority")
	}
	t := task.New(name, priority)
	t.AssignedTo = a.cfg.Defaults.AssignedTo

	if err := applyAddFlags(cmd, &t, date.Today()); err != nil {
		return err
	}

	out, err := a.coord.Add(ctx, t)
	if err != nil {
		return err
	}
	return outputAddResult(ctx, a.coord, out)
}

func outputAddResult(ctx context.Context, c *syncer.Coordinator, out syncer.Outcome) error {
	t := out.Task
	if outputFormat() == output.FormatJSON {
		return output.JSON(os.Stdout, taskResult{Task: &t, Queued: out.Queued})
	}

	if out.Queued {
		output.Queuedf(os.Stdout, "Added task #%d: %s", t.ID, t.Name)
	} else {
		output.Messagef(os.Stdout, "Added task #%d: %s", t.ID, t.Name)
	}
	output.Messagef(os.Stdout, "  Priority: %d | Due: %s", t.Priority, dueOrNone(t.Due))
	if t.AssignedTo != "" {
		output.Messagef(os.Stdout, "  Assigned to: %s", t.AssignedTo)
	}
	if t.Type != "" {
		output.Messagef(os.Stdout, "  Type: %s", t.Type)
	}
	if out.Queued {
		printPending(ctx, c)
	}
	return nil
}

// resolveAddName returns the task name from either the positional arg or --name flag.
func resolveAddName(cmd *cobra.Command, args []string) (string, error) {
	flagName, _ := cmd.Flags().GetString("name")
	hasPositional := len(args) > 0
	hasFlag := flagName != ""

	switch {
	case hasPositional && hasFlag:
		return "", clierr.New(clierr.InvalidInput,
			"name provided both as argument and --name flag; use one or the other")
	case hasPositional:
		return args[0], nil
	case hasFlag:
		return flagName, nil
	default:
		return "", errors.New("name is required: provide it as an argument or with --name")
	}
}

func applyAddFlags(cmd *cobra.Command, t *task.Task, today date.Date) error {
	dueSet := cmd.Flags().Changed("due")
	inSet := cmd.Flags().Changed("in")
	if dueSet && inSet {
		return clierr.New(clierr.InvalidInput, "cannot use --due and --in together")
	}
	if v, _ := cmd.Flags().GetString("due"); v != "" {
		d, err := date.Parse(v)
		if err != nil {
			return task.ValidateDate("due", v, err)
		}
		t.Due = &d
	}
	if inSet {
		n, _ := cmd.Flags().GetInt("in")
		if n < 0 {
			return clierr.Newf(clierr.InvalidInput, "--in must not be negative, got %d", n)
		}
		t.Due = today.AddDays(n).Ptr()
	}
	if v, _ := cmd.Flags().GetString("assigned-to"); v != "" {
		t.AssignedTo = v
	}
	if v, _ := cmd.Flags().GetString("type"); v != "" {
		t.Type = v
	}
	if v, _ := cmd.Flags().GetString("description"); v != "" {
		t.Description = v
	}
	return nil
}

// taskResult wraps a task with the queued flag for JSON output.
type taskResult struct {
	*task.Task
	Queued bool `json:"queued"`
}

func dueOrNone(d *date.Date) string {
	if d == nil {
		return "none"
	}
	return d.String()
}

// printPending writes the pending indicator to stderr so that stdout stays
// parseable.
func printPending(ctx context.Context, c *syncer.Coordinator) {
	n, err := c.Pending(ctx)
	if err != nil {
		return
	}
	output.PendingIndicator(os.Stderr, n, false)
}
