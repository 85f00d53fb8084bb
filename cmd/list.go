package cmd

import (
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/twiced-technology-gmbh/housekeep/internal/board"
	"github.com/twiced-technology-gmbh/housekeep/internal/clierr"
	"github.com/twiced-technology-gmbh/housekeep/internal/date"
	"github.com/twiced-technology-gmbh/housekeep/internal/output"
	"github.com/twiced-technology-gmbh/housekeep/internal/syncer"
	"github.com/twiced-technology-gmbh/housekeep/internal/task"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List tasks",
	Long: `Lists tasks with optional filtering, sorting, and output format control.
Cancelled tasks are hidden unless --all or --status is given. Tasks with
changes waiting to sync are marked with *.`,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringSlice("status", nil, "filter by status (comma-separated)")
	listCmd.Flags().IntSlice("priority", nil, "filter by priority (comma-separated)")
	listCmd.Flags().String("assigned-to", "", "filter by assignee")
	listCmd.Flags().String("type", "", "filter by type")
	listCmd.Flags().String("due-by", "", "only tasks due on or before this date (YYYY-MM-DD)")
	listCmd.Flags().String("sort", "due", "sort field ("+strings.Join(board.SortFields, ", ")+")")
	listCmd.Flags().BoolP("reverse", "r", false, "reverse sort order")
	listCmd.Flags().IntP("limit", "n", 0, "limit number of results")
	listCmd.Flags().StringP("search", "s", "", "search name, description and type (case-insensitive)")
	listCmd.Flags().BoolP("all", "a", false, "include cancelled tasks")
	listCmd.Flags().String("group-by", "", "group results by field ("+strings.Join(board.ValidGroupByFields(), ", ")+")")
	listCmd.Flags().SetNormalizeFunc(taskFlagAliases)
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	filter, err := listFilter(cmd)
	if err != nil {
		return err
	}
	sortBy, _ := cmd.Flags().GetString("sort")
	reverse, _ := cmd.Flags().GetBool("reverse")
	limit, _ := cmd.Flags().GetInt("limit")
	groupBy, _ := cmd.Flags().GetString("group-by")

	if !slices.Contains(board.SortFields, sortBy) {
		return clierr.Newf(clierr.InvalidInput, "invalid --sort field %q; valid: %s",
			sortBy, strings.Join(board.SortFields, ", "))
	}
	if groupBy != "" && !slices.Contains(board.ValidGroupByFields(), groupBy) {
		return clierr.Newf(clierr.InvalidInput, "invalid --group-by field %q; valid: %s",
			groupBy, strings.Join(board.ValidGroupByFields(), ", "))
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	view, err := a.coord.List(ctx)
	if err != nil {
		return err
	}

	tasks := board.Filter(view.Tasks, filter)
	board.Sort(tasks, sortBy, reverse)
	if limit > 0 && len(tasks) > limit {
		tasks = tasks[:limit]
	}

	if groupBy != "" {
		return outputGroupedList(tasks, groupBy)
	}
	return outputTaskList(tasks, view)
}

func listFilter(cmd *cobra.Command) (board.FilterOptions, error) {
	var filter board.FilterOptions

	statuses, _ := cmd.Flags().GetStringSlice("status")
	for _, s := range statuses {
		st, err := task.ParseStatus(s)
		if err != nil {
			return filter, err
		}
		filter.Statuses = append(filter.Statuses, st)
	}
	all, _ := cmd.Flags().GetBool("all")
	if !all && len(filter.Statuses) == 0 {
		filter.ExcludeStatuses = []task.Status{task.Cancelled}
	}

	filter.Priorities, _ = cmd.Flags().GetIntSlice("priority")
	for _, p := range filter.Priorities {
		if err := task.ValidatePriority(p); err != nil {
			return filter, err
		}
	}
	filter.AssignedTo, _ = cmd.Flags().GetString("assigned-to")
	filter.Type, _ = cmd.Flags().GetString("type")
	filter.Search, _ = cmd.Flags().GetString("search")

	if v, _ := cmd.Flags().GetString("due-by"); v != "" {
		d, err := date.Parse(v)
		if err != nil {
			return filter, task.ValidateDate("due-by", v, err)
		}
		filter.DueBy = &d
	}
	return filter, nil
}

// listResult is the JSON shape of list output.
type listResult struct {
	Tasks   []task.Task `json:"tasks"`
	Pending int         `json:"pending"`
	Offline bool        `json:"offline"`
}

func outputGroupedList(tasks []task.Task, groupBy string) error {
	grouped := board.GroupBy(tasks, groupBy)
	if outputFormat() == output.FormatJSON {
		return output.JSON(os.Stdout, grouped)
	}
	output.GroupedTable(os.Stdout, grouped)
	return nil
}

func outputTaskList(tasks []task.Task, view syncer.View) error {
	switch outputFormat() {
	case output.FormatJSON:
		if tasks == nil {
			tasks = []task.Task{}
		}
		return output.JSON(os.Stdout, listResult{Tasks: tasks, Pending: view.Pending, Offline: view.Offline})
	case output.FormatCompact:
		output.TaskCompact(os.Stdout, tasks, view.PendingIDs)
	default:
		output.TaskTable(os.Stdout, tasks, view.PendingIDs)
	}
	output.PendingIndicator(os.Stdout, view.Pending, view.Offline)
	return nil
}
