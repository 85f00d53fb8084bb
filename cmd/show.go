package cmd

import (
	"os"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/spf13/cobra"

	"github.com/twiced-technology-gmbh/housekeep/internal/output"
	"github.com/twiced-technology-gmbh/housekeep/internal/queue"
)

const descriptionWidth = 80

var showCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show task details",
	Long: `Displays full details of a single task including its description, rendered
as markdown. Queued changes are shown as they will be after the next sync.`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	t, err := a.coord.Get(ctx, id)
	if err != nil {
		return err
	}

	ops, err := a.coord.PendingOps(ctx)
	if err != nil {
		return err
	}
	pending := slices.ContainsFunc(ops, func(op queue.Op) bool { return op.TaskID() == id })

	switch outputFormat() {
	case output.FormatJSON:
		return output.JSON(os.Stdout, taskResult{Task: t, Queued: pending})
	case output.FormatCompact:
		output.TaskDetailCompact(os.Stdout, t, pending)
		return nil
	}

	output.TaskDetail(os.Stdout, t, pending, renderDescription(t.Description))
	return nil
}

// renderDescription formats a markdown description for the terminal. Plain
// ASCII styling is used when color is off; the raw text is returned if
// rendering fails.
func renderDescription(desc string) string {
	if strings.TrimSpace(desc) == "" {
		return ""
	}

	style := styles.ASCIIStyleConfig
	if output.ColorEnabled() {
		style = styles.DarkStyleConfig
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStyles(style),
		glamour.WithWordWrap(descriptionWidth),
	)
	if err != nil {
		return desc
	}
	rendered, err := r.Render(desc)
	if err != nil {
		return desc
	}
	return strings.TrimRight(rendered, "\n")
}
