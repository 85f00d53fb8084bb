package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/twiced-technology-gmbh/housekeep/internal/clierr"
	"github.com/twiced-technology-gmbh/housekeep/internal/date"
	"github.com/twiced-technology-gmbh/housekeep/internal/digest"
	"github.com/twiced-technology-gmbh/housekeep/internal/output"
)

var todayCmd = &cobra.Command{
	Use:   "today",
	Short: "Show what needs doing",
	Long: `Shows overdue tasks, tasks due today and tasks coming up in the next days.
Completed and cancelled tasks are left out.`,
	Args: cobra.NoArgs,
	RunE: runToday,
}

func init() {
	todayCmd.Flags().Int("days", digest.DefaultHorizon, "how many days ahead to look")
	rootCmd.AddCommand(todayCmd)
}

// digestResult is the JSON shape of today output.
type digestResult struct {
	digest.Digest
	Pending int  `json:"pending"`
	Offline bool `json:"offline"`
}

func runToday(cmd *cobra.Command, _ []string) error {
	horizon := digest.DefaultHorizon
	if f := cmd.Flags().Lookup("days"); f != nil {
		horizon, _ = cmd.Flags().GetInt("days")
		if horizon < 0 {
			return clierr.Newf(clierr.InvalidInput, "--days must not be negative, got %d", horizon)
		}
	}

	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	view, err := a.coord.List(ctx)
	if err != nil {
		return err
	}
	d := digest.Build(view.Tasks, date.Today(), horizon)

	switch outputFormat() {
	case output.FormatJSON:
		return output.JSON(os.Stdout, digestResult{Digest: d, Pending: view.Pending, Offline: view.Offline})
	case output.FormatCompact:
		output.DigestCompact(os.Stdout, d, view.PendingIDs)
	default:
		output.DigestTable(os.Stdout, d, view.PendingIDs)
	}
	output.PendingIndicator(os.Stdout, view.Pending, view.Offline)
	return nil
}
