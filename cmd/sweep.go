package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/twiced-technology-gmbh/housekeep/internal/output"
	"github.com/twiced-technology-gmbh/housekeep/internal/sweeper"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Mark past-due tasks as overdue",
	Long: `Runs the overdue sweep once: every active or postponed task whose due date
has passed becomes overdue. serve runs the same sweep on a timer. The sweep
writes straight to the store and is skipped when the store is unreachable.`,
	Args: cobra.NoArgs,
	RunE: runSweep,
}

func init() {
	sweepCmd.Flags().Bool("bulk", false, "use a single store call when the backend supports it")
	rootCmd.AddCommand(sweepCmd)
}

// sweepResult is the JSON shape of sweep output.
type sweepResult struct {
	Checked   int   `json:"checked"`
	Marked    int   `json:"marked"`
	Failed    int   `json:"failed"`
	MarkedIDs []int `json:"marked_ids,omitempty"`
	Skipped   bool  `json:"skipped,omitempty"`
}

func runSweep(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	opts := []sweeper.Option{
		sweeper.WithLogger(a.logger),
		sweeper.WithActivityLog(a.activity),
	}
	if bulk, _ := cmd.Flags().GetBool("bulk"); bulk {
		opts = append(opts, sweeper.WithBulk())
	}
	s := sweeper.New(a.store, opts...)

	res, err := s.RunOnce(ctx)
	skipped := errors.Is(err, sweeper.ErrSkipped)
	if err != nil && !skipped {
		return err
	}

	if outputFormat() == output.FormatJSON {
		return output.JSON(os.Stdout, sweepResult{
			Checked:   res.Checked,
			Marked:    res.Marked,
			Failed:    res.Failed,
			MarkedIDs: res.MarkedIDs,
			Skipped:   skipped,
		})
	}

	if skipped {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		return nil
	}
	output.Messagef(os.Stdout, "Marked %d task(s) overdue", res.Marked)
	if res.Failed > 0 {
		output.Messagef(os.Stdout, "%d task(s) could not be updated and will be retried next sweep", res.Failed)
	}
	return nil
}
