package cmd

import (
	"github.com/spf13/cobra"

	"github.com/qbridge/qbridge/internal/config"
	"github.com/qbridge/qbridge/internal/utils"
)

var cancelMaxTries int

var cancelCmd = &cobra.Command{
	Use:   "cancel NAME...",
	Short: "Cancel jobs by name",
	Long: `Cancel every queued or running job whose name matches one of the
given names. Cancellation is best-effort and idempotent: jobs already
gone from the queue are skipped, per-job failures are warnings, and the
queue is re-checked up to --max-tries times.`,
	Example: `  qbridge cancel job-0 job-1
  qbridge cancel sweep-3 --max-tries 10`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCancel,
}

func init() {
	RegisterJobFlags(cancelCmd)
	cancelCmd.Flags().IntVar(&cancelMaxTries, "max-tries", 0, "cancel retry budget (default from config)")
	rootCmd.AddCommand(cancelCmd)
}

func runCancel(cmd *cobra.Command, args []string) error {
	sched, err := buildScheduler()
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	maxTries := cancelMaxTries
	if maxTries <= 0 {
		maxTries = config.Global.MaxCancelTries
	}

	if err := sched.Cancel(ctx, args, maxTries); err != nil {
		return err
	}
	utils.PrintSuccess("Canceled %d job name(s)", len(args))
	return nil
}
