package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/qbridge/qbridge/internal/scheduler"
	"github.com/qbridge/qbridge/internal/utils"
)

var queueAllUsers bool

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Show running and pending jobs",
	Long: `Poll the scheduler's queue and print a normalized snapshot of
running and pending jobs. By default only your own jobs are shown.`,
	Example: `  qbridge queue            # your jobs
  qbridge queue --all      # everyone's jobs`,
	RunE: runQueue,
}

func init() {
	RegisterJobFlags(queueCmd)
	queueCmd.Flags().BoolVar(&queueAllUsers, "all", false, "show jobs of all users")
	rootCmd.AddCommand(queueCmd)
}

func runQueue(cmd *cobra.Command, args []string) error {
	sched, err := buildScheduler()
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	snapshot, err := sched.Queue(ctx, !queueAllUsers)
	if err != nil {
		if scheduler.IsQueueError(err) {
			fmt.Println(utils.StyleHint("Check that the scheduler daemons are reachable, or pick another system with --scheduler."))
		}
		return err
	}

	if len(snapshot) == 0 {
		utils.PrintMessage("No running or pending jobs.")
		return nil
	}

	jobIDs := make([]string, 0, len(snapshot))
	for jobID := range snapshot {
		jobIDs = append(jobIDs, jobID)
	}
	sort.Strings(jobIDs)

	for _, jobID := range jobIDs {
		entry := snapshot[jobID]
		fmt.Printf("%-20s %-10s %s\n", jobID, entry.State, utils.StyleName(entry.Name))
	}
	return nil
}
