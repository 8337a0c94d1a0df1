package cmd

import (
	"github.com/spf13/cobra"

	"github.com/qbridge/qbridge/internal/utils"
)

var submitCmd = &cobra.Command{
	Use:   "submit NAME...",
	Short: "Write job scripts and submit them to the scheduler",
	Long: `Write a submission script for each job name and submit it.

Submission retries with a fixed delay until the scheduler accepts the
job; interrupt with Ctrl-C to stop retrying.`,
	Example: `  qbridge submit job-0 job-1 --cores 8
  qbridge submit sweep-3 --executor engine-pool --cores 16`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSubmit,
}

func init() {
	RegisterJobFlags(submitCmd)
	rootCmd.AddCommand(submitCmd)
}

func runSubmit(cmd *cobra.Command, args []string) error {
	sched, err := buildScheduler()
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	for _, name := range args {
		if err := sched.StartJob(ctx, name); err != nil {
			return err
		}
		utils.PrintSuccess("Submitted %s (%s)", utils.StyleName(name), utils.StylePath(sched.BatchName(name)))
		for _, fname := range sched.OutputFnames(name) {
			utils.PrintMessage("Output: %s", utils.StylePath(fname))
		}
	}
	return nil
}
