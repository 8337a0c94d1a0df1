package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var scriptWrite bool

var scriptCmd = &cobra.Command{
	Use:   "script NAME",
	Short: "Render the submission script for a job",
	Long: `Render the scheduler-specific submission script for a job name and
print it to stdout, or write it to <NAME><ext> with --write.`,
	Example: `  qbridge script job-0 --cores 4
  qbridge script job-0 --write --executor engine-pool --cores 8`,
	Args: cobra.ExactArgs(1),
	RunE: runScript,
}

func init() {
	RegisterJobFlags(scriptCmd)
	scriptCmd.Flags().BoolVarP(&scriptWrite, "write", "w", false, "write the script to <NAME><ext> instead of stdout")
	rootCmd.AddCommand(scriptCmd)
}

func runScript(cmd *cobra.Command, args []string) error {
	sched, err := buildScheduler()
	if err != nil {
		return err
	}

	name := args[0]
	if scriptWrite {
		path, err := sched.WriteJobScript(name)
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	}

	script, err := sched.JobScript(name)
	if err != nil {
		return err
	}
	fmt.Print(script)
	return nil
}
