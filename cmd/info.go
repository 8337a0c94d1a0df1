package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qbridge/qbridge/internal/scheduler"
	"github.com/qbridge/qbridge/internal/utils"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Display scheduler information",
	Long: `Display information about the scheduler this machine would submit to.

Shows the selected scheduler system (PBS, SLURM or Local), submit binary,
version, and availability status.`,
	Example: `  qbridge info`,
	RunE:    runInfo,
}

func init() {
	RegisterJobFlags(infoCmd)
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	sched, err := buildScheduler()
	if err != nil {
		return err
	}

	info := sched.GetInfo()

	fmt.Println("Scheduler Information:")
	fmt.Printf("  Type:      %s\n", utils.StyleInfo(info.Type))
	if info.Binary != "" {
		fmt.Printf("  Binary:    %s\n", utils.StylePath(info.Binary))
	}
	if info.Version != "" {
		fmt.Printf("  Version:   %s\n", utils.StyleNumber(info.Version))
	}

	switch {
	case info.InJob:
		fmt.Printf("  Status:    %s (inside job)\n", utils.StyleError("Unavailable"))
		fmt.Println()
		fmt.Println("You are currently inside a scheduled job (detected via environment).")
	case info.Available:
		fmt.Printf("  Status:    %s\n", utils.StyleSuccess("Available"))
	default:
		fmt.Printf("  Status:    %s\n", utils.StyleError("Unavailable"))
	}

	if pbs, ok := sched.(*scheduler.PBSScheduler); ok {
		nnodes, coresPerNode, cores := pbs.NodeAllocation()
		fmt.Println()
		fmt.Println("Node allocation:")
		fmt.Printf("  Nodes:          %s\n", utils.StyleNumber(nnodes))
		fmt.Printf("  Cores per node: %s\n", utils.StyleNumber(coresPerNode))
		fmt.Printf("  Total cores:    %s\n", utils.StyleNumber(cores))
	}
	return nil
}
