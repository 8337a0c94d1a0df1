package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/qbridge/qbridge/internal/config"
	"github.com/qbridge/qbridge/internal/utils"
)

var (
	debugMode bool
	quietMode bool
	localMode bool
)

var rootCmd = &cobra.Command{
	Use:           "qbridge",
	Short:         "qbridge: submit, poll and cancel jobs on PBS or SLURM clusters through one interface.",
	Version:       config.VERSION,
	SilenceErrors: true,
	SilenceUsage:  true,

	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Step 1: Load built-in defaults
		config.LoadDefaults()

		// Step 2: Initialize Viper (read config file, env vars)
		if err := config.InitViper(); err != nil {
			utils.PrintDebug("Error reading config file: %v", err)
		}

		// Step 3: Load resolved values from Viper into Global config
		config.LoadFromViper()

		// Step 4: Apply command-line flags (highest priority)
		config.ApplyFlags(cmd.Flags())

		if debugMode {
			utils.DebugMode = true
			config.Global.Debug = true
			utils.PrintDebug("Debug mode enabled")
			utils.PrintDebug("qbridge version: %s", utils.StyleInfo(config.VERSION))
			utils.PrintDebug("Scheduler system: %s", config.Global.SchedulerSystem)
			utils.PrintDebug("Cores: %d", config.Global.Cores)
			utils.PrintDebug("Run script: %s", config.Global.RunScript)
		}
		if quietMode {
			utils.QuietMode = true
			config.Global.Quiet = true
		}
		if localMode {
			config.Global.Local = true
			utils.PrintDebug("Local mode enabled (in-memory scheduler)")
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug mode with verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quietMode, "quiet", "q", false, "Suppress informational output")
	rootCmd.PersistentFlags().BoolVar(&localMode, "local", false, "Use the in-memory local scheduler instead of PBS/SLURM")
	rootCmd.PersistentFlags().String("scheduler", "", "Scheduler system to target (PBS or SLURM, default: auto-detect)")
}
