package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/qbridge/qbridge/internal/config"
	"github.com/qbridge/qbridge/internal/scheduler"
)

// RegisterJobFlags registers the scheduler-configuration flags shared by
// script, submit, queue and cancel.
func RegisterJobFlags(cmd *cobra.Command) {
	cmd.Flags().IntP("cores", "n", 1, "number of cores to request per job")
	cmd.Flags().String("run-script", "run_worker.py", "worker script launched inside each job")
	cmd.Flags().String("python", "python3", "interpreter used to run the worker")
	cmd.Flags().String("log-dir", "", "directory for job log files (created if absent)")
	cmd.Flags().String("mpiexec", "", "parallel launcher binary (default: mpiexec, or srun on SLURM)")
	cmd.Flags().String("executor", "mpi-futures", "launch backend: mpi-futures, mpi-direct or engine-pool")
	cmd.Flags().Int("num-threads", 1, "per-process thread count exported to MKL/OpenBLAS/OMP")
	cmd.Flags().Int("cores-per-node", 0, "cores per node for PBS (0 = auto-detect via qnodes)")
	cmd.Flags().StringArray("extra-scheduler", nil, "extra scheduler directive (can be used multiple times)")
	cmd.Flags().StringArray("extra-env", nil, "extra KEY=value export in the job script (can be used multiple times)")
}

// buildScheduler constructs the scheduler selected by the global config.
func buildScheduler() (scheduler.Scheduler, error) {
	cfg := scheduler.Config{
		Cores:          config.Global.Cores,
		RunScript:      config.Global.RunScript,
		PythonBin:      config.Global.PythonBin,
		LogDir:         config.Global.LogDir,
		MpiexecBin:     config.Global.MpiexecBin,
		Executor:       scheduler.ExecutorType(config.Global.Executor),
		NumThreads:     config.Global.NumThreads,
		ExtraScheduler: config.Global.ExtraScheduler,
		ExtraEnv:       config.Global.ExtraEnv,
		CoresPerNode:   config.Global.CoresPerNode,
	}

	typ := scheduler.ParseSchedulerType(config.Global.SchedulerSystem)
	if config.Global.Local {
		typ = scheduler.SchedulerLocal
	}
	return scheduler.New(typ, cfg)
}

// signalContext returns a context canceled on SIGINT/SIGTERM, so the
// submit retry loop and cancel sweeps can be interrupted cleanly.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
