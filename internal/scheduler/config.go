package scheduler

import (
	"path/filepath"

	"github.com/qbridge/qbridge/internal/utils"
)

// ExecutorType selects the parallel-execution backend launched inside a job
type ExecutorType string

const (
	// ExecutorMPIFutures runs the worker under the MPI launcher as an
	// interpreter module with a futures pool
	ExecutorMPIFutures ExecutorType = "mpi-futures"

	// ExecutorMPIDirect runs the worker script directly under the MPI launcher
	ExecutorMPIDirect ExecutorType = "mpi-direct"

	// ExecutorEnginePool runs a profile-based controller/engine pool with
	// the driver on a reserved core
	ExecutorEnginePool ExecutorType = "engine-pool"
)

// Config holds the caller-owned scheduler configuration. It is read-only
// for the adapter that references it; a validated copy is taken at
// construction time.
type Config struct {
	// Cores is the requested core count. Must be positive. For PBS it
	// may be adjusted upward during node/core reconciliation.
	Cores int

	// RunScript is the path to the worker executable/script launched
	// inside each job.
	RunScript string

	// PythonBin is the interpreter used to run the worker (default
	// "python3").
	PythonBin string

	// LogDir is where job logs are written. Created lazily and
	// idempotently; empty means the working directory.
	LogDir string

	// MpiexecBin is the parallel launcher (default "mpiexec"; the SLURM
	// adapter defaults to "srun --mpi=pmi2").
	MpiexecBin string

	// Executor selects the launch backend (default mpi-futures).
	Executor ExecutorType

	// NumThreads is exported to the numeric-library thread-count
	// variables (default 1).
	NumThreads int

	// ExtraScheduler holds verbatim extra scheduler directives, one per
	// line, rendered with the dialect's comment prefix.
	ExtraScheduler []string

	// ExtraEnv holds extra "KEY=value" environment assignments exported
	// in the job script.
	ExtraEnv []string

	// CoresPerNode is the per-node core density for node-oriented
	// schedulers (PBS). 0 means auto-detect from the node inventory.
	CoresPerNode int
}

// withDefaults returns a copy of cfg with unset fields filled in.
func (cfg Config) withDefaults() Config {
	if cfg.RunScript == "" {
		cfg.RunScript = "run_worker.py"
	}
	if cfg.PythonBin == "" {
		cfg.PythonBin = "python3"
	}
	if cfg.MpiexecBin == "" {
		cfg.MpiexecBin = "mpiexec"
	}
	if cfg.Executor == "" {
		cfg.Executor = ExecutorMPIFutures
	}
	if cfg.NumThreads == 0 {
		cfg.NumThreads = 1
	}
	return cfg
}

// validate rejects invalid configurations before any script is rendered.
func (cfg Config) validate() error {
	if cfg.Cores <= 0 {
		return ErrInvalidCores
	}
	switch cfg.Executor {
	case ExecutorMPIFutures, ExecutorMPIDirect:
	case ExecutorEnginePool:
		if cfg.Cores <= 1 {
			return ErrEnginePoolCores
		}
	default:
		return ErrUnsupportedExecutor
	}
	return nil
}

// logFname returns the log path for a job, with the dialect's job-id
// placeholder embedded. The log directory is created if absent.
func (cfg Config) logFname(name, jobIDVar string) string {
	if err := utils.EnsureDir(cfg.LogDir); err != nil {
		utils.PrintWarning("could not create log folder: %v", err)
	}
	return filepath.Join(cfg.LogDir, name+"-"+jobIDVar+".log")
}
