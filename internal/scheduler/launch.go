package scheduler

import (
	"fmt"
	"strings"
)

// engineSettleSleep is the fixed delay, in seconds, between starting the
// engine-pool controller and starting the engines. It is a liveness
// heuristic, not a synchronization primitive: controller readiness is
// not actively verified, so a slow controller can still race the
// engines.
const engineSettleSleep = 10

// launcher renders the shell fragment that starts the worker process
// inside a job, for one of the fixed executor backends.
type launcher struct {
	cfg      Config
	jobIDVar string // dialect job-id placeholder, substituted by the scheduler
	// engineExec launches the N-1 engine processes of the engine-pool
	// backend (e.g., "mpiexec -n 3" or "srun --ntasks 3").
	engineExec func(n int) string
	// driverPrefix is prepended to the engine-pool driver line
	// ("srun --ntasks 1 " on SLURM, empty elsewhere).
	driverPrefix string
	// engineMPIFlag is passed to each engine process when the launcher
	// provides MPI wiring itself (PBS mpiexec); empty on SLURM.
	engineMPIFlag string
}

func newLauncher(cfg Config, jobIDVar string) *launcher {
	return &launcher{
		cfg:      cfg,
		jobIDVar: jobIDVar,
		engineExec: func(n int) string {
			return fmt.Sprintf("%s -n %d", cfg.MpiexecBin, n)
		},
		engineMPIFlag: "--mpi ",
	}
}

// fragment returns the launch command(s) for the configured backend.
func (l *launcher) fragment(name string) (string, error) {
	switch l.cfg.Executor {
	case ExecutorMPIFutures:
		return l.mpiFutures(name), nil
	case ExecutorMPIDirect:
		return l.mpiDirect(name), nil
	case ExecutorEnginePool:
		if l.cfg.Cores <= 1 {
			return "", ErrEnginePoolCores
		}
		return l.enginePool(name), nil
	default:
		return "", ErrUnsupportedExecutor
	}
}

// mpiFutures launches the worker as an interpreter module under the MPI
// launcher with the full core count.
func (l *launcher) mpiFutures(name string) string {
	return fmt.Sprintf("%s -n %d %s -m mpi4py.futures %s --log-fname %s --job-id %s --name %s",
		l.cfg.MpiexecBin, l.cfg.Cores, l.cfg.PythonBin, l.cfg.RunScript,
		l.cfg.logFname(name, l.jobIDVar), l.jobIDVar, name)
}

// mpiDirect launches the worker script directly, not as a module.
func (l *launcher) mpiDirect(name string) string {
	return fmt.Sprintf("%s -n %d %s %s --log-fname %s --job-id %s --name %s",
		l.cfg.MpiexecBin, l.cfg.Cores, l.cfg.PythonBin, l.cfg.RunScript,
		l.cfg.logFname(name, l.jobIDVar), l.jobIDVar, name)
}

// enginePool emits the multi-stage profile-based pool: a uniquely named
// profile, a detached controller, a settle sleep, N-1 detached engines,
// then the driver in the foreground bound to the same profile.
func (l *launcher) enginePool(name string) string {
	engines := l.cfg.Cores - 1
	var b strings.Builder

	fmt.Fprintf(&b, "profile=qbridge_%s\n\n", l.jobIDVar)
	fmt.Fprintf(&b, "echo \"Creating profile ${profile}\"\n")
	fmt.Fprintf(&b, "ipython profile create ${profile}\n\n")
	fmt.Fprintf(&b, "echo \"Launching controller\"\n")
	fmt.Fprintf(&b, "ipcontroller --ip=\"*\" --profile=${profile} --log-to-file &\n")
	fmt.Fprintf(&b, "sleep %d\n\n", engineSettleSleep)
	fmt.Fprintf(&b, "echo \"Launching engines\"\n")
	fmt.Fprintf(&b, "%s ipengine --profile=${profile} %s--cluster-id='' --log-to-file &\n\n",
		l.engineExec(engines), l.engineMPIFlag)
	fmt.Fprintf(&b, "echo \"Starting the driver\"\n")
	fmt.Fprintf(&b, "%s%s %s --profile ${profile} --n %d --log-fname %s --job-id %s --name %s\n",
		l.driverPrefix, l.cfg.PythonBin, l.cfg.RunScript, engines,
		l.cfg.logFname(name, l.jobIDVar), l.jobIDVar, name)

	return b.String()
}
