// Package scheduler provides a unified interface for HPC batch schedulers
package scheduler

import (
	"context"
	"os"
	"os/exec"
	"os/user"
	"strings"

	"github.com/qbridge/qbridge/internal/utils"
)

// SchedulerType represents the type of batch scheduler
type SchedulerType string

const (
	SchedulerUnknown SchedulerType = ""
	SchedulerSLURM   SchedulerType = "SLURM"
	SchedulerPBS     SchedulerType = "PBS"
	SchedulerLocal   SchedulerType = "Local"
)

// JobState is the normalized state of a queued job. Jobs in any other
// external state are dropped from queue snapshots.
type JobState string

const (
	StateRunning JobState = "RUNNING"
	StatePending JobState = "PENDING"
)

// QueueEntry describes one job in a queue snapshot, keyed externally by
// the scheduler-assigned job ID. Snapshots are rebuilt on every poll and
// never cached.
type QueueEntry struct {
	Name  string            // Caller-chosen job name
	State JobState          // Normalized state
	Attrs map[string]string // Raw dialect-specific attributes (owner, reason, ...)
}

// SchedulerInfo holds information about a scheduler instance
type SchedulerInfo struct {
	Type      string // Scheduler type (e.g., "SLURM", "PBS")
	Binary    string // Path to the submit binary (e.g., "/usr/bin/sbatch")
	Version   string // Scheduler version (if available)
	InJob     bool   // Whether we're currently inside a scheduled job
	Available bool   // Whether the scheduler can accept submissions
}

// Scheduler defines the interface for batch schedulers
type Scheduler interface {
	// JobScript renders the submission script for the named job.
	// Deterministic for a fixed configuration.
	JobScript(name string) (string, error)

	// WriteJobScript writes the submission script to <name><ext> and
	// returns its path.
	WriteJobScript(name string) (string, error)

	// BatchName returns the script filename for a job name
	BatchName(name string) string

	// StartJob writes the job script and submits it, retrying with a
	// fixed delay until the submit command succeeds or ctx is done.
	StartJob(ctx context.Context, name string) error

	// Queue returns the current running and pending jobs keyed by
	// external job ID. With meOnly, only jobs of the invoking user.
	Queue(ctx context.Context, meOnly bool) (map[string]QueueEntry, error)

	// Cancel cancels all jobs whose name is in names, retrying up to
	// maxTries times until no matching job remains in the queue.
	// Per-job cancel failures are warnings, not errors.
	Cancel(ctx context.Context, names []string, maxTries int) error

	// OutputFnames returns where the job's output lands, with the
	// dialect's job-id placeholder left for the scheduler to resolve.
	OutputFnames(name string) []string

	// GetInfo returns information about the scheduler
	GetInfo() *SchedulerInfo
}

// DefaultMaxCancelTries is the cancel retry budget used by callers that
// do not pick one explicitly.
const DefaultMaxCancelTries = 5

// Environ is the environment snapshot consulted by the default-scheduler
// selector. Injecting it keeps selection free of process-wide state.
type Environ interface {
	Getenv(key string) string
	LookPath(file string) (string, error)
}

// SystemEnviron reads the real process environment and PATH.
type SystemEnviron struct{}

func (SystemEnviron) Getenv(key string) string            { return os.Getenv(key) }
func (SystemEnviron) LookPath(file string) (string, error) { return exec.LookPath(file) }

// DefaultSchedulerType determines which scheduler system a cluster runs.
//
// SCHEDULER_SYSTEM=PBS|SLURM wins when set. Otherwise PBS and SLURM
// submit/status binaries are probed; when both (or neither) are present
// the default is SLURM and a warning is printed.
func DefaultSchedulerType(env Environ) SchedulerType {
	const fallback = SchedulerSLURM

	if system := strings.ToUpper(env.Getenv("SCHEDULER_SYSTEM")); system != "" {
		switch SchedulerType(system) {
		case SchedulerPBS:
			return SchedulerPBS
		case SchedulerSLURM:
			return SchedulerSLURM
		default:
			utils.PrintWarning("SCHEDULER_SYSTEM=%s is not implemented, use PBS or SLURM; defaulting to %s", system, fallback)
			return fallback
		}
	}

	hasPBS := lookPathOK(env, "qsub") && lookPathOK(env, "qstat")
	hasSLURM := lookPathOK(env, "sbatch") && lookPathOK(env, "squeue")

	switch {
	case hasPBS && hasSLURM:
		utils.PrintWarning("both PBS and SLURM detected; defaulting to %s (set SCHEDULER_SYSTEM to override)", fallback)
		return fallback
	case hasPBS:
		return SchedulerPBS
	case hasSLURM:
		return SchedulerSLURM
	default:
		utils.PrintWarning("no scheduler system detected; defaulting to %s", fallback)
		return fallback
	}
}

func lookPathOK(env Environ, file string) bool {
	_, err := env.LookPath(file)
	return err == nil
}

// ParseSchedulerType maps a user-supplied scheduler name to a
// SchedulerType, case-insensitively. Empty means auto-detect;
// unrecognized values pass through so New can reject them.
func ParseSchedulerType(s string) SchedulerType {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return SchedulerUnknown
	case "PBS":
		return SchedulerPBS
	case "SLURM":
		return SchedulerSLURM
	case "LOCAL":
		return SchedulerLocal
	default:
		return SchedulerType(s)
	}
}

// New constructs the scheduler for the given type. SchedulerUnknown
// selects the default type for the current environment.
func New(typ SchedulerType, cfg Config) (Scheduler, error) {
	if typ == SchedulerUnknown {
		typ = DefaultSchedulerType(SystemEnviron{})
	}
	switch typ {
	case SchedulerPBS:
		return NewPBSScheduler(cfg)
	case SchedulerSLURM:
		return NewSlurmScheduler(cfg)
	case SchedulerLocal:
		return NewLocalScheduler(cfg)
	default:
		return nil, ErrSchedulerNotFound
	}
}

// currentUsername returns the invoking user's name, used to filter queue
// snapshots with meOnly.
func currentUsername() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return os.Getenv("USER")
}

// binaryVersion runs "<bin> --version" and returns the trimmed output.
func binaryVersion(bin string) (string, error) {
	out, err := exec.Command(bin, "--version").Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// lookPathOrEmpty resolves a binary via PATH, returning "" if absent.
func lookPathOrEmpty(file string) string {
	path, err := exec.LookPath(file)
	if err != nil {
		return ""
	}
	return path
}
