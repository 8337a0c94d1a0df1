package scheduler

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/qbridge/qbridge/internal/utils"
)

const (
	slurmExt      = ".sbatch"
	slurmJobIDVar = "${SLURM_JOB_ID}"

	// squeueBin is invoked by absolute path so a shadowed squeue wrapper
	// in PATH cannot change the output format we parse.
	squeueBin = "/usr/bin/squeue"

	// minSqueueFormatVersion is the oldest SLURM release whose squeue
	// supports the --Format width syntax we rely on.
	minSqueueFormatVersion = "v17.11"
)

// squeueColumns defines the fixed-width --Format specification. Each
// column reserves a generous width so values are never truncated and
// the output can be sliced by cumulative offset without delimiter
// ambiguity.
var squeueColumns = []struct {
	Name  string
	Width int
}{
	{"jobid", 100},
	{"name", 100},
	{"state", 100},
	{"numnodes", 100},
	{"reasonlist", 4000},
}

// SlurmScheduler implements the Scheduler interface for SLURM
type SlurmScheduler struct {
	cfg      Config
	runner   Runner
	username string
}

// NewSlurmScheduler creates a SLURM scheduler instance
func NewSlurmScheduler(cfg Config) (*SlurmScheduler, error) {
	return newSlurmSchedulerWithRunner(cfg, execRunner{})
}

func newSlurmSchedulerWithRunner(cfg Config, r Runner) (*SlurmScheduler, error) {
	if cfg.MpiexecBin == "" {
		cfg.MpiexecBin = "srun --mpi=pmi2"
	}
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &SlurmScheduler{cfg: cfg, runner: r, username: currentUsername()}, nil
}

// BatchName returns the script filename for a job name
func (s *SlurmScheduler) BatchName(name string) string {
	return name + slurmExt
}

// launcher builds the SLURM-flavored launch strategy: the engine-pool
// backend starts engines and the driver through srun task steps instead
// of a raw mpiexec line.
func (s *SlurmScheduler) launcher() *launcher {
	l := newLauncher(s.cfg, slurmJobIDVar)
	l.engineExec = func(n int) string {
		return fmt.Sprintf("srun --ntasks %d", n)
	}
	l.driverPrefix = "srun --ntasks 1 "
	l.engineMPIFlag = ""
	return l
}

// JobScript renders the SLURM submission script for the named job.
// %A in the output path is the scheduler-side job-id placeholder.
func (s *SlurmScheduler) JobScript(name string) (string, error) {
	launch, err := s.launcher().fragment(name)
	if err != nil {
		return "", err
	}

	output := strings.ReplaceAll(s.cfg.logFname(name, slurmJobIDVar), slurmJobIDVar, "%A")

	var b strings.Builder
	b.WriteString("#!/bin/bash\n")
	fmt.Fprintf(&b, "#SBATCH --job-name %s\n", name)
	fmt.Fprintf(&b, "#SBATCH --ntasks %d\n", s.cfg.Cores)
	b.WriteString("#SBATCH --no-requeue\n")
	fmt.Fprintf(&b, "#SBATCH --output %s\n", output)
	b.WriteString(extraSchedulerLines("SBATCH", s.cfg.ExtraScheduler))
	b.WriteString("\n")
	b.WriteString(envExports(s.cfg.NumThreads, s.cfg.ExtraEnv))
	b.WriteString("\n")
	b.WriteString(launch)
	if !strings.HasSuffix(launch, "\n") {
		b.WriteString("\n")
	}
	return b.String(), nil
}

// WriteJobScript writes the job script to <name>.sbatch
func (s *SlurmScheduler) WriteJobScript(name string) (string, error) {
	return writeJobScript(name, slurmExt, s.JobScript)
}

// StartJob writes the job script and submits it via sbatch, retrying
// with a fixed delay until sbatch succeeds or ctx is done.
func (s *SlurmScheduler) StartJob(ctx context.Context, name string) error {
	path, err := s.WriteJobScript(name)
	if err != nil {
		return err
	}
	return submitWithRetry(ctx, s.runner, "SLURM", name, []string{"sbatch", path})
}

// Queue polls squeue and returns the running and pending jobs
func (s *SlurmScheduler) Queue(ctx context.Context, meOnly bool) (map[string]QueueEntry, error) {
	args := []string{
		fmt.Sprintf("--Format=%q", squeueFormat()),
		"--noheader",
		"--array",
	}
	if meOnly {
		args = append(args, "--user="+s.username)
	}

	out, err := s.runner.Run(ctx, nil, squeueBin, args...)
	if err != nil {
		return nil, NewQueueError("SLURM", "squeue", out, err)
	}
	return parseSqueueOutput(out)
}

// Cancel cancels the named jobs via scancel, retrying up to maxTries
func (s *SlurmScheduler) Cancel(ctx context.Context, names []string, maxTries int) error {
	cancelOne := func(ctx context.Context, jobID string) error {
		_, err := s.runner.Run(ctx, nil, "scancel", jobID)
		return err
	}
	return cancelByName(ctx, s.Queue, cancelOne, names, maxTries)
}

// GetInfo returns information about the SLURM scheduler
func (s *SlurmScheduler) GetInfo() *SchedulerInfo {
	_, inJob := os.LookupEnv("SLURM_JOB_ID")
	info := &SchedulerInfo{
		Type:      string(SchedulerSLURM),
		Binary:    lookPathOrEmpty("sbatch"),
		InJob:     inJob,
		Available: !inJob,
	}
	if info.Binary == "" {
		info.Available = false
		return info
	}
	if raw, err := binaryVersion(info.Binary); err == nil {
		// sbatch --version prints "slurm 23.02.6"
		fields := strings.Fields(raw)
		if len(fields) >= 2 {
			info.Version = fields[1]
		} else {
			info.Version = raw
		}
		if info.Version != "" && !squeueFormatSupported(info.Version) {
			utils.PrintWarning("SLURM %s predates squeue --Format support (%s); queue polling may fail", info.Version, minSqueueFormatVersion)
		}
	}
	return info
}

// OutputFnames returns the job's output file path with the scheduler's
// %A placeholder resolved at run time.
func (s *SlurmScheduler) OutputFnames(name string) []string {
	log := s.cfg.logFname(name, slurmJobIDVar)
	return []string{strings.TrimSuffix(log, ".log") + ".out"}
}

// slurmSemver converts a SLURM release string to valid semver. SLURM
// minors are month numbers with a leading zero ("23.02.6"), which is
// not valid semver, so each numeric field is re-rendered without the
// leading zero.
func slurmSemver(version string) string {
	parts := strings.Split(version, ".")
	for i, part := range parts {
		if n, err := strconv.Atoi(part); err == nil {
			parts[i] = strconv.Itoa(n)
		}
	}
	return "v" + strings.Join(parts, ".")
}

// squeueFormatSupported reports whether this SLURM release understands
// the squeue --Format width syntax. Unparsable versions are assumed
// supported rather than warned about.
func squeueFormatSupported(version string) bool {
	v := slurmSemver(version)
	if !semver.IsValid(v) {
		return true
	}
	return semver.Compare(v, minSqueueFormatVersion) >= 0
}

// squeueFormat renders the --Format value: ",jobid:100,name:100,..."
func squeueFormat() string {
	parts := make([]string, 0, len(squeueColumns))
	for _, col := range squeueColumns {
		parts = append(parts, fmt.Sprintf("%s:%d", col.Name, col.Width))
	}
	return "," + strings.Join(parts, ",") + ","
}

// parseSqueueOutput slices fixed-width squeue output by cumulative
// column width. Only rows whose state is exactly RUNNING or PENDING are
// kept. A recognized error banner in the output means SLURM itself is
// unresponsive and is fatal.
func parseSqueueOutput(output string) (map[string]QueueEntry, error) {
	if strings.Contains(output, "squeue: error") || strings.Contains(output, "slurm_load_jobs error") {
		return nil, NewQueueError("SLURM", "squeue", output, nil)
	}

	running := make(map[string]QueueEntry)
	for _, line := range strings.Split(output, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}

		fields := sliceByWidths(line)
		var state JobState
		switch fields["state"] {
		case "RUNNING":
			state = StateRunning
		case "PENDING":
			state = StatePending
		default:
			continue
		}

		jobID := fields["jobid"]
		delete(fields, "jobid")
		running[jobID] = QueueEntry{
			Name:  fields["name"],
			State: state,
			Attrs: fields,
		}
	}
	return running, nil
}

// sliceByWidths cuts one squeue line into trimmed per-column values.
func sliceByWidths(line string) map[string]string {
	runes := []rune(line)
	fields := make(map[string]string, len(squeueColumns))
	for _, col := range squeueColumns {
		n := col.Width
		if n > len(runes) {
			n = len(runes)
		}
		fields[col.Name] = strings.TrimSpace(string(runes[:n]))
		runes = runes[n:]
	}
	return fields
}
