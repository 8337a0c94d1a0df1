package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestSlurmScheduler(t *testing.T, cfg Config, r *fakeRunner) *SlurmScheduler {
	t.Helper()
	s, err := newSlurmSchedulerWithRunner(cfg, r)
	if err != nil {
		t.Fatalf("newSlurmSchedulerWithRunner() error: %v", err)
	}
	return s
}

// squeueLine builds one fixed-width squeue output row matching the
// --Format width specification.
func squeueLine(jobID, name, state, numNodes, reason string) string {
	values := []string{jobID, name, state, numNodes, reason}
	var b strings.Builder
	for i, col := range squeueColumns {
		fmt.Fprintf(&b, "%-*s", col.Width, values[i])
	}
	return b.String()
}

func TestSqueueFormat(t *testing.T) {
	want := ",jobid:100,name:100,state:100,numnodes:100,reasonlist:4000,"
	if got := squeueFormat(); got != want {
		t.Errorf("squeueFormat() = %q; want %q", got, want)
	}
}

func TestParseSqueueOutput(t *testing.T) {
	output := strings.Join([]string{
		squeueLine("1001", "jobA", "RUNNING", "2", "None"),
		squeueLine("1002", "jobB", "PENDING", "1", "Priority"),
		squeueLine("1003", "jobC", "COMPLETED", "1", "None"),
		squeueLine("1004", "jobD", "FAILED", "1", "NonZeroExitCode"),
		"",
	}, "\n")

	entries, err := parseSqueueOutput(output)
	if err != nil {
		t.Fatalf("parseSqueueOutput() error: %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("got %d entries; want 2 (only RUNNING and PENDING kept)", len(entries))
	}

	jobA, ok := entries["1001"]
	if !ok {
		t.Fatal("missing entry for 1001")
	}
	if jobA.Name != "jobA" || jobA.State != StateRunning {
		t.Errorf("jobA = %+v; want name jobA, state RUNNING", jobA)
	}
	if jobA.Attrs["numnodes"] != "2" {
		t.Errorf("numnodes = %q; want 2", jobA.Attrs["numnodes"])
	}

	jobB, ok := entries["1002"]
	if !ok {
		t.Fatal("missing entry for 1002")
	}
	if jobB.State != StatePending {
		t.Errorf("jobB state = %q; want PENDING", jobB.State)
	}
	if jobB.Attrs["reasonlist"] != "Priority" {
		t.Errorf("reasonlist = %q; want Priority", jobB.Attrs["reasonlist"])
	}
}

func TestParseSqueueOutputErrorBanner(t *testing.T) {
	for _, banner := range []string{
		"squeue: error: slurm controller not responding",
		"slurm_load_jobs error: Unable to contact slurm controller",
	} {
		if _, err := parseSqueueOutput(banner); !errors.Is(err, ErrSchedulerUnresponsive) {
			t.Errorf("banner %q: error = %v; want ErrSchedulerUnresponsive", banner, err)
		}
	}
}

func TestSlurmQueueUnresponsive(t *testing.T) {
	r := &fakeRunner{
		handler: func(name string, args ...string) (string, error) {
			return "", fmt.Errorf("exit status 1")
		},
	}
	s := newTestSlurmScheduler(t, Config{Cores: 4}, r)

	_, err := s.Queue(context.Background(), true)
	if !errors.Is(err, ErrSchedulerUnresponsive) {
		t.Errorf("Queue() error = %v; want ErrSchedulerUnresponsive", err)
	}
}

func TestSlurmQueueInvocation(t *testing.T) {
	r := &fakeRunner{}
	s := newTestSlurmScheduler(t, Config{Cores: 4}, r)
	s.username = "alice"

	if _, err := s.Queue(context.Background(), true); err != nil {
		t.Fatalf("Queue() error: %v", err)
	}

	call := r.calls[0]
	if call.Name != squeueBin {
		t.Errorf("binary = %q; want %q", call.Name, squeueBin)
	}
	joined := strings.Join(call.Args, " ")
	for _, want := range []string{"--Format=", "--noheader", "--array", "--user=alice"} {
		if !strings.Contains(joined, want) {
			t.Errorf("squeue args missing %q: %v", want, call.Args)
		}
	}

	// Without meOnly the user filter must be absent.
	r.calls = nil
	if _, err := s.Queue(context.Background(), false); err != nil {
		t.Fatalf("Queue() error: %v", err)
	}
	if strings.Contains(strings.Join(r.calls[0].Args, " "), "--user=") {
		t.Errorf("unexpected --user flag: %v", r.calls[0].Args)
	}
}

func TestSlurmJobScript(t *testing.T) {
	cfg := Config{
		Cores:          4,
		RunScript:      "run_worker.py",
		LogDir:         "", // working directory
		NumThreads:     1,
		ExtraScheduler: []string{"--partition=compute"},
		ExtraEnv:       []string{"BAR=baz"},
	}
	s := newTestSlurmScheduler(t, cfg, &fakeRunner{})

	script, err := s.JobScript("jobA")
	if err != nil {
		t.Fatalf("JobScript() error: %v", err)
	}

	for _, want := range []string{
		"#!/bin/bash\n",
		"#SBATCH --job-name jobA\n",
		"#SBATCH --ntasks 4\n",
		"#SBATCH --no-requeue\n",
		"#SBATCH --output jobA-%A.log\n",
		"#SBATCH --partition=compute\n",
		"export MKL_NUM_THREADS=1\n",
		"export OPENBLAS_NUM_THREADS=1\n",
		"export OMP_NUM_THREADS=1\n",
		"export BAR=baz\n",
		"srun --mpi=pmi2 -n 4 python3 -m mpi4py.futures run_worker.py",
		"--job-id ${SLURM_JOB_ID}",
	} {
		if !strings.Contains(script, want) {
			t.Errorf("script missing %q:\n%s", want, script)
		}
	}

	if strings.Contains(script, "cd $PBS_O_WORKDIR") {
		t.Error("SLURM script must not contain PBS workdir handling")
	}
}

func TestSlurmJobScriptEnginePool(t *testing.T) {
	cfg := Config{
		Cores:    4,
		Executor: ExecutorEnginePool,
	}
	s := newTestSlurmScheduler(t, cfg, &fakeRunner{})

	script, err := s.JobScript("jobB")
	if err != nil {
		t.Fatalf("JobScript() error: %v", err)
	}

	// SLURM engines and driver run as srun task steps, without the
	// launcher-provided MPI flag.
	for _, want := range []string{
		"srun --ntasks 3 ipengine --profile=${profile} --cluster-id='' --log-to-file &",
		"srun --ntasks 1 python3 run_worker.py --profile ${profile} --n 3",
	} {
		if !strings.Contains(script, want) {
			t.Errorf("script missing %q:\n%s", want, script)
		}
	}
	if strings.Contains(script, "--mpi --cluster-id") {
		t.Errorf("srun engines must not get the mpiexec MPI flag:\n%s", script)
	}
}

func TestSlurmStartJobWritesScript(t *testing.T) {
	dir := chdirTemp(t)

	r := &fakeRunner{}
	s := newTestSlurmScheduler(t, Config{Cores: 2}, r)

	if err := s.StartJob(context.Background(), "jobA"); err != nil {
		t.Fatalf("StartJob() error: %v", err)
	}

	if got := r.callsTo("sbatch"); got != 1 {
		t.Errorf("sbatch invoked %d times; want 1", got)
	}
	if r.calls[0].Args[0] != "jobA.sbatch" {
		t.Errorf("sbatch arg = %q; want jobA.sbatch", r.calls[0].Args[0])
	}
	if _, err := os.Stat(filepath.Join(dir, "jobA.sbatch")); err != nil {
		t.Errorf("batch file not written: %v", err)
	}
}

func TestSlurmCancelUsesScancel(t *testing.T) {
	queueState := strings.Join([]string{
		squeueLine("2001", "jobA", "RUNNING", "1", "None"),
		"",
	}, "\n")

	r := &fakeRunner{}
	r.handler = func(name string, args ...string) (string, error) {
		switch name {
		case squeueBin:
			return queueState, nil
		case "scancel":
			queueState = ""
			return "", nil
		}
		return "", nil
	}
	s := newTestSlurmScheduler(t, Config{Cores: 2}, r)

	if err := s.Cancel(context.Background(), []string{"jobA"}, 5); err != nil {
		t.Fatalf("Cancel() error: %v", err)
	}
	if got := r.callsTo("scancel"); got != 1 {
		t.Errorf("scancel invoked %d times; want 1", got)
	}

	for _, call := range r.calls {
		if call.Name == "scancel" && call.Args[0] != "2001" {
			t.Errorf("scancel arg = %q; want the job ID 2001", call.Args[0])
		}
	}
}

func TestSqueueFormatSupported(t *testing.T) {
	tests := []struct {
		version string
		want    bool
	}{
		// Month-based minors carry a leading zero and must not be
		// mistaken for pre-17.11 releases.
		{"23.02.6", true},
		{"22.05.9", true},
		{"20.11.8", true},
		{"17.11.0", true},
		{"17.02.3", false},
		{"16.05.1", false},
		{"unknown", true}, // unparsable: assume supported
	}
	for _, tt := range tests {
		if got := squeueFormatSupported(tt.version); got != tt.want {
			t.Errorf("squeueFormatSupported(%q) = %v; want %v", tt.version, got, tt.want)
		}
	}
}

func TestSlurmOutputFnames(t *testing.T) {
	s := newTestSlurmScheduler(t, Config{Cores: 2}, &fakeRunner{})

	got := s.OutputFnames("jobA")
	if len(got) != 1 || got[0] != "jobA-${SLURM_JOB_ID}.out" {
		t.Errorf("OutputFnames() = %v; want [jobA-${SLURM_JOB_ID}.out]", got)
	}
}

func TestSlurmBatchName(t *testing.T) {
	s := newTestSlurmScheduler(t, Config{Cores: 2}, &fakeRunner{})
	if got := s.BatchName("jobA"); got != "jobA.sbatch" {
		t.Errorf("BatchName() = %q; want jobA.sbatch", got)
	}
}
