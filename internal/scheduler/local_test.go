package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestLocalScheduler(t *testing.T, cfg Config) *LocalScheduler {
	t.Helper()
	l, err := NewLocalScheduler(cfg)
	if err != nil {
		t.Fatalf("NewLocalScheduler() error: %v", err)
	}
	return l
}

func TestLocalJobScriptHasNoDirectives(t *testing.T) {
	l := newTestLocalScheduler(t, Config{Cores: 2})

	script, err := l.JobScript("jobA")
	if err != nil {
		t.Fatalf("JobScript() error: %v", err)
	}

	if !strings.HasPrefix(script, "#!/bin/sh\n") {
		t.Errorf("script must start with a sh shebang:\n%s", script)
	}
	for _, directive := range []string{"#PBS", "#SBATCH"} {
		if strings.Contains(script, directive) {
			t.Errorf("local script must not contain %s directives:\n%s", directive, script)
		}
	}
	for _, want := range []string{
		"export OMP_NUM_THREADS=1\n",
		"mpiexec -n 2 python3 -m mpi4py.futures run_worker.py",
		"--job-id ${JOB_ID}",
	} {
		if !strings.Contains(script, want) {
			t.Errorf("script missing %q:\n%s", want, script)
		}
	}
}

func TestLocalStartJobRegistersRunning(t *testing.T) {
	dir := chdirTemp(t)
	l := newTestLocalScheduler(t, Config{Cores: 2})

	if err := l.StartJob(context.Background(), "jobA"); err != nil {
		t.Fatalf("StartJob() error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "jobA.batch")); err != nil {
		t.Errorf("batch file not written: %v", err)
	}

	queue, err := l.Queue(context.Background(), true)
	if err != nil {
		t.Fatalf("Queue() error: %v", err)
	}
	entry, ok := queue["1"]
	if !ok {
		t.Fatalf("job missing from queue: %v", queue)
	}
	if entry.Name != "jobA" || entry.State != StateRunning {
		t.Errorf("entry = %+v; want name jobA, state RUNNING", entry)
	}
	if entry.Attrs["batch_fname"] != "jobA.batch" {
		t.Errorf("batch_fname = %q; want jobA.batch", entry.Attrs["batch_fname"])
	}
}

func TestLocalQueueReturnsSnapshot(t *testing.T) {
	chdirTemp(t)
	l := newTestLocalScheduler(t, Config{Cores: 2})

	if err := l.StartJob(context.Background(), "jobA"); err != nil {
		t.Fatalf("StartJob() error: %v", err)
	}

	first, _ := l.Queue(context.Background(), false)
	delete(first, "1")

	second, _ := l.Queue(context.Background(), false)
	if len(second) != 1 {
		t.Errorf("mutating a Queue result must not change scheduler state; got %v", second)
	}
}

func TestLocalCancelRemovesByName(t *testing.T) {
	chdirTemp(t)
	l := newTestLocalScheduler(t, Config{Cores: 2})

	for _, name := range []string{"jobA", "jobB"} {
		if err := l.StartJob(context.Background(), name); err != nil {
			t.Fatalf("StartJob(%s) error: %v", name, err)
		}
	}

	if err := l.Cancel(context.Background(), []string{"jobA"}, DefaultMaxCancelTries); err != nil {
		t.Fatalf("Cancel() error: %v", err)
	}

	queue, _ := l.Queue(context.Background(), false)
	if len(queue) != 1 {
		t.Fatalf("got %d jobs after cancel; want 1", len(queue))
	}
	for _, entry := range queue {
		if entry.Name != "jobB" {
			t.Errorf("surviving job = %q; want jobB", entry.Name)
		}
	}
}

func TestLocalCancelAbsentNameIsNoop(t *testing.T) {
	chdirTemp(t)
	l := newTestLocalScheduler(t, Config{Cores: 2})

	if err := l.StartJob(context.Background(), "jobA"); err != nil {
		t.Fatalf("StartJob() error: %v", err)
	}
	if err := l.Cancel(context.Background(), []string{"nope"}, DefaultMaxCancelTries); err != nil {
		t.Errorf("Cancel() of an unknown name must succeed, got: %v", err)
	}

	queue, _ := l.Queue(context.Background(), false)
	if len(queue) != 1 {
		t.Errorf("queue changed by canceling an unknown name: %v", queue)
	}
}
