package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

const (
	localExt      = ".batch"
	localJobIDVar = "${JOB_ID}"
)

// LocalScheduler is an in-memory test stand-in that satisfies the same
// contract as the real adapters without shelling out to a batch system.
// Job state lives in its own table instead of an external scheduler, so
// it is the one adapter that needs a lock.
type LocalScheduler struct {
	cfg Config

	mu     sync.Mutex
	nextID int
	jobs   map[string]QueueEntry // job ID -> entry
}

// NewLocalScheduler creates a local scheduler instance
func NewLocalScheduler(cfg Config) (*LocalScheduler, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &LocalScheduler{
		cfg:  cfg,
		jobs: make(map[string]QueueEntry),
	}, nil
}

// BatchName returns the script filename for a job name
func (l *LocalScheduler) BatchName(name string) string {
	return name + localExt
}

// JobScript renders a plain shell script with no scheduler directives
func (l *LocalScheduler) JobScript(name string) (string, error) {
	launch, err := newLauncher(l.cfg, localJobIDVar).fragment(name)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("#!/bin/sh\n\n")
	b.WriteString(envExports(l.cfg.NumThreads, l.cfg.ExtraEnv))
	b.WriteString("\n")
	b.WriteString(launch)
	if !strings.HasSuffix(launch, "\n") {
		b.WriteString("\n")
	}
	return b.String(), nil
}

// WriteJobScript writes the job script to <name>.batch
func (l *LocalScheduler) WriteJobScript(name string) (string, error) {
	return writeJobScript(name, localExt, l.JobScript)
}

// StartJob writes the job script and registers the job as running
func (l *LocalScheduler) StartJob(ctx context.Context, name string) error {
	if _, err := l.WriteJobScript(name); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	jobID := fmt.Sprintf("%d", l.nextID)
	l.jobs[jobID] = QueueEntry{
		Name:  name,
		State: StateRunning,
		Attrs: map[string]string{"batch_fname": l.BatchName(name)},
	}
	return nil
}

// Queue returns a copy of the in-memory job table. meOnly is accepted
// for interface parity; all local jobs belong to the invoking user.
func (l *LocalScheduler) Queue(ctx context.Context, meOnly bool) (map[string]QueueEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	snapshot := make(map[string]QueueEntry, len(l.jobs))
	for jobID, entry := range l.jobs {
		snapshot[jobID] = entry
	}
	return snapshot, nil
}

// Cancel removes all jobs with the given names from the job table
func (l *LocalScheduler) Cancel(ctx context.Context, names []string, maxTries int) error {
	target := make(map[string]bool, len(names))
	for _, name := range names {
		target[name] = true
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for jobID, entry := range l.jobs {
		if target[entry.Name] {
			delete(l.jobs, jobID)
		}
	}
	return nil
}

// OutputFnames returns the job's output file path next to its log file
func (l *LocalScheduler) OutputFnames(name string) []string {
	log := l.cfg.logFname(name, localJobIDVar)
	return []string{strings.TrimSuffix(log, ".log") + ".out"}
}

// GetInfo returns information about the local scheduler
func (l *LocalScheduler) GetInfo() *SchedulerInfo {
	return &SchedulerInfo{
		Type:      string(SchedulerLocal),
		Available: true,
	}
}
