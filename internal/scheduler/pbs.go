package scheduler

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/qbridge/qbridge/internal/utils"
)

const (
	pbsExt      = ".batch"
	pbsJobIDVar = "${PBS_JOBID}"
)

// qsub streams logs to the home folder as they are written instead of
// copying them at job end; that is what the "-k oe" flags buy us.
var pbsSubmitCmd = []string{"qsub", "-k", "oe"}

// PBSScheduler implements the Scheduler interface for PBS/Torque.
//
// PBS allocates whole nodes, so the flat core request is reconciled into
// a (node count, cores-per-node) pair at construction time. When the
// density is not supplied it is guessed from the qnodes inventory, which
// may adjust the effective core count upward.
type PBSScheduler struct {
	cfg      Config
	runner   Runner
	username string

	// Node allocation derived once at construction.
	nnodes       int
	coresPerNode int
}

// NewPBSScheduler creates a PBS scheduler, reconciling the node/core
// geometry. A changed core count and a failed inventory probe are
// surfaced as warnings, not errors; a non-divisible explicit density is
// fatal.
func NewPBSScheduler(cfg Config) (*PBSScheduler, error) {
	return newPBSSchedulerWithRunner(cfg, execRunner{})
}

func newPBSSchedulerWithRunner(cfg Config, r Runner) (*PBSScheduler, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	p := &PBSScheduler{cfg: cfg, runner: r, username: currentUsername()}
	if err := p.reconcileNodes(); err != nil {
		return nil, err
	}
	return p, nil
}

// reconcileNodes derives nnodes and coresPerNode from the requested core
// count. Invariant: nnodes * coresPerNode == p.cfg.Cores.
func (p *PBSScheduler) reconcileNodes() error {
	requested := p.cfg.Cores

	if p.cfg.CoresPerNode > 0 {
		if requested%p.cfg.CoresPerNode != 0 {
			return fmt.Errorf("%w: %d cores / %d per node", ErrCoresNotDivisible, requested, p.cfg.CoresPerNode)
		}
		p.nnodes = requested / p.cfg.CoresPerNode
		p.coresPerNode = p.cfg.CoresPerNode
		return nil
	}

	guess, err := p.guessCoresPerNode()
	if err != nil {
		// Degraded mode: one core per node still submits.
		utils.PrintWarning("could not guess cores per node (%v); set cores_per_node explicitly. Assuming 1 core per node.", err)
		p.nnodes = requested
		p.coresPerNode = 1
		p.cfg.Cores = p.nnodes * p.coresPerNode
		return nil
	}

	p.nnodes = int(math.Ceil(float64(requested) / float64(guess)))
	p.coresPerNode = int(math.Round(float64(requested) / float64(p.nnodes)))
	p.cfg.Cores = p.nnodes * p.coresPerNode

	utils.PrintWarning("`#PBS -l nodes=%d:ppn=%d` was guessed from the qnodes inventory; set cores_per_node explicitly to override.", p.nnodes, p.coresPerNode)
	if p.cfg.Cores != requested {
		utils.PrintWarning("requested core count changed from %d to %d to fit whole nodes", requested, p.cfg.Cores)
	}
	return nil
}

// NodeAllocation returns the reconciled (node count, cores per node,
// effective core count) triple.
func (p *PBSScheduler) NodeAllocation() (nnodes, coresPerNode, cores int) {
	return p.nnodes, p.coresPerNode, p.cfg.Cores
}

// BatchName returns the script filename for a job name
func (p *PBSScheduler) BatchName(name string) string {
	return name + pbsExt
}

// JobScript renders the PBS submission script for the named job
func (p *PBSScheduler) JobScript(name string) (string, error) {
	l := newLauncher(p.cfg, pbsJobIDVar)
	launch, err := l.fragment(name)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("#!/bin/sh\n")
	fmt.Fprintf(&b, "#PBS -l nodes=%d:ppn=%d\n", p.nnodes, p.coresPerNode)
	b.WriteString("#PBS -V\n")
	fmt.Fprintf(&b, "#PBS -N %s\n", name)
	// The real log paths come from -k oe; the scheduler still wants -o/-e.
	b.WriteString("#PBS -o /tmp/placeholder\n")
	b.WriteString("#PBS -e /tmp/placeholder\n")
	b.WriteString(extraSchedulerLines("PBS", p.cfg.ExtraScheduler))
	b.WriteString("\n")
	b.WriteString(envExports(p.cfg.NumThreads, p.cfg.ExtraEnv))
	b.WriteString("\ncd $PBS_O_WORKDIR\n\n")
	b.WriteString(launch)
	if !strings.HasSuffix(launch, "\n") {
		b.WriteString("\n")
	}
	return b.String(), nil
}

// WriteJobScript writes the job script to <name>.batch
func (p *PBSScheduler) WriteJobScript(name string) (string, error) {
	return writeJobScript(name, pbsExt, p.JobScript)
}

// StartJob writes the job script and submits it via qsub, retrying with
// a fixed delay until qsub succeeds or ctx is done.
func (p *PBSScheduler) StartJob(ctx context.Context, name string) error {
	path, err := p.WriteJobScript(name)
	if err != nil {
		return err
	}
	argv := append(append([]string{}, pbsSubmitCmd...), path)
	return submitWithRetry(ctx, p.runner, "PBS", name, argv)
}

// Queue polls qstat -f and returns the running and pending jobs.
//
// SGE_LONG_QNAMES keeps long job names from being truncated on clusters
// whose qstat honors it.
func (p *PBSScheduler) Queue(ctx context.Context, meOnly bool) (map[string]QueueEntry, error) {
	out, err := p.runner.Run(ctx, []string{"SGE_LONG_QNAMES=1000"}, "qstat", "-f")
	if err != nil {
		return nil, NewQueueError("PBS", "qstat", out, err)
	}
	return parseQstatOutput(out, p.username, meOnly), nil
}

// Cancel cancels the named jobs via qdel, retrying up to maxTries
func (p *PBSScheduler) Cancel(ctx context.Context, names []string, maxTries int) error {
	cancelOne := func(ctx context.Context, jobID string) error {
		_, err := p.runner.Run(ctx, nil, "qdel", jobID)
		return err
	}
	return cancelByName(ctx, p.Queue, cancelOne, names, maxTries)
}

// GetInfo returns information about the PBS scheduler
func (p *PBSScheduler) GetInfo() *SchedulerInfo {
	_, inJob := os.LookupEnv("PBS_JOBID")
	info := &SchedulerInfo{
		Type:      string(SchedulerPBS),
		Binary:    lookPathOrEmpty("qsub"),
		InJob:     inJob,
		Available: !inJob,
	}
	if info.Binary != "" {
		if version, err := binaryVersion(info.Binary); err == nil {
			info.Version = version
		}
	} else {
		info.Available = false
	}
	return info
}

// OutputFnames returns the streamed stdout/stderr paths. With -k oe the
// scheduler writes <name>.o<id> and <name>.e<id> under the home folder
// while the job runs.
func (p *PBSScheduler) OutputFnames(name string) []string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = ""
	}
	return []string{
		filepath.Join(home, fmt.Sprintf("%s.o%s", name, pbsJobIDVar)),
		filepath.Join(home, fmt.Sprintf("%s.e%s", name, pbsJobIDVar)),
	}
}

// splitBlocks splits qstat/qnodes style output into blank-line separated
// blocks of trimmed, non-empty lines.
func splitBlocks(lines []string) [][]string {
	blocks := [][]string{{}}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			blocks[len(blocks)-1] = append(blocks[len(blocks)-1], line)
		} else if len(blocks[len(blocks)-1]) > 0 {
			blocks = append(blocks, []string{})
		}
	}
	if len(blocks[len(blocks)-1]) == 0 {
		blocks = blocks[:len(blocks)-1]
	}
	return blocks
}

// fixLineCuts merges wrapped continuation lines (no " = " separator)
// into the previous key/value line before splitting.
func fixLineCuts(raw []string) []string {
	var fixed []string
	for _, line := range raw {
		if strings.Contains(line, " = ") {
			fixed = append(fixed, line)
		} else if len(fixed) > 0 {
			fixed[len(fixed)-1] += line
		}
	}
	return fixed
}

// parseKeyValueBlock turns "key = value" lines into a map, merging
// continuation lines first.
func parseKeyValueBlock(raw []string) map[string]string {
	attrs := make(map[string]string)
	for _, line := range fixLineCuts(raw) {
		parts := strings.SplitN(line, " = ", 2)
		if len(parts) == 2 {
			attrs[parts[0]] = parts[1]
		}
	}
	return attrs
}

// parseQstatOutput parses `qstat -f` output into a queue snapshot. Only
// jobs in state R or Q are kept. With meOnly, only jobs whose Job_Owner
// contains username are kept; the substring match is deliberate because
// the owner field carries a host suffix (alice@node001).
func parseQstatOutput(output, username string, meOnly bool) map[string]QueueEntry {
	// qstat wraps long values with "\n\t"; undo that before splitting.
	lines := strings.Split(strings.ReplaceAll(output, "\n\t", ""), "\n")

	running := make(map[string]QueueEntry)
	for _, block := range splitBlocks(lines) {
		header := block[0]
		if !strings.HasPrefix(header, "Job Id:") {
			continue
		}
		jobID := strings.TrimSpace(strings.TrimPrefix(header, "Job Id:"))
		attrs := parseKeyValueBlock(block[1:])

		var state JobState
		switch attrs["job_state"] {
		case "R":
			state = StateRunning
		case "Q":
			state = StatePending
		default:
			continue
		}
		if meOnly && !strings.Contains(attrs["Job_Owner"], username) {
			continue
		}

		running[jobID] = QueueEntry{
			Name:  attrs["Job_Name"],
			State: state,
			Attrs: attrs,
		}
	}
	return running
}

// guessCoresPerNode queries the node inventory via qnodes and takes the
// most frequent per-node core count as the assumed density.
func (p *PBSScheduler) guessCoresPerNode() (int, error) {
	out, err := p.runner.Run(context.Background(), nil, "qnodes")
	if err != nil {
		return 0, NewQueueError("PBS", "qnodes", out, err)
	}
	return mostCommonNodeCores(out)
}

// mostCommonNodeCores tallies the np attribute across qnodes blocks and
// returns the most frequent value.
func mostCommonNodeCores(output string) (int, error) {
	lines := strings.Split(strings.ReplaceAll(output, "\n\t", ""), "\n")

	counts := make(map[int]int)
	for _, block := range splitBlocks(lines) {
		attrs := parseKeyValueBlock(block[1:])
		np, err := strconv.Atoi(attrs["np"])
		if err != nil {
			continue
		}
		counts[np]++
	}
	if len(counts) == 0 {
		return 0, fmt.Errorf("no node core counts found in qnodes output")
	}

	best, bestFreq := 0, 0
	for np, freq := range counts {
		if freq > bestFreq || (freq == bestFreq && np > best) {
			best, bestFreq = np, freq
		}
	}
	return best, nil
}
