package scheduler

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/qbridge/qbridge/internal/utils"
)

// submitRetryInterval is the fixed delay between submission attempts.
const submitRetryInterval = 500 * time.Millisecond

// cancelRetryInterval is the fixed delay between cancel sweeps.
const cancelRetryInterval = 500 * time.Millisecond

// submitWithRetry invokes the submit command until it reports success.
// There is no retry ceiling: submission failures on shared clusters are
// typically transient (scheduler daemon restarts, momentary quota
// contention), so eventual success is favored over fast failure. The
// loop is only bounded by ctx; with a background context it retries
// forever.
func submitWithRetry(ctx context.Context, r Runner, schedulerName, jobName string, argv []string) error {
	var lastOutput string
	op := func() error {
		out, err := r.Run(ctx, nil, argv[0], argv[1:]...)
		if err != nil {
			lastOutput = out
			utils.PrintDebug("submit of %s failed, retrying: %v", jobName, err)
		}
		return err
	}

	b := backoff.WithContext(backoff.NewConstantBackOff(submitRetryInterval), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return NewSubmissionError(schedulerName, jobName, lastOutput, err)
	}
	return nil
}

// cancelByName implements the shared cancellation protocol: take a fresh
// queue snapshot, cancel every job whose name is in names, and repeat up
// to maxTries until no requested name remains. Per-job cancel failures
// are reported as warnings; canceling an already-gone job is not an
// error.
func cancelByName(
	ctx context.Context,
	queue func(context.Context, bool) (map[string]QueueEntry, error),
	cancelOne func(context.Context, string) error,
	names []string,
	maxTries int,
) error {
	if maxTries <= 0 {
		maxTries = DefaultMaxCancelTries
	}

	target := make(map[string]bool, len(names))
	for _, name := range names {
		target[name] = true
	}

	for try := 0; try < maxTries; try++ {
		snapshot, err := queue(ctx, true)
		if err != nil {
			return err
		}

		var jobIDs []string
		for jobID, entry := range snapshot {
			if target[entry.Name] {
				jobIDs = append(jobIDs, jobID)
			}
		}
		if len(jobIDs) == 0 {
			// no more matching jobs
			return nil
		}

		for _, jobID := range jobIDs {
			if err := cancelOne(ctx, jobID); err != nil {
				utils.PrintWarning("could not cancel job %s: %v", jobID, err)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(cancelRetryInterval):
		}
	}
	return nil
}
