package scheduler

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// ErrSchedulerNotFound indicates no scheduler binary was found in PATH
	ErrSchedulerNotFound = errors.New("scheduler binary not found in PATH")

	// ErrSchedulerUnresponsive indicates a queue or inventory query failed
	ErrSchedulerUnresponsive = errors.New("scheduler is not responding")

	// ErrUnsupportedExecutor indicates an unknown executor type was configured
	ErrUnsupportedExecutor = errors.New("unsupported executor type: use mpi-futures, mpi-direct or engine-pool")

	// ErrEnginePoolCores indicates the engine-pool executor was configured with too few cores
	ErrEnginePoolCores = errors.New("engine-pool reserves 1 core for the driver and the rest for engines, so more than 1 core is required")

	// ErrCoresNotDivisible indicates cores is not an exact multiple of cores per node
	ErrCoresNotDivisible = errors.New("cores must be an integer multiple of cores per node")

	// ErrInvalidCores indicates a non-positive core count
	ErrInvalidCores = errors.New("core count must be positive")
)

// SubmissionError represents an error during job submission
type SubmissionError struct {
	Scheduler string // Scheduler name
	JobName   string // Job name
	Output    string // Scheduler output
	Err       error  // Underlying error
}

func (e *SubmissionError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("%s submission failed for job %s: %v\nOutput: %s",
			e.Scheduler, e.JobName, e.Err, e.Output)
	}
	return fmt.Sprintf("%s submission failed for job %s: %v",
		e.Scheduler, e.JobName, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// ScriptCreationError represents an error writing a batch script
type ScriptCreationError struct {
	JobName string // Job name
	Path    string // Script path
	Err     error  // Underlying error
}

func (e *ScriptCreationError) Error() string {
	return fmt.Sprintf("failed to write script for job %s at %s: %v",
		e.JobName, e.Path, e.Err)
}

func (e *ScriptCreationError) Unwrap() error {
	return e.Err
}

// QueueError represents a failed queue-status query
type QueueError struct {
	Scheduler string // Scheduler name
	Command   string // Command that failed (e.g., "qstat", "squeue")
	Output    string // Raw command output
	Err       error  // Underlying error
}

func (e *QueueError) Error() string {
	return fmt.Sprintf("%s queue query via %s failed: %v",
		e.Scheduler, e.Command, e.Err)
}

func (e *QueueError) Unwrap() error {
	return e.Err
}

// NewSubmissionError creates a new SubmissionError
func NewSubmissionError(scheduler string, jobName string, output string, err error) *SubmissionError {
	return &SubmissionError{
		Scheduler: scheduler,
		JobName:   jobName,
		Output:    output,
		Err:       err,
	}
}

// NewScriptCreationError creates a new ScriptCreationError
func NewScriptCreationError(jobName string, path string, err error) *ScriptCreationError {
	return &ScriptCreationError{
		JobName: jobName,
		Path:    path,
		Err:     err,
	}
}

// NewQueueError creates a QueueError wrapping ErrSchedulerUnresponsive
func NewQueueError(scheduler string, command string, output string, err error) *QueueError {
	if err == nil {
		err = ErrSchedulerUnresponsive
	} else if !errors.Is(err, ErrSchedulerUnresponsive) {
		err = fmt.Errorf("%w: %v", ErrSchedulerUnresponsive, err)
	}
	return &QueueError{
		Scheduler: scheduler,
		Command:   command,
		Output:    output,
		Err:       err,
	}
}

// IsSubmissionError checks if an error is a SubmissionError
func IsSubmissionError(err error) bool {
	var se *SubmissionError
	return errors.As(err, &se)
}

// IsQueueError checks if an error is a QueueError
func IsQueueError(err error) bool {
	var qe *QueueError
	return errors.As(err, &qe)
}
