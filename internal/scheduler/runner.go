package scheduler

import (
	"context"
	"os"
	"os/exec"
)

// Runner executes an external scheduler command and returns its combined
// output. Every adapter shells out through a Runner so tests can script
// the external tool's behavior.
type Runner interface {
	Run(ctx context.Context, extraEnv []string, name string, args ...string) (string, error)
}

// execRunner is the production Runner backed by os/exec.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, extraEnv []string, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if len(extraEnv) > 0 {
		cmd.Env = append(os.Environ(), extraEnv...)
	}
	out, err := cmd.CombinedOutput()
	return string(out), err
}
