package scheduler

import (
	"fmt"
	"os"
	"strings"

	"github.com/qbridge/qbridge/internal/utils"
)

// extraSchedulerLines renders caller-supplied directives verbatim with
// the dialect's comment prefix ("#PBS", "#SBATCH").
func extraSchedulerLines(prefix string, extra []string) string {
	var b strings.Builder
	for _, arg := range extra {
		fmt.Fprintf(&b, "#%s %s\n", prefix, arg)
	}
	return b.String()
}

// envExports renders the numeric-library thread-count exports followed
// by caller-supplied extra environment assignments.
func envExports(numThreads int, extraEnv []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "export MKL_NUM_THREADS=%d\n", numThreads)
	fmt.Fprintf(&b, "export OPENBLAS_NUM_THREADS=%d\n", numThreads)
	fmt.Fprintf(&b, "export OMP_NUM_THREADS=%d\n", numThreads)
	for _, kv := range extraEnv {
		fmt.Fprintf(&b, "export %s\n", kv)
	}
	return b.String()
}

// writeJobScript renders the script via render and writes it to
// <name><ext> in the working directory, returning the path.
func writeJobScript(name, ext string, render func(string) (string, error)) (string, error) {
	script, err := render(name)
	if err != nil {
		return "", err
	}
	path := name + ext
	if err := os.WriteFile(path, []byte(script), utils.PermExec); err != nil {
		return "", NewScriptCreationError(name, path, err)
	}
	return path, nil
}
