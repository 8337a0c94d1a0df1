package config

import (
	"strings"

	"github.com/spf13/pflag"
)

const VERSION = "0.3.1"

// Config holds global application settings
type Config struct {
	Debug bool
	Quiet bool
	Local bool // run against the in-memory local scheduler

	SchedulerSystem string // "PBS", "SLURM" or "" (auto-detect)

	Cores          int
	RunScript      string
	PythonBin      string
	LogDir         string
	MpiexecBin     string
	Executor       string
	NumThreads     int
	CoresPerNode   int
	ExtraScheduler []string
	ExtraEnv       []string

	MaxCancelTries int
}

// Global holds the singleton configuration instance
var Global Config

// LoadDefaults resets Global to built-in defaults. Viper and flag
// values are layered on top afterwards.
func LoadDefaults() {
	Global = Config{
		Cores:          1,
		RunScript:      "run_worker.py",
		PythonBin:      "python3",
		MpiexecBin:     "",
		Executor:       "mpi-futures",
		NumThreads:     1,
		MaxCancelTries: 5,
	}
}

// ApplyFlags layers explicitly set command-line flags over Global.
// Flags win over config file and environment values.
func ApplyFlags(flags *pflag.FlagSet) {
	flags.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "cores":
			Global.Cores, _ = flags.GetInt("cores")
		case "run-script":
			Global.RunScript, _ = flags.GetString("run-script")
		case "python":
			Global.PythonBin, _ = flags.GetString("python")
		case "log-dir":
			Global.LogDir, _ = flags.GetString("log-dir")
		case "mpiexec":
			Global.MpiexecBin, _ = flags.GetString("mpiexec")
		case "executor":
			Global.Executor, _ = flags.GetString("executor")
		case "num-threads":
			Global.NumThreads, _ = flags.GetInt("num-threads")
		case "cores-per-node":
			Global.CoresPerNode, _ = flags.GetInt("cores-per-node")
		case "extra-scheduler":
			Global.ExtraScheduler, _ = flags.GetStringArray("extra-scheduler")
		case "extra-env":
			Global.ExtraEnv, _ = flags.GetStringArray("extra-env")
		case "scheduler":
			v, _ := flags.GetString("scheduler")
			Global.SchedulerSystem = strings.ToUpper(v)
		}
	})
}
