package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// ConfigFilename is the name of the config file
const ConfigFilename = "config"

// ConfigType is the type of config file (yaml, json, toml)
const ConfigType = "yaml"

// InitViper initializes Viper with proper search paths and defaults
// Priority (highest to lowest):
// 1. Command-line flags (handled by cobra)
// 2. Environment variables (QBRIDGE_*)
// 3. User config file (~/.config/qbridge/config.yaml)
// 4. System config file (/etc/qbridge/config.yaml)
// 5. Defaults
func InitViper() error {
	viper.SetConfigName(ConfigFilename)
	viper.SetConfigType(ConfigType)

	// User config (highest priority)
	if userConfigDir, err := os.UserConfigDir(); err == nil {
		viper.AddConfigPath(filepath.Join(userConfigDir, "qbridge"))
	}

	// Home directory fallback
	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".qbridge"))
	}

	// System-wide config (lower priority)
	viper.AddConfigPath("/etc/qbridge")

	// Current directory (for development)
	viper.AddConfigPath(".")

	// Environment variables
	viper.SetEnvPrefix("QBRIDGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	// Set defaults (lowest priority)
	setDefaults()

	// Read config file (non-fatal if not found)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; defaults apply
			return nil
		}
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// setDefaults sets default values for all config keys
func setDefaults() {
	viper.SetDefault("scheduler_system", "")
	viper.SetDefault("cores", 1)
	viper.SetDefault("run_script", "run_worker.py")
	viper.SetDefault("python_bin", "python3")
	viper.SetDefault("log_dir", "")
	viper.SetDefault("mpiexec_bin", "")
	viper.SetDefault("executor", "mpi-futures")
	viper.SetDefault("num_threads", 1)
	viper.SetDefault("cores_per_node", 0)
	viper.SetDefault("extra_scheduler", []string{})
	viper.SetDefault("extra_env", []string{})
	viper.SetDefault("max_cancel_tries", 5)
}

// LoadFromViper copies resolved Viper values into the Global config
func LoadFromViper() {
	Global.SchedulerSystem = strings.ToUpper(viper.GetString("scheduler_system"))
	Global.Cores = viper.GetInt("cores")
	Global.RunScript = viper.GetString("run_script")
	Global.PythonBin = viper.GetString("python_bin")
	Global.LogDir = viper.GetString("log_dir")
	Global.MpiexecBin = viper.GetString("mpiexec_bin")
	Global.Executor = viper.GetString("executor")
	Global.NumThreads = viper.GetInt("num_threads")
	Global.CoresPerNode = viper.GetInt("cores_per_node")
	Global.ExtraScheduler = viper.GetStringSlice("extra_scheduler")
	Global.ExtraEnv = viper.GetStringSlice("extra_env")
	Global.MaxCancelTries = viper.GetInt("max_cancel_tries")
}
