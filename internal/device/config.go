// File: internal/device/config.go
package device

import (
	"os"

	"github.com/spf13/viper"
)

// Config holds the runtime knobs of the delta pipeline.
type Config struct {
	// ScratchDir is where the two expanded temporary files are written.
	ScratchDir string `mapstructure:"scratch_dir"`

	// DiffTool is the external binary-diff executable.
	DiffTool string `mapstructure:"diff_tool"`

	// DiffArgs are passed to the diff tool before the two expanded
	// file paths.
	DiffArgs []string `mapstructure:"diff_args"`
}

// LoadConfig resolves configuration from the environment using Viper.
// Every key is overridable via SQDELTA_* variables, e.g.
// SQDELTA_SCRATCH_DIR selects the scratch directory.
func LoadConfig() (*Config, error) {
	v := viper.New()

	v.SetDefault("scratch_dir", os.TempDir())
	v.SetDefault("diff_tool", "xdelta3")
	v.SetDefault("diff_args", []string{"-e", "-c", "-s"})

	v.SetEnvPrefix("SQDELTA")
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	// AutomaticEnv does not feed Unmarshal for unbound keys, so pick the
	// scalar overrides up explicitly.
	cfg.ScratchDir = v.GetString("scratch_dir")
	cfg.DiffTool = v.GetString("diff_tool")
	cfg.DiffArgs = v.GetStringSlice("diff_args")

	return cfg, nil
}
