// File: cmd/root.go
package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-squashdelta/internal/device"
)

var (
	// Global output flags only
	verbose bool
	quiet   bool

	// Pipeline overrides; environment and defaults fill the rest.
	scratchDir string
	diffTool   string
	diffArgs   []string
)

var rootCmd = &cobra.Command{
	Use:   "sqdelta <source-image> <target-image> <patch-file>",
	Short: "Generate binary deltas between SquashFS 4.0 images",
	Long: `sqdelta produces a compact binary patch transforming one SquashFS 4.0
image into another.

Compressed payloads diff poorly even when the underlying files barely
changed, so sqdelta parses both images, enumerates every compressed
block, drops the blocks the images share, and hands an external binary
diff tool a pair of expanded images in which byte-level similarity is
restored. The patch wraps the diff output with the block index needed
to rebuild the exact target image.

Commands:
  (default)   Generate a patch from three positional arguments
  inspect     Print the superblock and block summary of one image
  config      Show the effective configuration`,
	Version: "0.1.0-dev",
	Args:    cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runGenerate(args[0], args[1], args[2]); err != nil {
			cobra.CheckErr(err)
		}
	},
}

// Execute runs the root command and exits with status 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	// Only global output control flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress output except errors")

	rootCmd.Flags().StringVar(&scratchDir, "scratch-dir", "", "directory for the expanded temporary files (default: SQDELTA_SCRATCH_DIR or the system temp dir)")
	rootCmd.Flags().StringVar(&diffTool, "diff-tool", "", "external binary-diff executable (default: SQDELTA_DIFF_TOOL or xdelta3)")
	rootCmd.Flags().StringSliceVar(&diffArgs, "diff-args", nil, "arguments passed to the diff tool before the two expanded files")
}

// newLogger builds the process logger honoring --verbose and --quiet.
func newLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	switch {
	case verbose:
		logger.SetLevel(logrus.DebugLevel)
	case quiet:
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}
	return logger
}

// loadConfig resolves the environment-backed configuration and layers
// the command-line overrides on top.
func loadConfig() (*device.Config, error) {
	cfg, err := device.LoadConfig()
	if err != nil {
		return nil, err
	}
	if scratchDir != "" {
		cfg.ScratchDir = scratchDir
	}
	if diffTool != "" {
		cfg.DiffTool = diffTool
	}
	if len(diffArgs) > 0 {
		cfg.DiffArgs = diffArgs
	}
	return cfg, nil
}
