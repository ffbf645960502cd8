// File: cmd/config_show.go
package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Config prints the values the pipeline would run with after applying
defaults and SQDELTA_* environment variables. The --scratch-dir,
--diff-tool and --diff-args overrides belong to the root command and
are not accepted here.`,

	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runConfig(); err != nil {
			cobra.CheckErr(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	fmt.Printf("scratch_dir: %s\n", cfg.ScratchDir)
	fmt.Printf("diff_tool:   %s\n", cfg.DiffTool)
	fmt.Printf("diff_args:   %s\n", strings.Join(cfg.DiffArgs, " "))
	return nil
}
