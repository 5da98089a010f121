// Command fcclean normalizes AFCARS-style foster-care extracts into an
// analysis-ready table: code labels, derived ages, class-specific imputation
// and a longitudinal re-entry flag.
//
// Usage:
//
//	fcclean validate -c configs/afcars-2001.yaml
//	fcclean run -c configs/afcars-2001.yaml
//	fcclean inspect --codebook codebook.csv data/FC2001v5.tab
//	fcclean reentry --start 2015 --end 2019 --subject stfcid wide.csv
//	fcclean schedule -c configs/afcars-2001.yaml --cron "0 3 * * *"
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	// register all backends with the storage factory; the pipeline file
	// selects one.
	_ "github.com/sophie2chance2/foster-care-analysis/internal/storage/all"
)

var (
	// Global flags
	verbose bool
	cfgPath string

	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "fcclean",
	Short: "Clean and normalize foster-care extracts",
	Long: `fcclean resolves coded foster-care extracts against a code book,
reshapes them into a stable analytic schema, fills missing values by column
class and flags subjects who re-enter care.

Pipelines are described in a JSON or YAML file (see configs/).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "configs/afcars-2001.yaml", "Pipeline file (JSON or YAML)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(reentryCmd)
	rootCmd.AddCommand(scheduleCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
