package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sophie2chance2/foster-care-analysis/internal/config"
	"github.com/sophie2chance2/foster-care-analysis/internal/pipeline"
)

// runCmd executes one pipeline run
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline once",
	Long: `Loads the code book and every input, normalizes and concatenates them,
applies the transform chain, imputes missing values, optionally flags
re-entries and writes the configured sinks. The run summary is logged.`,
	Args: cobra.NoArgs,
	RunE: runPipeline,
}

// validateCmd checks a pipeline file without running it
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the pipeline file and exit",
	Args:  cobra.NoArgs,
	RunE:  runValidate,
}

func runPipeline(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	res, err := runOnce(ctx, p)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d rows, %d columns, %d re-entries\n",
		res.RunID, res.Summary.TotalRows, res.Summary.Columns, res.Summary.Reentries)
	return nil
}

// runOnce installs the metrics backend, runs p and flushes metrics.
func runOnce(ctx context.Context, p config.Pipeline) (pipeline.Result, error) {
	flush, err := pipeline.SetupMetrics(p.Metrics, p.Job, logger)
	if err != nil {
		return pipeline.Result{}, err
	}
	defer flush()
	return pipeline.Run(ctx, p, logger)
}

func runValidate(cmd *cobra.Command, args []string) error {
	p, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if printIssues(cmd.ErrOrStderr(), config.ValidatePipeline(p)) {
		return fmt.Errorf("configuration is invalid: %s", cfgPath)
	}
	logger.Info("configuration is valid", zap.String("path", cfgPath))
	return nil
}

// printIssues writes one line per issue and reports whether any is an error.
func printIssues(w io.Writer, issues []config.Issue) bool {
	for _, iss := range issues {
		fmt.Fprintf(w, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	return config.HasErrors(issues)
}
