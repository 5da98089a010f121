package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sophie2chance2/foster-care-analysis/internal/config"
	"github.com/sophie2chance2/foster-care-analysis/internal/pipeline"
	"github.com/sophie2chance2/foster-care-analysis/internal/reentry"
	"github.com/sophie2chance2/foster-care-analysis/internal/sink"
)

var (
	reentryCfg reentry.Config
	reentryOut string
)

// reentryCmd runs the detector over an existing wide indicator table
var reentryCmd = &cobra.Command{
	Use:   "reentry [wide.csv]",
	Short: "Flag re-entries in a wide yearly indicator table",
	Long: `Reads a table with one row per subject and one 0/1 column per year
(named by --column-format, default the bare year) and appends a boolean
column that is true when the subject left care and later came back.

Example:
  fcclean reentry --start 2015 --end 2019 --subject AFCARSID wide.csv -o flagged.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runReentry,
}

func init() {
	f := reentryCmd.Flags()
	f.StringVar(&reentryCfg.SubjectColumn, "subject", "stfcid", "Subject identifier column")
	f.IntVar(&reentryCfg.StartYear, "start", 0, "First year of the window")
	f.IntVar(&reentryCfg.EndYear, "end", 0, "Last year of the window")
	f.StringVar(&reentryCfg.ColumnFormat, "column-format", "%d", "fmt pattern naming a year column")
	f.StringVar(&reentryCfg.FlagColumn, "flag", reentry.DefaultFlagColumn, "Name of the appended column")
	f.IntVar(&reentryCfg.Workers, "workers", 0, "Parallel scan workers (default GOMAXPROCS)")
	f.StringVarP(&reentryOut, "output", "o", "", "Output CSV (default stdout)")
	_ = reentryCmd.MarkFlagRequired("start")
	_ = reentryCmd.MarkFlagRequired("end")
}

func runReentry(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	det, err := reentry.New(reentryCfg, logger)
	if err != nil {
		return err
	}

	s, err := pipeline.SourceFor(args[0])
	if err != nil {
		return err
	}
	src, err := pipeline.BuildSource(s, logger)
	if err != nil {
		return err
	}
	prs, err := pipeline.BuildParser(config.Parser{Kind: "csv"}, s.BaseName(), logger)
	if err != nil {
		return err
	}
	rc, err := src.Open(ctx)
	if err != nil {
		return err
	}
	defer rc.Close()
	wide, _, err := prs.Parse(rc)
	if err != nil {
		return fmt.Errorf("parse %s: %w", args[0], err)
	}

	flagged, err := det.Apply(ctx, wide)
	if err != nil {
		return err
	}
	logger.Info("reentry: flagged",
		zap.Int("subjects", flagged.Len()),
		zap.Int("reentries", reentry.Count(flagged, det.FlagColumn())),
	)
	if reentryOut == "" {
		_, err = sink.WriteCSV(ctx, cmd.OutOrStdout(), flagged)
		return err
	}
	_, err = sink.CSVFile{Path: reentryOut}.Write(ctx, flagged)
	return err
}
