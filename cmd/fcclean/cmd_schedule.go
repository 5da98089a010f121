package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sophie2chance2/foster-care-analysis/internal/config"
)

var (
	scheduleCron   string
	scheduleNow    bool
	scheduleReload bool
)

// scheduleCmd repeats the pipeline on a cron schedule
var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the pipeline repeatedly on a cron schedule",
	Long: `Runs the pipeline each time the cron expression fires until interrupted.
Standard five-field expressions and descriptors such as @daily or
"@every 6h" are accepted. Runs never overlap; a run still in progress when
the next one is due causes that tick to be skipped.

Example:
  fcclean schedule -c configs/afcars-2001.yaml --cron "0 3 * * *"`,
	Args: cobra.NoArgs,
	RunE: runSchedule,
}

func init() {
	scheduleCmd.Flags().StringVar(&scheduleCron, "cron", "@daily", "Cron expression")
	scheduleCmd.Flags().BoolVar(&scheduleNow, "now", false, "Also run once immediately")
	scheduleCmd.Flags().BoolVar(&scheduleReload, "reload", true, "Re-read the pipeline file before every run")
}

func runSchedule(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if printIssues(cmd.ErrOrStderr(), config.ValidatePipeline(p)) {
		return fmt.Errorf("configuration is invalid: %s", cfgPath)
	}

	job := func() {
		cur := p
		if scheduleReload {
			fresh, err := config.Load(cfgPath)
			if err != nil {
				logger.Error("schedule: reload failed; keeping previous pipeline", zap.Error(err))
			} else {
				cur = fresh
			}
		}
		if _, err := runOnce(ctx, cur); err != nil {
			logger.Error("schedule: run failed", zap.String("job", cur.Job), zap.Error(err))
		}
	}

	c, err := newScheduler(scheduleCron, job)
	if err != nil {
		return err
	}
	if scheduleNow {
		job()
	}
	c.Start()
	logger.Info("schedule: started", zap.String("cron", scheduleCron), zap.String("job", p.Job))

	<-ctx.Done()
	<-c.Stop().Done()
	logger.Info("schedule: stopped")
	return nil
}

// newScheduler returns a cron that runs job on expr, skipping ticks while a
// previous run is still going.
func newScheduler(expr string, job func()) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(expr, job); err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return c, nil
}
