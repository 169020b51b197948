package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/anstrom/recon/internal/errors"
	"github.com/anstrom/recon/internal/scheduler"
)

const watchStopTimeout = 30 * time.Second

var (
	watchOpts     scanFlags
	watchSchedule string
	watchNow      bool
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Repeat a scan on a cron schedule",
	Long: `Run the same scan repeatedly on a cron schedule until interrupted.
A run that is still going when the next one is due causes that next run to
be skipped. A failed run is logged and the schedule continues, unless the
failure is fatal (for example the result database became unreachable).`,
	Example: `  recon watch --schedule "@every 1h" --targets 10.0.0.0/24 --ports 22,3389 --store
  recon watch --schedule "*/15 * * * *" --now --targets 192.168.1.0/24 --ports 1080 --method socks5 --open`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	addScanFlags(watchCmd, &watchOpts)
	watchCmd.Flags().StringVar(&watchSchedule, "schedule", "@every 1h", "cron expression or @every duration")
	watchCmd.Flags().BoolVar(&watchNow, "now", false, "run once immediately before the first scheduled run")
}

func runWatch(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	r, err := newRunner(ctx, appConfig, watchOpts)
	if err != nil {
		return err
	}
	defer r.close()

	watchCtx, abort := context.WithCancelCause(ctx)
	defer abort(nil)

	sched := scheduler.New(r.logger)
	id, err := sched.Add(watchSchedule, "scan", func(jobCtx context.Context) error {
		jobCtx, cancel := context.WithCancel(jobCtx)
		defer cancel()
		defer context.AfterFunc(watchCtx, cancel)()

		stats, err := r.runOnce(jobCtx, cmd.ErrOrStderr())
		if err != nil {
			if errors.IsFatal(err) {
				r.logger.Error("Stopping watch", "code", errors.GetCode(err), "error", err)
				abort(err)
			}
			return err
		}
		r.logger.Info("Scheduled scan finished", "results", stats.Results, "open", stats.Open())
		return nil
	})
	if err != nil {
		return err
	}

	return r.serve(ctx, func() error {
		if err := sched.Start(); err != nil {
			return err
		}
		if watchNow {
			if _, err := sched.RunNow(id); err != nil {
				return err
			}
		}
		if jobs := sched.Jobs(); len(jobs) > 0 {
			r.logger.Info("Watching", "schedule", watchSchedule, "next_run", jobs[0].NextRun)
		}

		<-watchCtx.Done()

		stopCtx, cancel := context.WithTimeout(context.Background(), watchStopTimeout)
		defer cancel()
		if err := sched.Stop(stopCtx); err != nil {
			return fmt.Errorf("failed to stop watch: %w", err)
		}
		if ctx.Err() == nil {
			return context.Cause(watchCtx)
		}
		return nil
	})
}
