package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/visibility-cli/internal/model"
	"github.com/sells-group/visibility-cli/internal/scheduler"
	"github.com/sells-group/visibility-cli/internal/store"
)

var (
	rescanDomain     string
	rescanInterval   time.Duration
	rescanMaxBatches int
)

var rescanCmd = &cobra.Command{
	Use:   "rescan",
	Short: "Force a full re-execution of every prompt and wait for it to drain",
	Long:  "Runs forced scan batches until every prompt has been executed since the rescan started, bounded by --max-batches.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		domains := model.AllDomains()
		if rescanDomain != "" {
			d, err := model.ParseExtractionDomain(rescanDomain)
			if err != nil {
				return err
			}
			domains = []model.ExtractionDomain{d}
		}

		for _, domain := range domains {
			if err := rescanDomainFully(ctx, env, domain); err != nil {
				return err
			}
		}
		return nil
	},
}

// rescanDomainFully drives forced batches through the watcher until every
// prompt in the domain has executed since start.
func rescanDomainFully(ctx context.Context, env *pipelineEnv, domain model.ExtractionDomain) error {
	start := time.Now().UTC()

	check := func(ctx context.Context) (bool, error) {
		report, err := env.Scheduler.Run(ctx, scheduler.RunParams{Domain: domain, Force: true})
		if err != nil {
			return false, err
		}

		// Pending means not yet executed since the rescan began.
		pending, err := env.Store.CountStalePrompts(ctx, store.StaleQuery{
			Domain:         domain,
			SharedCutoff:   start,
			CustomerCutoff: start,
		})
		if err != nil {
			return false, err
		}

		zap.L().Info("rescan batch complete",
			zap.String("domain", string(domain)),
			zap.Int("completed", report.Completed),
			zap.Int("failed", report.Failed),
			zap.Int("pending", pending),
		)
		return pending == 0, nil
	}

	watcher := scheduler.NewWatcher(rescanInterval, rescanMaxBatches)
	handle := watcher.Watch(ctx, check)
	<-handle.Done()

	switch handle.State() {
	case scheduler.StateDone:
		zap.L().Info("rescan complete", zap.String("domain", string(domain)))
		return nil
	case scheduler.StateTimedOut:
		return eris.Errorf("rescan: %s did not drain within %d batches", domain, rescanMaxBatches)
	default:
		return eris.Wrapf(handle.Err(), "rescan: %s", domain)
	}
}

func init() {
	rescanCmd.Flags().StringVar(&rescanDomain, "domain", "", "extraction domain (brands|universities, default all)")
	rescanCmd.Flags().DurationVar(&rescanInterval, "interval", 5*time.Second, "delay between forced batches")
	rescanCmd.Flags().IntVar(&rescanMaxBatches, "max-batches", 50, "max forced batches before giving up")
	rootCmd.AddCommand(rescanCmd)
}
