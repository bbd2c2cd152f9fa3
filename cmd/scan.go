package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/visibility-cli/internal/model"
	"github.com/sells-group/visibility-cli/internal/scheduler"
)

var (
	scanDomain    string
	scanBatchSize int
	scanForce     bool
)

// scanService is the scheduler surface the scan/serve commands consume.
type scanService interface {
	Run(ctx context.Context, params scheduler.RunParams) (*model.RunReport, error)
	Reprocess(ctx context.Context, params scheduler.ReprocessParams) (*model.ReprocessReport, error)
	Status(ctx context.Context) (*model.PipelineStatus, error)
}

// scanDomains runs one scheduler batch per requested domain and merges the
// reports. An empty domain argument scans every domain.
func scanDomains(ctx context.Context, svc scanService, domainArg string, batchSize int, force bool) (*model.RunReport, error) {
	domains := model.AllDomains()
	if domainArg != "" {
		d, err := model.ParseExtractionDomain(domainArg)
		if err != nil {
			return nil, err
		}
		domains = []model.ExtractionDomain{d}
	}

	total := &model.RunReport{}
	for _, d := range domains {
		r, err := svc.Run(ctx, scheduler.RunParams{
			Domain:    d,
			BatchSize: batchSize,
			Force:     force,
		})
		if err != nil {
			return nil, err
		}
		total.Completed += r.Completed
		total.Failed += r.Failed
		total.StaleRemaining += r.StaleRemaining
		total.CostUSD += r.CostUSD
		total.RuntimeMS += r.RuntimeMS
	}
	return total, nil
}

var scanCmd = &cobra.Command{
	Use:     "scan",
	Aliases: []string{"run"},
	Short:   "Execute one batch of stale prompts against all backends",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		report, err := scanDomains(ctx, env.Scheduler, scanDomain, scanBatchSize, scanForce)
		if err != nil {
			return eris.Wrap(err, "scan")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

func init() {
	scanCmd.Flags().StringVar(&scanDomain, "domain", "", "extraction domain (brands|universities, default all)")
	scanCmd.Flags().IntVar(&scanBatchSize, "batch-size", 0, "prompts per batch (default from config)")
	scanCmd.Flags().BoolVar(&scanForce, "force", false, "bypass freshness windows")
	rootCmd.AddCommand(scanCmd)
}
