package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/visibility-cli/internal/model"
	"github.com/sells-group/visibility-cli/internal/scheduler"
)

var (
	reprocessDomain string
	reprocessLimit  int
)

var reprocessCmd = &cobra.Command{
	Use:   "reprocess",
	Short: "Re-mine stored responses that have no mentions or citations",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		domain, err := model.ParseExtractionDomain(reprocessDomain)
		if err != nil {
			return err
		}

		report, err := env.Scheduler.Reprocess(ctx, scheduler.ReprocessParams{
			Domain: domain,
			Limit:  reprocessLimit,
		})
		if err != nil {
			return eris.Wrap(err, "reprocess")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

func init() {
	reprocessCmd.Flags().StringVar(&reprocessDomain, "domain", "brands", "extraction domain (brands|universities)")
	reprocessCmd.Flags().IntVar(&reprocessLimit, "limit", 100, "max executions to reprocess")
	rootCmd.AddCommand(reprocessCmd)
}
