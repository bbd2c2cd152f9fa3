package main

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/visibility-cli/internal/model"
)

var snapshotDomain string

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Recompute scores and write daily trend snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		domains := model.AllDomains()
		if snapshotDomain != "" {
			d, err := model.ParseExtractionDomain(snapshotDomain)
			if err != nil {
				return err
			}
			domains = []model.ExtractionDomain{d}
		}

		now := time.Now()
		total := 0
		for _, domain := range domains {
			n, err := env.Scorer.Rollup(ctx, domain, now)
			if err != nil {
				return eris.Wrapf(err, "rollup %s", domain)
			}
			total += n
		}

		zap.L().Info("snapshots written",
			zap.Int("count", total),
			zap.String("date", now.UTC().Format("2006-01-02")),
		)
		return nil
	},
}

func init() {
	snapshotCmd.Flags().StringVar(&snapshotDomain, "domain", "", "extraction domain (brands|universities, default all)")
	rootCmd.AddCommand(snapshotCmd)
}
