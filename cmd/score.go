package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/visibility-cli/internal/model"
)

var (
	scoreDomain string
	scoreEntity string
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Recompute visibility scores, or report one entity's score",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		if scoreEntity != "" {
			report, err := env.Scorer.Report(ctx, scoreEntity, time.Now())
			if err != nil {
				return eris.Wrap(err, "score report")
			}
			return enc.Encode(report)
		}

		domains := model.AllDomains()
		if scoreDomain != "" {
			d, err := model.ParseExtractionDomain(scoreDomain)
			if err != nil {
				return err
			}
			domains = []model.ExtractionDomain{d}
		}

		for _, domain := range domains {
			scored, err := env.Scorer.Recompute(ctx, domain)
			if err != nil {
				return eris.Wrapf(err, "recompute %s", domain)
			}
			zap.L().Info("scores recomputed",
				zap.String("domain", string(domain)),
				zap.Int("entities", len(scored)),
			)
			if err := enc.Encode(scored); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	scoreCmd.Flags().StringVar(&scoreDomain, "domain", "", "extraction domain (brands|universities, default all)")
	scoreCmd.Flags().StringVar(&scoreEntity, "entity", "", "report a single entity's score instead of recomputing")
	rootCmd.AddCommand(scoreCmd)
}
