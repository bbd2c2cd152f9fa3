package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/visibility-cli/internal/citation"
	"github.com/sells-group/visibility-cli/internal/model"
)

var citationsDomain string

var citationsCmd = &cobra.Command{
	Use:   "citations",
	Short: "Report cited domains ranked by share, with source-type distribution",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		domain, err := model.ParseExtractionDomain(citationsDomain)
		if err != nil {
			return err
		}

		citations, err := st.ListCitations(ctx, domain)
		if err != nil {
			return eris.Wrap(err, "list citations")
		}

		out := struct {
			Domain       model.ExtractionDomain   `json:"domain"`
			Total        int                      `json:"total"`
			Shares       []citation.DomainShare   `json:"shares"`
			Distribution map[model.SourceType]int `json:"distribution"`
		}{
			Domain:       domain,
			Total:        len(citations),
			Shares:       citation.Aggregate(citations),
			Distribution: citation.TypeDistribution(citations),
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	citationsCmd.Flags().StringVar(&citationsDomain, "domain", "brands", "extraction domain (brands|universities)")
	rootCmd.AddCommand(citationsCmd)
}
