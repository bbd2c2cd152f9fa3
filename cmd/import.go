package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/visibility-cli/internal/extract"
	"github.com/sells-group/visibility-cli/internal/model"
)

var (
	importEntitiesDomain string
	importPromptsFile    string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import entity catalogs and prompt sets into the store",
}

var importEntitiesCmd = &cobra.Command{
	Use:   "entities",
	Short: "Import entities from the catalog directory",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		domains := model.AllDomains()
		if importEntitiesDomain != "" {
			d, err := model.ParseExtractionDomain(importEntitiesDomain)
			if err != nil {
				return err
			}
			domains = []model.ExtractionDomain{d}
		}

		total := 0
		for _, domain := range domains {
			entities, err := extract.LoadCatalogEntities(cfg.Extract.CatalogDir, domain)
			if err != nil {
				return eris.Wrapf(err, "load catalog for %s", domain)
			}
			n, err := st.UpsertEntities(ctx, entities)
			if err != nil {
				return eris.Wrapf(err, "upsert entities for %s", domain)
			}
			total += n
			zap.L().Info("entities imported",
				zap.String("domain", string(domain)),
				zap.Int("count", n),
			)
		}

		zap.L().Info("entity import complete", zap.Int("total", total))
		return nil
	},
}

// promptsFile is the on-disk shape of a prompt set.
type promptsFile struct {
	Prompts []struct {
		ID     string `yaml:"id"`
		Text   string `yaml:"text"`
		Domain string `yaml:"domain"`
		Topic  string `yaml:"topic"`
		Scope  string `yaml:"scope"`
	} `yaml:"prompts"`
}

func loadPrompts(path string) ([]model.Prompt, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "read prompts file")
	}

	var file promptsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, eris.Wrap(err, "parse prompts file")
	}

	prompts := make([]model.Prompt, 0, len(file.Prompts))
	for _, p := range file.Prompts {
		if p.ID == "" || p.Text == "" {
			return nil, eris.Errorf("prompt %q: id and text are required", p.ID)
		}
		domain, err := model.ParseExtractionDomain(p.Domain)
		if err != nil {
			return nil, eris.Wrapf(err, "prompt %q", p.ID)
		}
		scope := model.PromptScope(p.Scope)
		if scope != model.ScopeShared && scope != model.ScopeCustomer {
			return nil, eris.Errorf("prompt %q: unknown scope %q", p.ID, p.Scope)
		}
		prompts = append(prompts, model.Prompt{
			ID:     p.ID,
			Text:   p.Text,
			Domain: domain,
			Topic:  p.Topic,
			Scope:  scope,
			Active: true,
		})
	}
	return prompts, nil
}

var importPromptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "Import prompts from a YAML file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		prompts, err := loadPrompts(importPromptsFile)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		n, err := st.UpsertPrompts(ctx, prompts)
		if err != nil {
			return eris.Wrap(err, "upsert prompts")
		}

		zap.L().Info("prompts imported",
			zap.Int("count", n),
			zap.String("file", importPromptsFile),
		)
		return nil
	},
}

func init() {
	importEntitiesCmd.Flags().StringVar(&importEntitiesDomain, "domain", "", "extraction domain (brands|universities, default all)")
	importPromptsCmd.Flags().StringVar(&importPromptsFile, "file", "", "path to prompts YAML (required)")
	_ = importPromptsCmd.MarkFlagRequired("file")

	importCmd.AddCommand(importEntitiesCmd)
	importCmd.AddCommand(importPromptsCmd)
	rootCmd.AddCommand(importCmd)
}
