package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/visibility-cli/internal/citation"
	"github.com/sells-group/visibility-cli/internal/cost"
	"github.com/sells-group/visibility-cli/internal/extract"
	"github.com/sells-group/visibility-cli/internal/model"
	"github.com/sells-group/visibility-cli/internal/provider"
	"github.com/sells-group/visibility-cli/internal/scheduler"
	"github.com/sells-group/visibility-cli/internal/scorer"
	"github.com/sells-group/visibility-cli/internal/store"
	"github.com/sells-group/visibility-cli/pkg/gemini"
	"github.com/sells-group/visibility-cli/pkg/perplexity"
)

// pipelineEnv holds the initialized store, scheduler, and scorer shared by
// the scan/serve/score commands.
type pipelineEnv struct {
	Store     store.Store
	Scheduler *scheduler.Scheduler
	Scorer    *scorer.Engine
	Backends  []string
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "visibility.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initBackends builds one provider backend per configured API key. At least
// one key must be set.
func initBackends() (*provider.Adapter, error) {
	var backends []provider.Backend

	if cfg.OpenAI.Key != "" {
		backends = append(backends, provider.NewOpenAI(cfg.OpenAI.Key, cfg.OpenAI.Model))
	}
	if cfg.Anthropic.Key != "" {
		backends = append(backends, provider.NewAnthropic(cfg.Anthropic.Key, cfg.Anthropic.Model))
	}
	if cfg.Perplexity.Key != "" {
		client := perplexity.NewClient(cfg.Perplexity.Key,
			perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
			perplexity.WithModel(cfg.Perplexity.Model),
		)
		backends = append(backends, provider.NewPerplexity(client))
	}
	if cfg.Gemini.Key != "" {
		client := gemini.NewClient(cfg.Gemini.Key,
			gemini.WithBaseURL(cfg.Gemini.BaseURL),
			gemini.WithModel(cfg.Gemini.Model),
		)
		backends = append(backends, provider.NewGemini(client))
	}

	if len(backends) == 0 {
		return nil, eris.New("no model backends configured (set at least one API key)")
	}

	return provider.NewAdapter(backends,
		provider.WithInterCallDelay(cfg.Scheduler.InterCallDelay()),
		provider.WithMaxParallel(cfg.Scheduler.MaxParallelBackends),
	), nil
}

// domainLexicon loads <catalog_dir>/<domain>_lexicon.yaml when present,
// falling back to the built-in indicator lists.
func domainLexicon(domain model.ExtractionDomain) (*extract.Lexicon, error) {
	path := filepath.Join(cfg.Extract.CatalogDir, string(domain)+"_lexicon.yaml")
	if _, err := os.Stat(path); err == nil {
		return extract.LoadLexiconFile(path)
	}
	return extract.DefaultLexicon(domain)
}

// initEngines loads the entity catalog and sentiment lexicon for every
// domain with a catalog file present.
func initEngines() (map[model.ExtractionDomain]*extract.Engine, error) {
	engines := make(map[model.ExtractionDomain]*extract.Engine)
	opts := []extract.Option{
		extract.WithContextRadius(cfg.Extract.ContextRadius),
		extract.WithMaxSnippetLength(cfg.Extract.MaxSnippetLength),
	}

	for _, domain := range model.AllDomains() {
		entities, err := extract.LoadCatalogEntities(cfg.Extract.CatalogDir, domain)
		if err != nil {
			zap.L().Warn("catalog not loaded, domain disabled",
				zap.String("domain", string(domain)),
				zap.Error(err),
			)
			continue
		}
		catalog, err := extract.NewCatalog(domain, entities)
		if err != nil {
			return nil, eris.Wrapf(err, "build catalog for %s", domain)
		}
		lexicon, err := domainLexicon(domain)
		if err != nil {
			return nil, eris.Wrapf(err, "load lexicon for %s", domain)
		}
		engines[domain] = extract.NewEngine(catalog, lexicon, opts...)
		zap.L().Info("extraction engine ready",
			zap.String("domain", string(domain)),
			zap.Int("entities", catalog.Len()),
		)
	}

	if len(engines) == 0 {
		return nil, eris.Errorf("no entity catalogs found under %s", cfg.Extract.CatalogDir)
	}
	return engines, nil
}

// initPipeline sets up the store, model backends, extraction engines,
// scheduler, and scorer. Callers should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	adapter, err := initBackends()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	engines, err := initEngines()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	sched := scheduler.New(
		st,
		adapter,
		engines,
		citation.NewClassifier(nil),
		cost.NewCalculator(cfg.Pricing),
		cfg.Scheduler,
	)

	return &pipelineEnv{
		Store:     st,
		Scheduler: sched,
		Scorer:    scorer.NewEngine(st, len(adapter.Backends())),
		Backends:  adapter.Backends(),
	}, nil
}
