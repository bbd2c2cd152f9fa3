package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/visibility-cli/internal/citation"
	"github.com/sells-group/visibility-cli/internal/config"
	"github.com/sells-group/visibility-cli/internal/cost"
	"github.com/sells-group/visibility-cli/internal/extract"
	"github.com/sells-group/visibility-cli/internal/model"
	"github.com/sells-group/visibility-cli/internal/provider"
	"github.com/sells-group/visibility-cli/internal/store"
)

// Store is the persistence surface the scheduler needs.
type Store interface {
	ListStalePrompts(ctx context.Context, q store.StaleQuery) ([]model.Prompt, error)
	CountStalePrompts(ctx context.Context, q store.StaleQuery) (int, error)
	CountPrompts(ctx context.Context) (int, error)
	TouchPromptExecuted(ctx context.Context, promptID string, at time.Time) error
	CreateExecution(ctx context.Context, exec model.Execution) error
	ListUnminedExecutions(ctx context.Context, domain model.ExtractionDomain, limit int) ([]model.Execution, error)
	UpsertMentions(ctx context.Context, mentions []model.Mention) (int, error)
	InsertCitations(ctx context.Context, citations []model.Citation) (int, error)
	LastSnapshotDate(ctx context.Context) (string, error)
}

// Backends fans a prompt out across the configured model backends.
type Backends interface {
	FanOut(ctx context.Context, prompt string) []provider.Outcome
	Backends() []string
}

// Scheduler drains stale prompts in bounded batches. It is stateless and
// resumable: each prompt's executions are committed before the next prompt
// starts, so a timeout mid-batch leaves only the remainder stale.
type Scheduler struct {
	store      Store
	backends   Backends
	engines    map[model.ExtractionDomain]*extract.Engine
	classifier *citation.Classifier
	cost       *cost.Calculator
	cfg        config.SchedulerConfig
	now        func() time.Time
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock overrides the wall clock; tests use it to exercise the runtime
// budget without sleeping.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New creates a Scheduler. The engines map must hold one extraction engine
// per domain the prompt set covers.
func New(st Store, backends Backends, engines map[model.ExtractionDomain]*extract.Engine, classifier *citation.Classifier, costCalc *cost.Calculator, cfg config.SchedulerConfig, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:      st,
		backends:   backends,
		engines:    engines,
		classifier: classifier,
		cost:       costCalc,
		cfg:        cfg,
		now:        time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// RunParams control one scan invocation.
type RunParams struct {
	Domain    model.ExtractionDomain
	BatchSize int
	Force     bool
}

// Run selects stale prompts for the domain and executes each against every
// backend, persisting all outcomes. The wall-clock budget is checked before
// each prompt: an in-flight prompt always finishes, but no new prompt starts
// past the budget. Zero stale work is a normal no-op success.
func (s *Scheduler) Run(ctx context.Context, params RunParams) (*model.RunReport, error) {
	start := s.now()

	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = s.cfg.BatchSize
	}

	q := store.StaleQuery{
		Domain:         params.Domain,
		SharedCutoff:   start.Add(-s.cfg.SharedFreshness()).UTC(),
		CustomerCutoff: start.Add(-s.cfg.CustomerFreshness()).UTC(),
		Force:          params.Force,
		Limit:          batchSize,
	}

	prompts, err := s.store.ListStalePrompts(ctx, q)
	if err != nil {
		return nil, eris.Wrap(err, "scheduler: list stale prompts")
	}

	budget := s.cfg.MaxRuntime()
	report := &model.RunReport{}
	for _, prompt := range prompts {
		if ctx.Err() != nil {
			break
		}
		if budget > 0 && s.now().Sub(start) >= budget {
			zap.L().Warn("scheduler: runtime budget exhausted",
				zap.Duration("elapsed", s.now().Sub(start)),
				zap.Int("completed", report.Completed),
			)
			break
		}

		succeeded, costUSD := s.processPrompt(ctx, prompt)
		report.CostUSD += costUSD
		if succeeded {
			report.Completed++
		} else {
			report.Failed++
		}
	}

	remaining, err := s.store.CountStalePrompts(ctx, store.StaleQuery{
		Domain:         params.Domain,
		SharedCutoff:   q.SharedCutoff,
		CustomerCutoff: q.CustomerCutoff,
	})
	if err != nil {
		return nil, eris.Wrap(err, "scheduler: count stale prompts")
	}
	report.StaleRemaining = remaining
	report.RuntimeMS = s.now().Sub(start).Milliseconds()

	zap.L().Info("scheduler: scan complete",
		zap.String("domain", string(params.Domain)),
		zap.Int("completed", report.Completed),
		zap.Int("failed", report.Failed),
		zap.Int("stale_remaining", report.StaleRemaining),
		zap.Int64("runtime_ms", report.RuntimeMS),
	)
	return report, nil
}

// processPrompt executes one prompt against every backend and persists each
// outcome, success or failure, as an execution row. The prompt is marked
// executed only when at least one backend produced usable text, so a fully
// failed prompt stays stale for the next invocation.
func (s *Scheduler) processPrompt(ctx context.Context, prompt model.Prompt) (bool, float64) {
	outcomes := s.backends.FanOut(ctx, prompt.Text)
	executedAt := s.now().UTC()

	anySucceeded := false
	totalCost := 0.0
	for _, outcome := range outcomes {
		exec := model.Execution{
			ID:         uuid.New().String(),
			PromptID:   prompt.ID,
			ModelID:    outcome.Backend,
			ExecutedAt: executedAt,
		}
		if outcome.Err != nil {
			exec.Error = outcome.Err.Error()
		} else if outcome.Response != nil {
			exec.ResponseText = outcome.Response.Text
			exec.InputTokens = outcome.Response.InputTokens
			exec.OutputTokens = outcome.Response.OutputTokens
			exec.CostUSD = s.cost.Call(outcome.Backend, exec.InputTokens, exec.OutputTokens)
			totalCost += exec.CostUSD
		}

		if err := s.store.CreateExecution(ctx, exec); err != nil {
			zap.L().Error("scheduler: persist execution failed",
				zap.String("prompt_id", prompt.ID),
				zap.String("backend", outcome.Backend),
				zap.Error(err),
			)
			continue
		}

		if exec.Succeeded() {
			anySucceeded = true
			var structured []string
			if outcome.Response != nil {
				structured = outcome.Response.Citations
			}
			if err := s.mineExecution(ctx, prompt.Domain, exec, structured); err != nil {
				// Extraction failure never aborts the batch; the
				// execution stays unmined and reprocessing picks it up.
				zap.L().Warn("scheduler: mining failed",
					zap.String("execution_id", exec.ID),
					zap.Error(err),
				)
			}
		}
	}

	if anySucceeded {
		if err := s.store.TouchPromptExecuted(ctx, prompt.ID, executedAt); err != nil {
			zap.L().Error("scheduler: touch prompt failed",
				zap.String("prompt_id", prompt.ID),
				zap.Error(err),
			)
		}
	}
	return anySucceeded, totalCost
}

// mineExecution runs entity extraction and citation classification over one
// execution's text and persists the results idempotently. Structured
// citations supplied by the backend are combined with URLs parsed from the
// text; the store's conflict-ignore keys de-duplicate.
func (s *Scheduler) mineExecution(ctx context.Context, domain model.ExtractionDomain, exec model.Execution, structuredURLs []string) error {
	engine, ok := s.engines[domain]
	if !ok {
		return eris.Errorf("scheduler: no extraction engine for domain %q", domain)
	}

	mentions := engine.Mentions(exec.ID, exec.ResponseText)
	if _, err := s.store.UpsertMentions(ctx, mentions); err != nil {
		return eris.Wrap(err, "scheduler: persist mentions")
	}

	urls := append([]string{}, structuredURLs...)
	urls = append(urls, citation.ExtractURLs(exec.ResponseText)...)
	citations := s.classifier.ClassifyAll(exec.ID, urls)
	if _, err := s.store.InsertCitations(ctx, citations); err != nil {
		return eris.Wrap(err, "scheduler: persist citations")
	}

	return nil
}

// Status reports pipeline health without side effects.
func (s *Scheduler) Status(ctx context.Context) (*model.PipelineStatus, error) {
	total, err := s.store.CountPrompts(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "scheduler: count prompts")
	}

	now := s.now()
	stale := 0
	for _, domain := range model.AllDomains() {
		n, err := s.store.CountStalePrompts(ctx, store.StaleQuery{
			Domain:         domain,
			SharedCutoff:   now.Add(-s.cfg.SharedFreshness()).UTC(),
			CustomerCutoff: now.Add(-s.cfg.CustomerFreshness()).UTC(),
		})
		if err != nil {
			return nil, eris.Wrapf(err, "scheduler: count stale prompts for %s", domain)
		}
		stale += n
	}

	lastSnapshot, err := s.store.LastSnapshotDate(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "scheduler: last snapshot date")
	}

	return &model.PipelineStatus{
		TotalPrompts:     total,
		StalePrompts:     stale,
		LastSnapshotDate: lastSnapshot,
	}, nil
}
