package scorer

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/visibility-cli/internal/model"
)

// Store is the persistence surface the scorer needs. Scores and ranks are
// always recomputed wholesale from the full mention history and written
// back in place; they are never incrementally patched.
type Store interface {
	GetEntity(ctx context.Context, id string) (*model.Entity, error)
	ListEntities(ctx context.Context, domain model.ExtractionDomain) ([]model.Entity, error)
	MentionAggregates(ctx context.Context, domain model.ExtractionDomain) (map[string]model.MentionAggregate, error)
	UpdateEntityScore(ctx context.Context, entity model.Entity) error
	UpsertSnapshot(ctx context.Context, snap model.Snapshot) error
}

// Engine recomputes visibility scores, ranks, and benchmarks.
type Engine struct {
	store       Store
	totalModels int
}

// NewEngine creates a scoring engine. totalModels is the configured backend
// count the coverage component is measured against.
func NewEngine(store Store, totalModels int) *Engine {
	return &Engine{store: store, totalModels: totalModels}
}

// ScoredEntity pairs an entity with its freshly computed components.
type ScoredEntity struct {
	Entity     model.Entity
	Components model.ScoreComponents
}

// Recompute rescores every entity in the domain from the full mention
// history and persists scores and ranks. Running it twice against the same
// history yields identical results.
func (e *Engine) Recompute(ctx context.Context, domain model.ExtractionDomain) ([]ScoredEntity, error) {
	entities, err := e.store.ListEntities(ctx, domain)
	if err != nil {
		return nil, eris.Wrap(err, "scorer: list entities")
	}
	if len(entities) == 0 {
		return nil, nil
	}

	aggs, err := e.store.MentionAggregates(ctx, domain)
	if err != nil {
		return nil, eris.Wrap(err, "scorer: load mention aggregates")
	}

	categoryMentions := make(map[string]int)
	for _, ent := range entities {
		categoryMentions[ent.Category] += aggs[ent.ID].MentionCount
	}

	scored := make([]ScoredEntity, 0, len(entities))
	for _, ent := range entities {
		agg := aggs[ent.ID]
		components := ComputeScore(Inputs{
			ModelsWithMentions: agg.ModelsWithMentions,
			TotalModels:        e.totalModels,
			EntityMentions:     agg.MentionCount,
			CategoryMentions:   categoryMentions[ent.Category],
			AveragePosition:    agg.AveragePosition,
			DistinctTopics:     agg.DistinctTopics,
		})
		ent.VisibilityScore = components.Total()
		scored = append(scored, ScoredEntity{Entity: ent, Components: components})
	}

	// Rank by score descending; display name breaks ties so the ordering
	// is stable across runs.
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Entity.VisibilityScore != scored[j].Entity.VisibilityScore {
			return scored[i].Entity.VisibilityScore > scored[j].Entity.VisibilityScore
		}
		return scored[i].Entity.DisplayName < scored[j].Entity.DisplayName
	})

	categoryRank := make(map[string]int)
	for i := range scored {
		ent := &scored[i].Entity
		ent.RankGlobal = i + 1
		categoryRank[ent.Category]++
		ent.RankInCategory = categoryRank[ent.Category]

		if err := e.store.UpdateEntityScore(ctx, *ent); err != nil {
			return nil, eris.Wrapf(err, "scorer: update score for %s", ent.ID)
		}
	}

	zap.L().Info("scorer: recomputed visibility scores",
		zap.String("domain", string(domain)),
		zap.Int("entities", len(scored)),
	)
	return scored, nil
}

// Rollup recomputes the domain's scores and records one snapshot per entity
// for the given day. The (entity, date) unique constraint makes repeated
// rollups on the same day overwrite rather than duplicate.
func (e *Engine) Rollup(ctx context.Context, domain model.ExtractionDomain, now time.Time) (int, error) {
	scored, err := e.Recompute(ctx, domain)
	if err != nil {
		return 0, err
	}

	date := now.UTC().Format("2006-01-02")
	for _, s := range scored {
		snap := model.Snapshot{
			EntityID:   s.Entity.ID,
			Date:       date,
			Components: s.Components,
			Score:      s.Entity.VisibilityScore,
			TakenAt:    now.UTC(),
		}
		if err := e.store.UpsertSnapshot(ctx, snap); err != nil {
			return 0, eris.Wrapf(err, "scorer: snapshot %s for %s", date, s.Entity.ID)
		}
	}

	zap.L().Info("scorer: snapshot rollup complete",
		zap.String("domain", string(domain)),
		zap.String("date", date),
		zap.Int("snapshots", len(scored)),
	)
	return len(scored), nil
}

// Report assembles the entity score query response: current score with
// component breakdown, ranks, category and domain-wide benchmark context,
// and a read-time percentile label.
func (e *Engine) Report(ctx context.Context, entityID string, now time.Time) (*model.EntityScoreReport, error) {
	entity, err := e.store.GetEntity(ctx, entityID)
	if err != nil {
		return nil, eris.Wrapf(err, "scorer: load entity %s", entityID)
	}

	peers, err := e.store.ListEntities(ctx, entity.Domain)
	if err != nil {
		return nil, eris.Wrap(err, "scorer: list peers")
	}
	aggs, err := e.store.MentionAggregates(ctx, entity.Domain)
	if err != nil {
		return nil, eris.Wrap(err, "scorer: load mention aggregates")
	}

	categoryMentions := 0
	var categoryScores, globalScores []float64
	for _, p := range peers {
		globalScores = append(globalScores, p.VisibilityScore)
		if p.Category == entity.Category {
			categoryScores = append(categoryScores, p.VisibilityScore)
			categoryMentions += aggs[p.ID].MentionCount
		}
	}

	agg := aggs[entity.ID]
	components := ComputeScore(Inputs{
		ModelsWithMentions: agg.ModelsWithMentions,
		TotalModels:        e.totalModels,
		EntityMentions:     agg.MentionCount,
		CategoryMentions:   categoryMentions,
		AveragePosition:    agg.AveragePosition,
		DistinctTopics:     agg.DistinctTopics,
	})

	report := &model.EntityScoreReport{
		EntityID:        entity.ID,
		DisplayName:     entity.DisplayName,
		VisibilityScore: entity.VisibilityScore,
		Components:      components,
		RankInCategory:  entity.RankInCategory,
		RankGlobal:      entity.RankGlobal,
		Label:           LabelUnbenchmarked,
		ComputedAt:      now.UTC(),
	}

	if bench, ok := ComputeBenchmark(entity.Category, categoryScores); ok {
		report.Category = &bench
		report.Label = Label(entity.VisibilityScore, bench)
	}
	if bench, ok := ComputeBenchmark("", globalScores); ok {
		report.Global = &bench
		// A category too small to benchmark still gets a label from the
		// domain-wide population.
		if report.Category == nil {
			report.Label = Label(entity.VisibilityScore, bench)
		}
	}

	return report, nil
}
