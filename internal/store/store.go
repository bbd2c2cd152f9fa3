package store

import (
	"context"
	"time"

	"github.com/sells-group/visibility-cli/internal/model"
)

// StaleQuery selects prompts due for execution. A prompt is stale when it
// has never run, or when its last execution predates the cutoff for its
// scope. Force bypasses the freshness filter entirely.
type StaleQuery struct {
	Domain         model.ExtractionDomain
	SharedCutoff   time.Time
	CustomerCutoff time.Time
	Force          bool
	Limit          int
}

// Store defines the persistence interface for the visibility pipeline.
// Execution, Mention, and Citation rows are append-only; only a Prompt's
// last_executed_at and an Entity's derived score fields are updated in
// place.
type Store interface {
	// Prompts
	UpsertPrompts(ctx context.Context, prompts []model.Prompt) (int, error)
	ListStalePrompts(ctx context.Context, q StaleQuery) ([]model.Prompt, error)
	CountStalePrompts(ctx context.Context, q StaleQuery) (int, error)
	CountPrompts(ctx context.Context) (int, error)
	TouchPromptExecuted(ctx context.Context, promptID string, at time.Time) error

	// Executions
	CreateExecution(ctx context.Context, exec model.Execution) error
	ListUnminedExecutions(ctx context.Context, domain model.ExtractionDomain, limit int) ([]model.Execution, error)

	// Mentions and citations
	UpsertMentions(ctx context.Context, mentions []model.Mention) (int, error)
	InsertCitations(ctx context.Context, citations []model.Citation) (int, error)
	ListCitations(ctx context.Context, domain model.ExtractionDomain) ([]model.Citation, error)

	// Entities
	UpsertEntities(ctx context.Context, entities []model.Entity) (int, error)
	GetEntity(ctx context.Context, id string) (*model.Entity, error)
	ListEntities(ctx context.Context, domain model.ExtractionDomain) ([]model.Entity, error)
	UpdateEntityScore(ctx context.Context, entity model.Entity) error
	MentionAggregates(ctx context.Context, domain model.ExtractionDomain) (map[string]model.MentionAggregate, error)

	// Snapshots
	UpsertSnapshot(ctx context.Context, snap model.Snapshot) error
	LastSnapshotDate(ctx context.Context) (string, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
