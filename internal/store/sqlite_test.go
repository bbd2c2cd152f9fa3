package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/visibility-cli/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })
	return st
}

func strPtr(s string) *string { return &s }

func seedEntities(t *testing.T, st *SQLiteStore) {
	t.Helper()
	_, err := st.UpsertEntities(context.Background(), []model.Entity{
		{ID: "acme", DisplayName: "Acme Corp", Aliases: []string{"Acme"}, Kind: model.KindBrand, Category: "crm", Domain: model.DomainBrands, Website: strPtr("https://acme.example")},
		{ID: "beta", DisplayName: "Beta Inc", Kind: model.KindBrand, Category: "crm", Domain: model.DomainBrands},
		{ID: "mit", DisplayName: "Massachusetts Institute of Technology", Aliases: []string{"MIT"}, Kind: model.KindInstitution, Category: "engineering", Domain: model.DomainUniversities, CountryCode: strPtr("US")},
	})
	require.NoError(t, err)
}

func seedPrompt(t *testing.T, st *SQLiteStore, p model.Prompt) {
	t.Helper()
	_, err := st.UpsertPrompts(context.Background(), []model.Prompt{p})
	require.NoError(t, err)
}

func seedExecution(t *testing.T, st *SQLiteStore, promptID, modelID, text string) string {
	t.Helper()
	id := uuid.New().String()
	require.NoError(t, st.CreateExecution(context.Background(), model.Execution{
		ID:           id,
		PromptID:     promptID,
		ModelID:      modelID,
		ResponseText: text,
		ExecutedAt:   time.Now().UTC(),
	}))
	return id
}

func TestUpsertAndGetEntity(t *testing.T) {
	st := newTestStore(t)
	seedEntities(t, st)

	e, err := st.GetEntity(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", e.DisplayName)
	assert.Equal(t, []string{"Acme"}, e.Aliases)
	assert.Equal(t, model.KindBrand, e.Kind)
	assert.Equal(t, model.DomainBrands, e.Domain)
	require.NotNil(t, e.Website)
	assert.Equal(t, "https://acme.example", *e.Website)
	assert.Nil(t, e.CountryCode)

	_, err = st.GetEntity(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestUpsertEntitiesPreservesScores(t *testing.T) {
	st := newTestStore(t)
	seedEntities(t, st)

	scored := model.Entity{ID: "acme", VisibilityScore: 72.5, RankInCategory: 1, RankGlobal: 2}
	require.NoError(t, st.UpdateEntityScore(context.Background(), scored))

	// Re-importing the catalog must not clobber derived score fields.
	_, err := st.UpsertEntities(context.Background(), []model.Entity{
		{ID: "acme", DisplayName: "Acme Corporation", Kind: model.KindBrand, Category: "crm", Domain: model.DomainBrands},
	})
	require.NoError(t, err)

	e, err := st.GetEntity(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "Acme Corporation", e.DisplayName)
	assert.InDelta(t, 72.5, e.VisibilityScore, 1e-9)
	assert.Equal(t, 1, e.RankInCategory)
	assert.Equal(t, 2, e.RankGlobal)
}

func TestListEntitiesByDomain(t *testing.T) {
	st := newTestStore(t)
	seedEntities(t, st)

	brands, err := st.ListEntities(context.Background(), model.DomainBrands)
	require.NoError(t, err)
	require.Len(t, brands, 2)
	assert.Equal(t, "acme", brands[0].ID)

	unis, err := st.ListEntities(context.Background(), model.DomainUniversities)
	require.NoError(t, err)
	require.Len(t, unis, 1)
	assert.Equal(t, "mit", unis[0].ID)
}

func TestStalePromptSelection(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	seedPrompt(t, st, model.Prompt{ID: "never-run", Text: "best crm tools", Domain: model.DomainBrands, Topic: "crm", Scope: model.ScopeShared, Active: true})
	seedPrompt(t, st, model.Prompt{ID: "old", Text: "top crm platforms", Domain: model.DomainBrands, Topic: "crm", Scope: model.ScopeShared, Active: true})
	seedPrompt(t, st, model.Prompt{ID: "fresh", Text: "crm for startups", Domain: model.DomainBrands, Topic: "crm", Scope: model.ScopeShared, Active: true})
	seedPrompt(t, st, model.Prompt{ID: "inactive", Text: "retired", Domain: model.DomainBrands, Topic: "crm", Scope: model.ScopeShared, Active: false})
	seedPrompt(t, st, model.Prompt{ID: "other-domain", Text: "best universities", Domain: model.DomainUniversities, Topic: "engineering", Scope: model.ScopeShared, Active: true})

	require.NoError(t, st.TouchPromptExecuted(ctx, "old", now.Add(-10*24*time.Hour)))
	require.NoError(t, st.TouchPromptExecuted(ctx, "fresh", now.Add(-time.Hour)))

	q := StaleQuery{
		Domain:         model.DomainBrands,
		SharedCutoff:   now.Add(-7 * 24 * time.Hour),
		CustomerCutoff: now.Add(-24 * time.Hour),
		Limit:          10,
	}
	stale, err := st.ListStalePrompts(ctx, q)
	require.NoError(t, err)
	require.Len(t, stale, 2)

	// Never-executed first, then oldest.
	assert.Equal(t, "never-run", stale[0].ID)
	assert.Nil(t, stale[0].LastExecutedAt)
	assert.Equal(t, "old", stale[1].ID)
	require.NotNil(t, stale[1].LastExecutedAt)

	count, err := st.CountStalePrompts(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	total, err := st.CountPrompts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, total)
}

func TestStalePromptScopeCutoffs(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	seedPrompt(t, st, model.Prompt{ID: "shared", Text: "a", Domain: model.DomainBrands, Scope: model.ScopeShared, Active: true})
	seedPrompt(t, st, model.Prompt{ID: "customer", Text: "b", Domain: model.DomainBrands, Scope: model.ScopeCustomer, Active: true})

	// Both executed two days ago: stale for the customer window (24h),
	// fresh for the shared window (7d).
	executed := now.Add(-48 * time.Hour)
	require.NoError(t, st.TouchPromptExecuted(ctx, "shared", executed))
	require.NoError(t, st.TouchPromptExecuted(ctx, "customer", executed))

	stale, err := st.ListStalePrompts(ctx, StaleQuery{
		Domain:         model.DomainBrands,
		SharedCutoff:   now.Add(-7 * 24 * time.Hour),
		CustomerCutoff: now.Add(-24 * time.Hour),
		Limit:          10,
	})
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "customer", stale[0].ID)
}

func TestStalePromptForceBypassesFreshness(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	seedPrompt(t, st, model.Prompt{ID: "fresh", Text: "a", Domain: model.DomainBrands, Scope: model.ScopeShared, Active: true})
	require.NoError(t, st.TouchPromptExecuted(ctx, "fresh", now))

	stale, err := st.ListStalePrompts(ctx, StaleQuery{
		Domain:         model.DomainBrands,
		SharedCutoff:   now.Add(-7 * 24 * time.Hour),
		CustomerCutoff: now.Add(-24 * time.Hour),
		Force:          true,
		Limit:          10,
	})
	require.NoError(t, err)
	assert.Len(t, stale, 1)
}

func TestStalePromptLimit(t *testing.T) {
	st := newTestStore(t)
	for i := 0; i < 5; i++ {
		seedPrompt(t, st, model.Prompt{ID: uuid.New().String(), Text: "q", Domain: model.DomainBrands, Scope: model.ScopeShared, Active: true})
	}

	stale, err := st.ListStalePrompts(context.Background(), StaleQuery{Domain: model.DomainBrands, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, stale, 2)
}

func TestUpsertMentionsIdempotent(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	seedEntities(t, st)
	seedPrompt(t, st, model.Prompt{ID: "p1", Text: "best crm", Domain: model.DomainBrands, Topic: "crm", Scope: model.ScopeShared, Active: true})
	execID := seedExecution(t, st, "p1", "openai", "Acme Corp is the best.")

	mentions := []model.Mention{
		{ExecutionID: execID, EntityID: "acme", Position: 1, Sentiment: model.SentimentPositive, ContextSnippet: "Acme Corp is the best."},
		{ExecutionID: execID, EntityID: "beta", Position: 2, Sentiment: model.SentimentNeutral, ContextSnippet: "also Beta Inc"},
	}

	n, err := st.UpsertMentions(ctx, mentions)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Re-extraction of the same execution inserts nothing new.
	n, err = st.UpsertMentions(ctx, mentions)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestInsertCitationsIdempotent(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	seedEntities(t, st)
	seedPrompt(t, st, model.Prompt{ID: "p1", Text: "best crm", Domain: model.DomainBrands, Topic: "crm", Scope: model.ScopeShared, Active: true})
	execID := seedExecution(t, st, "p1", "perplexity", "see techcrunch")

	citations := []model.Citation{
		{ExecutionID: execID, URL: "https://techcrunch.com/a", Domain: "techcrunch.com", SourceType: model.SourceEditorial},
		{ExecutionID: execID, URL: "https://reddit.com/r/crm", Domain: "reddit.com", SourceType: model.SourceUGC},
	}

	n, err := st.InsertCitations(ctx, citations)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = st.InsertCitations(ctx, citations)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	got, err := st.ListCitations(ctx, model.DomainBrands)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestListUnminedExecutions(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	seedEntities(t, st)
	seedPrompt(t, st, model.Prompt{ID: "p1", Text: "best crm", Domain: model.DomainBrands, Topic: "crm", Scope: model.ScopeShared, Active: true})

	mined := seedExecution(t, st, "p1", "openai", "Acme Corp wins.")
	unmined := seedExecution(t, st, "p1", "anthropic", "Beta Inc wins.")

	// Failed executions are never candidates for mining.
	require.NoError(t, st.CreateExecution(ctx, model.Execution{
		ID: uuid.New().String(), PromptID: "p1", ModelID: "gemini",
		Error: "rate limited", ExecutedAt: time.Now().UTC(),
	}))

	_, err := st.UpsertMentions(ctx, []model.Mention{
		{ExecutionID: mined, EntityID: "acme", Position: 1, Sentiment: model.SentimentNeutral, ContextSnippet: "x"},
	})
	require.NoError(t, err)

	execs, err := st.ListUnminedExecutions(ctx, model.DomainBrands, 10)
	require.NoError(t, err)
	require.Len(t, execs, 1)
	assert.Equal(t, unmined, execs[0].ID)
}

func TestMentionAggregates(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	seedEntities(t, st)
	seedPrompt(t, st, model.Prompt{ID: "p1", Text: "best crm", Domain: model.DomainBrands, Topic: "crm", Scope: model.ScopeShared, Active: true})
	seedPrompt(t, st, model.Prompt{ID: "p2", Text: "crm for smb", Domain: model.DomainBrands, Topic: "smb crm", Scope: model.ScopeShared, Active: true})

	e1 := seedExecution(t, st, "p1", "openai", "r1")
	e2 := seedExecution(t, st, "p1", "anthropic", "r2")
	e3 := seedExecution(t, st, "p2", "openai", "r3")

	_, err := st.UpsertMentions(ctx, []model.Mention{
		{ExecutionID: e1, EntityID: "acme", Position: 1, Sentiment: model.SentimentPositive, ContextSnippet: "x"},
		{ExecutionID: e2, EntityID: "acme", Position: 2, Sentiment: model.SentimentNeutral, ContextSnippet: "x"},
		{ExecutionID: e3, EntityID: "acme", Position: 3, Sentiment: model.SentimentNeutral, ContextSnippet: "x"},
		{ExecutionID: e1, EntityID: "beta", Position: 2, Sentiment: model.SentimentNeutral, ContextSnippet: "x"},
	})
	require.NoError(t, err)

	aggs, err := st.MentionAggregates(ctx, model.DomainBrands)
	require.NoError(t, err)

	acme := aggs["acme"]
	assert.Equal(t, 3, acme.MentionCount)
	assert.Equal(t, 2, acme.ModelsWithMentions)
	assert.InDelta(t, 2.0, acme.AveragePosition, 1e-9)
	assert.Equal(t, 2, acme.DistinctTopics)

	beta := aggs["beta"]
	assert.Equal(t, 1, beta.MentionCount)
	assert.Equal(t, 1, beta.ModelsWithMentions)
	assert.Equal(t, 1, beta.DistinctTopics)
}

func TestSnapshotUpsertAndLastDate(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	seedEntities(t, st)

	date, err := st.LastSnapshotDate(ctx)
	require.NoError(t, err)
	assert.Empty(t, date)

	snap := model.Snapshot{
		EntityID:   "acme",
		Date:       "2026-03-14",
		Components: model.ScoreComponents{ModelCoverage: 25, CategoryShare: 25, RankPosition: 25, QueryBreadth: 15},
		Score:      90,
		TakenAt:    time.Now().UTC(),
	}
	require.NoError(t, st.UpsertSnapshot(ctx, snap))

	// Same-day snapshot overwrites.
	snap.Score = 85
	require.NoError(t, st.UpsertSnapshot(ctx, snap))

	require.NoError(t, st.UpsertSnapshot(ctx, model.Snapshot{
		EntityID: "acme", Date: "2026-03-15", Score: 88, TakenAt: time.Now().UTC(),
	}))

	date, err = st.LastSnapshotDate(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-15", date)
}

func TestTouchPromptNotFound(t *testing.T) {
	st := newTestStore(t)
	err := st.TouchPromptExecuted(context.Background(), "missing", time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
