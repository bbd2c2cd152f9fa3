package store

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/visibility-cli/internal/model"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })
	return NewPostgresWithPool(mock), mock
}

func TestPostgresGetEntity(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery("SELECT id, display_name").
		WithArgs("acme").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "display_name", "aliases", "kind", "category", "domain",
			"website", "country_code", "visibility_score", "rank_in_category", "rank_global",
		}).AddRow(
			"acme", "Acme Corp", []byte(`["Acme"]`), "brand", "crm", "brands",
			(*string)(nil), (*string)(nil), 72.5, 1, 2,
		))

	e, err := st.GetEntity(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", e.DisplayName)
	assert.Equal(t, []string{"Acme"}, e.Aliases)
	assert.Equal(t, model.DomainBrands, e.Domain)
	assert.InDelta(t, 72.5, e.VisibilityScore, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateExecution(t *testing.T) {
	st, mock := newMockStore(t)

	executedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO executions").
		WithArgs("exec-1", "p1", "openai", "Acme Corp leads.", "", 100, 200, 0.0018, executedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := st.CreateExecution(context.Background(), model.Execution{
		ID:           "exec-1",
		PromptID:     "p1",
		ModelID:      "openai",
		ResponseText: "Acme Corp leads.",
		InputTokens:  100,
		OutputTokens: 200,
		CostUSD:      0.0018,
		ExecutedAt:   executedAt,
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTouchPromptNotFound(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec("UPDATE prompts SET last_executed_at").
		WithArgs(pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := st.TouchPromptExecuted(context.Background(), "missing", time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateEntityScore(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec("UPDATE entities SET visibility_score").
		WithArgs(90.0, 1, 1, "acme").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := st.UpdateEntityScore(context.Background(), model.Entity{
		ID: "acme", VisibilityScore: 90.0, RankInCategory: 1, RankGlobal: 1,
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCountPrompts(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(7))

	n, err := st.CountPrompts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLastSnapshotDateEmpty(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery("SELECT MAX").
		WillReturnRows(pgxmock.NewRows([]string{"max"}).AddRow((*string)(nil)))

	date, err := st.LastSnapshotDate(context.Background())
	require.NoError(t, err)
	assert.Empty(t, date)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpsertMentionsEmpty(t *testing.T) {
	st, _ := newMockStore(t)
	n, err := st.UpsertMentions(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPostgresMentionAggregates(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery("SELECT m.entity_id").
		WithArgs("brands").
		WillReturnRows(pgxmock.NewRows([]string{"entity_id", "count", "models", "avg", "topics"}).
			AddRow("acme", 3, 2, 2.0, 2).
			AddRow("beta", 1, 1, 2.0, 1))

	aggs, err := st.MentionAggregates(context.Background(), model.DomainBrands)
	require.NoError(t, err)
	require.Len(t, aggs, 2)
	assert.Equal(t, 3, aggs["acme"].MentionCount)
	assert.Equal(t, 2, aggs["acme"].ModelsWithMentions)
	assert.NoError(t, mock.ExpectationsWereMet())
}
