package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/visibility-cli/internal/db"
	"github.com/sells-group/visibility-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hottest store operations.
var preparedStatements = map[string]string{
	"insert_execution": `INSERT INTO executions (id, prompt_id, model_id, response_text, error, input_tokens, output_tokens, cost_usd, executed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
	"touch_prompt":        `UPDATE prompts SET last_executed_at = $1 WHERE id = $2`,
	"get_entity":          `SELECT ` + entityColumns + ` FROM entities WHERE id = $1`,
	"update_entity_score": `UPDATE entities SET visibility_score = $1, rank_in_category = $2, rank_global = $3 WHERE id = $4`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool; used by tests with pgxmock.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: pool.Close}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS prompts (
	id               TEXT PRIMARY KEY,
	text             TEXT NOT NULL,
	domain           TEXT NOT NULL,
	topic            TEXT NOT NULL DEFAULT '',
	scope            TEXT NOT NULL DEFAULT 'shared',
	active           BOOLEAN NOT NULL DEFAULT true,
	last_executed_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS executions (
	id            TEXT PRIMARY KEY,
	prompt_id     TEXT NOT NULL REFERENCES prompts(id),
	model_id      TEXT NOT NULL,
	response_text TEXT NOT NULL DEFAULT '',
	error         TEXT NOT NULL DEFAULT '',
	input_tokens  INTEGER NOT NULL DEFAULT 0,
	output_tokens INTEGER NOT NULL DEFAULT 0,
	cost_usd      DOUBLE PRECISION NOT NULL DEFAULT 0,
	executed_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS entities (
	id               TEXT PRIMARY KEY,
	display_name     TEXT NOT NULL,
	aliases          JSONB NOT NULL DEFAULT '[]',
	kind             TEXT NOT NULL,
	category         TEXT NOT NULL,
	domain           TEXT NOT NULL,
	website          TEXT,
	country_code     TEXT,
	visibility_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	rank_in_category INTEGER NOT NULL DEFAULT 0,
	rank_global      INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS mentions (
	execution_id    TEXT NOT NULL REFERENCES executions(id),
	entity_id       TEXT NOT NULL REFERENCES entities(id),
	position        INTEGER NOT NULL,
	sentiment       TEXT NOT NULL,
	context_snippet TEXT NOT NULL,
	PRIMARY KEY (execution_id, entity_id)
);

CREATE TABLE IF NOT EXISTS citations (
	execution_id TEXT NOT NULL REFERENCES executions(id),
	url          TEXT NOT NULL,
	domain       TEXT NOT NULL,
	source_type  TEXT NOT NULL,
	PRIMARY KEY (execution_id, url)
);

CREATE TABLE IF NOT EXISTS snapshots (
	entity_id  TEXT NOT NULL REFERENCES entities(id),
	date       TEXT NOT NULL,
	score      DOUBLE PRECISION NOT NULL,
	components JSONB NOT NULL,
	taken_at   TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (entity_id, date)
);

CREATE INDEX IF NOT EXISTS idx_prompts_domain_active ON prompts(domain, active);
CREATE INDEX IF NOT EXISTS idx_prompts_last_executed ON prompts(last_executed_at);
CREATE INDEX IF NOT EXISTS idx_executions_prompt_id ON executions(prompt_id);
CREATE INDEX IF NOT EXISTS idx_mentions_entity_id ON mentions(entity_id);
CREATE INDEX IF NOT EXISTS idx_citations_domain ON citations(domain);
CREATE INDEX IF NOT EXISTS idx_entities_domain ON entities(domain);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) UpsertPrompts(ctx context.Context, prompts []model.Prompt) (int, error) {
	if len(prompts) == 0 {
		return 0, nil
	}

	rows := make([][]any, len(prompts))
	for i, p := range prompts {
		rows[i] = []any{p.ID, p.Text, string(p.Domain), p.Topic, string(p.Scope), p.Active}
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "prompts",
		Columns:      []string{"id", "text", "domain", "topic", "scope", "active"},
		ConflictKeys: []string{"id"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: upsert prompts")
	}
	return int(n), nil
}

const pgStaleFilter = ` FROM prompts
	 WHERE active AND domain = $1
	   AND ($2 OR last_executed_at IS NULL
	        OR (scope = 'shared' AND last_executed_at < $3)
	        OR (scope = 'customer' AND last_executed_at < $4))`

func (s *PostgresStore) ListStalePrompts(ctx context.Context, q StaleQuery) ([]model.Prompt, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, text, domain, topic, scope, active, last_executed_at`+pgStaleFilter+
			` ORDER BY last_executed_at ASC NULLS FIRST LIMIT $5`,
		string(q.Domain), q.Force, q.SharedCutoff, q.CustomerCutoff, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list stale prompts")
	}
	defer rows.Close()

	var prompts []model.Prompt
	for rows.Next() {
		var p model.Prompt
		var domain, scope string
		var last *time.Time
		if err := rows.Scan(&p.ID, &p.Text, &domain, &p.Topic, &scope, &p.Active, &last); err != nil {
			return nil, eris.Wrap(err, "postgres: scan prompt")
		}
		p.Domain = model.ExtractionDomain(domain)
		p.Scope = model.PromptScope(scope)
		p.LastExecutedAt = last
		prompts = append(prompts, p)
	}
	return prompts, eris.Wrap(rows.Err(), "postgres: list stale prompts iterate")
}

func (s *PostgresStore) CountStalePrompts(ctx context.Context, q StaleQuery) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*)`+pgStaleFilter,
		string(q.Domain), q.Force, q.SharedCutoff, q.CustomerCutoff,
	).Scan(&count)
	return count, eris.Wrap(err, "postgres: count stale prompts")
}

func (s *PostgresStore) CountPrompts(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM prompts WHERE active`).Scan(&count)
	return count, eris.Wrap(err, "postgres: count prompts")
}

func (s *PostgresStore) TouchPromptExecuted(ctx context.Context, promptID string, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE prompts SET last_executed_at = $1 WHERE id = $2`,
		at.UTC(), promptID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: touch prompt %s", promptID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("prompt not found: %s", promptID)
	}
	return nil
}

func (s *PostgresStore) CreateExecution(ctx context.Context, exec model.Execution) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO executions (id, prompt_id, model_id, response_text, error, input_tokens, output_tokens, cost_usd, executed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		exec.ID, exec.PromptID, exec.ModelID, exec.ResponseText, exec.Error,
		exec.InputTokens, exec.OutputTokens, exec.CostUSD, exec.ExecutedAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: insert execution for prompt %s", exec.PromptID)
}

func (s *PostgresStore) ListUnminedExecutions(ctx context.Context, domain model.ExtractionDomain, limit int) ([]model.Execution, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx,
		`SELECT e.id, e.prompt_id, e.model_id, e.response_text, e.error, e.input_tokens, e.output_tokens, e.cost_usd, e.executed_at
		 FROM executions e
		 JOIN prompts p ON p.id = e.prompt_id
		 WHERE p.domain = $1 AND e.error = '' AND e.response_text != ''
		   AND NOT EXISTS (SELECT 1 FROM mentions m WHERE m.execution_id = e.id)
		   AND NOT EXISTS (SELECT 1 FROM citations c WHERE c.execution_id = e.id)
		 ORDER BY e.executed_at ASC
		 LIMIT $2`,
		string(domain), limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list unmined executions")
	}
	defer rows.Close()

	var execs []model.Execution
	for rows.Next() {
		var e model.Execution
		if err := rows.Scan(&e.ID, &e.PromptID, &e.ModelID, &e.ResponseText, &e.Error,
			&e.InputTokens, &e.OutputTokens, &e.CostUSD, &e.ExecutedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan execution")
		}
		execs = append(execs, e)
	}
	return execs, eris.Wrap(rows.Err(), "postgres: list unmined executions iterate")
}

func (s *PostgresStore) UpsertMentions(ctx context.Context, mentions []model.Mention) (int, error) {
	if len(mentions) == 0 {
		return 0, nil
	}

	rows := make([][]any, len(mentions))
	for i, m := range mentions {
		rows[i] = []any{m.ExecutionID, m.EntityID, m.Position, string(m.Sentiment), m.ContextSnippet}
	}

	n, err := db.BulkInsertIgnore(ctx, s.pool, db.UpsertConfig{
		Table:        "mentions",
		Columns:      []string{"execution_id", "entity_id", "position", "sentiment", "context_snippet"},
		ConflictKeys: []string{"execution_id", "entity_id"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: upsert mentions")
	}
	return int(n), nil
}

func (s *PostgresStore) InsertCitations(ctx context.Context, citations []model.Citation) (int, error) {
	if len(citations) == 0 {
		return 0, nil
	}

	rows := make([][]any, len(citations))
	for i, c := range citations {
		rows[i] = []any{c.ExecutionID, c.URL, c.Domain, string(c.SourceType)}
	}

	n, err := db.BulkInsertIgnore(ctx, s.pool, db.UpsertConfig{
		Table:        "citations",
		Columns:      []string{"execution_id", "url", "domain", "source_type"},
		ConflictKeys: []string{"execution_id", "url"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: insert citations")
	}
	return int(n), nil
}

func (s *PostgresStore) ListCitations(ctx context.Context, domain model.ExtractionDomain) ([]model.Citation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT c.execution_id, c.url, c.domain, c.source_type
		 FROM citations c
		 JOIN executions e ON e.id = c.execution_id
		 JOIN prompts p ON p.id = e.prompt_id
		 WHERE p.domain = $1
		 ORDER BY c.domain, c.url`,
		string(domain),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list citations")
	}
	defer rows.Close()

	var citations []model.Citation
	for rows.Next() {
		var c model.Citation
		var sourceType string
		if err := rows.Scan(&c.ExecutionID, &c.URL, &c.Domain, &sourceType); err != nil {
			return nil, eris.Wrap(err, "postgres: scan citation")
		}
		c.SourceType = model.SourceType(sourceType)
		citations = append(citations, c)
	}
	return citations, eris.Wrap(rows.Err(), "postgres: list citations iterate")
}

func (s *PostgresStore) UpsertEntities(ctx context.Context, entities []model.Entity) (int, error) {
	if len(entities) == 0 {
		return 0, nil
	}

	rows := make([][]any, len(entities))
	for i, e := range entities {
		aliasesJSON, err := json.Marshal(e.Aliases)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: marshal aliases for %s", e.ID)
		}
		rows[i] = []any{e.ID, e.DisplayName, aliasesJSON, string(e.Kind), e.Category,
			string(e.Domain), e.Website, e.CountryCode}
	}

	// Derived score columns are deliberately excluded so re-imports never
	// clobber computed scores.
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "entities",
		Columns:      []string{"id", "display_name", "aliases", "kind", "category", "domain", "website", "country_code"},
		ConflictKeys: []string{"id"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: upsert entities")
	}
	return int(n), nil
}

func (s *PostgresStore) GetEntity(ctx context.Context, id string) (*model.Entity, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE id = $1`, id,
	)
	e, err := scanPgEntity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Errorf("entity not found: %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: get entity %s", id)
	}
	return e, nil
}

func (s *PostgresStore) ListEntities(ctx context.Context, domain model.ExtractionDomain) ([]model.Entity, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE domain = $1 ORDER BY display_name`,
		string(domain),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list entities")
	}
	defer rows.Close()

	var entities []model.Entity
	for rows.Next() {
		e, err := scanPgEntity(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan entity")
		}
		entities = append(entities, *e)
	}
	return entities, eris.Wrap(rows.Err(), "postgres: list entities iterate")
}

func (s *PostgresStore) UpdateEntityScore(ctx context.Context, entity model.Entity) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE entities SET visibility_score = $1, rank_in_category = $2, rank_global = $3 WHERE id = $4`,
		entity.VisibilityScore, entity.RankInCategory, entity.RankGlobal, entity.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update entity score %s", entity.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("entity not found: %s", entity.ID)
	}
	return nil
}

func (s *PostgresStore) MentionAggregates(ctx context.Context, domain model.ExtractionDomain) (map[string]model.MentionAggregate, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT m.entity_id, COUNT(*), COUNT(DISTINCT e.model_id), AVG(m.position), COUNT(DISTINCT p.topic)
		 FROM mentions m
		 JOIN executions e ON e.id = m.execution_id
		 JOIN prompts p ON p.id = e.prompt_id
		 WHERE p.domain = $1
		 GROUP BY m.entity_id`,
		string(domain),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: mention aggregates")
	}
	defer rows.Close()

	aggs := make(map[string]model.MentionAggregate)
	for rows.Next() {
		var a model.MentionAggregate
		if err := rows.Scan(&a.EntityID, &a.MentionCount, &a.ModelsWithMentions, &a.AveragePosition, &a.DistinctTopics); err != nil {
			return nil, eris.Wrap(err, "postgres: scan mention aggregate")
		}
		aggs[a.EntityID] = a
	}
	return aggs, eris.Wrap(rows.Err(), "postgres: mention aggregates iterate")
}

func (s *PostgresStore) UpsertSnapshot(ctx context.Context, snap model.Snapshot) error {
	componentsJSON, err := json.Marshal(snap.Components)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal snapshot components")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO snapshots (entity_id, date, score, components, taken_at) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (entity_id, date) DO UPDATE SET score = $3, components = $4, taken_at = $5`,
		snap.EntityID, snap.Date, snap.Score, componentsJSON, snap.TakenAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: upsert snapshot %s/%s", snap.EntityID, snap.Date)
}

func (s *PostgresStore) LastSnapshotDate(ctx context.Context) (string, error) {
	var date *string
	err := s.pool.QueryRow(ctx, `SELECT MAX(date) FROM snapshots`).Scan(&date)
	if err != nil {
		return "", eris.Wrap(err, "postgres: last snapshot date")
	}
	if date == nil {
		return "", nil
	}
	return *date, nil
}

func scanPgEntity(row pgx.Row) (*model.Entity, error) {
	var e model.Entity
	var aliasesJSON []byte
	var kind, domain string
	var website, countryCode *string

	err := row.Scan(&e.ID, &e.DisplayName, &aliasesJSON, &kind, &e.Category, &domain,
		&website, &countryCode, &e.VisibilityScore, &e.RankInCategory, &e.RankGlobal)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(aliasesJSON, &e.Aliases); err != nil {
		return nil, eris.Wrapf(err, "unmarshal aliases for %s", e.ID)
	}
	e.Kind = model.EntityKind(kind)
	e.Domain = model.ExtractionDomain(domain)
	e.Website = website
	e.CountryCode = countryCode
	return &e, nil
}
