package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/visibility-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS prompts (
	id               TEXT PRIMARY KEY,
	text             TEXT NOT NULL,
	domain           TEXT NOT NULL,
	topic            TEXT NOT NULL DEFAULT '',
	scope            TEXT NOT NULL DEFAULT 'shared',
	active           INTEGER NOT NULL DEFAULT 1,
	last_executed_at DATETIME
);

CREATE TABLE IF NOT EXISTS executions (
	id            TEXT PRIMARY KEY,
	prompt_id     TEXT NOT NULL REFERENCES prompts(id),
	model_id      TEXT NOT NULL,
	response_text TEXT NOT NULL DEFAULT '',
	error         TEXT NOT NULL DEFAULT '',
	input_tokens  INTEGER NOT NULL DEFAULT 0,
	output_tokens INTEGER NOT NULL DEFAULT 0,
	cost_usd      REAL NOT NULL DEFAULT 0,
	executed_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS entities (
	id               TEXT PRIMARY KEY,
	display_name     TEXT NOT NULL,
	aliases          TEXT NOT NULL DEFAULT '[]',
	kind             TEXT NOT NULL,
	category         TEXT NOT NULL,
	domain           TEXT NOT NULL,
	website          TEXT,
	country_code     TEXT,
	visibility_score REAL NOT NULL DEFAULT 0,
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
	score      REAL NOT NULL,
	components TEXT NOT NULL,
	taken_at   DATETIME NOT NULL,
	PRIMARY KEY (entity_id, date)
);

CREATE INDEX IF NOT EXISTS idx_prompts_domain_active ON prompts(domain, active);
CREATE INDEX IF NOT EXISTS idx_prompts_last_executed ON prompts(last_executed_at);
CREATE INDEX IF NOT EXISTS idx_executions_prompt_id ON executions(prompt_id);
CREATE INDEX IF NOT EXISTS idx_mentions_entity_id ON mentions(entity_id);
CREATE INDEX IF NOT EXISTS idx_citations_domain ON citations(domain);
CREATE INDEX IF NOT EXISTS idx_entities_domain ON entities(domain);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertPrompts(ctx context.Context, prompts []model.Prompt) (int, error) {
	if len(prompts) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin upsert prompts")
	}
	defer tx.Rollback() //nolint:errcheck

	count := 0
	for _, p := range prompts {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO prompts (id, text, domain, topic, scope, active) VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT (id) DO UPDATE SET text = excluded.text, domain = excluded.domain,
			   topic = excluded.topic, scope = excluded.scope, active = excluded.active`,
			p.ID, p.Text, string(p.Domain), p.Topic, string(p.Scope), p.Active,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert prompt %s", p.ID)
		}
		n, _ := res.RowsAffected()
		count += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit upsert prompts")
	}
	return count, nil
}

const sqliteStaleFilter = ` FROM prompts
	 WHERE active = 1 AND domain = ?
	   AND (? OR last_executed_at IS NULL
	        OR (scope = 'shared' AND last_executed_at < ?)
	        OR (scope = 'customer' AND last_executed_at < ?))`

func (s *SQLiteStore) ListStalePrompts(ctx context.Context, q StaleQuery) ([]model.Prompt, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, domain, topic, scope, active, last_executed_at`+sqliteStaleFilter+
			` ORDER BY last_executed_at IS NOT NULL, last_executed_at ASC LIMIT ?`,
		string(q.Domain), q.Force, q.SharedCutoff, q.CustomerCutoff, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list stale prompts")
	}
	defer rows.Close()

	var prompts []model.Prompt
	for rows.Next() {
		var p model.Prompt
		var domain, scope string
		var last sql.NullTime
		if err := rows.Scan(&p.ID, &p.Text, &domain, &p.Topic, &scope, &p.Active, &last); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan prompt")
		}
		p.Domain = model.ExtractionDomain(domain)
		p.Scope = model.PromptScope(scope)
		if last.Valid {
			t := last.Time
			p.LastExecutedAt = &t
		}
		prompts = append(prompts, p)
	}
	return prompts, eris.Wrap(rows.Err(), "sqlite: list stale prompts iterate")
}

func (s *SQLiteStore) CountStalePrompts(ctx context.Context, q StaleQuery) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*)`+sqliteStaleFilter,
		string(q.Domain), q.Force, q.SharedCutoff, q.CustomerCutoff,
	).Scan(&count)
	return count, eris.Wrap(err, "sqlite: count stale prompts")
}

func (s *SQLiteStore) CountPrompts(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM prompts WHERE active = 1`).Scan(&count)
	return count, eris.Wrap(err, "sqlite: count prompts")
}

func (s *SQLiteStore) TouchPromptExecuted(ctx context.Context, promptID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE prompts SET last_executed_at = ? WHERE id = ?`,
		at.UTC(), promptID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: touch prompt %s", promptID)
	}
	return checkRowsAffected(res, "prompt", promptID)
}

func (s *SQLiteStore) CreateExecution(ctx context.Context, exec model.Execution) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO executions (id, prompt_id, model_id, response_text, error, input_tokens, output_tokens, cost_usd, executed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		exec.ID, exec.PromptID, exec.ModelID, exec.ResponseText, exec.Error,
		exec.InputTokens, exec.OutputTokens, exec.CostUSD, exec.ExecutedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: insert execution for prompt %s", exec.PromptID)
}

func (s *SQLiteStore) ListUnminedExecutions(ctx context.Context, domain model.ExtractionDomain, limit int) ([]model.Execution, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT e.id, e.prompt_id, e.model_id, e.response_text, e.error, e.input_tokens, e.output_tokens, e.cost_usd, e.executed_at
		 FROM executions e
		 JOIN prompts p ON p.id = e.prompt_id
		 WHERE p.domain = ? AND e.error = '' AND e.response_text != ''
		   AND NOT EXISTS (SELECT 1 FROM mentions m WHERE m.execution_id = e.id)
		   AND NOT EXISTS (SELECT 1 FROM citations c WHERE c.execution_id = e.id)
		 ORDER BY e.executed_at ASC
		 LIMIT ?`,
		string(domain), limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list unmined executions")
	}
	defer rows.Close()

	var execs []model.Execution
	for rows.Next() {
		var e model.Execution
		if err := rows.Scan(&e.ID, &e.PromptID, &e.ModelID, &e.ResponseText, &e.Error,
			&e.InputTokens, &e.OutputTokens, &e.CostUSD, &e.ExecutedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan execution")
		}
		execs = append(execs, e)
	}
	return execs, eris.Wrap(rows.Err(), "sqlite: list unmined executions iterate")
}

func (s *SQLiteStore) UpsertMentions(ctx context.Context, mentions []model.Mention) (int, error) {
	if len(mentions) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin upsert mentions")
	}
	defer tx.Rollback() //nolint:errcheck

	count := 0
	for _, m := range mentions {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO mentions (execution_id, entity_id, position, sentiment, context_snippet)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT (execution_id, entity_id) DO NOTHING`,
			m.ExecutionID, m.EntityID, m.Position, string(m.Sentiment), m.ContextSnippet,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert mention %s/%s", m.ExecutionID, m.EntityID)
		}
		n, _ := res.RowsAffected()
		count += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit upsert mentions")
	}
	return count, nil
}

func (s *SQLiteStore) InsertCitations(ctx context.Context, citations []model.Citation) (int, error) {
	if len(citations) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin insert citations")
	}
	defer tx.Rollback() //nolint:errcheck

	count := 0
	for _, c := range citations {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO citations (execution_id, url, domain, source_type) VALUES (?, ?, ?, ?)
			 ON CONFLICT (execution_id, url) DO NOTHING`,
			c.ExecutionID, c.URL, c.Domain, string(c.SourceType),
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert citation %s", c.URL)
		}
		n, _ := res.RowsAffected()
		count += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit insert citations")
	}
	return count, nil
}

func (s *SQLiteStore) ListCitations(ctx context.Context, domain model.ExtractionDomain) ([]model.Citation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.execution_id, c.url, c.domain, c.source_type
		 FROM citations c
		 JOIN executions e ON e.id = c.execution_id
		 JOIN prompts p ON p.id = e.prompt_id
		 WHERE p.domain = ?
		 ORDER BY c.domain, c.url`,
		string(domain),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list citations")
	}
	defer rows.Close()

	var citations []model.Citation
	for rows.Next() {
		var c model.Citation
		var sourceType string
		if err := rows.Scan(&c.ExecutionID, &c.URL, &c.Domain, &sourceType); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan citation")
		}
		c.SourceType = model.SourceType(sourceType)
		citations = append(citations, c)
	}
	return citations, eris.Wrap(rows.Err(), "sqlite: list citations iterate")
}

func (s *SQLiteStore) UpsertEntities(ctx context.Context, entities []model.Entity) (int, error) {
	if len(entities) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin upsert entities")
	}
	defer tx.Rollback() //nolint:errcheck

	count := 0
	for _, e := range entities {
		aliasesJSON, err := json.Marshal(e.Aliases)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: marshal aliases for %s", e.ID)
		}
		// Derived score fields are deliberately not touched on re-import.
		res, err := tx.ExecContext(ctx,
			`INSERT INTO entities (id, display_name, aliases, kind, category, domain, website, country_code)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (id) DO UPDATE SET display_name = excluded.display_name,
			   aliases = excluded.aliases, kind = excluded.kind, category = excluded.category,
			   domain = excluded.domain, website = excluded.website, country_code = excluded.country_code`,
			e.ID, e.DisplayName, string(aliasesJSON), string(e.Kind), e.Category,
			string(e.Domain), e.Website, e.CountryCode,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert entity %s", e.ID)
		}
		n, _ := res.RowsAffected()
		count += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit upsert entities")
	}
	return count, nil
}

const entityColumns = `id, display_name, aliases, kind, category, domain, website, country_code, visibility_score, rank_in_category, rank_global`

func (s *SQLiteStore) GetEntity(ctx context.Context, id string) (*model.Entity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE id = ?`, id,
	)
	e, err := scanEntity(row)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("entity not found: %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get entity %s", id)
	}
	return e, nil
}

func (s *SQLiteStore) ListEntities(ctx context.Context, domain model.ExtractionDomain) ([]model.Entity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE domain = ? ORDER BY display_name`,
		string(domain),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list entities")
	}
	defer rows.Close()

	var entities []model.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan entity")
		}
		entities = append(entities, *e)
	}
	return entities, eris.Wrap(rows.Err(), "sqlite: list entities iterate")
}

func (s *SQLiteStore) UpdateEntityScore(ctx context.Context, entity model.Entity) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE entities SET visibility_score = ?, rank_in_category = ?, rank_global = ? WHERE id = ?`,
		entity.VisibilityScore, entity.RankInCategory, entity.RankGlobal, entity.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update entity score %s", entity.ID)
	}
	return checkRowsAffected(res, "entity", entity.ID)
}

func (s *SQLiteStore) MentionAggregates(ctx context.Context, domain model.ExtractionDomain) (map[string]model.MentionAggregate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT m.entity_id, COUNT(*), COUNT(DISTINCT e.model_id), AVG(m.position), COUNT(DISTINCT p.topic)
		 FROM mentions m
		 JOIN executions e ON e.id = m.execution_id
		 JOIN prompts p ON p.id = e.prompt_id
		 WHERE p.domain = ?
		 GROUP BY m.entity_id`,
		string(domain),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: mention aggregates")
	}
	defer rows.Close()

	aggs := make(map[string]model.MentionAggregate)
	for rows.Next() {
		var a model.MentionAggregate
		if err := rows.Scan(&a.EntityID, &a.MentionCount, &a.ModelsWithMentions, &a.AveragePosition, &a.DistinctTopics); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan mention aggregate")
		}
		aggs[a.EntityID] = a
	}
	return aggs, eris.Wrap(rows.Err(), "sqlite: mention aggregates iterate")
}

func (s *SQLiteStore) UpsertSnapshot(ctx context.Context, snap model.Snapshot) error {
	componentsJSON, err := json.Marshal(snap.Components)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal snapshot components")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO snapshots (entity_id, date, score, components, taken_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (entity_id, date) DO UPDATE SET score = excluded.score,
		   components = excluded.components, taken_at = excluded.taken_at`,
		snap.EntityID, snap.Date, snap.Score, string(componentsJSON), snap.TakenAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: upsert snapshot %s/%s", snap.EntityID, snap.Date)
}

func (s *SQLiteStore) LastSnapshotDate(ctx context.Context) (string, error) {
	var date sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT MAX(date) FROM snapshots`).Scan(&date)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: last snapshot date")
	}
	return date.String, nil
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanEntity(row scannable) (*model.Entity, error) {
	var e model.Entity
	var aliasesJSON, kind, domain string
	var website, countryCode sql.NullString

	err := row.Scan(&e.ID, &e.DisplayName, &aliasesJSON, &kind, &e.Category, &domain,
		&website, &countryCode, &e.VisibilityScore, &e.RankInCategory, &e.RankGlobal)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(aliasesJSON), &e.Aliases); err != nil {
		return nil, eris.Wrapf(err, "unmarshal aliases for %s", e.ID)
	}
	e.Kind = model.EntityKind(kind)
	e.Domain = model.ExtractionDomain(domain)
	if website.Valid {
		e.Website = &website.String
	}
	if countryCode.Valid {
		e.CountryCode = &countryCode.String
	}
	return &e, nil
}
