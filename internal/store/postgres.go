package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/instalily/leadqual/internal/db"
	"github.com/instalily/leadqual/internal/model"
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
// faster execution of the hot-path store operations.
var preparedStatements = map[string]string{
	"insert_run":          `INSERT INTO runs (id, source_file, status, total_rows, processed_rows, qualified_rows, process_all_rows, generate_emails, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
	"update_run_status":   `UPDATE runs SET status = $1, error = $2, updated_at = $3 WHERE id = $4`,
	"update_run_progress": `UPDATE runs SET processed_rows = $1, qualified_rows = $2, updated_at = $3 WHERE id = $4`,
	"get_run":             `SELECT id, source_file, status, total_rows, processed_rows, qualified_rows, process_all_rows, generate_emails, error, created_at, updated_at FROM runs WHERE id = $1`,
	"get_result":          `SELECT run_id, row_id, row_index, visitor, status, qualified, score, rationale, visitor_summary, company_summary, error, created_at, updated_at FROM qualification_results WHERE run_id = $1 AND row_id = $2`,
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

	// Prepare frequently-used statements on each new connection.
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

// Pool returns the underlying database pool for subsystems that need
// direct query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id               TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	source_file      TEXT NOT NULL,
	status           TEXT NOT NULL DEFAULT 'pending',
	total_rows       INTEGER NOT NULL DEFAULT 0,
	processed_rows   INTEGER NOT NULL DEFAULT 0,
	qualified_rows   INTEGER NOT NULL DEFAULT 0,
	process_all_rows BOOLEAN NOT NULL DEFAULT false,
	generate_emails  BOOLEAN NOT NULL DEFAULT false,
	error            TEXT,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS qualification_results (
	run_id          TEXT NOT NULL REFERENCES runs(id),
	row_id          TEXT NOT NULL,
	row_index       INTEGER NOT NULL,
	visitor         JSONB NOT NULL,
	status          TEXT NOT NULL,
	qualified       BOOLEAN NOT NULL DEFAULT false,
	score           INTEGER NOT NULL DEFAULT 0,
	rationale       JSONB,
	visitor_summary TEXT NOT NULL DEFAULT '',
	company_summary TEXT NOT NULL DEFAULT '',
	error           TEXT,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (run_id, row_id)
);

CREATE TABLE IF NOT EXISTS email_drafts (
	run_id     TEXT NOT NULL REFERENCES runs(id),
	row_id     TEXT NOT NULL,
	subject    TEXT NOT NULL,
	body       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (run_id, row_id)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_results_run_index ON qualification_results(run_id, row_index);
CREATE INDEX IF NOT EXISTS idx_results_qualified ON qualification_results(status, qualified, updated_at DESC);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
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

func (s *PostgresStore) CreateRun(ctx context.Context, run model.Run) (*model.Run, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	run.Status = model.RunStatusPending
	now := time.Now().UTC()
	run.CreatedAt = now
	run.UpdatedAt = now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, source_file, status, total_rows, processed_rows, qualified_rows, process_all_rows, generate_emails, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		run.ID, run.SourceFile, string(run.Status), run.TotalRows, run.ProcessedRows, run.QualifiedRows,
		run.ProcessAllRows, run.GenerateEmails, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}
	return &run, nil
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, error = $2, updated_at = $3 WHERE id = $4`,
		string(status), pgNullString(errMsg), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run status %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) UpdateRunProgress(ctx context.Context, runID string, processed, qualified int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET processed_rows = GREATEST(processed_rows, $1), qualified_rows = GREATEST(qualified_rows, $2), updated_at = $3 WHERE id = $4`,
		processed, qualified, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run progress %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	var (
		r      model.Run
		errMsg *string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, source_file, status, total_rows, processed_rows, qualified_rows, process_all_rows, generate_emails, error, created_at, updated_at
		 FROM runs WHERE id = $1`,
		runID,
	).Scan(&r.ID, &r.SourceFile, &r.Status, &r.TotalRows, &r.ProcessedRows, &r.QualifiedRows,
		&r.ProcessAllRows, &r.GenerateEmails, &errMsg, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	if errMsg != nil {
		r.Error = *errMsg
	}
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, source_file, status, total_rows, processed_rows, qualified_rows, process_all_rows, generate_emails, error, created_at, updated_at
	          FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
		argIdx++
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var (
			r      model.Run
			errMsg *string
		)
		if err := rows.Scan(&r.ID, &r.SourceFile, &r.Status, &r.TotalRows, &r.ProcessedRows, &r.QualifiedRows,
			&r.ProcessAllRows, &r.GenerateEmails, &errMsg, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		if errMsg != nil {
			r.Error = *errMsg
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) UpsertResult(ctx context.Context, res *model.QualificationResult) error {
	visitorJSON, err := json.Marshal(res.Visitor)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal visitor")
	}
	rationaleJSON, err := json.Marshal(res.Rationale)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal rationale")
	}

	now := time.Now().UTC()
	if res.CreatedAt.IsZero() {
		res.CreatedAt = now
	}
	res.UpdatedAt = now

	_, err = s.pool.Exec(ctx,
		`INSERT INTO qualification_results
		 (run_id, row_id, row_index, visitor, status, qualified, score, rationale, visitor_summary, company_summary, error, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 ON CONFLICT (run_id, row_id) DO UPDATE SET
		   row_index = $3, visitor = $4, status = $5, qualified = $6, score = $7,
		   rationale = $8, visitor_summary = $9, company_summary = $10, error = $11, updated_at = $13`,
		res.RunID, res.RowID, res.RowIndex, visitorJSON, string(res.Status),
		res.Qualified, res.Score, rationaleJSON,
		res.VisitorSummary, res.CompanySummary, pgNullString(res.Error),
		res.CreatedAt, res.UpdatedAt,
	)
	return eris.Wrapf(err, "postgres: upsert result %s/%s", res.RunID, res.RowID)
}

func (s *PostgresStore) GetResult(ctx context.Context, runID, rowID string) (*model.QualificationResult, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT run_id, row_id, row_index, visitor, status, qualified, score, rationale, visitor_summary, company_summary, error, created_at, updated_at
		 FROM qualification_results WHERE run_id = $1 AND row_id = $2`,
		runID, rowID,
	)
	res, err := scanPgResult(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get result")
	}
	return res, nil
}

func (s *PostgresStore) ListResults(ctx context.Context, runID string) ([]model.QualificationResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT run_id, row_id, row_index, visitor, status, qualified, score, rationale, visitor_summary, company_summary, error, created_at, updated_at
		 FROM qualification_results WHERE run_id = $1 ORDER BY row_index ASC`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list results")
	}
	defer rows.Close()

	var results []model.QualificationResult
	for rows.Next() {
		r, err := scanPgResult(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan result")
		}
		results = append(results, *r)
	}
	return results, eris.Wrap(rows.Err(), "postgres: list results iterate")
}

func (s *PostgresStore) UpsertDraft(ctx context.Context, draft *model.EmailDraft) error {
	if draft.CreatedAt.IsZero() {
		draft.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO email_drafts (run_id, row_id, subject, body, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (run_id, row_id) DO UPDATE SET subject = $3, body = $4, created_at = $5`,
		draft.RunID, draft.RowID, draft.Subject, draft.Body, draft.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: upsert draft %s/%s", draft.RunID, draft.RowID)
}

func (s *PostgresStore) GetDraft(ctx context.Context, runID, rowID string) (*model.EmailDraft, error) {
	var d model.EmailDraft
	err := s.pool.QueryRow(ctx,
		`SELECT run_id, row_id, subject, body, created_at FROM email_drafts WHERE run_id = $1 AND row_id = $2`,
		runID, rowID,
	).Scan(&d.RunID, &d.RowID, &d.Subject, &d.Body, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get draft")
	}
	return &d, nil
}

func (s *PostgresStore) ListDrafts(ctx context.Context, runID string) ([]model.EmailDraft, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT e.run_id, e.row_id, e.subject, e.body, e.created_at
		 FROM email_drafts e
		 JOIN qualification_results q ON q.run_id = e.run_id AND q.row_id = e.row_id
		 WHERE e.run_id = $1 ORDER BY q.row_index ASC`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list drafts")
	}
	defer rows.Close()

	var drafts []model.EmailDraft
	for rows.Next() {
		var d model.EmailDraft
		if err := rows.Scan(&d.RunID, &d.RowID, &d.Subject, &d.Body, &d.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan draft")
		}
		drafts = append(drafts, d)
	}
	return drafts, eris.Wrap(rows.Err(), "postgres: list drafts iterate")
}

func (s *PostgresStore) ListQualifiedLeads(ctx context.Context, limit int) ([]model.QualifiedLead, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT run_id, row_id, visitor, score, updated_at
		 FROM qualification_results
		 WHERE status = $1 AND qualified = true
		 ORDER BY updated_at DESC LIMIT $2`,
		string(model.ResultStatusSucceeded), limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list qualified leads")
	}
	defer rows.Close()

	var leads []model.QualifiedLead
	for rows.Next() {
		var (
			lead        model.QualifiedLead
			visitorJSON []byte
		)
		if err := rows.Scan(&lead.RunID, &lead.RowID, &visitorJSON, &lead.Score, &lead.QualifiedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		var v model.Visitor
		if err := json.Unmarshal(visitorJSON, &v); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal lead visitor")
		}
		fillLead(&lead, v)
		leads = append(leads, lead)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: list qualified leads iterate")
}

func pgNullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func scanPgResult(row pgx.Row) (*model.QualificationResult, error) {
	var (
		r             model.QualificationResult
		visitorJSON   []byte
		rationaleJSON []byte
		errMsg        *string
	)
	err := row.Scan(&r.RunID, &r.RowID, &r.RowIndex, &visitorJSON, &r.Status, &r.Qualified, &r.Score,
		&rationaleJSON, &r.VisitorSummary, &r.CompanySummary, &errMsg, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(visitorJSON, &r.Visitor); err != nil {
		return nil, eris.Wrap(err, "unmarshal visitor")
	}
	if len(rationaleJSON) > 0 && string(rationaleJSON) != "null" {
		if err := json.Unmarshal(rationaleJSON, &r.Rationale); err != nil {
			return nil, eris.Wrap(err, "unmarshal rationale")
		}
	}
	if errMsg != nil {
		r.Error = *errMsg
	}
	return &r, nil
}
