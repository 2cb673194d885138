package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/instalily/leadqual/internal/model"
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
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id               TEXT PRIMARY KEY,
	source_file      TEXT NOT NULL,
	status           TEXT NOT NULL DEFAULT 'pending',
	total_rows       INTEGER NOT NULL DEFAULT 0,
	processed_rows   INTEGER NOT NULL DEFAULT 0,
	qualified_rows   INTEGER NOT NULL DEFAULT 0,
	process_all_rows INTEGER NOT NULL DEFAULT 0,
	generate_emails  INTEGER NOT NULL DEFAULT 0,
	error            TEXT,
	created_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS qualification_results (
	run_id          TEXT NOT NULL REFERENCES runs(id),
	row_id          TEXT NOT NULL,
	row_index       INTEGER NOT NULL,
	visitor         TEXT NOT NULL,
	status          TEXT NOT NULL,
	qualified       INTEGER NOT NULL DEFAULT 0,
	score           INTEGER NOT NULL DEFAULT 0,
	rationale       TEXT,
	visitor_summary TEXT NOT NULL DEFAULT '',
	company_summary TEXT NOT NULL DEFAULT '',
	error           TEXT,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (run_id, row_id)
);

CREATE TABLE IF NOT EXISTS email_drafts (
	run_id     TEXT NOT NULL REFERENCES runs(id),
	row_id     TEXT NOT NULL,
	subject    TEXT NOT NULL,
	body       TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (run_id, row_id)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_results_run_index ON qualification_results(run_id, row_index);
CREATE INDEX IF NOT EXISTS idx_results_qualified ON qualification_results(status, qualified, updated_at DESC);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, run model.Run) (*model.Run, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	run.Status = model.RunStatusPending
	now := time.Now().UTC()
	run.CreatedAt = now
	run.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, source_file, status, total_rows, processed_rows, qualified_rows, process_all_rows, generate_emails, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.SourceFile, string(run.Status), run.TotalRows, run.ProcessedRows, run.QualifiedRows,
		boolToInt(run.ProcessAllRows), boolToInt(run.GenerateEmails), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}
	return &run, nil
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(status), nullString(errMsg), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) UpdateRunProgress(ctx context.Context, runID string, processed, qualified int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET processed_rows = MAX(processed_rows, ?), qualified_rows = MAX(qualified_rows, ?), updated_at = ? WHERE id = ?`,
		processed, qualified, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run progress %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source_file, status, total_rows, processed_rows, qualified_rows, process_all_rows, generate_emails, error, created_at, updated_at
		 FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, source_file, status, total_rows, processed_rows, qualified_rows, process_all_rows, generate_emails, error, created_at, updated_at
	          FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) UpsertResult(ctx context.Context, res *model.QualificationResult) error {
	visitorJSON, err := json.Marshal(res.Visitor)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal visitor")
	}
	rationaleJSON, err := json.Marshal(res.Rationale)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal rationale")
	}

	now := time.Now().UTC()
	if res.CreatedAt.IsZero() {
		res.CreatedAt = now
	}
	res.UpdatedAt = now

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO qualification_results
		 (run_id, row_id, row_index, visitor, status, qualified, score, rationale, visitor_summary, company_summary, error, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (run_id, row_id) DO UPDATE SET
		   row_index = excluded.row_index, visitor = excluded.visitor, status = excluded.status,
		   qualified = excluded.qualified, score = excluded.score, rationale = excluded.rationale,
		   visitor_summary = excluded.visitor_summary, company_summary = excluded.company_summary,
		   error = excluded.error, updated_at = excluded.updated_at`,
		res.RunID, res.RowID, res.RowIndex, string(visitorJSON), string(res.Status),
		boolToInt(res.Qualified), res.Score, string(rationaleJSON),
		res.VisitorSummary, res.CompanySummary, nullString(res.Error),
		res.CreatedAt, res.UpdatedAt,
	)
	return eris.Wrapf(err, "sqlite: upsert result %s/%s", res.RunID, res.RowID)
}

func (s *SQLiteStore) GetResult(ctx context.Context, runID, rowID string) (*model.QualificationResult, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT run_id, row_id, row_index, visitor, status, qualified, score, rationale, visitor_summary, company_summary, error, created_at, updated_at
		 FROM qualification_results WHERE run_id = ? AND row_id = ?`,
		runID, rowID,
	)
	res, err := scanResult(row)
	if eris.Is(err, errNoResult) {
		return nil, nil
	}
	return res, err
}

func (s *SQLiteStore) ListResults(ctx context.Context, runID string) ([]model.QualificationResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, row_id, row_index, visitor, status, qualified, score, rationale, visitor_summary, company_summary, error, created_at, updated_at
		 FROM qualification_results WHERE run_id = ? ORDER BY row_index ASC`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list results")
	}
	defer rows.Close()

	var results []model.QualificationResult
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *r)
	}
	return results, eris.Wrap(rows.Err(), "sqlite: list results iterate")
}

func (s *SQLiteStore) UpsertDraft(ctx context.Context, draft *model.EmailDraft) error {
	if draft.CreatedAt.IsZero() {
		draft.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO email_drafts (run_id, row_id, subject, body, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (run_id, row_id) DO UPDATE SET
		   subject = excluded.subject, body = excluded.body, created_at = excluded.created_at`,
		draft.RunID, draft.RowID, draft.Subject, draft.Body, draft.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: upsert draft %s/%s", draft.RunID, draft.RowID)
}

func (s *SQLiteStore) GetDraft(ctx context.Context, runID, rowID string) (*model.EmailDraft, error) {
	var d model.EmailDraft
	err := s.db.QueryRowContext(ctx,
		`SELECT run_id, row_id, subject, body, created_at FROM email_drafts WHERE run_id = ? AND row_id = ?`,
		runID, rowID,
	).Scan(&d.RunID, &d.RowID, &d.Subject, &d.Body, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get draft")
	}
	return &d, nil
}

func (s *SQLiteStore) ListDrafts(ctx context.Context, runID string) ([]model.EmailDraft, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT e.run_id, e.row_id, e.subject, e.body, e.created_at
		 FROM email_drafts e
		 JOIN qualification_results q ON q.run_id = e.run_id AND q.row_id = e.row_id
		 WHERE e.run_id = ? ORDER BY q.row_index ASC`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list drafts")
	}
	defer rows.Close()

	var drafts []model.EmailDraft
	for rows.Next() {
		var d model.EmailDraft
		if err := rows.Scan(&d.RunID, &d.RowID, &d.Subject, &d.Body, &d.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan draft")
		}
		drafts = append(drafts, d)
	}
	return drafts, eris.Wrap(rows.Err(), "sqlite: list drafts iterate")
}

func (s *SQLiteStore) ListQualifiedLeads(ctx context.Context, limit int) ([]model.QualifiedLead, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, row_id, visitor, score, updated_at
		 FROM qualification_results
		 WHERE status = ? AND qualified = 1
		 ORDER BY updated_at DESC LIMIT ?`,
		string(model.ResultStatusSucceeded), limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list qualified leads")
	}
	defer rows.Close()

	var leads []model.QualifiedLead
	for rows.Next() {
		var (
			lead        model.QualifiedLead
			visitorJSON string
		)
		if err := rows.Scan(&lead.RunID, &lead.RowID, &visitorJSON, &lead.Score, &lead.QualifiedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		var v model.Visitor
		if err := json.Unmarshal([]byte(visitorJSON), &v); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal lead visitor")
		}
		fillLead(&lead, v)
		leads = append(leads, lead)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: list qualified leads iterate")
}

// helpers

func fillLead(lead *model.QualifiedLead, v model.Visitor) {
	lead.FirstName = v.FirstName
	lead.LastName = v.LastName
	lead.Title = v.Title
	lead.CompanyName = v.CompanyName
	lead.Industry = v.Industry
	lead.Email = v.Email
	lead.Website = v.Website
	lead.Country = v.Country
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

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

func scanRun(row scannable) (*model.Run, error) {
	var (
		r                     model.Run
		processAll, genEmails int
		errMsg                sql.NullString
	)
	err := row.Scan(&r.ID, &r.SourceFile, &r.Status, &r.TotalRows, &r.ProcessedRows, &r.QualifiedRows,
		&processAll, &genEmails, &errMsg, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	r.ProcessAllRows = processAll != 0
	r.GenerateEmails = genEmails != 0
	if errMsg.Valid {
		r.Error = errMsg.String
	}
	return &r, nil
}

var errNoResult = eris.New("result not found")

func scanResult(row scannable) (*model.QualificationResult, error) {
	var (
		r             model.QualificationResult
		visitorJSON   string
		rationaleJSON sql.NullString
		qualified     int
		errMsg        sql.NullString
	)
	err := row.Scan(&r.RunID, &r.RowID, &r.RowIndex, &visitorJSON, &r.Status, &qualified, &r.Score,
		&rationaleJSON, &r.VisitorSummary, &r.CompanySummary, &errMsg, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errNoResult
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan result")
	}
	if err := json.Unmarshal([]byte(visitorJSON), &r.Visitor); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal visitor")
	}
	if rationaleJSON.Valid && rationaleJSON.String != "" && rationaleJSON.String != "null" {
		if err := json.Unmarshal([]byte(rationaleJSON.String), &r.Rationale); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal rationale")
		}
	}
	r.Qualified = qualified != 0
	if errMsg.Valid {
		r.Error = errMsg.String
	}
	return &r, nil
}
