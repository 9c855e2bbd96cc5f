package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/domain-intel/internal/model"
	"github.com/sells-group/domain-intel/internal/resilience"
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
CREATE TABLE IF NOT EXISTS analysis_jobs (
	id            TEXT PRIMARY KEY,
	domain_name   TEXT NOT NULL,
	stage         TEXT NOT NULL DEFAULT 'pending',
	raw_document  TEXT,
	enrichment    TEXT,
	intelligence  TEXT,
	artifacts     TEXT,
	error_detail  TEXT,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	completed_at  DATETIME
);

CREATE TABLE IF NOT EXISTS training_modules (
	id               TEXT PRIMARY KEY,
	job_id           TEXT NOT NULL REFERENCES analysis_jobs(id),
	title            TEXT NOT NULL,
	type             TEXT NOT NULL,
	difficulty       TEXT NOT NULL,
	duration_minutes INTEGER NOT NULL DEFAULT 0,
	content          TEXT NOT NULL,
	created_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS scrape_logs (
	id             TEXT PRIMARY KEY,
	job_id         TEXT NOT NULL REFERENCES analysis_jobs(id),
	url            TEXT NOT NULL,
	status_code    INTEGER,
	success        INTEGER NOT NULL DEFAULT 0,
	error_message  TEXT,
	content_length INTEGER NOT NULL DEFAULT 0,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS dlq (
	id             TEXT PRIMARY KEY,
	job_id         TEXT NOT NULL,
	domain_name    TEXT NOT NULL,
	error          TEXT NOT NULL,
	error_type     TEXT NOT NULL,
	failed_stage   TEXT,
	retry_count    INTEGER NOT NULL DEFAULT 0,
	max_retries    INTEGER NOT NULL DEFAULT 0,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	last_failed_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_jobs_stage ON analysis_jobs(stage);
CREATE INDEX IF NOT EXISTS idx_jobs_domain ON analysis_jobs(domain_name);
CREATE INDEX IF NOT EXISTS idx_training_job_id ON training_modules(job_id);
CREATE INDEX IF NOT EXISTS idx_scrape_logs_job_id ON scrape_logs(job_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateJob(ctx context.Context, domainName string) (*model.AnalysisJob, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO analysis_jobs (id, domain_name, stage, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, domainName, string(model.StagePending), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert job")
	}

	return &model.AnalysisJob{
		ID:         id,
		DomainName: domainName,
		Stage:      model.StagePending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

func (s *SQLiteStore) GetJob(ctx context.Context, jobID string) (*model.AnalysisJob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, domain_name, stage, raw_document, enrichment, intelligence, artifacts,
		        error_detail, created_at, updated_at, completed_at
		 FROM analysis_jobs WHERE id = ?`,
		jobID,
	)
	return scanJob(row)
}

func (s *SQLiteStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.AnalysisJob, error) {
	query := `SELECT id, domain_name, stage, raw_document, enrichment, intelligence, artifacts,
	                 error_detail, created_at, updated_at, completed_at
	          FROM analysis_jobs WHERE 1=1`
	var args []any

	if filter.Stage != "" {
		query += ` AND stage = ?`
		args = append(args, string(filter.Stage))
	}
	if filter.DomainName != "" {
		query += ` AND domain_name = ?`
		args = append(args, filter.DomainName)
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
		return nil, eris.Wrap(err, "sqlite: list jobs")
	}
	defer rows.Close()

	var jobs []model.AnalysisJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, eris.Wrap(rows.Err(), "sqlite: list jobs iterate")
}

func (s *SQLiteStore) UpdateJobStage(ctx context.Context, jobID string, stage model.Stage) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE analysis_jobs SET stage = ?, updated_at = ? WHERE id = ?`,
		string(stage), time.Now().UTC(), jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update job stage %s", jobID)
	}
	return checkRowsAffected(res, "job", jobID)
}

func (s *SQLiteStore) AttachRawDocument(ctx context.Context, jobID string, doc *model.RawDocument) error {
	return s.attachJSON(ctx, jobID, "raw_document", doc)
}

func (s *SQLiteStore) AttachEnrichment(ctx context.Context, jobID string, record *model.EnrichmentRecord) error {
	return s.attachJSON(ctx, jobID, "enrichment", record)
}

func (s *SQLiteStore) AttachIntelligence(ctx context.Context, jobID string, intel *model.Intelligence) error {
	return s.attachJSON(ctx, jobID, "intelligence", intel)
}

func (s *SQLiteStore) SetArtifactRefs(ctx context.Context, jobID string, refs []model.ArtifactRef) error {
	return s.attachJSON(ctx, jobID, "artifacts", refs)
}

// attachJSON stores a marshaled payload in one of the job's JSON columns.
// The column name is always a compile-time constant, never user input.
func (s *SQLiteStore) attachJSON(ctx context.Context, jobID, column string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return eris.Wrapf(err, "sqlite: marshal %s", column)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE analysis_jobs SET `+column+` = ?, updated_at = ? WHERE id = ?`,
		string(data), time.Now().UTC(), jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: attach %s to job %s", column, jobID)
	}
	return checkRowsAffected(res, "job", jobID)
}

func (s *SQLiteStore) MarkCompleted(ctx context.Context, jobID string) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE analysis_jobs SET stage = ?, completed_at = ?, updated_at = ? WHERE id = ?`,
		string(model.StageCompleted), now, now, jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark job completed %s", jobID)
	}
	return checkRowsAffected(res, "job", jobID)
}

func (s *SQLiteStore) MarkFailed(ctx context.Context, jobID string, errorDetail string) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE analysis_jobs SET stage = ?, error_detail = ?, completed_at = ?, updated_at = ? WHERE id = ?`,
		string(model.StageFailed), errorDetail, now, now, jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark job failed %s", jobID)
	}
	return checkRowsAffected(res, "job", jobID)
}

func (s *SQLiteStore) CreateTrainingModule(ctx context.Context, module *model.TrainingModule) error {
	if module.ID == "" {
		module.ID = uuid.New().String()
	}
	if module.CreatedAt.IsZero() {
		module.CreatedAt = time.Now().UTC()
	}

	contentJSON, err := json.Marshal(module.Content)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal training content")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO training_modules (id, job_id, title, type, difficulty, duration_minutes, content, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		module.ID, module.JobID, module.Title, string(module.Type), module.Difficulty,
		module.DurationMinutes, string(contentJSON), module.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert training module for job %s", module.JobID)
}

func (s *SQLiteStore) ListTrainingModules(ctx context.Context, jobID string) ([]model.TrainingModule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, job_id, title, type, difficulty, duration_minutes, content, created_at
		 FROM training_modules WHERE job_id = ? ORDER BY created_at`,
		jobID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list training modules")
	}
	defer rows.Close()

	var modules []model.TrainingModule
	for rows.Next() {
		var m model.TrainingModule
		var contentJSON string
		if err := rows.Scan(&m.ID, &m.JobID, &m.Title, &m.Type, &m.Difficulty, &m.DurationMinutes, &contentJSON, &m.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan training module")
		}
		if err := json.Unmarshal([]byte(contentJSON), &m.Content); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal training content")
		}
		modules = append(modules, m)
	}
	return modules, eris.Wrap(rows.Err(), "sqlite: list training modules iterate")
}

func (s *SQLiteStore) CreateScrapeLog(ctx context.Context, log *model.ScrapeLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scrape_logs (id, job_id, url, status_code, success, error_message, content_length, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		log.ID, log.JobID, log.URL, nullableInt(log.StatusCode), log.Success, log.ErrorMessage, log.ContentLength, log.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert scrape log for job %s", log.JobID)
}

func (s *SQLiteStore) CreateDLQEntry(ctx context.Context, entry *resilience.DLQEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	if entry.LastFailedAt.IsZero() {
		entry.LastFailedAt = now
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dlq (id, job_id, domain_name, error, error_type, failed_stage, retry_count, max_retries, created_at, last_failed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.JobID, entry.DomainName, entry.Error, entry.ErrorType, entry.FailedStage,
		entry.RetryCount, entry.MaxRetries, entry.CreatedAt, entry.LastFailedAt,
	)
	return eris.Wrapf(err, "sqlite: insert dlq entry for job %s", entry.JobID)
}

func (s *SQLiteStore) ListDLQ(ctx context.Context, limit int) ([]resilience.DLQEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, job_id, domain_name, error, error_type, failed_stage, retry_count, max_retries, created_at, last_failed_at
		 FROM dlq ORDER BY last_failed_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list dlq")
	}
	defer rows.Close()

	var entries []resilience.DLQEntry
	for rows.Next() {
		var e resilience.DLQEntry
		if err := rows.Scan(&e.ID, &e.JobID, &e.DomainName, &e.Error, &e.ErrorType, &e.FailedStage,
			&e.RetryCount, &e.MaxRetries, &e.CreatedAt, &e.LastFailedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan dlq entry")
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: list dlq iterate")
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

func nullableInt(n int) any {
	if n == 0 {
		return nil
	}
	return n
}

type scannable interface {
	Scan(dest ...any) error
}

func scanJob(row scannable) (*model.AnalysisJob, error) {
	var j model.AnalysisJob
	var rawDoc, enrichment, intel, artifacts, errorDetail sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(&j.ID, &j.DomainName, &j.Stage, &rawDoc, &enrichment, &intel, &artifacts,
		&errorDetail, &j.CreatedAt, &j.UpdatedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("job not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan job")
	}

	if rawDoc.Valid {
		j.RawDocument = &model.RawDocument{}
		if err := json.Unmarshal([]byte(rawDoc.String), j.RawDocument); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal raw document")
		}
	}
	if enrichment.Valid {
		j.Enrichment = &model.EnrichmentRecord{}
		if err := json.Unmarshal([]byte(enrichment.String), j.Enrichment); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal enrichment")
		}
	}
	if intel.Valid {
		j.Intel = &model.Intelligence{}
		if err := json.Unmarshal([]byte(intel.String), j.Intel); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal intelligence")
		}
	}
	if artifacts.Valid {
		if err := json.Unmarshal([]byte(artifacts.String), &j.Artifacts); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal artifacts")
		}
	}
	if errorDetail.Valid {
		j.ErrorDetail = errorDetail.String
	}
	if completedAt.Valid {
		t := completedAt.Time
		j.CompletedAt = &t
	}
	return &j, nil
}
