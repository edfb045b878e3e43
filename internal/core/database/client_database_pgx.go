package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/markdave123-py/RepoScribe/internal/config"
	"github.com/markdave123-py/RepoScribe/internal/core"
	"github.com/markdave123-py/RepoScribe/internal/models"
)

// LedgerClient records analysis jobs in Postgres.
type LedgerClient struct {
	db *sql.DB
}

var _ core.JobLedger = (*LedgerClient)(nil)

func NewLedgerClient(ctx context.Context, cfg *config.Config) (*LedgerClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return newLedgerClient(db), nil
}

func newLedgerClient(db *sql.DB) *LedgerClient {
	return &LedgerClient{db: db}
}

func (c *LedgerClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func (c *LedgerClient) RecordJobSubmitted(ctx context.Context, rec models.JobRecord) error {
	if rec.JobID == "" {
		return errors.New("job record without id")
	}
	const q = `
		INSERT INTO analysis_jobs (job_id, owner, repo_id, repo_name, technical, status, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (job_id) DO UPDATE
		SET status = EXCLUDED.status, submitted_at = EXCLUDED.submitted_at, finished_at = NULL
	`
	_, err := c.db.ExecContext(ctx, q,
		rec.JobID.String(), rec.Owner, rec.RepoID, rec.RepoName, rec.Technical, string(rec.Status), rec.SubmittedAt)
	return err
}

// RecordJobStatus stores the latest status; terminal statuses also stamp
// finished_at.
func (c *LedgerClient) RecordJobStatus(ctx context.Context, jobID models.ID, status models.JobStatus, at time.Time) error {
	const q = `
		UPDATE analysis_jobs
		SET status = $2,
		    finished_at = CASE WHEN $3 THEN $4 ELSE finished_at END
		WHERE job_id = $1
	`
	res, err := c.db.ExecContext(ctx, q, jobID.String(), string(status), status.Terminal(), at)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("job not found: %s", jobID)
	}
	return nil
}

func (c *LedgerClient) ListRecentJobs(ctx context.Context, owner string, limit int) ([]models.JobRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
		SELECT job_id, owner, repo_id, repo_name, technical, status, submitted_at, finished_at
		FROM analysis_jobs
		WHERE owner = $1
		ORDER BY submitted_at DESC
		LIMIT $2
	`
	rows, err := c.db.QueryContext(ctx, q, owner, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.JobRecord{}
	for rows.Next() {
		var (
			rec      models.JobRecord
			jobID    string
			status   string
			finished sql.NullTime
		)
		if err := rows.Scan(
			&jobID, &rec.Owner, &rec.RepoID, &rec.RepoName, &rec.Technical, &status, &rec.SubmittedAt, &finished,
		); err != nil {
			return nil, err
		}
		rec.JobID = models.ID(jobID)
		rec.Status = models.JobStatus(status)
		if finished.Valid {
			t := finished.Time
			rec.FinishedAt = &t
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
