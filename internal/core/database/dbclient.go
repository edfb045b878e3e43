package db

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/markdave123-py/RepoScribe/internal/config"
	"github.com/markdave123-py/RepoScribe/internal/core"
	"github.com/markdave123-py/RepoScribe/internal/models"
)

// NoopLedger is used when no database is configured. Writes are dropped and
// history is always empty.
type NoopLedger struct{}

var _ core.JobLedger = NoopLedger{}

func (NoopLedger) RecordJobSubmitted(context.Context, models.JobRecord) error { return nil }

func (NoopLedger) RecordJobStatus(context.Context, models.ID, models.JobStatus, time.Time) error {
	return nil
}

func (NoopLedger) ListRecentJobs(context.Context, string, int) ([]models.JobRecord, error) {
	return []models.JobRecord{}, nil
}

func (NoopLedger) Close() error { return nil }

// OpenLedger returns the Postgres ledger when DATABASE_URL is set and a
// NoopLedger otherwise.
func OpenLedger(ctx context.Context, cfg *config.Config) (core.JobLedger, error) {
	if cfg.DatabaseURL == "" {
		log.Info().Msg("DATABASE_URL not set; job history disabled")
		return NoopLedger{}, nil
	}
	return NewLedgerClient(ctx, cfg)
}
