package services

import (
	"context"

	"github.com/markdave123-py/RepoScribe/internal/core"
	"github.com/markdave123-py/RepoScribe/internal/core/session"
	"github.com/markdave123-py/RepoScribe/internal/models"
)

const (
	recentJobsLimit = 20
	maxJobsLimit    = 100
)

// JobHistoryService reads the job ledger for the signed-in user.
type JobHistoryService struct {
	ledger core.JobLedger
}

func NewJobHistoryService(ledger core.JobLedger) *JobHistoryService {
	return &JobHistoryService{ledger: ledger}
}

func (s *JobHistoryService) Recent(ctx context.Context, sess models.Session, limit int) ([]models.JobRecord, error) {
	switch {
	case limit <= 0:
		limit = recentJobsLimit
	case limit > maxJobsLimit:
		limit = maxJobsLimit
	}
	return s.ledger.ListRecentJobs(ctx, session.Owner(sess), limit)
}
