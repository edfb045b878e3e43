package core

import (
	"context"
	"time"

	"github.com/markdave123-py/RepoScribe/internal/models"
)

// BackendClient is every capability of the documentation backend.
// Implementations convert transport failures into typed gateway errors.
type BackendClient interface {
	Authenticate(ctx context.Context, creds models.Credentials) (models.Session, error)
	Register(ctx context.Context, profile models.RegistrationProfile) (models.Session, error)
	CurrentUser(ctx context.Context, sess models.Session) (*models.UserProfile, error)
	ValidateSession(ctx context.Context, sess models.Session) error
	LinkSourceHost(ctx context.Context, sess models.Session, accessToken string) error

	JobClient

	ListDocumentation(ctx context.Context, sess models.Session) ([]models.DocumentationRecord, error)
	GetDocumentation(ctx context.Context, sess models.Session, id string) (*models.DocumentationRecord, error)
	UpdateDocumentation(ctx context.Context, sess models.Session, id, readme string) (*models.DocumentationRecord, error)
	DeleteDocumentation(ctx context.Context, sess models.Session, id string) error
}

// JobClient is the slice of the backend a job controller drives.
type JobClient interface {
	SubmitAnalysisJob(ctx context.Context, sess models.Session, repo models.RepositoryReference, technical bool) (models.ID, error)
	PollJobStatus(ctx context.Context, sess models.Session, jobID models.ID) (models.JobStatusReport, error)
	// SaveDocumentation returns a nil record and a nil error when the backend
	// accepted the draft without echoing the stored record.
	SaveDocumentation(ctx context.Context, sess models.Session, draft models.DocumentationDraft) (*models.DocumentationRecord, error)
}

// SourceHostClient reads repositories from the source-hosting provider.
type SourceHostClient interface {
	ListRepositories(ctx context.Context, token string) ([]models.RepositoryReference, error)
	GetRepository(ctx context.Context, token, idOrName string) (*models.RepositoryReference, error)
}

// JobLedger keeps a history of submitted jobs. It abstracts Postgres so the
// controller never depends on a specific DB.
type JobLedger interface {
	RecordJobSubmitted(ctx context.Context, rec models.JobRecord) error
	RecordJobStatus(ctx context.Context, jobID models.ID, status models.JobStatus, at time.Time) error
	ListRecentJobs(ctx context.Context, owner string, limit int) ([]models.JobRecord, error)
	Close() error
}

// ObjectClient defines interactions with S3 or any object storage.
type ObjectClient interface {
	UploadFile(ctx context.Context, bucket, key string, data []byte, contentType string) (url string, err error)
	DeleteFile(ctx context.Context, bucket, key string) error
	GetFile(ctx context.Context, bucket, key string) ([]byte, error)
}
