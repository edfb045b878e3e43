package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Session carries the two credentials a request may hold. It is built from
// cookies by the session store and passed explicitly to every call that needs it.
type Session struct {
	SessionToken    string `json:"-"`
	SourceHostToken string `json:"-"`
}

func (s Session) Authenticated() bool    { return s.SessionToken != "" }
func (s Session) SourceHostLinked() bool { return s.SourceHostToken != "" }

// UserProfile is the backend's view of the signed-in user.
type UserProfile struct {
	ID        ID     `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegistrationProfile struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// RepositoryReference is a read-only projection of a source-host repository.
type RepositoryReference struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	FullName      string    `json:"full_name"`
	Owner         string    `json:"owner"`
	Description   string    `json:"description"`
	Language      string    `json:"language"`
	Stars         int       `json:"stars"`
	LastUpdated   time.Time `json:"last_updated"`
	DefaultBranch string    `json:"default_branch"`
	RemoteURL     string    `json:"html_url"`
}

// ID is a backend identifier. The backend sends numbers, older deployments
// strings; both decode to the same value.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id ID) String() string { return string(id) }

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

func (s JobStatus) Valid() bool {
	switch s {
	case JobPending, JobCompleted, JobFailed:
		return true
	}
	return false
}

func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// AnalysisJob is a job submitted from a repository view.
type AnalysisJob struct {
	ID         ID                  `json:"job_id"`
	Repository RepositoryReference `json:"repository"`
	Technical  bool                `json:"technical"`
	Status     JobStatus           `json:"status"`
}

// AnalysisResult is produced once, when a job reaches completed.
type AnalysisResult struct {
	Summary             string       `json:"summary"`
	ArchitectureDiagram string       `json:"architecture_diagram"`
	Readme              string       `json:"readme"`
	Files               FileManifest `json:"files"`
}

// JobStatusReport is one answer of the status endpoint.
type JobStatusReport struct {
	Status JobStatus       `json:"status"`
	Result *AnalysisResult `json:"result,omitempty"`
}

// DocumentationRecord is the only entity persisted server-side.
type DocumentationRecord struct {
	ID                  ID           `json:"id"`
	RepositoryID        ID           `json:"repository_id"`
	RepositoryName      string       `json:"repo_name"`
	Summary             string       `json:"summary"`
	ArchitectureDiagram string       `json:"architecture_diagram"`
	Readme              string       `json:"readme"`
	Files               FileManifest `json:"files"`
	CreatedAt           time.Time    `json:"created_at"`
}

func (d *DocumentationRecord) UnmarshalJSON(b []byte) error {
	type plain DocumentationRecord
	aux := struct {
		*plain
		RepoID ID `json:"repo_id"`
	}{plain: (*plain)(d)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	if d.RepositoryID == "" {
		d.RepositoryID = aux.RepoID
	}
	return nil
}

// DocumentationDraft is the payload that turns a completed result into a record.
type DocumentationDraft struct {
	RepositoryID        string       `json:"repo_id"`
	RepositoryName      string       `json:"repo_name"`
	Summary             string       `json:"summary"`
	ArchitectureDiagram string       `json:"architecture_diagram"`
	Readme              string       `json:"readme"`
	Files               FileManifest `json:"files"`
}

// NewDocumentationDraft pairs a result with the repository it describes.
func NewDocumentationDraft(repo RepositoryReference, result AnalysisResult) DocumentationDraft {
	return DocumentationDraft{
		RepositoryID:        repo.ID,
		RepositoryName:      repo.Name,
		Summary:             result.Summary,
		ArchitectureDiagram: result.ArchitectureDiagram,
		Readme:              result.Readme,
		Files:               result.Files,
	}
}

// DocumentationSummary is the list-view projection of a record.
type DocumentationSummary struct {
	ID          ID     `json:"id"`
	Title       string `json:"title"`
	Version     string `json:"version"`
	Language    string `json:"language"`
	GeneratedAt string `json:"generated_at"`
	Modules     int    `json:"modules"`
	Size        string `json:"size"`
}

type NotificationKind string

const (
	NotifySuccess NotificationKind = "success"
	NotifyError   NotificationKind = "error"
)

// Notification is a transient, dismissible message shown to the user.
type Notification struct {
	Kind      NotificationKind `json:"type"`
	Message   string           `json:"message"`
	ExpiresAt time.Time        `json:"expires_at"`
}

func (n *Notification) Active(now time.Time) bool {
	return n != nil && now.Before(n.ExpiresAt)
}

// JobRecord is a ledger row describing one submitted job.
type JobRecord struct {
	JobID       ID         `db:"job_id" json:"job_id"`
	Owner       string     `db:"owner" json:"-"`
	RepoID      string     `db:"repo_id" json:"repo_id"`
	RepoName    string     `db:"repo_name" json:"repo_name"`
	Technical   bool       `db:"technical" json:"technical"`
	Status      JobStatus  `db:"status" json:"status"`
	SubmittedAt time.Time  `db:"submitted_at" json:"submitted_at"`
	FinishedAt  *time.Time `db:"finished_at" json:"finished_at,omitempty"`
}
