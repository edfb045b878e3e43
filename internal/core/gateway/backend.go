package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/markdave123-py/RepoScribe/internal/core"
	"github.com/markdave123-py/RepoScribe/internal/models"
)

// Backend talks to the documentation backend. Each method maps one HTTP
// endpoint to a typed outcome.
type Backend struct {
	ep endpoint
}

func NewBackend(baseURL string, httpClient *http.Client) *Backend {
	return &Backend{ep: endpoint{
		baseURL: trimBaseURL(baseURL),
		http:    httpClient,
		accept:  "application/json",
	}}
}

var _ core.BackendClient = (*Backend)(nil)

type tokenResponse struct {
	Token string `json:"token"`
}

func requireSession(op string, sess models.Session) error {
	if !sess.Authenticated() {
		return newError(op, ErrUnauthenticated, 0, "User is not authenticated", nil)
	}
	return nil
}

// statusCause marks a rejected session so callers can redirect to login
// whatever the operation kind.
func statusCause(status int) error {
	switch status {
	case http.StatusUnauthorized:
		return ErrUnauthenticated
	case http.StatusNotFound:
		return ErrNotFound
	}
	return nil
}

func (c *Backend) Authenticate(ctx context.Context, creds models.Credentials) (models.Session, error) {
	const op = "authenticate"
	resp, err := c.ep.send(ctx, http.MethodPost, "/api/login", "", creds)
	if err != nil {
		return models.Session{}, newError(op, ErrInvalidCredentials, 0, "Authentication failed", err)
	}
	if !resp.OK() {
		msg := parseProblem(resp.Body).text()
		if msg == "" {
			msg = "Authentication failed"
		}
		return models.Session{}, newError(op, ErrInvalidCredentials, resp.Status, msg, nil)
	}

	var tr tokenResponse
	if err := json.Unmarshal(resp.Body, &tr); err != nil || tr.Token == "" {
		return models.Session{}, newError(op, ErrInvalidCredentials, resp.Status, "No token returned from server", err)
	}
	return models.Session{SessionToken: tr.Token}, nil
}

func (c *Backend) Register(ctx context.Context, profile models.RegistrationProfile) (models.Session, error) {
	const op = "register"
	resp, err := c.ep.send(ctx, http.MethodPost, "/api/register", "", profile)
	if err != nil {
		return models.Session{}, newError(op, ErrValidation, 0, "Registration failed", err)
	}
	if !resp.OK() {
		p := parseProblem(resp.Body)
		if len(p.Errors) > 0 {
			return models.Session{}, &ValidationError{Message: p.Message, Fields: p.Errors}
		}
		msg := p.text()
		if msg == "" {
			msg = "Registration failed"
		}
		return models.Session{}, newError(op, ErrValidation, resp.Status, msg, nil)
	}

	var tr tokenResponse
	if err := json.Unmarshal(resp.Body, &tr); err != nil || tr.Token == "" {
		return models.Session{}, newError(op, ErrValidation, resp.Status, "No token returned from server", err)
	}
	return models.Session{SessionToken: tr.Token}, nil
}

func (c *Backend) CurrentUser(ctx context.Context, sess models.Session) (*models.UserProfile, error) {
	const op = "current user"
	if err := requireSession(op, sess); err != nil {
		return nil, err
	}
	resp, err := c.ep.send(ctx, http.MethodGet, "/api/user", sess.SessionToken, nil)
	if err != nil {
		return nil, newError(op, ErrUnauthenticated, 0, "", err)
	}
	if !resp.OK() {
		return nil, newError(op, ErrUnauthenticated, resp.Status, parseProblem(resp.Body).text(), nil)
	}
	var u models.UserProfile
	if err := json.Unmarshal(resp.Body, &u); err != nil {
		return nil, newError(op, ErrUnauthenticated, resp.Status, "", fmt.Errorf("decode user: %w", err))
	}
	return &u, nil
}

// ValidateSession asks the backend; any non-success answer means the token is not usable.
func (c *Backend) ValidateSession(ctx context.Context, sess models.Session) error {
	const op = "validate session"
	if err := requireSession(op, sess); err != nil {
		return err
	}
	resp, err := c.ep.send(ctx, http.MethodPost, "/api/user/auth_token", sess.SessionToken, nil)
	if err != nil {
		return newError(op, ErrUnauthenticated, 0, "", err)
	}
	if !resp.OK() {
		return newError(op, ErrUnauthenticated, resp.Status, "", nil)
	}
	return nil
}

func (c *Backend) LinkSourceHost(ctx context.Context, sess models.Session, accessToken string) error {
	const op = "link source host"
	if err := requireSession(op, sess); err != nil {
		return err
	}
	body := map[string]string{"access_token": accessToken}
	resp, err := c.ep.send(ctx, http.MethodPost, "/api/user/github_access_token", sess.SessionToken, body)
	if err != nil {
		return newError(op, ErrPersistence, 0, "Failed to link account.", err)
	}
	p := parseProblem(resp.Body)
	if !resp.OK() || p.Error != "" {
		msg := p.text()
		if msg == "" {
			msg = "Failed to link account."
		}
		return newError(op, ErrPersistence, resp.Status, msg, statusCause(resp.Status))
	}
	return nil
}

type submitRequest struct {
	RepoURL   string `json:"repo_url"`
	RepoName  string `json:"repo_name"`
	Technical bool   `json:"technical"`
}

type submitResponse struct {
	JobID models.ID `json:"job_id"`
}

func (c *Backend) SubmitAnalysisJob(ctx context.Context, sess models.Session, repo models.RepositoryReference, technical bool) (models.ID, error) {
	const op = "submit analysis job"
	if err := requireSession(op, sess); err != nil {
		return "", err
	}
	req := submitRequest{RepoURL: repo.RemoteURL, RepoName: repo.Name, Technical: technical}
	resp, err := c.ep.send(ctx, http.MethodPost, "/api/generate", sess.SessionToken, req)
	if err != nil {
		return "", newError(op, ErrSubmission, 0, "Failed to contact backend system.", err)
	}
	if !resp.OK() {
		return "", newError(op, ErrSubmission, resp.Status, parseProblem(resp.Body).text(), statusCause(resp.Status))
	}
	var sr submitResponse
	if err := json.Unmarshal(resp.Body, &sr); err != nil {
		return "", newError(op, ErrSubmission, resp.Status, "", fmt.Errorf("decode job: %w", err))
	}
	if sr.JobID == "" {
		return "", newError(op, ErrSubmission, resp.Status, "backend returned no job id", nil)
	}
	return sr.JobID, nil
}

// PollJobStatus is idempotent and safe to call repeatedly.
func (c *Backend) PollJobStatus(ctx context.Context, sess models.Session, jobID models.ID) (models.JobStatusReport, error) {
	const op = "poll job status"
	if err := requireSession(op, sess); err != nil {
		return models.JobStatusReport{}, err
	}
	resp, err := c.ep.send(ctx, http.MethodGet, "/api/generate/status/"+url.PathEscape(jobID.String()), sess.SessionToken, nil)
	if err != nil {
		return models.JobStatusReport{}, newError(op, ErrPollTransport, 0, "", err)
	}
	if !resp.OK() {
		return models.JobStatusReport{}, newError(op, ErrPollTransport, resp.Status, parseProblem(resp.Body).text(), statusCause(resp.Status))
	}

	var report models.JobStatusReport
	if err := json.Unmarshal(resp.Body, &report); err != nil {
		return models.JobStatusReport{}, newError(op, ErrPollTransport, resp.Status, "", fmt.Errorf("decode status: %w", err))
	}
	if !report.Status.Valid() {
		return models.JobStatusReport{}, newError(op, ErrPollTransport, resp.Status, fmt.Sprintf("unknown job status %q", report.Status), nil)
	}
	if report.Status == models.JobCompleted && report.Result == nil {
		return models.JobStatusReport{}, newError(op, ErrPollTransport, resp.Status, "completed job without result", nil)
	}
	if report.Status != models.JobCompleted {
		report.Result = nil
	}
	return report, nil
}

func (c *Backend) ListDocumentation(ctx context.Context, sess models.Session) ([]models.DocumentationRecord, error) {
	const op = "list documentation"
	if err := requireSession(op, sess); err != nil {
		return nil, err
	}
	resp, err := c.ep.send(ctx, http.MethodGet, "/api/repository/analysis", sess.SessionToken, nil)
	if err != nil {
		return nil, newError(op, ErrPersistence, 0, "", err)
	}
	if !resp.OK() {
		return nil, newError(op, ErrPersistence, resp.Status, parseProblem(resp.Body).text(), statusCause(resp.Status))
	}
	var records []models.DocumentationRecord
	if err := json.Unmarshal(resp.Body, &records); err != nil {
		return nil, newError(op, ErrPersistence, resp.Status, "", fmt.Errorf("decode records: %w", err))
	}
	return records, nil
}

func (c *Backend) GetDocumentation(ctx context.Context, sess models.Session, id string) (*models.DocumentationRecord, error) {
	const op = "get documentation"
	if err := requireSession(op, sess); err != nil {
		return nil, err
	}
	resp, err := c.ep.send(ctx, http.MethodGet, "/api/repository/analysis/"+url.PathEscape(id), sess.SessionToken, nil)
	if err != nil {
		return nil, newError(op, ErrPersistence, 0, "", err)
	}
	if !resp.OK() {
		return nil, newError(op, ErrPersistence, resp.Status, parseProblem(resp.Body).text(), statusCause(resp.Status))
	}
	var rec models.DocumentationRecord
	if err := json.Unmarshal(resp.Body, &rec); err != nil {
		return nil, newError(op, ErrPersistence, resp.Status, "", fmt.Errorf("decode record: %w", err))
	}
	return &rec, nil
}

// SaveDocumentation creates a new record. It never deduplicates: two calls
// with the same draft create two records. A 2xx with an empty body, {} or
// null is a successful save that carries no record, so the result is nil, nil;
// the backend returns no id that could be used to fetch it.
func (c *Backend) SaveDocumentation(ctx context.Context, sess models.Session, draft models.DocumentationDraft) (*models.DocumentationRecord, error) {
	const op = "save documentation"
	if err := requireSession(op, sess); err != nil {
		return nil, err
	}
	resp, err := c.ep.send(ctx, http.MethodPost, "/api/repository/analysis", sess.SessionToken, draft)
	if err != nil {
		return nil, newError(op, ErrPersistence, 0, "Failed to save analysis to backend.", err)
	}
	if !resp.OK() {
		return nil, newError(op, ErrPersistence, resp.Status, parseProblem(resp.Body).text(), statusCause(resp.Status))
	}
	var rec models.DocumentationRecord
	ok, err := decodeOptional(resp.Body, &rec)
	if err != nil {
		return nil, newError(op, ErrPersistence, resp.Status, "", fmt.Errorf("decode record: %w", err))
	}
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (c *Backend) UpdateDocumentation(ctx context.Context, sess models.Session, id, readme string) (*models.DocumentationRecord, error) {
	const op = "update documentation"
	if err := requireSession(op, sess); err != nil {
		return nil, err
	}
	body := map[string]string{"readme": readme}
	resp, err := c.ep.send(ctx, http.MethodPut, "/api/repository/analysis/"+url.PathEscape(id), sess.SessionToken, body)
	if err != nil {
		return nil, newError(op, ErrPersistence, 0, "Failed to save changes.", err)
	}
	if !resp.OK() {
		return nil, newError(op, ErrPersistence, resp.Status, parseProblem(resp.Body).text(), statusCause(resp.Status))
	}
	var rec models.DocumentationRecord
	ok, err := decodeOptional(resp.Body, &rec)
	if err != nil {
		return nil, newError(op, ErrPersistence, resp.Status, "", fmt.Errorf("decode record: %w", err))
	}
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (c *Backend) DeleteDocumentation(ctx context.Context, sess models.Session, id string) error {
	const op = "delete documentation"
	if err := requireSession(op, sess); err != nil {
		return err
	}
	resp, err := c.ep.send(ctx, http.MethodDelete, "/api/repository/analysis/"+url.PathEscape(id), sess.SessionToken, nil)
	if err != nil {
		return newError(op, ErrPersistence, 0, "Failed to delete documentation.", err)
	}
	if !resp.OK() {
		return newError(op, ErrPersistence, resp.Status, "Failed to delete documentation.", statusCause(resp.Status))
	}
	return nil
}
