package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/markdave123-py/RepoScribe/internal/core"
	"github.com/markdave123-py/RepoScribe/internal/models"
)

// SourceHost reads repositories from a GitHub-compatible API.
type SourceHost struct {
	ep       endpoint
	limiter  *rate.Limiter
	pageSize int
}

// NewSourceHost builds a client for baseURL (https://api.github.com for
// github.com). rps paces outgoing requests; zero disables pacing.
func NewSourceHost(baseURL string, httpClient *http.Client, pageSize int, rps float64) *SourceHost {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if pageSize <= 0 {
		pageSize = 10
	}
	return &SourceHost{
		ep: endpoint{
			baseURL:   trimBaseURL(baseURL),
			http:      httpClient,
			accept:    "application/vnd.github+json",
			userAgent: "RepoScribe/1.0",
		},
		limiter:  rate.NewLimiter(limit, 1),
		pageSize: pageSize,
	}
}

var _ core.SourceHostClient = (*SourceHost)(nil)

type githubRepo struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	FullName        string    `json:"full_name"`
	Description     *string   `json:"description"`
	HTMLURL         string    `json:"html_url"`
	Language        *string   `json:"language"`
	StargazersCount int       `json:"stargazers_count"`
	UpdatedAt       time.Time `json:"updated_at"`
	DefaultBranch   string    `json:"default_branch"`
	Owner           struct {
		Login string `json:"login"`
	} `json:"owner"`
}

func (r githubRepo) reference() models.RepositoryReference {
	ref := models.RepositoryReference{
		ID:            strconv.FormatInt(r.ID, 10),
		Name:          r.Name,
		FullName:      r.FullName,
		Owner:         r.Owner.Login,
		Description:   "No description provided.",
		Language:      "Plain Text",
		Stars:         r.StargazersCount,
		LastUpdated:   r.UpdatedAt,
		DefaultBranch: r.DefaultBranch,
		RemoteURL:     r.HTMLURL,
	}
	if r.Description != nil && *r.Description != "" {
		ref.Description = *r.Description
	}
	if r.Language != nil && *r.Language != "" {
		ref.Language = *r.Language
	}
	return ref
}

func (c *SourceHost) get(ctx context.Context, op, token, path string, v any) error {
	if token == "" {
		return newError(op, ErrUpstreamUnavailable, 0, "source host account is not linked", nil)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return newError(op, ErrUpstreamUnavailable, 0, "", err)
	}
	resp, err := c.ep.send(ctx, http.MethodGet, path, token, nil)
	if err != nil {
		return newError(op, ErrUpstreamUnavailable, 0, "", err)
	}
	if !resp.OK() {
		var cause error
		if resp.Status == http.StatusNotFound {
			cause = ErrNotFound
		}
		return newError(op, ErrUpstreamUnavailable, resp.Status, parseProblem(resp.Body).text(), cause)
	}
	if err := json.Unmarshal(resp.Body, v); err != nil {
		return newError(op, ErrUpstreamUnavailable, resp.Status, "", fmt.Errorf("decode: %w", err))
	}
	return nil
}

// ListRepositories returns the most recently updated repositories of the token owner.
func (c *SourceHost) ListRepositories(ctx context.Context, token string) ([]models.RepositoryReference, error) {
	params := url.Values{}
	params.Set("sort", "updated")
	params.Set("per_page", strconv.Itoa(c.pageSize))

	var repos []githubRepo
	if err := c.get(ctx, "list repositories", token, "/user/repos?"+params.Encode(), &repos); err != nil {
		return nil, err
	}
	out := make([]models.RepositoryReference, 0, len(repos))
	for _, r := range repos {
		out = append(out, r.reference())
	}
	return out, nil
}

// GetRepository resolves a numeric repository id, an "owner/name" pair, or a
// bare name owned by the token's user.
func (c *SourceHost) GetRepository(ctx context.Context, token, idOrName string) (*models.RepositoryReference, error) {
	const op = "get repository"
	idOrName = strings.Trim(strings.TrimSpace(idOrName), "/")
	if idOrName == "" {
		return nil, newError(op, ErrUpstreamUnavailable, 0, "", ErrNotFound)
	}

	var path string
	switch {
	case isNumeric(idOrName):
		path = "/repositories/" + idOrName
	case strings.Contains(idOrName, "/"):
		owner, name, _ := strings.Cut(idOrName, "/")
		path = "/repos/" + url.PathEscape(owner) + "/" + url.PathEscape(name)
	default:
		var user struct {
			Login string `json:"login"`
		}
		if err := c.get(ctx, op, token, "/user", &user); err != nil {
			return nil, err
		}
		path = "/repos/" + url.PathEscape(user.Login) + "/" + url.PathEscape(idOrName)
	}

	var repo githubRepo
	if err := c.get(ctx, op, token, path, &repo); err != nil {
		return nil, err
	}
	ref := repo.reference()
	return &ref, nil
}

func isNumeric(s string) bool {
	_, err := strconv.ParseUint(s, 10, 64)
	return err == nil
}
