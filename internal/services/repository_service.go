package services

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/RepoScribe/internal/core"
	"github.com/markdave123-py/RepoScribe/internal/models"
)

const reconnectMessage = "Invalid token or connection error. Please reconnect."

// Dashboard is the repository picker's view model.
type Dashboard struct {
	Connected    bool                         `json:"connected"`
	Repositories []models.RepositoryReference `json:"repositories"`
	Error        string                       `json:"error,omitempty"`
}

// RepositoryDetail is a repository together with documentation already
// saved for it.
type RepositoryDetail struct {
	Repository       models.RepositoryReference   `json:"repository"`
	LastUpdated      string                       `json:"last_updated_display"`
	Documentation    []models.DocumentationRecord `json:"documentation"`
	HasDocumentation bool                         `json:"has_documentation"`
}

type RepositoryService struct {
	sourceHost core.SourceHostClient
	backend    core.BackendClient
}

func NewRepositoryService(sourceHost core.SourceHostClient, backend core.BackendClient) *RepositoryService {
	return &RepositoryService{sourceHost: sourceHost, backend: backend}
}

// Dashboard lists recent repositories. Upstream failures degrade to an empty
// list with a reconnect hint instead of an error.
func (s *RepositoryService) Dashboard(ctx context.Context, sess models.Session, filter string) Dashboard {
	if !sess.SourceHostLinked() {
		return Dashboard{Repositories: []models.RepositoryReference{}}
	}

	repos, err := s.sourceHost.ListRepositories(ctx, sess.SourceHostToken)
	if err != nil {
		log.Warn().Err(err).Msg("failed to list repositories")
		return Dashboard{
			Connected:    true,
			Repositories: []models.RepositoryReference{},
			Error:        reconnectMessage,
		}
	}
	return Dashboard{Connected: true, Repositories: FilterRepositories(repos, filter)}
}

// FilterRepositories keeps repositories whose name contains filter, ignoring case.
func FilterRepositories(repos []models.RepositoryReference, filter string) []models.RepositoryReference {
	filter = strings.ToLower(strings.TrimSpace(filter))
	out := make([]models.RepositoryReference, 0, len(repos))
	for _, r := range repos {
		if filter == "" || strings.Contains(strings.ToLower(r.Name), filter) {
			out = append(out, r)
		}
	}
	return out
}

// Resolve looks up one repository by numeric id, "owner/name" or bare name.
func (s *RepositoryService) Resolve(ctx context.Context, sess models.Session, ref string) (*models.RepositoryReference, error) {
	return s.sourceHost.GetRepository(ctx, sess.SourceHostToken, ref)
}

// Detail fetches the repository and the user's saved documentation at the
// same time. Documentation failures are logged and leave the list empty.
func (s *RepositoryService) Detail(ctx context.Context, sess models.Session, ref string) (*RepositoryDetail, error) {
	var (
		repo *models.RepositoryReference
		docs []models.DocumentationRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := s.sourceHost.GetRepository(gctx, sess.SourceHostToken, ref)
		if err != nil {
			return err
		}
		repo = r
		return nil
	})
	g.Go(func() error {
		d, err := s.backend.ListDocumentation(gctx, sess)
		if err != nil {
			log.Warn().Err(err).Str("ref", ref).Msg("failed to load saved documentation")
			return nil
		}
		docs = d
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	detail := &RepositoryDetail{
		Repository:    *repo,
		LastUpdated:   FormatShortDate(repo.LastUpdated),
		Documentation: []models.DocumentationRecord{},
	}
	for _, d := range docs {
		if d.RepositoryID.String() == repo.ID || (d.RepositoryID == "" && d.RepositoryName == repo.Name) {
			detail.Documentation = append(detail.Documentation, d)
		}
	}
	detail.HasDocumentation = len(detail.Documentation) > 0
	return detail, nil
}
