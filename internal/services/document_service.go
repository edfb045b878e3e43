package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/markdave123-py/RepoScribe/internal/core"
	objectclient "github.com/markdave123-py/RepoScribe/internal/core/object-client"
	"github.com/markdave123-py/RepoScribe/internal/core/session"
	"github.com/markdave123-py/RepoScribe/internal/models"
)

const (
	defaultVersion  = "v1.0.0"
	defaultLanguage = "Multi-Language"
)

// DocumentationView is a record prepared for its detail page.
type DocumentationView struct {
	Record      models.DocumentationRecord `json:"record"`
	Title       string                     `json:"title"`
	GeneratedAt string                     `json:"generated_at"`
	Modules     int                        `json:"modules"`
	Size        string                     `json:"size"`
}

type DocumentService struct {
	backend core.BackendClient
	archive *objectclient.Archive
}

func NewDocumentService(backend core.BackendClient, archive *objectclient.Archive) *DocumentService {
	return &DocumentService{backend: backend, archive: archive}
}

// List projects saved records for the documentation index. Failures are
// logged and give an empty list.
func (s *DocumentService) List(ctx context.Context, sess models.Session) []models.DocumentationSummary {
	records, err := s.backend.ListDocumentation(ctx, sess)
	if err != nil {
		log.Warn().Err(err).Msg("failed to list documentation")
		return []models.DocumentationSummary{}
	}
	out := make([]models.DocumentationSummary, 0, len(records))
	for _, r := range records {
		out = append(out, Summarize(r))
	}
	return out
}

// Summarize builds the list projection of one record.
func Summarize(r models.DocumentationRecord) models.DocumentationSummary {
	return models.DocumentationSummary{
		ID:          r.ID,
		Title:       Title(r),
		Version:     defaultVersion,
		Language:    defaultLanguage,
		GeneratedAt: FormatListDate(r.CreatedAt),
		Modules:     r.Files.Len(),
		Size:        FormatSize(recordSize(r)),
	}
}

func Title(r models.DocumentationRecord) string {
	if r.RepositoryName != "" {
		return r.RepositoryName
	}
	return fmt.Sprintf("Repository #%s", r.RepositoryID)
}

func recordSize(r models.DocumentationRecord) int64 {
	return textLength(r.Readme) + textLength(r.Summary)
}

func (s *DocumentService) Get(ctx context.Context, sess models.Session, id string) (*DocumentationView, error) {
	rec, err := s.backend.GetDocumentation(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	return newDocumentationView(*rec), nil
}

func newDocumentationView(rec models.DocumentationRecord) *DocumentationView {
	return &DocumentationView{
		Record:      rec,
		Title:       Title(rec),
		GeneratedAt: FormatLongDate(rec.CreatedAt),
		Modules:     rec.Files.Len(),
		Size:        FormatSize(recordSize(rec)),
	}
}

// Update replaces the narrative text. When the backend answers without a
// body the record is fetched again.
func (s *DocumentService) Update(ctx context.Context, sess models.Session, id, readme string) (*DocumentationView, error) {
	rec, err := s.backend.UpdateDocumentation(ctx, sess, id, readme)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return s.Get(ctx, sess, id)
	}
	return newDocumentationView(*rec), nil
}

// Delete removes a record and its archived export. On failure the caller
// keeps showing the record; a leftover export is only logged.
func (s *DocumentService) Delete(ctx context.Context, sess models.Session, id string) error {
	if err := s.backend.DeleteDocumentation(ctx, sess, id); err != nil {
		log.Error().Err(err).Str("doc_id", id).Msg("failed to delete documentation")
		return err
	}
	if err := s.archive.RemoveMarkdown(ctx, session.Owner(sess), id, ExportFileName(id)); err != nil {
		log.Warn().Err(err).Str("doc_id", id).Msg("archived export left behind")
	}
	return nil
}

// ExportFileName is the download name of a record's markdown export.
func ExportFileName(id string) string {
	return fmt.Sprintf("Documentation-%s.md", id)
}

// Export renders a record as a single markdown document.
func (s *DocumentService) Export(ctx context.Context, sess models.Session, id string) (string, []byte, error) {
	rec, err := s.backend.GetDocumentation(ctx, sess, id)
	if err != nil {
		return "", nil, err
	}
	return ExportFileName(id), RenderMarkdown(*rec), nil
}

// Archive renders the export and stores it in the object store.
func (s *DocumentService) Archive(ctx context.Context, sess models.Session, id string) (string, error) {
	if !s.archive.Enabled() {
		return "", objectclient.ErrArchiveDisabled
	}
	name, body, err := s.Export(ctx, sess, id)
	if err != nil {
		return "", err
	}
	url, err := s.archive.PutMarkdown(ctx, session.Owner(sess), id, name, body)
	if err != nil {
		return "", err
	}
	log.Info().Str("doc_id", id).Str("url", url).Msg("documentation archived")
	return url, nil
}

// ArchivedExport returns the copy stored by Archive.
func (s *DocumentService) ArchivedExport(ctx context.Context, sess models.Session, id string) (string, []byte, error) {
	name := ExportFileName(id)
	body, err := s.archive.GetMarkdown(ctx, session.Owner(sess), id, name)
	if err != nil {
		return "", nil, err
	}
	return name, body, nil
}

// RenderMarkdown lays a record out as title, metadata, summary, diagram and
// narrative.
func RenderMarkdown(r models.DocumentationRecord) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", Title(r))
	meta := []string{}
	if d := FormatLongDate(r.CreatedAt); d != "" {
		meta = append(meta, "Generated "+d)
	}
	meta = append(meta,
		fmt.Sprintf("%d modules", r.Files.Len()),
		FormatSize(recordSize(r)),
	)
	fmt.Fprintf(&b, "_%s_\n\n", strings.Join(meta, " | "))

	if s := strings.TrimSpace(r.Summary); s != "" {
		fmt.Fprintf(&b, "## Summary\n\n%s\n\n", s)
	}
	if d := strings.TrimSpace(r.ArchitectureDiagram); d != "" {
		fmt.Fprintf(&b, "## Architecture\n\n```mermaid\n%s\n```\n\n", d)
	}
	if n := strings.TrimSpace(r.Readme); n != "" {
		fmt.Fprintf(&b, "## Documentation\n\n%s\n", n)
	}
	return []byte(b.String())
}
