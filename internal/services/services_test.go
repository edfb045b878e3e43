package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/RepoScribe/internal/core"
	"github.com/markdave123-py/RepoScribe/internal/core/gateway"
	objectclient "github.com/markdave123-py/RepoScribe/internal/core/object-client"
	"github.com/markdave123-py/RepoScribe/internal/core/session"
	"github.com/markdave123-py/RepoScribe/internal/models"
)

// fakeBackend implements only what a test sets; other methods panic through
// the nil embedded interface.
type fakeBackend struct {
	core.BackendClient

	authenticate func(models.Credentials) (models.Session, error)
	link         func(string) error
	list         func() ([]models.DocumentationRecord, error)
	get          func(string) (*models.DocumentationRecord, error)
	update       func(string, string) (*models.DocumentationRecord, error)
	del          func(string) error
}

func (f *fakeBackend) Authenticate(_ context.Context, c models.Credentials) (models.Session, error) {
	return f.authenticate(c)
}

func (f *fakeBackend) LinkSourceHost(_ context.Context, _ models.Session, tok string) error {
	return f.link(tok)
}

func (f *fakeBackend) ListDocumentation(context.Context, models.Session) ([]models.DocumentationRecord, error) {
	return f.list()
}

func (f *fakeBackend) GetDocumentation(_ context.Context, _ models.Session, id string) (*models.DocumentationRecord, error) {
	return f.get(id)
}

func (f *fakeBackend) UpdateDocumentation(_ context.Context, _ models.Session, id, readme string) (*models.DocumentationRecord, error) {
	return f.update(id, readme)
}

func (f *fakeBackend) DeleteDocumentation(_ context.Context, _ models.Session, id string) error {
	return f.del(id)
}

type fakeSourceHost struct {
	repos []models.RepositoryReference
	err   error
}

func (f *fakeSourceHost) ListRepositories(context.Context, string) ([]models.RepositoryReference, error) {
	return f.repos, f.err
}

func (f *fakeSourceHost) GetRepository(_ context.Context, _ string, ref string) (*models.RepositoryReference, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, r := range f.repos {
		if r.ID == ref || r.Name == ref {
			r := r
			return &r, nil
		}
	}
	return nil, gateway.ErrNotFound
}

func manifest(t *testing.T, raw string) models.FileManifest {
	t.Helper()
	var m models.FileManifest
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	return m
}

func TestFormatSize(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{-3, "0 B"},
		{1, "1 B"},
		{1023, "1023 B"},
		{1024, "1 KB"},
		{1536, "1.5 KB"},
		{1100, "1.07 KB"},
		{5 * 1024 * 1024, "5 MB"},
		{3 * 1024 * 1024 * 1024, "3 GB"},
		{2048 * 1024 * 1024 * 1024, "2048 GB"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FormatSize(tc.in), "FormatSize(%d)", tc.in)
	}
}

func TestDateFormats(t *testing.T) {
	ts := time.Date(2026, 3, 1, 14, 5, 0, 0, time.UTC)
	assert.Equal(t, "Mar 1, 02:05 PM", FormatListDate(ts))
	assert.Equal(t, "Sunday, March 1, 2026", FormatLongDate(ts))
	assert.Equal(t, "Mar 1, 2026", FormatShortDate(ts))
	assert.Empty(t, FormatListDate(time.Time{}))
}

func TestSummarizeEquivalentManifests(t *testing.T) {
	base := models.DocumentationRecord{ID: "1", RepositoryID: "9", Readme: "abcd", Summary: "ef"}

	shapes := []string{
		`["a.go","b.go"]`,
		`{"a.go":"x","b.go":"y"}`,
		`"[\"a.go\",\"b.go\"]"`,
		`"{\"a.go\":1,\"b.go\":2}"`,
	}
	for _, raw := range shapes {
		rec := base
		rec.Files = manifest(t, raw)
		s := Summarize(rec)
		assert.Equal(t, 2, s.Modules, raw)
		assert.Equal(t, "6 B", s.Size)
		assert.Equal(t, "Repository #9", s.Title)
		assert.Equal(t, "v1.0.0", s.Version)
		assert.Equal(t, "Multi-Language", s.Language)
	}
}

func TestListDegradesToEmpty(t *testing.T) {
	svc := NewDocumentService(&fakeBackend{list: func() ([]models.DocumentationRecord, error) {
		return nil, gateway.ErrPersistence
	}}, nil)
	got := svc.List(context.Background(), models.Session{SessionToken: "t"})
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestDeleteFailureIsReturned(t *testing.T) {
	svc := NewDocumentService(&fakeBackend{del: func(string) error { return gateway.ErrPersistence }}, nil)
	err := svc.Delete(context.Background(), models.Session{SessionToken: "t"}, "4")
	assert.ErrorIs(t, err, gateway.ErrPersistence)
}

func TestUpdateRefetchesWhenBodyEmpty(t *testing.T) {
	fetched := 0
	svc := NewDocumentService(&fakeBackend{
		update: func(string, string) (*models.DocumentationRecord, error) { return nil, nil },
		get: func(id string) (*models.DocumentationRecord, error) {
			fetched++
			return &models.DocumentationRecord{ID: models.ID(id), RepositoryName: "svc", Readme: "new"}, nil
		},
	}, nil)
	view, err := svc.Update(context.Background(), models.Session{SessionToken: "t"}, "4", "new")
	require.NoError(t, err)
	assert.Equal(t, 1, fetched)
	assert.Equal(t, "svc", view.Title)
	assert.Equal(t, "new", view.Record.Readme)
}

func TestExportAndArchive(t *testing.T) {
	rec := &models.DocumentationRecord{
		ID: "4", RepositoryName: "svc", Summary: "Short summary.",
		ArchitectureDiagram: "graph TD; A-->B", Readme: "# Readme",
		Files:     manifest(t, `["a.go"]`),
		CreatedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	backend := &fakeBackend{get: func(string) (*models.DocumentationRecord, error) { return rec, nil }}

	svc := NewDocumentService(backend, nil)
	name, body, err := svc.Export(context.Background(), models.Session{SessionToken: "t"}, "4")
	require.NoError(t, err)
	assert.Equal(t, "Documentation-4.md", name)
	md := string(body)
	assert.True(t, strings.HasPrefix(md, "# svc\n"))
	assert.Contains(t, md, "Generated Sunday, March 1, 2026 | 1 modules")
	assert.Contains(t, md, "```mermaid\ngraph TD; A-->B\n```")
	assert.Contains(t, md, "## Documentation\n\n# Readme")

	_, err = svc.Archive(context.Background(), models.Session{SessionToken: "t"}, "4")
	assert.ErrorIs(t, err, objectclient.ErrArchiveDisabled)

	store := &memObjects{}
	svc = NewDocumentService(backend, objectclient.NewArchive(store, "bucket"))
	url, err := svc.Archive(context.Background(), models.Session{SessionToken: "t"}, "4")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "mem://bucket/exports/tok-"))
	assert.True(t, strings.HasSuffix(url, "/4/Documentation-4.md"))
	assert.Equal(t, body, store.last)
}

type memObjects struct {
	last    []byte
	objects map[string][]byte
}

func (m *memObjects) UploadFile(_ context.Context, bucket, key string, data []byte, _ string) (string, error) {
	if m.objects == nil {
		m.objects = map[string][]byte{}
	}
	m.last = data
	m.objects[bucket+"/"+key] = data
	return "mem://" + bucket + "/" + key, nil
}

func (m *memObjects) DeleteFile(_ context.Context, bucket, key string) error {
	delete(m.objects, bucket+"/"+key)
	return nil
}

func (m *memObjects) GetFile(_ context.Context, bucket, key string) ([]byte, error) {
	b, ok := m.objects[bucket+"/"+key]
	if !ok {
		return nil, objectclient.ErrObjectNotFound
	}
	return b, nil
}

func TestDeleteRemovesArchivedExport(t *testing.T) {
	rec := &models.DocumentationRecord{ID: "4", RepositoryName: "svc", Readme: "# Readme"}
	deleted := []string{}
	backend := &fakeBackend{
		get: func(string) (*models.DocumentationRecord, error) { return rec, nil },
		del: func(id string) error {
			deleted = append(deleted, id)
			return nil
		},
	}
	store := &memObjects{}
	svc := NewDocumentService(backend, objectclient.NewArchive(store, "bucket"))
	sess := models.Session{SessionToken: "t"}
	ctx := context.Background()

	_, err := svc.Archive(ctx, sess, "4")
	require.NoError(t, err)

	name, body, err := svc.ArchivedExport(ctx, sess, "4")
	require.NoError(t, err)
	assert.Equal(t, "Documentation-4.md", name)
	assert.Equal(t, store.last, body)

	_, _, err = svc.ArchivedExport(ctx, models.Session{SessionToken: "other"}, "4")
	assert.ErrorIs(t, err, objectclient.ErrObjectNotFound)

	require.NoError(t, svc.Delete(ctx, sess, "4"))
	assert.Equal(t, []string{"4"}, deleted)
	assert.Empty(t, store.objects)

	_, _, err = svc.ArchivedExport(ctx, sess, "4")
	assert.ErrorIs(t, err, objectclient.ErrObjectNotFound)
}

func TestArchivedExportDisabled(t *testing.T) {
	svc := NewDocumentService(&fakeBackend{}, nil)
	_, _, err := svc.ArchivedExport(context.Background(), models.Session{SessionToken: "t"}, "4")
	assert.ErrorIs(t, err, objectclient.ErrArchiveDisabled)
}

func TestDashboard(t *testing.T) {
	repos := []models.RepositoryReference{{ID: "1", Name: "Alpha"}, {ID: "2", Name: "beta-service"}, {ID: "3", Name: "gamma"}}
	svc := NewRepositoryService(&fakeSourceHost{repos: repos}, nil)

	d := svc.Dashboard(context.Background(), models.Session{SessionToken: "t"}, "")
	assert.False(t, d.Connected)
	assert.Empty(t, d.Repositories)

	linked := models.Session{SessionToken: "t", SourceHostToken: "g"}
	d = svc.Dashboard(context.Background(), linked, "")
	assert.True(t, d.Connected)
	assert.Len(t, d.Repositories, 3)

	d = svc.Dashboard(context.Background(), linked, "  ALP ")
	require.Len(t, d.Repositories, 1)
	assert.Equal(t, "Alpha", d.Repositories[0].Name)

	svc = NewRepositoryService(&fakeSourceHost{err: gateway.ErrUpstreamUnavailable}, nil)
	d = svc.Dashboard(context.Background(), linked, "")
	assert.True(t, d.Connected)
	assert.Empty(t, d.Repositories)
	assert.Equal(t, "Invalid token or connection error. Please reconnect.", d.Error)
}

func TestDetailJoinsSavedDocumentation(t *testing.T) {
	repos := []models.RepositoryReference{{ID: "7", Name: "svc", LastUpdated: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)}}
	backend := &fakeBackend{list: func() ([]models.DocumentationRecord, error) {
		return []models.DocumentationRecord{
			{ID: "1", RepositoryID: "7"},
			{ID: "2", RepositoryID: "8"},
		}, nil
	}}
	svc := NewRepositoryService(&fakeSourceHost{repos: repos}, backend)
	sess := models.Session{SessionToken: "t", SourceHostToken: "g"}

	d, err := svc.Detail(context.Background(), sess, "7")
	require.NoError(t, err)
	assert.True(t, d.HasDocumentation)
	require.Len(t, d.Documentation, 1)
	assert.Equal(t, models.ID("1"), d.Documentation[0].ID)
	assert.Equal(t, "Jan 5, 2026", d.LastUpdated)

	backend.list = func() ([]models.DocumentationRecord, error) { return nil, errors.New("down") }
	d, err = svc.Detail(context.Background(), sess, "svc")
	require.NoError(t, err)
	assert.False(t, d.HasDocumentation)

	_, err = svc.Detail(context.Background(), sess, "missing")
	assert.ErrorIs(t, err, gateway.ErrNotFound)
}

func TestAuthServiceSetsAndClearsCookies(t *testing.T) {
	store := session.NewStore(session.Options{Secret: "s", SessionTTL: time.Hour, SourceHostTTL: time.Hour})
	backend := &fakeBackend{
		authenticate: func(c models.Credentials) (models.Session, error) {
			if c.Email != "a@b.c" {
				return models.Session{}, gateway.ErrInvalidCredentials
			}
			return models.Session{SessionToken: "tok"}, nil
		},
		link: func(string) error { return nil },
	}
	svc := NewAuthService(backend, store)

	rec := httptest.NewRecorder()
	_, err := svc.Login(context.Background(), rec, models.Credentials{Email: "x@y.z", Password: "p"})
	assert.ErrorIs(t, err, gateway.ErrInvalidCredentials)
	assert.Empty(t, rec.Result().Cookies())

	rec = httptest.NewRecorder()
	sess, err := svc.Login(context.Background(), rec, models.Credentials{Email: " a@b.c ", Password: "p"})
	require.NoError(t, err)
	assert.Equal(t, "tok", sess.SessionToken)
	require.Len(t, rec.Result().Cookies(), 1)
	assert.Equal(t, "auth_token", rec.Result().Cookies()[0].Name)

	rec = httptest.NewRecorder()
	err = svc.LinkSourceHost(context.Background(), rec, sess, "  ")
	assert.ErrorIs(t, err, gateway.ErrValidation)

	rec = httptest.NewRecorder()
	require.NoError(t, svc.LinkSourceHost(context.Background(), rec, sess, "ghp_x"))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	got, ok := store.Get(req, session.KindSourceHost)
	require.True(t, ok)
	assert.Equal(t, "ghp_x", got)

	rec = httptest.NewRecorder()
	svc.Logout(rec)
	require.Len(t, rec.Result().Cookies(), 1)
	assert.Negative(t, rec.Result().Cookies()[0].MaxAge)
}

type recordingLedger struct {
	core.JobLedger
	owner string
	limit int
}

func (l *recordingLedger) ListRecentJobs(_ context.Context, owner string, limit int) ([]models.JobRecord, error) {
	l.owner, l.limit = owner, limit
	return []models.JobRecord{{JobID: "42", Owner: owner, Status: models.JobPending}}, nil
}

func TestJobHistoryRecentClampsLimit(t *testing.T) {
	ledger := &recordingLedger{}
	svc := NewJobHistoryService(ledger)
	sess := models.Session{SessionToken: "opaque-token"}

	jobs, err := svc.Recent(context.Background(), sess, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, 20, ledger.limit)
	assert.Equal(t, session.Owner(sess), ledger.owner)

	_, err = svc.Recent(context.Background(), sess, 500)
	require.NoError(t, err)
	assert.Equal(t, 100, ledger.limit)

	_, err = svc.Recent(context.Background(), sess, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, ledger.limit)
}
