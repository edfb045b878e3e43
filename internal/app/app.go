package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/markdave123-py/RepoScribe/internal/config"
	"github.com/markdave123-py/RepoScribe/internal/core"
	db "github.com/markdave123-py/RepoScribe/internal/core/database"
	"github.com/markdave123-py/RepoScribe/internal/core/gateway"
	"github.com/markdave123-py/RepoScribe/internal/core/jobs"
	objectclient "github.com/markdave123-py/RepoScribe/internal/core/object-client"
	"github.com/markdave123-py/RepoScribe/internal/core/session"
)

type App struct {
	Ledger core.JobLedger
	Views  *jobs.Registry
	Server *Server
}

// Deps are the collaborators the HTTP server is built from.
type Deps struct {
	Backend    core.BackendClient
	SourceHost core.SourceHostClient
	Ledger     core.JobLedger
	Archive    *objectclient.Archive
	Store      *session.Store
	Views      *jobs.Registry
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	httpClient := gateway.NewHTTPClient(cfg.HTTPTimeout)
	backend := gateway.NewBackend(cfg.ServerURL, httpClient)
	sourceHost := gateway.NewSourceHost(cfg.SourceHostAPIURL, httpClient, cfg.RepoPageSize, cfg.SourceHostRPS)

	ledger, err := db.OpenLedger(appCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("job ledger: %w", err)
	}
	log.Info().Msg("job ledger ready")

	archive := objectclient.NewArchive(nil, "")
	if cfg.ExportEnabled() {
		s3Client, err := objectclient.NewS3Client(appCtx, cfg)
		if err != nil {
			_ = ledger.Close()
			return nil, fmt.Errorf("object client: %w", err)
		}
		archive = objectclient.NewArchive(s3Client, cfg.BucketName)
		log.Info().Str("bucket", cfg.BucketName).Msg("export archive ready")
	}

	store := session.NewStore(session.Options{
		Secret:        cfg.CookieSecret,
		Secure:        cfg.CookieSecure,
		SessionTTL:    cfg.SessionTTL,
		SourceHostTTL: cfg.SourceHostTTL,
	})

	views := jobs.NewRegistry(backend, jobs.Options{
		PollInterval:    cfg.PollInterval,
		NotificationTTL: cfg.NotificationTTL,
		Ledger:          ledger,
	}, cfg.MaxViews, cfg.ViewTTL)

	server := NewServer(cfg, Deps{
		Backend:    backend,
		SourceHost: sourceHost,
		Ledger:     ledger,
		Archive:    archive,
		Store:      store,
		Views:      views,
	})

	return &App{Ledger: ledger, Views: views, Server: server}, nil
}

// Close stops every open view and releases the ledger.
func (a *App) Close() {
	if a.Views != nil {
		a.Views.Shutdown()
	}
	if a.Ledger != nil {
		if err := a.Ledger.Close(); err != nil {
			log.Warn().Err(err).Msg("closing job ledger")
		}
	}
}
