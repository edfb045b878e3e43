package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/markdave123-py/RepoScribe/internal/api/handlers"
	appMiddleware "github.com/markdave123-py/RepoScribe/internal/api/middlewares"
	"github.com/markdave123-py/RepoScribe/internal/config"
	"github.com/markdave123-py/RepoScribe/internal/services"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
}

// NewServer builds and wires all routes.
func NewServer(cfg *config.Config, deps Deps) *Server {
	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           NewRouter(cfg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return &Server{httpServer: httpSrv}
}

// NewRouter returns the full route tree: the JSON API under /api, the view
// stream and the static site.
func NewRouter(cfg *config.Config, deps Deps) http.Handler {
	authSvc := services.NewAuthService(deps.Backend, deps.Store)
	repoSvc := services.NewRepositoryService(deps.SourceHost, deps.Backend)
	docSvc := services.NewDocumentService(deps.Backend, deps.Archive)
	jobSvc := services.NewJobHistoryService(deps.Ledger)

	authHandler := handlers.NewAuthHandler(authSvc)
	repoHandler := handlers.NewRepositoryHandler(repoSvc)
	viewHandler := handlers.NewViewHandler(deps.Views, repoSvc, cfg.AllowedOrigins)
	docHandler := handlers.NewDocumentHandler(docSvc)
	jobHandler := handlers.NewJobHandler(jobSvc)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(appMiddleware.AccessLog)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
	}))
	r.Use(appMiddleware.SessionContext(deps.Store))

	// API routes
	r.Route("/api", func(api chi.Router) {
		// websocket stream; lives as long as the view, so no request timeout
		api.With(appMiddleware.RequireAPI).Get("/views/{viewID}/stream", viewHandler.Stream)

		api.Group(func(timed chi.Router) {
			timed.Use(middleware.Timeout(60 * time.Second))

			// public endpoints
			timed.Post("/auth/login", authHandler.Login)
			timed.Post("/auth/register", authHandler.Register)
			timed.Post("/auth/logout", authHandler.Logout)

			// protected endpoints
			timed.Group(func(protected chi.Router) {
				protected.Use(appMiddleware.RequireAPI)

				protected.Get("/me", authHandler.Me)
				protected.Post("/source-host/token", authHandler.LinkSourceHost)
				protected.Delete("/source-host/token", authHandler.UnlinkSourceHost)

				protected.Get("/repositories", repoHandler.List)
				protected.Get("/repositories/{ref}", repoHandler.Detail)
				protected.Post("/repositories/{ref}/views", viewHandler.Open)

				protected.Get("/views/{viewID}", viewHandler.Get)
				protected.Delete("/views/{viewID}", viewHandler.Close)
				protected.Post("/views/{viewID}/generate", viewHandler.Generate)
				protected.Post("/views/{viewID}/save", viewHandler.Save)
				protected.Post("/views/{viewID}/notification/dismiss", viewHandler.DismissNotification)

				protected.Get("/jobs/recent", jobHandler.Recent)

				protected.Get("/documentation", docHandler.List)
				protected.Get("/documentation/{id}", docHandler.Get)
				protected.Put("/documentation/{id}", docHandler.Update)
				protected.Delete("/documentation/{id}", docHandler.Delete)
				protected.Get("/documentation/{id}/export", docHandler.Export)
				protected.Post("/documentation/{id}/export", docHandler.Archive)
				protected.Get("/documentation/{id}/export/archive", docHandler.ArchivedExport)
			})
		})
	})

	// Serve static files from the web directory
	fileServer := http.FileServer(http.Dir(cfg.WebDir))
	r.With(appMiddleware.RequirePage(cfg.ProtectedPrefixes)).Handle("/*", fileServer)

	return r
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	log.Info().Str("addr", s.httpServer.Addr).Msg("HTTP server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
