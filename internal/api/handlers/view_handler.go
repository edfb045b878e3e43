package handlers

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/markdave123-py/RepoScribe/internal/core/jobs"
	"github.com/markdave123-py/RepoScribe/internal/core/session"
	"github.com/markdave123-py/RepoScribe/internal/models"
	"github.com/markdave123-py/RepoScribe/internal/services"
)

const (
	streamWriteWait = 10 * time.Second
	streamPongWait  = 60 * time.Second
	streamPingEvery = (streamPongWait * 9) / 10
)

// ViewHandler exposes the job controller of each open repository view.
type ViewHandler struct {
	views    *jobs.Registry
	repos    *services.RepositoryService
	upgrader websocket.Upgrader
}

func NewViewHandler(views *jobs.Registry, repos *services.RepositoryService, allowedOrigins []string) *ViewHandler {
	return &ViewHandler{
		views: views,
		repos: repos,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     sameOriginOr(allowedOrigins),
		},
	}
}

type viewResponse struct {
	ViewID   string        `json:"view_id"`
	Snapshot jobs.Snapshot `json:"snapshot"`
}

// Open resolves the repository and starts a fresh, idle view over it.
func (h *ViewHandler) Open(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	repo, err := h.repos.Resolve(r.Context(), sess, chi.URLParam(r, "ref"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, ctrl := h.views.Open(session.Owner(sess), *repo)
	log.Info().Str("view_id", id).Str("repo", repo.FullName).Msg("repository view opened")
	writeJSON(w, http.StatusCreated, viewResponse{ViewID: id, Snapshot: ctrl.Snapshot()})
}

func (h *ViewHandler) controller(w http.ResponseWriter, r *http.Request) (*jobs.Controller, bool) {
	ctrl, err := h.views.Get(session.Owner(session.FromContext(r.Context())), chi.URLParam(r, "viewID"))
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	return ctrl, true
}

func (h *ViewHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ctrl.Snapshot())
}

func (h *ViewHandler) Close(w http.ResponseWriter, r *http.Request) {
	owner := session.Owner(session.FromContext(r.Context()))
	if err := h.views.Close(owner, chi.URLParam(r, "viewID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ViewHandler) Generate(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	var req jobs.GenerateRequest
	if !decode(w, r, &req) {
		return
	}
	if err := ctrl.Generate(r.Context(), session.FromContext(r.Context()), req); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, ctrl.Snapshot())
}

type saveResponse struct {
	Record   *models.DocumentationRecord `json:"record,omitempty"`
	Snapshot jobs.Snapshot              `json:"snapshot"`
}

func (h *ViewHandler) Save(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	rec, err := ctrl.Save(r.Context(), session.FromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, saveResponse{Record: rec, Snapshot: ctrl.Snapshot()})
}

func (h *ViewHandler) DismissNotification(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	ctrl.DismissNotification()
	writeJSON(w, http.StatusOK, ctrl.Snapshot())
}

type streamMessage struct {
	Type     string         `json:"type"`
	Snapshot *jobs.Snapshot `json:"snapshot,omitempty"`
}

// Stream pushes every state change of the view over a websocket. The view is
// torn down when the socket goes away.
func (h *ViewHandler) Stream(w http.ResponseWriter, r *http.Request) {
	owner := session.Owner(session.FromContext(r.Context()))
	viewID := chi.URLParam(r, "viewID")
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	defer func() {
		if err := h.views.Close(owner, viewID); err == nil {
			log.Debug().Str("view_id", viewID).Msg("view closed on stream disconnect")
		}
	}()

	if err := conn.SetReadDeadline(time.Now().Add(streamPongWait)); err != nil {
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})

	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	updates := ctrl.Subscribe(ctx)
	ticker := time.NewTicker(streamPingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case snap, open := <-updates:
			if err := conn.SetWriteDeadline(time.Now().Add(streamWriteWait)); err != nil {
				return
			}
			if !open {
				_ = conn.WriteJSON(streamMessage{Type: "closed"})
				return
			}
			if err := conn.WriteJSON(streamMessage{Type: "snapshot", Snapshot: &snap}); err != nil {
				return
			}
		case <-ticker.C:
			if _, err := h.views.Get(owner, viewID); err != nil {
				return
			}
			if err := conn.SetWriteDeadline(time.Now().Add(streamWriteWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sameOriginOr accepts requests without an Origin header, from the serving
// host, or from one of allowed.
func sameOriginOr(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		if strings.EqualFold(u.Host, r.Host) {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(strings.TrimRight(a, "/"), origin) {
				return true
			}
		}
		return false
	}
}
