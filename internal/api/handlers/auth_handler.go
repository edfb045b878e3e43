package handlers

import (
	"net/http"

	"github.com/markdave123-py/RepoScribe/internal/core/session"
	"github.com/markdave123-py/RepoScribe/internal/models"
	"github.com/markdave123-py/RepoScribe/internal/services"
)

type AuthHandler struct {
	auth *services.AuthService
}

func NewAuthHandler(auth *services.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.Credentials
	if !decode(w, r, &req) {
		return
	}
	if _, err := h.auth.Login(r.Context(), w, req); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"authenticated": true})
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegistrationProfile
	if !decode(w, r, &req) {
		return
	}
	if _, err := h.auth.Register(r.Context(), w, req); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]bool{"authenticated": true})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.auth.Logout(w)
	w.WriteHeader(http.StatusNoContent)
}

type meResponse struct {
	User             *models.UserProfile `json:"user"`
	SourceHostLinked bool                `json:"source_host_linked"`
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	user, err := h.auth.Profile(r.Context(), sess)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, meResponse{User: user, SourceHostLinked: sess.SourceHostLinked()})
}

type linkRequest struct {
	AccessToken string `json:"access_token"`
}

func (h *AuthHandler) LinkSourceHost(w http.ResponseWriter, r *http.Request) {
	var req linkRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.auth.LinkSourceHost(r.Context(), w, session.FromContext(r.Context()), req.AccessToken); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"linked": true})
}

func (h *AuthHandler) UnlinkSourceHost(w http.ResponseWriter, r *http.Request) {
	h.auth.UnlinkSourceHost(w)
	w.WriteHeader(http.StatusNoContent)
}
