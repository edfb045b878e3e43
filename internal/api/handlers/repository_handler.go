package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/markdave123-py/RepoScribe/internal/core/session"
	"github.com/markdave123-py/RepoScribe/internal/services"
)

type RepositoryHandler struct {
	repos *services.RepositoryService
}

func NewRepositoryHandler(repos *services.RepositoryService) *RepositoryHandler {
	return &RepositoryHandler{repos: repos}
}

// List always answers 200; a broken source-host link is reported in the body.
func (h *RepositoryHandler) List(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	writeJSON(w, http.StatusOK, h.repos.Dashboard(r.Context(), sess, r.URL.Query().Get("filter")))
}

func (h *RepositoryHandler) Detail(w http.ResponseWriter, r *http.Request) {
	detail, err := h.repos.Detail(r.Context(), session.FromContext(r.Context()), chi.URLParam(r, "ref"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

type JobHandler struct {
	history *services.JobHistoryService
}

func NewJobHandler(history *services.JobHistoryService) *JobHandler {
	return &JobHandler{history: history}
}

func (h *JobHandler) Recent(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	jobs, err := h.history.Recent(r.Context(), session.FromContext(r.Context()), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}
