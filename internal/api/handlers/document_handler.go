package handlers

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/markdave123-py/RepoScribe/internal/core/session"
	"github.com/markdave123-py/RepoScribe/internal/services"
)

type DocumentHandler struct {
	docs *services.DocumentService
}

func NewDocumentHandler(docs *services.DocumentService) *DocumentHandler {
	return &DocumentHandler{docs: docs}
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.docs.List(r.Context(), session.FromContext(r.Context())))
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	view, err := h.docs.Get(r.Context(), session.FromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type updateRequest struct {
	Readme string `json:"readme"`
}

func (h *DocumentHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if !decode(w, r, &req) {
		return
	}
	view, err := h.docs.Update(r.Context(), session.FromContext(r.Context()), chi.URLParam(r, "id"), req.Readme)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.docs.Delete(r.Context(), session.FromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Export downloads the record as a markdown file.
func (h *DocumentHandler) Export(w http.ResponseWriter, r *http.Request) {
	name, body, err := h.docs.Export(r.Context(), session.FromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeMarkdown(w, name, body)
}

// ArchivedExport downloads the copy previously stored by Archive.
func (h *DocumentHandler) ArchivedExport(w http.ResponseWriter, r *http.Request) {
	name, body, err := h.docs.ArchivedExport(r.Context(), session.FromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeMarkdown(w, name, body)
}

func writeMarkdown(w http.ResponseWriter, name string, body []byte) {
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// Archive stores the export in the object store and returns its URL.
func (h *DocumentHandler) Archive(w http.ResponseWriter, r *http.Request) {
	url, err := h.docs.Archive(r.Context(), session.FromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"url": url})
}
