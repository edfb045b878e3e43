package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/markdave123-py/RepoScribe/internal/core/gateway"
	"github.com/markdave123-py/RepoScribe/internal/core/jobs"
	objectclient "github.com/markdave123-py/RepoScribe/internal/core/object-client"
)

const reconnectHint = "Invalid token or connection error. Please reconnect."

type errorBody struct {
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("failed to write response body")
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Message: msg})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// writeError maps a domain error to its HTTP status and JSON body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := classify(err)
	ev := log.Warn()
	if status >= http.StatusInternalServerError {
		ev = log.Error()
	}
	ev.Err(err).Str("path", r.URL.Path).Int("status", status).Msg("request failed")
	writeJSON(w, status, body)
}

func classify(err error) (int, errorBody) {
	var ve *gateway.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusUnprocessableEntity, errorBody{Message: ve.Error(), Errors: ve.Fields}
	case errors.Is(err, gateway.ErrInvalidCredentials):
		return http.StatusUnauthorized, errorBody{Message: gateway.UserMessage(err)}
	case errors.Is(err, gateway.ErrUnauthenticated):
		return http.StatusUnauthorized, errorBody{Message: "User is not authenticated"}
	case errors.Is(err, gateway.ErrNotFound), errors.Is(err, jobs.ErrViewNotFound), errors.Is(err, jobs.ErrViewClosed),
		errors.Is(err, objectclient.ErrObjectNotFound):
		return http.StatusNotFound, errorBody{Message: "Not found"}
	case errors.Is(err, gateway.ErrUpstreamUnavailable):
		return http.StatusBadGateway, errorBody{Message: reconnectHint}
	case errors.Is(err, gateway.ErrSubmission):
		return http.StatusBadGateway, errorBody{Message: "Failed to contact backend system."}
	case errors.Is(err, gateway.ErrPersistence), errors.Is(err, gateway.ErrPollTransport):
		return http.StatusBadGateway, errorBody{Message: gateway.UserMessage(err)}
	case errors.Is(err, jobs.ErrConsentRequired), errors.Is(err, jobs.ErrGenerateDisabled), errors.Is(err, jobs.ErrNoResult):
		return http.StatusConflict, errorBody{Message: err.Error()}
	case errors.Is(err, objectclient.ErrArchiveDisabled):
		return http.StatusServiceUnavailable, errorBody{Message: err.Error()}
	}
	return http.StatusInternalServerError, errorBody{Message: "Internal server error"}
}
