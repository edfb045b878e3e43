package middleware

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/markdave123-py/RepoScribe/internal/core/session"
)

// SessionContext loads both credential cookies into the request context. A
// session token that is a JWT past its exp claim is dropped and its cookie
// cleared; every other token is passed on for the backend to judge.
func SessionContext(store *session.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := store.Load(r)
			if sess.SessionToken != "" && session.Expired(sess.SessionToken, time.Now()) {
				store.Clear(w, session.KindSession)
				sess.SessionToken = ""
			}
			next.ServeHTTP(w, r.WithContext(session.WithSession(r.Context(), sess)))
		})
	}
}

// RequireAPI rejects API requests without a session token.
func RequireAPI(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !session.FromContext(r.Context()).Authenticated() {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"message": "User is not authenticated"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequirePage redirects unauthenticated requests for pages under one of
// prefixes to /login?from=<path>.
func RequirePage(prefixes []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if protected(r.URL.Path, prefixes) && !session.FromContext(r.Context()).Authenticated() {
				http.Redirect(w, r, LoginRedirect(r.URL.Path), http.StatusTemporaryRedirect)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func LoginRedirect(from string) string {
	return "/login?" + url.Values{"from": {from}}.Encode()
}

func protected(path string, prefixes []string) bool {
	if strings.HasPrefix(path, "/api/") {
		return false
	}
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
