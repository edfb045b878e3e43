package services

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/markdave123-py/RepoScribe/internal/core"
	"github.com/markdave123-py/RepoScribe/internal/core/gateway"
	"github.com/markdave123-py/RepoScribe/internal/core/session"
	"github.com/markdave123-py/RepoScribe/internal/models"
)

// AuthService is the only writer of credential cookies.
type AuthService struct {
	backend core.BackendClient
	store   *session.Store
}

func NewAuthService(backend core.BackendClient, store *session.Store) *AuthService {
	return &AuthService{backend: backend, store: store}
}

func (s *AuthService) Login(ctx context.Context, w http.ResponseWriter, creds models.Credentials) (models.Session, error) {
	creds.Email = strings.TrimSpace(creds.Email)
	sess, err := s.backend.Authenticate(ctx, creds)
	if err != nil {
		return models.Session{}, err
	}
	s.store.Set(w, session.KindSession, sess.SessionToken, session.SetOptions{})
	log.Info().Str("owner", session.Owner(sess)).Msg("user signed in")
	return sess, nil
}

func (s *AuthService) Register(ctx context.Context, w http.ResponseWriter, profile models.RegistrationProfile) (models.Session, error) {
	profile.Email = strings.TrimSpace(profile.Email)
	sess, err := s.backend.Register(ctx, profile)
	if err != nil {
		return models.Session{}, err
	}
	s.store.Set(w, session.KindSession, sess.SessionToken, session.SetOptions{})
	log.Info().Str("owner", session.Owner(sess)).Msg("user registered")
	return sess, nil
}

// Logout clears the session credential. A linked source-host account stays
// linked for the next sign-in.
func (s *AuthService) Logout(w http.ResponseWriter) {
	s.store.Clear(w, session.KindSession)
}

func (s *AuthService) Profile(ctx context.Context, sess models.Session) (*models.UserProfile, error) {
	return s.backend.CurrentUser(ctx, sess)
}

// LinkSourceHost stores the access token with the backend and then in the
// sealed source-host cookie.
func (s *AuthService) LinkSourceHost(ctx context.Context, w http.ResponseWriter, sess models.Session, accessToken string) error {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return &gateway.ValidationError{
			Message: "Access token is required.",
			Fields:  map[string][]string{"access_token": {"Access token is required."}},
		}
	}
	if err := s.backend.LinkSourceHost(ctx, sess, accessToken); err != nil {
		return err
	}
	s.store.Set(w, session.KindSourceHost, accessToken, session.SetOptions{})
	log.Info().Str("owner", session.Owner(sess)).Msg("source-host account linked")
	return nil
}

func (s *AuthService) UnlinkSourceHost(w http.ResponseWriter) {
	s.store.Clear(w, session.KindSourceHost)
}
