package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/markdave123-py/RepoScribe/internal/models"
)

type ctxKey struct{}

// WithSession attaches sess to ctx. Handlers read it back with FromContext
// instead of reaching for cookies.
func WithSession(ctx context.Context, sess models.Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, sess)
}

func FromContext(ctx context.Context) models.Session {
	sess, _ := ctx.Value(ctxKey{}).(models.Session)
	return sess
}

// Expired reports whether token is a JWT whose exp claim has passed. Opaque
// tokens are never considered expired here; the backend decides.
func Expired(token string, now time.Time) bool {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return false
	}
	return claims.ExpiresAt != nil && !now.Before(claims.ExpiresAt.Time)
}

// Owner is a stable, non-secret key for the user behind a session token: the
// JWT subject (or user_id claim) when present, otherwise a token fingerprint.
func Owner(sess models.Session) string {
	if sess.SessionToken == "" {
		return ""
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(sess.SessionToken, claims); err == nil {
		if sub, _ := claims.GetSubject(); sub != "" {
			return "sub:" + sub
		}
		if uid, ok := claims["user_id"].(string); ok && uid != "" {
			return "sub:" + uid
		}
	}
	sum := sha256.Sum256([]byte(sess.SessionToken))
	return "tok:" + hex.EncodeToString(sum[:12])
}
