package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/RepoScribe/internal/models"
)

func newTestStore() *Store {
	return NewStore(Options{
		Secret:        "test-secret",
		Secure:        true,
		SessionTTL:    7 * 24 * time.Hour,
		SourceHostTTL: 30 * 24 * time.Hour,
	})
}

// roundTrip replays the cookies written to rec onto a fresh request.
func roundTrip(rec *httptest.ResponseRecorder) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge >= 0 {
			req.AddCookie(c)
		}
	}
	return req
}

func TestSetAndGetBothKinds(t *testing.T) {
	s := newTestStore()
	rec := httptest.NewRecorder()
	s.Set(rec, KindSession, "session-tok", SetOptions{})
	s.Set(rec, KindSourceHost, "ghp_abc", SetOptions{})

	cookies := map[string]*http.Cookie{}
	for _, c := range rec.Result().Cookies() {
		cookies[c.Name] = c
	}
	require.Contains(t, cookies, "auth_token")
	require.Contains(t, cookies, "github_token")
	assert.Equal(t, 7*24*3600, cookies["auth_token"].MaxAge)
	assert.Equal(t, 30*24*3600, cookies["github_token"].MaxAge)
	assert.True(t, cookies["github_token"].HttpOnly)
	assert.True(t, cookies["github_token"].Secure)
	assert.NotContains(t, cookies["github_token"].Value, "ghp_abc")

	sess := s.Load(roundTrip(rec))
	assert.Equal(t, "session-tok", sess.SessionToken)
	assert.Equal(t, "ghp_abc", sess.SourceHostToken)
}

func TestSetHonoursExplicitTTL(t *testing.T) {
	s := newTestStore()
	rec := httptest.NewRecorder()
	s.Set(rec, KindSession, "tok", SetOptions{TTL: time.Hour})
	require.Len(t, rec.Result().Cookies(), 1)
	assert.Equal(t, 3600, rec.Result().Cookies()[0].MaxAge)
}

func TestClearExpiresCookie(t *testing.T) {
	s := newTestStore()
	rec := httptest.NewRecorder()
	s.Clear(rec, KindSourceHost)
	c := rec.Result().Cookies()
	require.Len(t, c, 1)
	assert.Equal(t, "github_token", c[0].Name)
	assert.Negative(t, c[0].MaxAge)
}

func TestTamperedSourceHostCookieReadsAsAbsent(t *testing.T) {
	s := newTestStore()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "github_token", Value: "ghp_plaintext"})
	_, ok := s.Get(req, KindSourceHost)
	assert.False(t, ok)

	rec := httptest.NewRecorder()
	NewStore(Options{Secret: "other"}).Set(rec, KindSourceHost, "ghp", SetOptions{})
	_, ok = s.Get(roundTrip(rec), KindSourceHost)
	assert.False(t, ok)
}

func signed(t *testing.T, claims jwt.Claims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("k"))
	require.NoError(t, err)
	return tok
}

func TestExpired(t *testing.T) {
	now := time.Now()
	past := signed(t, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(-time.Minute))})
	future := signed(t, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour))})

	assert.True(t, Expired(past, now))
	assert.False(t, Expired(future, now))
	assert.False(t, Expired("12|opaque-sanctum-token", now))
}

func TestOwner(t *testing.T) {
	withSub := signed(t, jwt.RegisteredClaims{Subject: "17"})
	withUserID := signed(t, jwt.MapClaims{"user_id": "u-9"})

	assert.Equal(t, "sub:17", Owner(sessionOf(withSub)))
	assert.Equal(t, "sub:u-9", Owner(sessionOf(withUserID)))

	opaque := Owner(sessionOf("12|opaque"))
	assert.Equal(t, opaque, Owner(sessionOf("12|opaque")))
	assert.NotContains(t, opaque, "opaque")
	assert.Empty(t, Owner(sessionOf("")))
}

func sessionOf(token string) models.Session {
	return models.Session{SessionToken: token}
}
