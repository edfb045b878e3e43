package session

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/nacl/secretbox"

	"github.com/markdave123-py/RepoScribe/internal/models"
)

// Kind names one of the two credentials a browser holds.
type Kind int

const (
	KindSession Kind = iota
	KindSourceHost
)

func (k Kind) CookieName() string {
	if k == KindSourceHost {
		return "github_token"
	}
	return "auth_token"
}

func (k Kind) String() string {
	if k == KindSourceHost {
		return "source_host"
	}
	return "session"
}

// SetOptions overrides the default lifetime of a credential cookie.
type SetOptions struct {
	TTL time.Duration
}

// Options configures a Store.
type Options struct {
	Secret        string
	Secure        bool
	SessionTTL    time.Duration
	SourceHostTTL time.Duration
}

// Store persists credentials as cookies. It never validates them; that is the
// backend's job.
type Store struct {
	key    [32]byte
	secure bool
	ttl    map[Kind]time.Duration
}

var errUnsealable = errors.New("cookie cannot be opened")

func NewStore(opts Options) *Store {
	s := &Store{
		secure: opts.Secure,
		ttl: map[Kind]time.Duration{
			KindSession:    opts.SessionTTL,
			KindSourceHost: opts.SourceHostTTL,
		},
	}
	if opts.Secret == "" {
		if _, err := rand.Read(s.key[:]); err != nil {
			panic("session: no entropy for cookie key: " + err.Error())
		}
		log.Warn().Msg("COOKIE_SECRET not set; linked source-host accounts will not survive a restart")
	} else {
		s.key = sha256.Sum256([]byte(opts.Secret))
	}
	return s
}

// Get returns the credential of kind carried by r.
func (s *Store) Get(r *http.Request, kind Kind) (string, bool) {
	c, err := r.Cookie(kind.CookieName())
	if err != nil || c.Value == "" {
		return "", false
	}
	if kind != KindSourceHost {
		return c.Value, true
	}
	v, err := s.open(c.Value)
	if err != nil {
		log.Debug().Err(err).Str("kind", kind.String()).Msg("discarding unreadable credential cookie")
		return "", false
	}
	return v, true
}

// Load reads both credentials into a Session value.
func (s *Store) Load(r *http.Request) models.Session {
	sess := models.Session{}
	sess.SessionToken, _ = s.Get(r, KindSession)
	sess.SourceHostToken, _ = s.Get(r, KindSourceHost)
	return sess
}

// Set writes a credential cookie. A zero TTL uses the store default for kind.
func (s *Store) Set(w http.ResponseWriter, kind Kind, value string, opts SetOptions) {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = s.ttl[kind]
	}
	if kind == KindSourceHost {
		value = s.seal(value)
	}
	c := s.cookie(kind, value)
	if ttl > 0 {
		c.MaxAge = int(ttl / time.Second)
		c.Expires = time.Now().Add(ttl)
	}
	http.SetCookie(w, c)
}

// Clear expires a credential cookie.
func (s *Store) Clear(w http.ResponseWriter, kind Kind) {
	c := s.cookie(kind, "")
	c.MaxAge = -1
	c.Expires = time.Unix(0, 0)
	http.SetCookie(w, c)
}

func (s *Store) cookie(kind Kind, value string) *http.Cookie {
	return &http.Cookie{
		Name:     kind.CookieName(),
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (s *Store) seal(plain string) string {
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		panic("session: no entropy for nonce: " + err.Error())
	}
	box := secretbox.Seal(nonce[:], []byte(plain), &nonce, &s.key)
	return base64.RawURLEncoding.EncodeToString(box)
}

func (s *Store) open(sealed string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil || len(raw) < 24+secretbox.Overhead {
		return "", errUnsealable
	}
	var nonce [24]byte
	copy(nonce[:], raw[:24])
	plain, ok := secretbox.Open(nil, raw[24:], &nonce, &s.key)
	if !ok {
		return "", errUnsealable
	}
	return string(plain), nil
}
