package jobs

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog/log"

	"github.com/markdave123-py/RepoScribe/internal/core"
	"github.com/markdave123-py/RepoScribe/internal/models"
)

var ErrViewNotFound = errors.New("view not found")

type view struct {
	owner string
	ctrl  *Controller
}

// Registry holds one Controller per open repository view. Views that are
// not touched within the TTL, or that fall off the end of the LRU, are
// stopped. Eviction runs under the LRU lock, so it only cancels the poll
// loop and never waits for it.
type Registry struct {
	client core.JobClient
	opts   Options
	views  *expirable.LRU[string, *view]
}

func NewRegistry(client core.JobClient, opts Options, size int, ttl time.Duration) *Registry {
	if size <= 0 {
		size = 1024
	}
	r := &Registry{client: client, opts: opts}
	r.views = expirable.NewLRU[string, *view](size, func(id string, v *view) {
		log.Debug().Str("view_id", id).Msg("closing repository view")
		v.ctrl.stop()
	}, ttl)
	return r
}

// Open creates a fresh view over repo for owner.
func (r *Registry) Open(owner string, repo models.RepositoryReference) (string, *Controller) {
	opts := r.opts
	opts.Owner = owner
	ctrl := NewController(repo, r.client, opts)
	id := uuid.NewString()
	r.views.Add(id, &view{owner: owner, ctrl: ctrl})
	return id, ctrl
}

// Get returns the view's controller and renews its TTL. Views owned by
// someone else are reported as not found.
func (r *Registry) Get(owner, id string) (*Controller, error) {
	v, ok := r.views.Peek(id)
	if !ok || v.owner != owner {
		return nil, ErrViewNotFound
	}
	r.views.Add(id, v)
	return v.ctrl, nil
}

// Close tears the view down.
func (r *Registry) Close(owner, id string) error {
	v, ok := r.views.Peek(id)
	if !ok || v.owner != owner {
		return ErrViewNotFound
	}
	r.views.Remove(id)
	v.ctrl.Close()
	return nil
}

func (r *Registry) Len() int {
	return r.views.Len()
}

// Shutdown closes every open view and waits for their poll loops.
func (r *Registry) Shutdown() {
	open := r.views.Values()
	r.views.Purge()
	for _, v := range open {
		v.ctrl.Close()
	}
}
