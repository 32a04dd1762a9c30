package identity

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/pkordes/visit-tracker/internal/domain"
)

// DefaultCacheTTL keeps a looked-up session for roughly the life of a
// browser tab.
const DefaultCacheTTL = 12 * time.Hour

const sessionCacheKey = "session"

// Source yields a best-effort identity. A zero Identity with a nil error
// means the source has nothing to offer right now.
type Source interface {
	Identity(ctx context.Context) (domain.Identity, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context) (domain.Identity, error)

// Identity calls f(ctx).
func (f SourceFunc) Identity(ctx context.Context) (domain.Identity, error) {
	return f(ctx)
}

// SessionLookup asks the server who the session cookie belongs to. It returns
// domain.ErrAuthenticationRequired when the server answers 401.
type SessionLookup interface {
	Session(ctx context.Context) (domain.Identity, error)
}

// Resolver produces the identity attached to every leg-mutating call.
//
// Sources are consulted in order and the first non-empty identity wins:
// the cached session lookup, then each fallback (the auth provider's client
// object, then its hook). Once the lookup has answered 401 it is not asked
// again until Reset.
type Resolver struct {
	lookup       SessionLookup
	fallbacks    []Source
	cache        *cache.Cache
	unauthorized atomic.Bool
	log          *slog.Logger
}

// NewResolver builds a Resolver. lookup may be nil.
func NewResolver(lookup SessionLookup, log *slog.Logger, fallbacks ...Source) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{
		lookup:    lookup,
		fallbacks: fallbacks,
		cache:     cache.New(DefaultCacheTTL, time.Hour),
		log:       log,
	}
}

// Prime performs the session lookup once and caches a non-empty result.
// Call it at startup; Resolve calls it lazily when the cache is empty.
func (r *Resolver) Prime(ctx context.Context) domain.Identity {
	if r.lookup == nil || r.unauthorized.Load() {
		return domain.Identity{}
	}
	id, err := r.lookup.Session(ctx)
	switch {
	case errors.Is(err, domain.ErrAuthenticationRequired):
		r.unauthorized.Store(true)
		r.log.InfoContext(ctx, "session lookup unauthorized, disabling further lookups")
		return domain.Identity{}
	case err != nil:
		r.log.WarnContext(ctx, "session lookup failed", "error", err)
		return domain.Identity{}
	case id.IsZero():
		return domain.Identity{}
	}
	r.cache.SetDefault(sessionCacheKey, id)
	return id
}

// Resolve returns the first non-empty identity from the ordered sources, or
// the zero Identity when none has one. It never fails.
func (r *Resolver) Resolve(ctx context.Context) domain.Identity {
	if v, ok := r.cache.Get(sessionCacheKey); ok {
		if id, ok := v.(domain.Identity); ok && !id.IsZero() {
			return id
		}
	}
	if id := r.Prime(ctx); !id.IsZero() {
		return id
	}
	for i, src := range r.fallbacks {
		id, err := src.Identity(ctx)
		if err != nil {
			r.log.DebugContext(ctx, "identity source failed", "source", i, "error", err)
			continue
		}
		if !id.IsZero() {
			return id
		}
	}
	return domain.Identity{}
}

// Unauthorized reports whether a session lookup has answered 401.
func (r *Resolver) Unauthorized() bool {
	return r.unauthorized.Load()
}

// Reset forgets the cached session and re-enables lookups. Call it after the
// user signs in again.
func (r *Resolver) Reset() {
	r.cache.Delete(sessionCacheKey)
	r.unauthorized.Store(false)
}
