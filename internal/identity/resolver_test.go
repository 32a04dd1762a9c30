package identity_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pkordes/visit-tracker/internal/domain"
	"github.com/pkordes/visit-tracker/internal/identity"
)

// stubLookup is a SessionLookup that counts calls.
type stubLookup struct {
	id    domain.Identity
	err   error
	calls int
}

func (s *stubLookup) Session(context.Context) (domain.Identity, error) {
	s.calls++
	return s.id, s.err
}

func fixed(id domain.Identity) identity.Source {
	return identity.SourceFunc(func(context.Context) (domain.Identity, error) { return id, nil })
}

var (
	fromSession  = domain.Identity{UserID: "user_session"}
	fromProvider = domain.Identity{UserID: "user_provider"}
	fromHook     = domain.Identity{UserID: "user_hook"}
)

func TestResolver_SessionWins(t *testing.T) {
	lookup := &stubLookup{id: fromSession}
	r := identity.NewResolver(lookup, nil, fixed(fromProvider), fixed(fromHook))

	assert.Equal(t, fromSession, r.Resolve(context.Background()))
	assert.Equal(t, fromSession, r.Resolve(context.Background()))
	assert.Equal(t, 1, lookup.calls, "a found session is cached")
}

func TestResolver_FallsThroughInOrder(t *testing.T) {
	r := identity.NewResolver(&stubLookup{}, nil, fixed(domain.Identity{}), fixed(fromHook))

	assert.Equal(t, fromHook, r.Resolve(context.Background()))
}

func TestResolver_ProviderBeforeHook(t *testing.T) {
	r := identity.NewResolver(nil, nil, fixed(fromProvider), fixed(fromHook))

	assert.Equal(t, fromProvider, r.Resolve(context.Background()))
}

func TestResolver_SourceErrorIsSkipped(t *testing.T) {
	broken := identity.SourceFunc(func(context.Context) (domain.Identity, error) {
		return domain.Identity{}, errors.New("provider not hydrated")
	})
	r := identity.NewResolver(nil, nil, broken, fixed(fromHook))

	assert.Equal(t, fromHook, r.Resolve(context.Background()))
}

func TestResolver_EmptyIsAllowed(t *testing.T) {
	r := identity.NewResolver(&stubLookup{}, nil)

	assert.True(t, r.Resolve(context.Background()).IsZero())
}

func TestResolver_UnauthorizedStopsLookups(t *testing.T) {
	lookup := &stubLookup{err: domain.ErrAuthenticationRequired}
	r := identity.NewResolver(lookup, nil, fixed(fromProvider))

	for i := 0; i < 5; i++ {
		assert.Equal(t, fromProvider, r.Resolve(context.Background()))
	}
	assert.Equal(t, 1, lookup.calls)
	assert.True(t, r.Unauthorized())

	lookup.err = nil
	lookup.id = fromSession
	r.Reset()

	assert.Equal(t, fromSession, r.Resolve(context.Background()))
	assert.Equal(t, 2, lookup.calls)
}

func TestResolver_TransientLookupErrorRetries(t *testing.T) {
	lookup := &stubLookup{err: errors.New("network down")}
	r := identity.NewResolver(lookup, nil)

	r.Resolve(context.Background())
	r.Resolve(context.Background())

	assert.Equal(t, 2, lookup.calls)
	assert.False(t, r.Unauthorized())
}

func TestHeaders_RoundTrip(t *testing.T) {
	h := http.Header{}
	want := domain.Identity{UserID: "user_alice", Email: "alice@example.org", Name: "Alice"}

	identity.SetHeaders(h, want)

	assert.Equal(t, want, identity.FromHeaders(h))
}

func TestFromHeaders_RequiresUserID(t *testing.T) {
	h := http.Header{}
	h.Set(identity.HeaderEmail, "alice@example.org")

	assert.True(t, identity.FromHeaders(h).IsZero())
	assert.Equal(t, domain.Identity{}, identity.FromHeaders(h))
}

func TestContext_RoundTrip(t *testing.T) {
	ctx := identity.WithIdentity(context.Background(), fromSession)

	assert.Equal(t, fromSession, identity.FromContext(ctx))
	assert.True(t, identity.FromContext(context.Background()).IsZero())
}
