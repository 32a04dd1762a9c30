// Package identity resolves who is making a leg-mutating call.
//
// On the server an identity arrives as request headers or as an httpOnly
// session cookie holding a signed token. On the client a Resolver assembles a
// best-effort identity from several sources, because session hydration on
// mobile is unreliable. An empty identity is always allowed: the leg store
// then infers the owner from the appointment.
package identity

import (
	"context"
	"net/http"

	"github.com/pkordes/visit-tracker/internal/domain"
)

// Header names carrying a caller-supplied identity.
const (
	HeaderUserID = "X-User-Id"
	HeaderEmail  = "X-User-Email"
	HeaderName   = "X-User-Name"
)

type ctxKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id domain.Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored by WithIdentity, or the zero
// Identity if there is none.
func FromContext(ctx context.Context) domain.Identity {
	id, _ := ctx.Value(ctxKey{}).(domain.Identity)
	return id
}

// FromHeaders reads an identity from request headers. A missing user id
// yields the zero Identity even when email or name are present.
func FromHeaders(h http.Header) domain.Identity {
	id := domain.Identity{
		UserID: h.Get(HeaderUserID),
		Email:  h.Get(HeaderEmail),
		Name:   h.Get(HeaderName),
	}
	if id.IsZero() {
		return domain.Identity{}
	}
	return id
}

// SetHeaders writes id onto h. The zero Identity writes nothing.
func SetHeaders(h http.Header, id domain.Identity) {
	if id.IsZero() {
		return
	}
	h.Set(HeaderUserID, id.UserID)
	if id.Email != "" {
		h.Set(HeaderEmail, id.Email)
	}
	if id.Name != "" {
		h.Set(HeaderName, id.Name)
	}
}
