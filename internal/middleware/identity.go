package middleware

import (
	"log/slog"
	"net/http"

	"github.com/pkordes/visit-tracker/internal/domain"
	"github.com/pkordes/visit-tracker/internal/identity"
)

// SessionParser verifies a session cookie value.
type SessionParser interface {
	Parse(token string) (domain.Identity, error)
}

// NewIdentityHandler attaches the caller's identity to the request context.
// Identity headers take precedence; otherwise the session cookie is used.
// Requests with neither pass through anonymously: the leg store can still
// infer an owner from the appointment.
func NewIdentityHandler(sessions SessionParser, cookieName string, log *slog.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := identity.FromHeaders(r.Header)
			if id.IsZero() {
				if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
					parsed, err := sessions.Parse(c.Value)
					if err != nil {
						log.DebugContext(r.Context(), "ignoring session cookie", "error", err)
					} else {
						id = parsed
					}
				}
			}
			if !id.IsZero() {
				r = r.WithContext(identity.WithIdentity(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	}
}
