// Package middleware provides reusable HTTP middleware for the visit tracker API.
package middleware

import (
	"net/http"

	"github.com/rs/cors"

	"github.com/pkordes/visit-tracker/internal/identity"
)

// NewCORSHandler returns a middleware that applies CORS headers based on allowedOrigins.
// Each entry in allowedOrigins must be a full origin (scheme + host, no trailing slash).
// Credentials are allowed so the browser sends the session cookie cross-origin.
func NewCORSHandler(allowedOrigins []string) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{
			"Content-Type", "Authorization",
			identity.HeaderUserID, identity.HeaderEmail, identity.HeaderName,
		},
		ExposedHeaders:   []string{"X-Total-Count"},
		AllowCredentials: true,
	})
	return func(next http.Handler) http.Handler {
		return c.Handler(next)
	}
}
