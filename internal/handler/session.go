package handler

import (
	"net/http"

	"github.com/pkordes/visit-tracker/internal/identity"
)

// GetSession handles GET /session.
// It reports the identity resolved from the session cookie or identity
// headers, or 401 when there is none.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	id := identity.FromContext(r.Context())
	if id.IsZero() {
		writeError(w, http.StatusUnauthorized, CodeAuthenticationRequired, "no session")
		return
	}
	writeJSON(w, http.StatusOK, id)
}
