package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/pkordes/visit-tracker/internal/domain"
)

// ErrorDetail is the body of every non-2xx response: {"error":{"code","message"}}.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps ErrorDetail.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// Error codes. The client maps these back to domain sentinels.
const (
	CodeNotFound               = "not_found"
	CodeLegNotFound            = "leg_not_found"
	CodeValidation             = "validation_error"
	CodeLegAlreadyCompleted    = "leg_already_completed"
	CodeLegInProgress          = "leg_in_progress"
	CodeAuthenticationRequired = "authentication_required"
	CodeInternal               = "internal_error"
)

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

// notFound writes a 404 for a missing resource.
// The caller supplies the human-readable message (e.g. "journey not found")
// because the handler is the layer that knows what was being looked up.
func notFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, CodeNotFound, message)
}

// badRequest writes a 422 for a request rejected before reaching the service
// layer (e.g. missing or malformed body).
func badRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnprocessableEntity, CodeValidation, message)
}

// serviceError maps a service error to its HTTP response. Unknown errors are
// logged and answered with a generic 500.
func (s *Server) serviceError(w http.ResponseWriter, r *http.Request, err error, what string) {
	switch {
	case errors.Is(err, domain.ErrLegNotFound):
		writeError(w, http.StatusNotFound, CodeLegNotFound, "leg not found")
	case errors.Is(err, domain.ErrNotFound):
		notFound(w, what+" not found")
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusUnprocessableEntity, CodeValidation, unwrapMessage(err))
	case errors.Is(err, domain.ErrLegAlreadyCompleted):
		writeError(w, http.StatusConflict, CodeLegAlreadyCompleted, "leg already completed")
	case errors.Is(err, domain.ErrLegInProgress):
		writeError(w, http.StatusConflict, CodeLegInProgress, "another leg is already in progress; complete it first")
	case errors.Is(err, domain.ErrAuthenticationRequired):
		writeError(w, http.StatusUnauthorized, CodeAuthenticationRequired, "authentication required")
	default:
		s.log.ErrorContext(r.Context(), "unhandled error", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, CodeInternal, "internal server error")
	}
}

// unwrapMessage extracts the human-readable part from a wrapped validation error.
// e.g. "service.LegService.Create: validation error: start coordinates out of range"
// becomes "start coordinates out of range".
func unwrapMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	prefix := domain.ErrValidation.Error() + ": "
	if i := strings.Index(msg, prefix); i >= 0 {
		return msg[i+len(prefix):]
	}
	return msg
}
