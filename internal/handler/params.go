package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime"

	"github.com/pkordes/visit-tracker/internal/domain"
)

// pathUUID binds the named chi path parameter as a UUID.
func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	var id uuid.UUID
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s: must be a UUID", name)
	}
	return id, nil
}

// queryParam binds an optional form-style query parameter into dest.
func queryParam(r *http.Request, name string, dest any) error {
	if err := runtime.BindQueryParameter("form", true, false, name, r.URL.Query(), dest); err != nil {
		return fmt.Errorf("invalid %s", name)
	}
	return nil
}

// pagination reads ?page= and ?limit= (defaults: page=1, limit=20, max=100).
func pagination(r *http.Request) (domain.PaginationParams, error) {
	var page, limit *int
	if err := queryParam(r, "page", &page); err != nil {
		return domain.PaginationParams{}, err
	}
	if err := queryParam(r, "limit", &limit); err != nil {
		return domain.PaginationParams{}, err
	}
	return domain.NewPaginationParams(page, limit), nil
}

// Pagination is the paging block of list responses.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

func paginationOf(p domain.PaginationParams, total int64) Pagination {
	return Pagination{Page: p.Page, Limit: p.Limit, Total: int(total)}
}

// decodeBody decodes a JSON request body into dest, rejecting unknown fields.
func decodeBody(r *http.Request, dest any) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errBodyTooLarge
		}
		return fmt.Errorf("malformed request body: %v", err)
	}
	return nil
}

var errBodyTooLarge = errors.New("request body too large")

// rejectBody answers a decodeBody failure.
func rejectBody(w http.ResponseWriter, err error) {
	if errors.Is(err, errBodyTooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "request_too_large", err.Error())
		return
	}
	badRequest(w, err.Error())
}

// derefString safely dereferences a *string, returning "" when nil.
func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// nilIfEmpty converts an empty string to a nil pointer.
// Used when mapping domain strings to optional response fields.
func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
