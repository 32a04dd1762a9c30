// Package client is the tracker's view of the API: it implements the leg
// store, the appointment store and the session lookup over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/visit-tracker/internal/domain"
	"github.com/pkordes/visit-tracker/internal/handler"
	"github.com/pkordes/visit-tracker/internal/identity"
	"github.com/pkordes/visit-tracker/internal/journey"
)

// DefaultTimeout bounds one request when New is given no *http.Client.
const DefaultTimeout = 10 * time.Second

// pageSize is the largest page the API serves.
const pageSize = 100

// Client talks to the visit tracker API.
type Client struct {
	base string
	http *http.Client
}

var (
	_ journey.LegStore         = (*Client)(nil)
	_ journey.AppointmentStore = (*Client)(nil)
	_ identity.SessionLookup   = (*Client)(nil)
)

// New returns a Client for the API rooted at baseURL. hc carries the session
// cookie jar; nil uses a plain client with DefaultTimeout.
func New(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{base: strings.TrimRight(baseURL, "/"), http: hc}
}

// APIError is a non-2xx answer. Unwrap yields the domain sentinel its code
// maps to, so callers compare with errors.Is.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: %d %s", e.Status, e.Code)
	}
	return fmt.Sprintf("api: %d %s: %s", e.Status, e.Code, e.Message)
}

// Unwrap maps the error code (or, without one, the status) to a sentinel.
func (e *APIError) Unwrap() error {
	switch e.Code {
	case handler.CodeLegNotFound:
		return domain.ErrLegNotFound
	case handler.CodeNotFound:
		return domain.ErrNotFound
	case handler.CodeValidation:
		return domain.ErrValidation
	case handler.CodeLegAlreadyCompleted:
		return domain.ErrLegAlreadyCompleted
	case handler.CodeLegInProgress:
		return domain.ErrLegInProgress
	case handler.CodeAuthenticationRequired:
		return domain.ErrAuthenticationRequired
	}
	switch e.Status {
	case http.StatusUnauthorized:
		return domain.ErrAuthenticationRequired
	case http.StatusNotFound:
		return domain.ErrNotFound
	}
	return nil
}

// CreateLeg starts a leg and returns its id and journey id.
func (c *Client) CreateLeg(ctx context.Context, who domain.Identity, in domain.NewLeg) (domain.LegRef, error) {
	body := handler.CreateLegRequest{
		StartLatitude:     &in.StartLatitude,
		StartLongitude:    &in.StartLongitude,
		StartLocationName: optional(in.StartLocationName),
		StartLocationType: optional(string(in.StartLocationType)),
		AppointmentIDFrom: in.AppointmentIDFrom,
		AppointmentIDTo:   in.AppointmentIDTo,
		JourneyID:         in.JourneyID,
		IsFinalLeg:        in.IsFinalLeg,
	}
	if !in.StartTimestamp.IsZero() {
		body.StartTimestamp = &in.StartTimestamp
	}

	var resp handler.CreateLegResponse
	if err := c.do(ctx, http.MethodPost, "/legs", who, body, &resp); err != nil {
		return domain.LegRef{}, fmt.Errorf("client.CreateLeg: %w", err)
	}
	return domain.LegRef{LegID: resp.LegID, JourneyID: resp.JourneyID}, nil
}

// CompleteLeg finishes a leg and returns its computed mileage.
func (c *Client) CompleteLeg(ctx context.Context, who domain.Identity, legID uuid.UUID, lc domain.LegCompletion) (float64, error) {
	body := handler.CompleteLegRequest{
		EndLatitude:     &lc.EndLatitude,
		EndLongitude:    &lc.EndLongitude,
		EndLocationName: optional(lc.EndLocationName),
		EndLocationType: optional(string(lc.EndLocationType)),
		IsFinalLeg:      lc.IsFinalLeg,
	}
	if !lc.EndTimestamp.IsZero() {
		body.EndTimestamp = &lc.EndTimestamp
	}

	var resp handler.CompleteLegResponse
	if err := c.do(ctx, http.MethodPatch, "/legs/"+legID.String()+"/complete", who, body, &resp); err != nil {
		return 0, fmt.Errorf("client.CompleteLeg: %w", err)
	}
	return resp.CalculatedMileage, nil
}

// QueryLegs returns every leg matching the status and appointment filters,
// reading as many pages as the total requires. The user and journey fields of
// f are not sent; the API does not filter on them.
func (c *Client) QueryLegs(ctx context.Context, f domain.LegFilter) ([]domain.TravelLeg, error) {
	q := url.Values{}
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	if f.AppointmentID != nil {
		q.Set("appointment_id", f.AppointmentID.String())
	}
	q.Set("limit", strconv.Itoa(pageSize))

	legs := []domain.TravelLeg{}
	for page := 1; ; page++ {
		q.Set("page", strconv.Itoa(page))
		var resp handler.LegList
		if err := c.do(ctx, http.MethodGet, "/legs?"+q.Encode(), domain.Identity{}, nil, &resp); err != nil {
			return nil, fmt.Errorf("client.QueryLegs: %w", err)
		}
		for _, l := range resp.Data {
			legs = append(legs, legFromResponse(l))
		}
		if len(resp.Data) == 0 || len(legs) >= resp.Pagination.Total {
			return legs, nil
		}
	}
}

// GetAppointment reads an appointment with its leg-derived flags.
func (c *Client) GetAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	var resp handler.Appointment
	if err := c.do(ctx, http.MethodGet, "/appointments/"+id.String(), domain.Identity{}, nil, &resp); err != nil {
		return domain.Appointment{}, fmt.Errorf("client.GetAppointment: %w", err)
	}
	return appointmentFromResponse(resp), nil
}

// UpdateAppointmentStatus moves the appointment's visit status.
func (c *Client) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, status domain.AppointmentStatus) error {
	body := handler.UpdateStatusRequest{Status: string(status)}
	if err := c.do(ctx, http.MethodPut, "/appointments/"+id.String()+"/status", domain.Identity{}, body, nil); err != nil {
		return fmt.Errorf("client.UpdateAppointmentStatus: %w", err)
	}
	return nil
}

// Session asks who the session cookie belongs to.
func (c *Client) Session(ctx context.Context) (domain.Identity, error) {
	var id domain.Identity
	if err := c.do(ctx, http.MethodGet, "/session", domain.Identity{}, nil, &id); err != nil {
		return domain.Identity{}, fmt.Errorf("client.Session: %w", err)
	}
	return id, nil
}

// do sends one JSON request. who, when known, rides along as identity
// headers. A nil out discards the response body.
func (c *Client) do(ctx context.Context, method, path string, who domain.Identity, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	identity.SetHeaders(req.Header, who)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var body handler.ErrorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err == nil {
		apiErr.Code = body.Error.Code
		apiErr.Message = body.Error.Message
	}
	return apiErr
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func legFromResponse(l handler.Leg) domain.TravelLeg {
	return domain.TravelLeg{
		ID:                l.ID,
		JourneyID:         l.JourneyID,
		UserID:            l.UserID,
		StartLatitude:     l.StartLatitude,
		StartLongitude:    l.StartLongitude,
		StartTimestamp:    l.StartTimestamp,
		StartLocationName: deref(l.StartLocationName),
		StartLocationType: domain.LocationType(deref(l.StartLocationType)),
		AppointmentIDFrom: l.AppointmentIDFrom,
		AppointmentIDTo:   l.AppointmentIDTo,
		EndLatitude:       l.EndLatitude,
		EndLongitude:      l.EndLongitude,
		EndTimestamp:      l.EndTimestamp,
		EndLocationName:   deref(l.EndLocationName),
		EndLocationType:   domain.LocationType(deref(l.EndLocationType)),
		CalculatedMileage: l.CalculatedMileage,
		Status:            domain.LegStatus(l.LegStatus),
		IsFinalLeg:        l.IsFinalLeg,
		CreatedAt:         l.CreatedAt,
		UpdatedAt:         l.UpdatedAt,
	}
}

func appointmentFromResponse(a handler.Appointment) domain.Appointment {
	return domain.Appointment{
		ID:                     a.ID,
		AssignedUserID:         a.AssignedUserID,
		ChildName:              a.ChildName,
		Address:                a.Address,
		ScheduledAt:            a.ScheduledAt,
		Status:                 domain.AppointmentStatus(a.Status),
		StartDriveTimestamp:    a.StartDriveTimestamp,
		ArrivedTimestamp:       a.ArrivedTimestamp,
		ReturnTimestamp:        a.ReturnTimestamp,
		ReturnMileage:          a.ReturnMileage,
		HasInProgressLeg:       a.HasInProgressLeg,
		HasCompletedLeg:        a.HasCompletedLeg,
		HasInProgressReturnLeg: a.HasInProgressReturnLeg,
		ReturnLegID:            a.ReturnLegID,
		CreatedAt:              a.CreatedAt,
		UpdatedAt:              a.UpdatedAt,
	}
}
