package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/visit-tracker/internal/domain"
	"github.com/pkordes/visit-tracker/internal/identity"
)

// Leg is the JSON representation of a travel leg.
type Leg struct {
	ID                uuid.UUID  `json:"id"`
	JourneyID         uuid.UUID  `json:"journey_id"`
	UserID            string     `json:"user_id"`
	StartLatitude     float64    `json:"start_latitude"`
	StartLongitude    float64    `json:"start_longitude"`
	StartTimestamp    time.Time  `json:"start_timestamp"`
	StartLocationName *string    `json:"start_location_name,omitempty"`
	StartLocationType *string    `json:"start_location_type,omitempty"`
	AppointmentIDFrom *uuid.UUID `json:"appointment_id_from"`
	AppointmentIDTo   *uuid.UUID `json:"appointment_id_to"`
	EndLatitude       *float64   `json:"end_latitude"`
	EndLongitude      *float64   `json:"end_longitude"`
	EndTimestamp      *time.Time `json:"end_timestamp"`
	EndLocationName   *string    `json:"end_location_name,omitempty"`
	EndLocationType   *string    `json:"end_location_type,omitempty"`
	CalculatedMileage *float64   `json:"calculated_mileage"`
	LegStatus         string     `json:"leg_status"`
	IsFinalLeg        bool       `json:"is_final_leg"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// CreateLegRequest is the body of POST /legs.
type CreateLegRequest struct {
	StartLatitude     *float64   `json:"start_latitude"`
	StartLongitude    *float64   `json:"start_longitude"`
	StartTimestamp    *time.Time `json:"start_timestamp,omitempty"`
	StartLocationName *string    `json:"start_location_name,omitempty"`
	StartLocationType *string    `json:"start_location_type,omitempty"`
	AppointmentIDFrom *uuid.UUID `json:"appointment_id_from,omitempty"`
	AppointmentIDTo   *uuid.UUID `json:"appointment_id_to,omitempty"`
	JourneyID         *uuid.UUID `json:"journey_id,omitempty"`
	IsFinalLeg        bool       `json:"is_final_leg,omitempty"`
}

// CreateLegResponse is the 201 body of POST /legs.
type CreateLegResponse struct {
	LegID     uuid.UUID `json:"leg_id"`
	JourneyID uuid.UUID `json:"journey_id"`
	Leg       Leg       `json:"leg"`
}

// CompleteLegRequest is the body of PATCH /legs/{legId}/complete.
type CompleteLegRequest struct {
	EndLatitude     *float64   `json:"end_latitude"`
	EndLongitude    *float64   `json:"end_longitude"`
	EndTimestamp    *time.Time `json:"end_timestamp,omitempty"`
	EndLocationName *string    `json:"end_location_name,omitempty"`
	EndLocationType *string    `json:"end_location_type,omitempty"`
	IsFinalLeg      bool       `json:"is_final_leg,omitempty"`
}

// CompleteLegResponse is the 200 body of PATCH /legs/{legId}/complete.
type CompleteLegResponse struct {
	CalculatedMileage float64 `json:"calculated_mileage"`
	Leg               Leg     `json:"leg"`
}

// LegList is the body of GET /legs.
type LegList struct {
	Data       []Leg      `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// CreateLeg handles POST /legs.
func (s *Server) CreateLeg(w http.ResponseWriter, r *http.Request) {
	var body CreateLegRequest
	if err := decodeBody(r, &body); err != nil {
		rejectBody(w, err)
		return
	}
	if body.StartLatitude == nil || body.StartLongitude == nil {
		badRequest(w, "start_latitude and start_longitude are required")
		return
	}

	in := domain.NewLeg{
		StartLatitude:     *body.StartLatitude,
		StartLongitude:    *body.StartLongitude,
		StartLocationName: derefString(body.StartLocationName),
		StartLocationType: domain.LocationType(derefString(body.StartLocationType)),
		AppointmentIDFrom: body.AppointmentIDFrom,
		AppointmentIDTo:   body.AppointmentIDTo,
		JourneyID:         body.JourneyID,
		IsFinalLeg:        body.IsFinalLeg,
	}
	if body.StartTimestamp != nil {
		in.StartTimestamp = body.StartTimestamp.UTC()
	}

	leg, err := s.legs.Create(r.Context(), identity.FromContext(r.Context()), in)
	if err != nil {
		s.serviceError(w, r, err, "leg")
		return
	}
	writeJSON(w, http.StatusCreated, CreateLegResponse{LegID: leg.ID, JourneyID: leg.JourneyID, Leg: legToResponse(leg)})
}

// CompleteLeg handles PATCH /legs/{legId}/complete.
func (s *Server) CompleteLeg(w http.ResponseWriter, r *http.Request) {
	legID, err := pathUUID(r, "legId")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	var body CompleteLegRequest
	if err := decodeBody(r, &body); err != nil {
		rejectBody(w, err)
		return
	}
	if body.EndLatitude == nil || body.EndLongitude == nil {
		badRequest(w, "end_latitude and end_longitude are required")
		return
	}

	c := domain.LegCompletion{
		EndLatitude:     *body.EndLatitude,
		EndLongitude:    *body.EndLongitude,
		EndLocationName: derefString(body.EndLocationName),
		EndLocationType: domain.LocationType(derefString(body.EndLocationType)),
		IsFinalLeg:      body.IsFinalLeg,
	}
	if body.EndTimestamp != nil {
		c.EndTimestamp = body.EndTimestamp.UTC()
	}

	leg, err := s.legs.Complete(r.Context(), identity.FromContext(r.Context()), legID, c)
	if err != nil {
		s.serviceError(w, r, err, "leg")
		return
	}
	var miles float64
	if leg.CalculatedMileage != nil {
		miles = *leg.CalculatedMileage
	}
	writeJSON(w, http.StatusOK, CompleteLegResponse{CalculatedMileage: miles, Leg: legToResponse(leg)})
}

// GetLeg handles GET /legs/{legId}. A caller with an identity only sees
// their own legs; anyone else's answers 404 leg_not_found.
func (s *Server) GetLeg(w http.ResponseWriter, r *http.Request) {
	legID, err := pathUUID(r, "legId")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	leg, err := s.legs.GetByID(r.Context(), identity.FromContext(r.Context()), legID)
	if err != nil {
		s.serviceError(w, r, err, "leg")
		return
	}
	writeJSON(w, http.StatusOK, legToResponse(leg))
}

// ListLegs handles GET /legs.
// Supports ?status=, ?appointment_id=, ?page= and ?limit=. The appointment
// filter matches legs departing from or arriving at the appointment.
func (s *Server) ListLegs(w http.ResponseWriter, r *http.Request) {
	var (
		status        *string
		appointmentID *uuid.UUID
	)
	if err := queryParam(r, "status", &status); err != nil {
		badRequest(w, err.Error())
		return
	}
	if err := queryParam(r, "appointment_id", &appointmentID); err != nil {
		badRequest(w, err.Error())
		return
	}
	params, err := pagination(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	f := domain.LegFilter{
		Status:        domain.LegStatus(derefString(status)),
		AppointmentID: appointmentID,
	}
	legs, total, err := s.legs.Query(r.Context(), f, params)
	if err != nil {
		s.serviceError(w, r, err, "leg")
		return
	}

	data := make([]Leg, len(legs))
	for i, l := range legs {
		data[i] = legToResponse(l)
	}
	writeJSON(w, http.StatusOK, LegList{Data: data, Pagination: paginationOf(params, total)})
}

// legToResponse converts a domain.TravelLeg to its JSON representation.
// Empty descriptive strings are omitted rather than sent as "".
func legToResponse(l domain.TravelLeg) Leg {
	return Leg{
		ID:                l.ID,
		JourneyID:         l.JourneyID,
		UserID:            l.UserID,
		StartLatitude:     l.StartLatitude,
		StartLongitude:    l.StartLongitude,
		StartTimestamp:    l.StartTimestamp,
		StartLocationName: nilIfEmpty(l.StartLocationName),
		StartLocationType: nilIfEmpty(string(l.StartLocationType)),
		AppointmentIDFrom: l.AppointmentIDFrom,
		AppointmentIDTo:   l.AppointmentIDTo,
		EndLatitude:       l.EndLatitude,
		EndLongitude:      l.EndLongitude,
		EndTimestamp:      l.EndTimestamp,
		EndLocationName:   nilIfEmpty(l.EndLocationName),
		EndLocationType:   nilIfEmpty(string(l.EndLocationType)),
		CalculatedMileage: l.CalculatedMileage,
		LegStatus:         string(l.Status),
		IsFinalLeg:        l.IsFinalLeg,
		CreatedAt:         l.CreatedAt,
		UpdatedAt:         l.UpdatedAt,
	}
}
