package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/visit-tracker/internal/domain"
	"github.com/pkordes/visit-tracker/internal/identity"
)

// Journey is the JSON representation of a journey.
type Journey struct {
	ID        uuid.UUID  `json:"id"`
	UserID    string     `json:"user_id"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// JourneyDetail is the body of GET /journeys/{journeyId}.
type JourneyDetail struct {
	Journey
	Legs         []Leg   `json:"legs"`
	TotalMileage float64 `json:"total_mileage"`
}

// JourneyList is the body of GET /journeys.
type JourneyList struct {
	Data       []Journey  `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// ListJourneys handles GET /journeys.
// Lists the caller's journeys, most recent first. Requires an identity.
func (s *Server) ListJourneys(w http.ResponseWriter, r *http.Request) {
	params, err := pagination(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	who := identity.FromContext(r.Context())
	journeys, total, err := s.journeys.ListByUser(r.Context(), who.UserID, params)
	if err != nil {
		s.serviceError(w, r, err, "journey")
		return
	}

	data := make([]Journey, len(journeys))
	for i, j := range journeys {
		data[i] = journeyToResponse(j)
	}
	writeJSON(w, http.StatusOK, JourneyList{Data: data, Pagination: paginationOf(params, total)})
}

// GetJourney handles GET /journeys/{journeyId}.
func (s *Server) GetJourney(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "journeyId")
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	detail, err := s.journeys.GetDetail(r.Context(), id)
	if err != nil {
		s.serviceError(w, r, err, "journey")
		return
	}

	legs := make([]Leg, len(detail.Legs))
	for i, l := range detail.Legs {
		legs[i] = legToResponse(l)
	}
	writeJSON(w, http.StatusOK, JourneyDetail{
		Journey:      journeyToResponse(detail.Journey),
		Legs:         legs,
		TotalMileage: detail.TotalMileage,
	})
}

func journeyToResponse(j domain.Journey) Journey {
	return Journey{
		ID:        j.ID,
		UserID:    j.UserID,
		StartedAt: j.StartedAt,
		EndedAt:   j.EndedAt,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
}
