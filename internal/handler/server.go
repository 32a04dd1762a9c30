// Package handler implements the HTTP handlers for the visit tracker API.
// All handlers are methods on Server. Methods are split into domain-specific
// files (health.go, leg.go, journey.go, etc.) but all share the same Server
// struct so they can access its dependencies.
package handler

import (
	"context"
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pkordes/visit-tracker/internal/domain"
)

// LegServicer defines the business operations the leg handlers depend on.
// Defining the interface here (in the consumer package) follows the Go
// convention: "accept interfaces, return concrete types". It lets handler
// tests inject a mock without touching the database or service layer.
type LegServicer interface {
	Create(ctx context.Context, who domain.Identity, in domain.NewLeg) (domain.TravelLeg, error)
	Complete(ctx context.Context, who domain.Identity, legID uuid.UUID, c domain.LegCompletion) (domain.TravelLeg, error)
	GetByID(ctx context.Context, who domain.Identity, id uuid.UUID) (domain.TravelLeg, error)
	Query(ctx context.Context, f domain.LegFilter, p domain.PaginationParams) ([]domain.TravelLeg, int64, error)
}

// JourneyServicer defines the journey read and export operations.
type JourneyServicer interface {
	GetDetail(ctx context.Context, id uuid.UUID) (domain.JourneyDetail, error)
	ListByUser(ctx context.Context, userID string, p domain.PaginationParams) ([]domain.Journey, int64, error)
	Export(ctx context.Context, id uuid.UUID) ([]domain.MileageRow, error)
}

// AppointmentServicer defines the appointment operations.
type AppointmentServicer interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.AppointmentStatus) (domain.Appointment, error)
}

// Server serves every API endpoint. Wire it in main.go via Routes.
type Server struct {
	legs     LegServicer
	journeys JourneyServicer
	appts    AppointmentServicer
	log      *slog.Logger
}

// NewServer constructs the Server with all its dependencies.
// Any servicer may be nil in tests that do not reach it.
func NewServer(legs LegServicer, journeys JourneyServicer, appts AppointmentServicer, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{legs: legs, journeys: journeys, appts: appts, log: log}
}

// NewHealthHandler returns a Server for health-check-only use.
func NewHealthHandler() *Server {
	return NewServer(nil, nil, nil, nil)
}

// Routes returns a chi router with every endpoint registered. Middleware is
// added by the caller.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	s.Mount(r)
	return r
}

// Mount registers every endpoint on r.
func (s *Server) Mount(r chi.Router) {
	r.Get("/healthz", s.GetHealth)
	r.Get("/session", s.GetSession)

	r.Route("/legs", func(r chi.Router) {
		r.Post("/", s.CreateLeg)
		r.Get("/", s.ListLegs)
		r.Get("/{legId}", s.GetLeg)
		r.Patch("/{legId}/complete", s.CompleteLeg)
	})

	r.Route("/journeys", func(r chi.Router) {
		r.Get("/", s.ListJourneys)
		r.Get("/{journeyId}", s.GetJourney)
		r.Get("/{journeyId}/export", s.ExportJourney)
	})

	r.Route("/appointments/{appointmentId}", func(r chi.Router) {
		r.Get("/", s.GetAppointment)
		r.Put("/status", s.UpdateAppointmentStatus)
	})
}
