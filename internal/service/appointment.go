package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/pkordes/visit-tracker/internal/domain"
	"github.com/pkordes/visit-tracker/internal/repo"
)

// AppointmentService exposes the appointment reads and the single status
// write the travel flow needs.
type AppointmentService struct {
	repo repo.AppointmentRepo
}

// NewAppointmentService constructs an AppointmentService.
func NewAppointmentService(r repo.AppointmentRepo) *AppointmentService {
	return &AppointmentService{repo: r}
}

// GetByID returns an appointment with its leg-derived flags.
// Returns domain.ErrNotFound if it does not exist.
func (s *AppointmentService) GetByID(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Appointment{}, fmt.Errorf("service.AppointmentService.GetByID: %w", err)
	}
	return a, nil
}

// UpdateStatus moves the visit to status and returns the updated appointment.
// Returns domain.ErrValidation for an unknown status.
func (s *AppointmentService) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.AppointmentStatus) (domain.Appointment, error) {
	if !status.Valid() {
		return domain.Appointment{}, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, status)
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return domain.Appointment{}, fmt.Errorf("service.AppointmentService.UpdateStatus: %w", err)
	}
	return s.GetByID(ctx, id)
}
