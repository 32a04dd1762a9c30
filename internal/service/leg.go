// Package service contains the business logic for the visit tracker.
// Services validate inputs, enforce business rules, and orchestrate repo calls.
// No SQL lives here; services depend on repo interfaces, not implementations.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/visit-tracker/internal/domain"
	"github.com/pkordes/visit-tracker/internal/geo"
	"github.com/pkordes/visit-tracker/internal/repo"
)

// LegService implements the travel leg store: creating legs (minting a
// journey for the first leg of an outing), completing them with computed
// mileage, and querying them for state recovery.
type LegService struct {
	legs     repo.LegRepo
	journeys repo.JourneyRepo
	appts    repo.AppointmentRepo
	miles    geo.MileageCalculator
	log      *slog.Logger
	now      func() time.Time
}

// NewLegService constructs a LegService. A nil logger uses slog.Default.
func NewLegService(legs repo.LegRepo, journeys repo.JourneyRepo, appts repo.AppointmentRepo, miles geo.MileageCalculator, log *slog.Logger) *LegService {
	if log == nil {
		log = slog.Default()
	}
	return &LegService{
		legs:     legs,
		journeys: journeys,
		appts:    appts,
		miles:    miles,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create starts a new in-progress leg.
//
// The owner is who.UserID when known, otherwise the assigned user of the
// destination (then origin) appointment. With neither, it returns
// domain.ErrAuthenticationRequired. It returns domain.ErrLegInProgress when
// the owner still has an open leg: the caller must complete it first.
func (s *LegService) Create(ctx context.Context, who domain.Identity, in domain.NewLeg) (domain.TravelLeg, error) {
	if in.StartTimestamp.IsZero() {
		in.StartTimestamp = s.now()
	}
	if err := validateNewLeg(in); err != nil {
		return domain.TravelLeg{}, err
	}

	owner, err := s.resolveOwner(ctx, who, in.AppointmentIDTo, in.AppointmentIDFrom)
	if err != nil {
		return domain.TravelLeg{}, fmt.Errorf("service.LegService.Create: %w", err)
	}

	open, err := s.legs.List(ctx, domain.LegFilter{Status: domain.LegInProgress, UserID: owner})
	if err != nil {
		return domain.TravelLeg{}, fmt.Errorf("service.LegService.Create: %w", err)
	}
	if len(open) > 0 {
		return domain.TravelLeg{}, fmt.Errorf("service.LegService.Create: %w (leg %s)", domain.ErrLegInProgress, open[0].ID)
	}

	journeyID, err := s.journeyFor(ctx, owner, in)
	if err != nil {
		return domain.TravelLeg{}, fmt.Errorf("service.LegService.Create: %w", err)
	}

	leg, err := s.legs.Create(ctx, domain.TravelLeg{
		JourneyID:         journeyID,
		UserID:            owner,
		StartLatitude:     in.StartLatitude,
		StartLongitude:    in.StartLongitude,
		StartTimestamp:    in.StartTimestamp,
		StartLocationName: in.StartLocationName,
		StartLocationType: in.StartLocationType,
		AppointmentIDFrom: in.AppointmentIDFrom,
		AppointmentIDTo:   in.AppointmentIDTo,
		IsFinalLeg:        in.IsFinalLeg,
	})
	if err != nil {
		return domain.TravelLeg{}, fmt.Errorf("service.LegService.Create: %w", err)
	}

	if leg.AppointmentIDTo != nil {
		s.mirror(ctx, "drive_started", s.appts.MarkDriveStarted(ctx, *leg.AppointmentIDTo, leg.StartTimestamp))
	}
	if leg.AppointmentIDFrom != nil && leg.IsFinalLeg {
		s.mirror(ctx, "return_started", s.appts.MarkReturnStarted(ctx, *leg.AppointmentIDFrom, leg.StartTimestamp))
	}

	s.log.InfoContext(ctx, "leg started",
		"leg_id", leg.ID, "journey_id", leg.JourneyID, "user_id", owner, "final", leg.IsFinalLeg)
	return leg, nil
}

// Complete finishes an in-progress leg and returns it with its mileage.
// Returns domain.ErrLegNotFound for an unknown leg (or one owned by someone
// else) and domain.ErrLegAlreadyCompleted for a leg that is already done.
func (s *LegService) Complete(ctx context.Context, who domain.Identity, legID uuid.UUID, c domain.LegCompletion) (domain.TravelLeg, error) {
	if c.EndTimestamp.IsZero() {
		c.EndTimestamp = s.now()
	}
	if err := validateCompletion(c); err != nil {
		return domain.TravelLeg{}, err
	}

	leg, err := s.legs.GetByID(ctx, legID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.TravelLeg{}, fmt.Errorf("service.LegService.Complete: %w", domain.ErrLegNotFound)
		}
		return domain.TravelLeg{}, fmt.Errorf("service.LegService.Complete: %w", err)
	}
	if !who.IsZero() && who.UserID != leg.UserID {
		return domain.TravelLeg{}, fmt.Errorf("service.LegService.Complete: %w", domain.ErrLegNotFound)
	}
	if leg.Status == domain.LegCompleted {
		return domain.TravelLeg{}, fmt.Errorf("service.LegService.Complete: %w", domain.ErrLegAlreadyCompleted)
	}
	if c.EndTimestamp.Before(leg.StartTimestamp) {
		return domain.TravelLeg{}, fmt.Errorf("%w: end_timestamp must not be before start_timestamp", domain.ErrValidation)
	}

	miles, err := s.miles.Miles(ctx, leg.Start(), c.End())
	if err != nil {
		return domain.TravelLeg{}, fmt.Errorf("service.LegService.Complete: mileage: %w", err)
	}

	done, err := s.legs.Complete(ctx, legID, c, miles)
	if err != nil {
		return domain.TravelLeg{}, fmt.Errorf("service.LegService.Complete: %w", err)
	}

	if done.AppointmentIDTo != nil {
		s.mirror(ctx, "arrived", s.appts.MarkArrived(ctx, *done.AppointmentIDTo, c.EndTimestamp))
	}
	if done.IsFinalLeg {
		if done.AppointmentIDFrom != nil {
			s.mirror(ctx, "return_completed", s.appts.MarkReturnCompleted(ctx, *done.AppointmentIDFrom, miles))
		}
		if _, err := s.journeys.Close(ctx, done.JourneyID, c.EndTimestamp); err != nil {
			s.mirror(ctx, "journey_closed", err)
		}
	}

	s.log.InfoContext(ctx, "leg completed",
		"leg_id", done.ID, "journey_id", done.JourneyID, "miles", miles, "final", done.IsFinalLeg)
	return done, nil
}

// GetByID returns a single leg. Returns domain.ErrNotFound if it does not
// exist and domain.ErrLegNotFound if a known caller does not own it.
func (s *LegService) GetByID(ctx context.Context, who domain.Identity, id uuid.UUID) (domain.TravelLeg, error) {
	leg, err := s.legs.GetByID(ctx, id)
	if err != nil {
		return domain.TravelLeg{}, fmt.Errorf("service.LegService.GetByID: %w", err)
	}
	if !who.IsZero() && who.UserID != leg.UserID {
		return domain.TravelLeg{}, fmt.Errorf("service.LegService.GetByID: %w", domain.ErrLegNotFound)
	}
	return leg, nil
}

// Query returns one page of legs matching f, most recent first, plus the
// total match count. Always returns a non-nil slice.
func (s *LegService) Query(ctx context.Context, f domain.LegFilter, p domain.PaginationParams) ([]domain.TravelLeg, int64, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, f.Status)
	}
	legs, total, err := s.legs.ListPaged(ctx, f, p)
	if err != nil {
		return nil, 0, fmt.Errorf("service.LegService.Query: %w", err)
	}
	if legs == nil {
		legs = []domain.TravelLeg{}
	}
	return legs, total, nil
}

// resolveOwner picks who the leg belongs to. Appointment ids are tried in
// the order given; the first one with an assigned user wins.
func (s *LegService) resolveOwner(ctx context.Context, who domain.Identity, appointmentIDs ...*uuid.UUID) (string, error) {
	if !who.IsZero() {
		return who.UserID, nil
	}
	for _, id := range appointmentIDs {
		if id == nil {
			continue
		}
		appt, err := s.appts.GetByID(ctx, *id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return "", fmt.Errorf("%w: appointment %s not found", domain.ErrValidation, *id)
			}
			return "", err
		}
		if appt.AssignedUserID != "" {
			s.log.DebugContext(ctx, "leg owner inferred from appointment",
				"appointment_id", appt.ID, "user_id", appt.AssignedUserID)
			return appt.AssignedUserID, nil
		}
	}
	return "", domain.ErrAuthenticationRequired
}

// journeyFor returns the open journey the new leg continues. uuid.Nil means
// the caller did not carry one forward and the repo mints it with the leg.
func (s *LegService) journeyFor(ctx context.Context, owner string, in domain.NewLeg) (uuid.UUID, error) {
	if in.JourneyID == nil {
		return uuid.Nil, nil
	}

	j, err := s.journeys.GetByID(ctx, *in.JourneyID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return uuid.Nil, fmt.Errorf("%w: journey %s not found", domain.ErrValidation, *in.JourneyID)
		}
		return uuid.Nil, err
	}
	if j.UserID != owner {
		return uuid.Nil, fmt.Errorf("%w: journey %s belongs to another user", domain.ErrValidation, j.ID)
	}
	if j.EndedAt != nil {
		return uuid.Nil, fmt.Errorf("%w: journey %s has already ended", domain.ErrValidation, j.ID)
	}
	return j.ID, nil
}

// mirror logs a failed write to the legacy appointment columns. The legs are
// authoritative, so such failures never fail the request.
func (s *LegService) mirror(ctx context.Context, what string, err error) {
	if err != nil {
		s.log.WarnContext(ctx, "legacy appointment mirror failed", "field", what, "error", err)
	}
}

// validateNewLeg enforces the rules for leg creation.
//   - Start coordinates must be in range.
//   - Location type, if set, must be known.
//   - A leg cannot depart from and arrive at the same appointment.
func validateNewLeg(in domain.NewLeg) error {
	start := domain.Point{Latitude: in.StartLatitude, Longitude: in.StartLongitude}
	if !start.Valid() {
		return fmt.Errorf("%w: start coordinates out of range", domain.ErrValidation)
	}
	if !validLocationType(in.StartLocationType) {
		return fmt.Errorf("%w: unknown start_location_type %q", domain.ErrValidation, in.StartLocationType)
	}
	if in.AppointmentIDFrom != nil && in.AppointmentIDTo != nil && *in.AppointmentIDFrom == *in.AppointmentIDTo {
		return fmt.Errorf("%w: appointment_id_from and appointment_id_to must differ", domain.ErrValidation)
	}
	return nil
}

func validateCompletion(c domain.LegCompletion) error {
	if !c.End().Valid() {
		return fmt.Errorf("%w: end coordinates out of range", domain.ErrValidation)
	}
	if !validLocationType(c.EndLocationType) {
		return fmt.Errorf("%w: unknown end_location_type %q", domain.ErrValidation, c.EndLocationType)
	}
	return nil
}

func validLocationType(t domain.LocationType) bool {
	switch t {
	case "", domain.LocationOffice, domain.LocationAppointment, domain.LocationHome:
		return true
	}
	return false
}
