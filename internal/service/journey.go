package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/pkordes/visit-tracker/internal/domain"
	"github.com/pkordes/visit-tracker/internal/repo"
)

// JourneyService implements read-side operations on journeys.
type JourneyService struct {
	journeys repo.JourneyRepo
	legs     repo.LegRepo
}

// NewJourneyService constructs a JourneyService backed by the provided repos.
func NewJourneyService(journeys repo.JourneyRepo, legs repo.LegRepo) *JourneyService {
	return &JourneyService{journeys: journeys, legs: legs}
}

// GetDetail returns a journey, its legs in travel order and the summed
// mileage of its completed legs.
// Returns domain.ErrNotFound if the journey does not exist.
func (s *JourneyService) GetDetail(ctx context.Context, id uuid.UUID) (domain.JourneyDetail, error) {
	j, err := s.journeys.GetByID(ctx, id)
	if err != nil {
		return domain.JourneyDetail{}, fmt.Errorf("service.JourneyService.GetDetail: %w", err)
	}
	legs, err := s.legs.List(ctx, domain.LegFilter{JourneyID: &id})
	if err != nil {
		return domain.JourneyDetail{}, fmt.Errorf("service.JourneyService.GetDetail: %w", err)
	}
	if legs == nil {
		legs = []domain.TravelLeg{}
	}

	var total float64
	for _, l := range legs {
		if l.CalculatedMileage != nil {
			total += *l.CalculatedMileage
		}
	}
	return domain.JourneyDetail{Journey: j, Legs: legs, TotalMileage: total}, nil
}

// ListByUser returns one page of a user's journeys, most recent first.
// Always returns a non-nil slice so callers can safely range over it.
func (s *JourneyService) ListByUser(ctx context.Context, userID string, p domain.PaginationParams) ([]domain.Journey, int64, error) {
	if userID == "" {
		return nil, 0, fmt.Errorf("service.JourneyService.ListByUser: %w", domain.ErrAuthenticationRequired)
	}
	journeys, total, err := s.journeys.ListByUserPaged(ctx, userID, p)
	if err != nil {
		return nil, 0, fmt.Errorf("service.JourneyService.ListByUser: %w", err)
	}
	if journeys == nil {
		journeys = []domain.Journey{}
	}
	return journeys, total, nil
}
