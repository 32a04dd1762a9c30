package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/pkordes/visit-tracker/internal/domain"
)

// Export returns the journey's mileage log: one MileageRow per leg in travel
// order. A journey with no legs yields an empty, non-nil slice.
func (s *JourneyService) Export(ctx context.Context, id uuid.UUID) ([]domain.MileageRow, error) {
	detail, err := s.GetDetail(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service.JourneyService.Export: %w", err)
	}

	rows := make([]domain.MileageRow, 0, len(detail.Legs))
	for i, l := range detail.Legs {
		rows = append(rows, domain.MileageRow{
			JourneyID:       detail.ID.String(),
			UserID:          detail.UserID,
			LegID:           l.ID.String(),
			Sequence:        i + 1,
			StartLocation:   describeLocation(l.StartLocationName, l.StartLocationType),
			StartedAt:       l.StartTimestamp,
			EndLocation:     describeLocation(l.EndLocationName, l.EndLocationType),
			EndedAt:         l.EndTimestamp,
			Mileage:         l.CalculatedMileage,
			Status:          l.Status,
			IsFinalLeg:      l.IsFinalLeg,
			AppointmentTo:   idString(l.AppointmentIDTo),
			AppointmentFrom: idString(l.AppointmentIDFrom),
		})
	}
	return rows, nil
}

// describeLocation prefers the human name and falls back to the type.
func describeLocation(name string, typ domain.LocationType) string {
	if name != "" {
		return name
	}
	return string(typ)
}

func idString(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}
