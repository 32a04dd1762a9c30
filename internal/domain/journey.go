package domain

import (
	"time"

	"github.com/google/uuid"
)

// Journey groups the chain of legs traveled in one outing.
// EndedAt is nil until the journey's final leg is completed.
type Journey struct {
	ID        uuid.UUID
	UserID    string
	StartedAt time.Time
	EndedAt   *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// JourneyDetail is a journey together with its legs ordered by start time.
type JourneyDetail struct {
	Journey
	Legs         []TravelLeg
	TotalMileage float64
}
