package domain

import "time"

// MileageRow is a single row in a journey's mileage log export.
// It is a flat view: one row per leg, with journey fields repeated on every
// row. Legs still in progress carry nil end fields and nil mileage.
type MileageRow struct {
	JourneyID string
	UserID    string
	LegID     string
	Sequence  int // 1-based position of the leg within the journey

	StartLocation   string
	StartedAt       time.Time
	EndLocation     string
	EndedAt         *time.Time
	Mileage         *float64
	Status          LegStatus
	IsFinalLeg      bool
	AppointmentTo   string // empty for a return leg
	AppointmentFrom string // empty when departing the office or home
}
