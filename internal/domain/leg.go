// Package domain contains the core data types for the visit tracker.
// This package has zero internal dependencies and is imported by every other
// internal package (repo, service, handler, journey).
package domain

import (
	"time"

	"github.com/google/uuid"
)

// LegStatus is the lifecycle state of a TravelLeg.
type LegStatus string

const (
	LegInProgress LegStatus = "in_progress"
	LegCompleted  LegStatus = "completed"
)

// Valid reports whether s is one of the known leg statuses.
func (s LegStatus) Valid() bool {
	return s == LegInProgress || s == LegCompleted
}

// LocationType describes what kind of place a leg starts or ends at.
// It is descriptive only; coordinates are authoritative.
type LocationType string

const (
	LocationOffice      LocationType = "office"
	LocationAppointment LocationType = "appointment"
	LocationHome        LocationType = "home"
)

// Point is a WGS84 coordinate pair in degrees.
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether p lies within the latitude/longitude ranges.
func (p Point) Valid() bool {
	return p.Latitude >= -90 && p.Latitude <= 90 && p.Longitude >= -180 && p.Longitude <= 180
}

// TravelLeg is one directed, timestamped travel segment.
// The End* fields and CalculatedMileage are nil while the leg is in progress
// and are set together, exactly once, when the leg is completed.
type TravelLeg struct {
	ID        uuid.UUID
	JourneyID uuid.UUID
	UserID    string

	StartLatitude     float64
	StartLongitude    float64
	StartTimestamp    time.Time
	StartLocationName string
	StartLocationType LocationType

	AppointmentIDFrom *uuid.UUID // nil when departing the office or home
	AppointmentIDTo   *uuid.UUID // nil for a final/return leg

	EndLatitude     *float64
	EndLongitude    *float64
	EndTimestamp    *time.Time
	EndLocationName string
	EndLocationType LocationType

	CalculatedMileage *float64
	Status            LegStatus
	IsFinalLeg        bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Start returns the leg's starting coordinate.
func (l TravelLeg) Start() Point {
	return Point{Latitude: l.StartLatitude, Longitude: l.StartLongitude}
}

// Departs reports whether the leg leaves the given appointment.
func (l TravelLeg) Departs(appointmentID uuid.UUID) bool {
	return l.AppointmentIDFrom != nil && *l.AppointmentIDFrom == appointmentID
}

// Arrives reports whether the leg ends at the given appointment.
func (l TravelLeg) Arrives(appointmentID uuid.UUID) bool {
	return l.AppointmentIDTo != nil && *l.AppointmentIDTo == appointmentID
}

// NewLeg is the input to leg creation.
// JourneyID is nil for the first leg of an outing; the store mints one.
type NewLeg struct {
	StartLatitude     float64
	StartLongitude    float64
	StartTimestamp    time.Time
	StartLocationName string
	StartLocationType LocationType
	AppointmentIDFrom *uuid.UUID
	AppointmentIDTo   *uuid.UUID
	JourneyID         *uuid.UUID
	IsFinalLeg        bool
}

// LegRef is what leg creation hands back to the caller.
type LegRef struct {
	LegID     uuid.UUID
	JourneyID uuid.UUID
}

// LegCompletion is the input to completing an in-progress leg.
type LegCompletion struct {
	EndLatitude     float64
	EndLongitude    float64
	EndTimestamp    time.Time
	EndLocationName string
	EndLocationType LocationType
	IsFinalLeg      bool
}

// End returns the completion's end coordinate.
func (c LegCompletion) End() Point {
	return Point{Latitude: c.EndLatitude, Longitude: c.EndLongitude}
}

// LegFilter narrows a leg query. Zero-value fields do not filter.
// AppointmentID matches legs departing from or arriving at the appointment.
type LegFilter struct {
	Status        LegStatus
	AppointmentID *uuid.UUID
	UserID        string
	JourneyID     *uuid.UUID
}
