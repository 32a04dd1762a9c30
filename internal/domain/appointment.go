package domain

import (
	"time"

	"github.com/google/uuid"
)

// AppointmentStatus is the visit's own status, independent of travel.
type AppointmentStatus string

const (
	AppointmentScheduled  AppointmentStatus = "scheduled"
	AppointmentInProgress AppointmentStatus = "in-progress"
	AppointmentCompleted  AppointmentStatus = "completed"
	AppointmentCancelled  AppointmentStatus = "cancelled"
	AppointmentNoShow     AppointmentStatus = "no-show"
)

// Valid reports whether s is a known appointment status.
func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentScheduled, AppointmentInProgress, AppointmentCompleted,
		AppointmentCancelled, AppointmentNoShow:
		return true
	}
	return false
}

// Appointment is a scheduled home visit.
//
// The legacy fields (StartDriveTimestamp, ArrivedTimestamp, ReturnTimestamp,
// ReturnMileage) predate the leg system and are kept in step with it. The Has*
// flags and ReturnLegID are derived from travel_legs at read time. Any of them
// may be absent; absence means "false".
type Appointment struct {
	ID             uuid.UUID
	AssignedUserID string
	ChildName      string
	Address        string
	ScheduledAt    time.Time
	Status         AppointmentStatus

	StartDriveTimestamp *time.Time
	ArrivedTimestamp    *time.Time
	ReturnTimestamp     *time.Time
	ReturnMileage       *float64

	HasInProgressLeg       bool
	HasCompletedLeg        bool
	HasInProgressReturnLeg bool
	ReturnLegID            *uuid.UUID

	CreatedAt time.Time
	UpdatedAt time.Time
}
