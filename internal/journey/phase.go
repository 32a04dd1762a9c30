// Package journey drives one traveler through the legs of an outing: start
// the drive, arrive, end the visit, drive on or return, complete the return.
//
// Project and NextAction are pure and shared by the server and the client.
// Tracker is the client-side state machine that calls the leg store.
package journey

import (
	"github.com/google/uuid"

	"github.com/pkordes/visit-tracker/internal/domain"
)

// Phase is the travel progress of one appointment as the UI sees it.
type Phase struct {
	HasStartedDrive    bool `json:"has_started_drive"`
	HasArrived         bool `json:"has_arrived"`
	HasReturnStarted   bool `json:"has_return_started"`
	HasReturnCompleted bool `json:"has_return_completed"`
}

// Project merges the legacy appointment columns with live leg data.
// currentLegID is the leg the caller holds open, or nil. Missing fields on
// either side count as false.
func Project(currentLegID *uuid.UUID, a domain.Appointment) Phase {
	holding := currentLegID != nil
	return Phase{
		HasStartedDrive: holding || a.StartDriveTimestamp != nil || a.HasInProgressLeg,
		HasArrived:      a.ArrivedTimestamp != nil || a.HasCompletedLeg,
		HasReturnStarted: a.ReturnTimestamp != nil || a.HasInProgressReturnLeg ||
			(holding && a.ReturnLegID != nil && *currentLegID == *a.ReturnLegID),
		HasReturnCompleted: a.ReturnMileage != nil ||
			(a.ReturnTimestamp != nil && !a.HasInProgressReturnLeg),
	}
}

// Action is the single primary button offered for an appointment.
type Action string

const (
	ActionStartDrive     Action = "start_drive"
	ActionMarkArrived    Action = "mark_arrived"
	ActionEndVisit       Action = "end_visit"
	ActionDriveOrReturn  Action = "drive_or_return"
	ActionCompleteReturn Action = "complete_return"
	ActionNone           Action = "none"
)

// NextAction picks the action to present from the visit status and phase.
func NextAction(status domain.AppointmentStatus, p Phase) Action {
	switch {
	case status == domain.AppointmentCancelled || status == domain.AppointmentNoShow:
		return ActionNone
	case p.HasReturnCompleted:
		return ActionNone
	case p.HasReturnStarted:
		return ActionCompleteReturn
	case status == domain.AppointmentCompleted:
		return ActionDriveOrReturn
	case p.HasArrived:
		return ActionEndVisit
	case p.HasStartedDrive:
		return ActionMarkArrived
	}
	return ActionStartDrive
}

// State names where the traveler is relative to one appointment.
type State string

const (
	StateNoLeg                State = "no_leg"
	StateDrivingToAppointment State = "driving_to_appointment"
	StateAtAppointment        State = "at_appointment"
	StateVisitInProgress      State = "visit_in_progress"
	StateVisitCompleted       State = "visit_completed"
	StateDrivingToNext        State = "driving_to_next"
	StateReturningHome        State = "returning_home"
	StateReturnCompleted      State = "return_completed"
)

// StateOf derives the state from the visit status and phase. departing
// reports whether the caller holds an open, non-final leg leaving this
// appointment, which is the only way to tell DrivingToNext from
// VisitCompleted.
func StateOf(status domain.AppointmentStatus, p Phase, departing bool) State {
	switch {
	case p.HasReturnCompleted:
		return StateReturnCompleted
	case p.HasReturnStarted:
		return StateReturningHome
	case departing:
		return StateDrivingToNext
	case status == domain.AppointmentCompleted:
		return StateVisitCompleted
	case p.HasArrived && status == domain.AppointmentInProgress:
		return StateVisitInProgress
	case p.HasArrived:
		return StateAtAppointment
	case p.HasStartedDrive:
		return StateDrivingToAppointment
	}
	return StateNoLeg
}
