package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/visit-tracker/internal/domain"
	"github.com/pkordes/visit-tracker/internal/journey"
)

// Appointment is the JSON representation of an appointment, including the
// travel phase projected from its legacy columns and legs.
type Appointment struct {
	ID                     uuid.UUID     `json:"id"`
	AssignedUserID         string        `json:"assigned_user_id"`
	ChildName              string        `json:"child_name"`
	Address                string        `json:"address"`
	ScheduledAt            time.Time     `json:"scheduled_at"`
	Status                 string        `json:"status"`
	StartDriveTimestamp    *time.Time    `json:"start_drive_timestamp"`
	ArrivedTimestamp       *time.Time    `json:"arrived_timestamp"`
	ReturnTimestamp        *time.Time    `json:"return_timestamp"`
	ReturnMileage          *float64      `json:"return_mileage"`
	HasInProgressLeg       bool          `json:"has_in_progress_leg"`
	HasCompletedLeg        bool          `json:"has_completed_leg"`
	HasInProgressReturnLeg bool          `json:"has_in_progress_return_leg"`
	ReturnLegID            *uuid.UUID    `json:"return_leg_id"`
	Phase                  journey.Phase `json:"phase"`
	NextAction             string        `json:"next_action"`
	CreatedAt              time.Time     `json:"created_at"`
	UpdatedAt              time.Time     `json:"updated_at"`
}

// UpdateStatusRequest is the body of PUT /appointments/{appointmentId}/status.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// GetAppointment handles GET /appointments/{appointmentId}.
func (s *Server) GetAppointment(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "appointmentId")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	a, err := s.appts.GetByID(r.Context(), id)
	if err != nil {
		s.serviceError(w, r, err, "appointment")
		return
	}
	writeJSON(w, http.StatusOK, appointmentToResponse(a))
}

// UpdateAppointmentStatus handles PUT /appointments/{appointmentId}/status.
func (s *Server) UpdateAppointmentStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "appointmentId")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	var body UpdateStatusRequest
	if err := decodeBody(r, &body); err != nil {
		rejectBody(w, err)
		return
	}
	if body.Status == "" {
		badRequest(w, "status is required")
		return
	}

	a, err := s.appts.UpdateStatus(r.Context(), id, domain.AppointmentStatus(body.Status))
	if err != nil {
		s.serviceError(w, r, err, "appointment")
		return
	}
	writeJSON(w, http.StatusOK, appointmentToResponse(a))
}

// appointmentToResponse projects the phase with no current leg: the server
// does not know which leg a given client holds.
func appointmentToResponse(a domain.Appointment) Appointment {
	phase := journey.Project(nil, a)
	return Appointment{
		ID:                     a.ID,
		AssignedUserID:         a.AssignedUserID,
		ChildName:              a.ChildName,
		Address:                a.Address,
		ScheduledAt:            a.ScheduledAt,
		Status:                 string(a.Status),
		StartDriveTimestamp:    a.StartDriveTimestamp,
		ArrivedTimestamp:       a.ArrivedTimestamp,
		ReturnTimestamp:        a.ReturnTimestamp,
		ReturnMileage:          a.ReturnMileage,
		HasInProgressLeg:       a.HasInProgressLeg,
		HasCompletedLeg:        a.HasCompletedLeg,
		HasInProgressReturnLeg: a.HasInProgressReturnLeg,
		ReturnLegID:            a.ReturnLegID,
		Phase:                  phase,
		NextAction:             string(journey.NextAction(a.Status, phase)),
		CreatedAt:              a.CreatedAt,
		UpdatedAt:              a.UpdatedAt,
	}
}
