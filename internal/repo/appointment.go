package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/visit-tracker/internal/domain"
)

// AppointmentRepo defines the persistence operations this service needs on
// appointments. Appointments are owned by the scheduling side of the product;
// here they are read, have their status moved, and have their legacy travel
// columns kept in step with travel_legs.
type AppointmentRepo interface {
	// Create inserts an appointment. Used by seeding and integration tests.
	Create(ctx context.Context, a domain.Appointment) (domain.Appointment, error)

	// GetByID returns the appointment with its leg-derived flags populated.
	// Returns domain.ErrNotFound if no appointment with that ID exists.
	GetByID(ctx context.Context, id uuid.UUID) (domain.Appointment, error)

	// UpdateStatus sets the visit status. Returns domain.ErrNotFound if absent.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.AppointmentStatus) error

	// MarkDriveStarted sets start_drive_timestamp unless it is already set.
	MarkDriveStarted(ctx context.Context, id uuid.UUID, at time.Time) error

	// MarkArrived sets arrived_timestamp unless it is already set.
	MarkArrived(ctx context.Context, id uuid.UUID, at time.Time) error

	// MarkReturnStarted sets return_timestamp unless it is already set.
	MarkReturnStarted(ctx context.Context, id uuid.UUID, at time.Time) error

	// MarkReturnCompleted records the mileage of the completed return leg.
	MarkReturnCompleted(ctx context.Context, id uuid.UUID, mileage float64) error
}

// pgAppointmentRepo is the Postgres implementation of AppointmentRepo.
type pgAppointmentRepo struct {
	db db
}

// NewAppointmentRepo constructs an AppointmentRepo backed by the provided db connection.
func NewAppointmentRepo(db db) AppointmentRepo {
	return &pgAppointmentRepo{db: db}
}

// appointmentSelect reads an appointment plus the flags derived from its legs.
// An inbound leg is one whose appointment_id_to is the appointment; a return
// leg is a final leg departing it.
const appointmentSelect = `
	SELECT a.id, a.assigned_user_id, a.child_name, a.address, a.scheduled_at, a.status,
	       a.start_drive_timestamp, a.arrived_timestamp, a.return_timestamp,
	       a.return_mileage::float8,
	       EXISTS (SELECT 1 FROM travel_legs l
	               WHERE l.appointment_id_to = a.id AND l.leg_status = 'in_progress'),
	       EXISTS (SELECT 1 FROM travel_legs l
	               WHERE l.appointment_id_to = a.id AND l.leg_status = 'completed'),
	       EXISTS (SELECT 1 FROM travel_legs l
	               WHERE l.appointment_id_from = a.id AND l.is_final_leg
	                 AND l.leg_status = 'in_progress'),
	       (SELECT l.id FROM travel_legs l
	         WHERE l.appointment_id_from = a.id AND l.is_final_leg
	         ORDER BY l.start_timestamp DESC LIMIT 1),
	       a.created_at, a.updated_at
	FROM appointments a`

func (r *pgAppointmentRepo) Create(ctx context.Context, a domain.Appointment) (domain.Appointment, error) {
	status := a.Status
	if status == "" {
		status = domain.AppointmentScheduled
	}

	var id pgtype.UUID
	err := r.db.QueryRow(ctx, `
		INSERT INTO appointments (assigned_user_id, child_name, address, scheduled_at, status)
		VALUES (@assigned_user_id, @child_name, @address, @scheduled_at, @status)
		RETURNING id`,
		pgx.NamedArgs{
			"assigned_user_id": a.AssignedUserID,
			"child_name":       a.ChildName,
			"address":          a.Address,
			"scheduled_at":     a.ScheduledAt,
			"status":           string(status),
		},
	).Scan(&id)
	if err != nil {
		return domain.Appointment{}, fmt.Errorf("repo.AppointmentRepo.Create: %w", err)
	}
	return r.GetByID(ctx, uuid.UUID(id.Bytes))
}

func (r *pgAppointmentRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	row := r.db.QueryRow(ctx, appointmentSelect+` WHERE a.id = @id`, pgx.NamedArgs{"id": id})
	result, err := scanAppointment(row)
	if err != nil {
		return domain.Appointment{}, fmt.Errorf("repo.AppointmentRepo.GetByID: %w", err)
	}
	return result, nil
}

func (r *pgAppointmentRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.AppointmentStatus) error {
	const q = `UPDATE appointments SET status = @status, updated_at = now() WHERE id = @id`
	return r.exec(ctx, "UpdateStatus", q, pgx.NamedArgs{"id": id, "status": string(status)})
}

func (r *pgAppointmentRepo) MarkDriveStarted(ctx context.Context, id uuid.UUID, at time.Time) error {
	const q = `
		UPDATE appointments
		SET start_drive_timestamp = COALESCE(start_drive_timestamp, @at), updated_at = now()
		WHERE id = @id`
	return r.exec(ctx, "MarkDriveStarted", q, pgx.NamedArgs{"id": id, "at": at})
}

func (r *pgAppointmentRepo) MarkArrived(ctx context.Context, id uuid.UUID, at time.Time) error {
	const q = `
		UPDATE appointments
		SET arrived_timestamp = COALESCE(arrived_timestamp, @at), updated_at = now()
		WHERE id = @id`
	return r.exec(ctx, "MarkArrived", q, pgx.NamedArgs{"id": id, "at": at})
}

func (r *pgAppointmentRepo) MarkReturnStarted(ctx context.Context, id uuid.UUID, at time.Time) error {
	const q = `
		UPDATE appointments
		SET return_timestamp = COALESCE(return_timestamp, @at), updated_at = now()
		WHERE id = @id`
	return r.exec(ctx, "MarkReturnStarted", q, pgx.NamedArgs{"id": id, "at": at})
}

func (r *pgAppointmentRepo) MarkReturnCompleted(ctx context.Context, id uuid.UUID, mileage float64) error {
	const q = `
		UPDATE appointments
		SET return_mileage = @mileage, updated_at = now()
		WHERE id = @id`
	return r.exec(ctx, "MarkReturnCompleted", q, pgx.NamedArgs{"id": id, "mileage": mileage})
}

// exec runs a single-row UPDATE and reports domain.ErrNotFound when no row matched.
func (r *pgAppointmentRepo) exec(ctx context.Context, op, q string, args pgx.NamedArgs) error {
	tag, err := r.db.Exec(ctx, q, args)
	if err != nil {
		return fmt.Errorf("repo.AppointmentRepo.%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.AppointmentRepo.%s: %w", op, domain.ErrNotFound)
	}
	return nil
}

// scanAppointment maps a row produced by appointmentSelect into a domain.Appointment.
func scanAppointment(s scanner) (domain.Appointment, error) {
	var (
		a           domain.Appointment
		id          pgtype.UUID
		returnLegID pgtype.UUID
		status      string
	)

	err := s.Scan(
		&id, &a.AssignedUserID, &a.ChildName, &a.Address, &a.ScheduledAt, &status,
		&a.StartDriveTimestamp, &a.ArrivedTimestamp, &a.ReturnTimestamp, &a.ReturnMileage,
		&a.HasInProgressLeg, &a.HasCompletedLeg, &a.HasInProgressReturnLeg, &returnLegID,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Appointment{}, domain.ErrNotFound
		}
		return domain.Appointment{}, err
	}

	a.ID = uuid.UUID(id.Bytes)
	a.Status = domain.AppointmentStatus(status)
	a.ReturnLegID = uuidPtr(returnLegID)
	return a, nil
}
