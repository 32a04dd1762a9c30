package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/visit-tracker/internal/domain"
)

// LegRepo defines the persistence operations for TravelLegs.
// Legs are created and completed, never deleted; completed legs are the
// mileage audit trail.
type LegRepo interface {
	// Create inserts a new in-progress leg and returns the persisted record.
	// A zero JourneyID mints a journey for the owner in the same statement,
	// so a rejected leg never leaves an empty journey behind.
	// Returns domain.ErrLegInProgress if the owner already has an open leg and
	// domain.ErrValidation if the journey or an appointment does not exist.
	Create(ctx context.Context, leg domain.TravelLeg) (domain.TravelLeg, error)

	// GetByID retrieves a single leg. Returns domain.ErrNotFound if absent.
	GetByID(ctx context.Context, id uuid.UUID) (domain.TravelLeg, error)

	// Complete sets the end fields and mileage of an in-progress leg and flips
	// it to completed in a single statement. Returns domain.ErrLegNotFound if
	// the leg does not exist and domain.ErrLegAlreadyCompleted if it is no
	// longer in progress.
	Complete(ctx context.Context, id uuid.UUID, c domain.LegCompletion, mileage float64) (domain.TravelLeg, error)

	// List returns every leg matching f ordered by start_timestamp ascending.
	List(ctx context.Context, f domain.LegFilter) ([]domain.TravelLeg, error)

	// ListPaged returns one page of legs matching f and the total match count.
	ListPaged(ctx context.Context, f domain.LegFilter, p domain.PaginationParams) ([]domain.TravelLeg, int64, error)
}

// pgLegRepo is the Postgres implementation of LegRepo.
type pgLegRepo struct {
	db db
}

// NewLegRepo constructs a LegRepo backed by the provided db connection.
// In production pass *pgxpool.Pool; in tests pass a pgx.Tx for rollback isolation.
func NewLegRepo(db db) LegRepo {
	return &pgLegRepo{db: db}
}

const legColumns = `
	id, journey_id, user_id,
	start_latitude, start_longitude, start_timestamp, start_location_name, start_location_type,
	appointment_id_from, appointment_id_to,
	end_latitude, end_longitude, end_timestamp, end_location_name, end_location_type,
	calculated_mileage::float8, leg_status, is_final_leg, created_at, updated_at`

// legFilterWhere matches legFilterArgs. Empty strings and NULLs disable a clause.
const legFilterWhere = `
	WHERE (@status = '' OR leg_status = @status)
	  AND (@appointment_id::uuid IS NULL
	       OR appointment_id_from = @appointment_id::uuid
	       OR appointment_id_to = @appointment_id::uuid)
	  AND (@user_id = '' OR user_id = @user_id)
	  AND (@journey_id::uuid IS NULL OR journey_id = @journey_id::uuid)`

func legFilterArgs(f domain.LegFilter) pgx.NamedArgs {
	return pgx.NamedArgs{
		"status":         string(f.Status),
		"appointment_id": f.AppointmentID, // nil becomes NULL
		"user_id":        f.UserID,
		"journey_id":     f.JourneyID,
	}
}

// Create mints the journey in a data-modifying CTE. The CTE and the leg
// insert are one statement, so a unique or foreign key violation on the leg
// rolls the journey back with it.
func (r *pgLegRepo) Create(ctx context.Context, leg domain.TravelLeg) (domain.TravelLeg, error) {
	q := `
		WITH minted AS (
			INSERT INTO journeys (user_id, started_at)
			SELECT @user_id::text, @start_timestamp::timestamptz
			WHERE @journey_id::uuid IS NULL
			RETURNING id
		)
		INSERT INTO travel_legs (
			journey_id, user_id,
			start_latitude, start_longitude, start_timestamp, start_location_name, start_location_type,
			appointment_id_from, appointment_id_to, is_final_leg
		)
		VALUES (
			COALESCE(@journey_id::uuid, (SELECT id FROM minted)), @user_id,
			@start_latitude, @start_longitude, @start_timestamp, @start_location_name, @start_location_type,
			@appointment_id_from, @appointment_id_to, @is_final_leg
		)
		RETURNING ` + legColumns

	var journeyID *uuid.UUID // nil becomes NULL and mints
	if leg.JourneyID != uuid.Nil {
		journeyID = &leg.JourneyID
	}

	args := pgx.NamedArgs{
		"journey_id":          journeyID,
		"user_id":             leg.UserID,
		"start_latitude":      leg.StartLatitude,
		"start_longitude":     leg.StartLongitude,
		"start_timestamp":     leg.StartTimestamp,
		"start_location_name": leg.StartLocationName,
		"start_location_type": string(leg.StartLocationType),
		"appointment_id_from": leg.AppointmentIDFrom,
		"appointment_id_to":   leg.AppointmentIDTo,
		"is_final_leg":        leg.IsFinalLeg,
	}

	result, err := scanLeg(r.db.QueryRow(ctx, q, args))
	if err != nil {
		switch pgErrorCode(err) {
		case pgUniqueViolation:
			err = domain.ErrLegInProgress
		case pgForeignKeyViolation:
			err = fmt.Errorf("%w: unknown journey or appointment", domain.ErrValidation)
		}
		return domain.TravelLeg{}, fmt.Errorf("repo.LegRepo.Create: %w", err)
	}
	return result, nil
}

func (r *pgLegRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.TravelLeg, error) {
	q := `SELECT ` + legColumns + ` FROM travel_legs WHERE id = @id`

	result, err := scanLeg(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.TravelLeg{}, fmt.Errorf("repo.LegRepo.GetByID: %w", err)
	}
	return result, nil
}

// Complete guards on leg_status in the WHERE clause so two racing completions
// cannot both succeed: the loser matches no row and is told why.
func (r *pgLegRepo) Complete(ctx context.Context, id uuid.UUID, c domain.LegCompletion, mileage float64) (domain.TravelLeg, error) {
	q := `
		UPDATE travel_legs
		SET end_latitude       = @end_latitude,
		    end_longitude      = @end_longitude,
		    end_timestamp      = @end_timestamp,
		    end_location_name  = @end_location_name,
		    end_location_type  = @end_location_type,
		    calculated_mileage = @mileage,
		    is_final_leg       = is_final_leg OR @is_final_leg,
		    leg_status         = 'completed',
		    updated_at         = now()
		WHERE id = @id AND leg_status = 'in_progress'
		RETURNING ` + legColumns

	args := pgx.NamedArgs{
		"id":                id,
		"end_latitude":      c.EndLatitude,
		"end_longitude":     c.EndLongitude,
		"end_timestamp":     c.EndTimestamp,
		"end_location_name": c.EndLocationName,
		"end_location_type": string(c.EndLocationType),
		"mileage":           mileage,
		"is_final_leg":      c.IsFinalLeg,
	}

	result, err := scanLeg(r.db.QueryRow(ctx, q, args))
	if err == nil {
		return result, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.TravelLeg{}, fmt.Errorf("repo.LegRepo.Complete: %w", err)
	}

	var exists bool
	if err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM travel_legs WHERE id = @id)`,
		pgx.NamedArgs{"id": id},
	).Scan(&exists); err != nil {
		return domain.TravelLeg{}, fmt.Errorf("repo.LegRepo.Complete: exists: %w", err)
	}
	if !exists {
		return domain.TravelLeg{}, fmt.Errorf("repo.LegRepo.Complete: %w", domain.ErrLegNotFound)
	}
	return domain.TravelLeg{}, fmt.Errorf("repo.LegRepo.Complete: %w", domain.ErrLegAlreadyCompleted)
}

func (r *pgLegRepo) List(ctx context.Context, f domain.LegFilter) ([]domain.TravelLeg, error) {
	q := `SELECT ` + legColumns + ` FROM travel_legs` + legFilterWhere + `
		ORDER BY start_timestamp ASC, created_at ASC`

	legs, err := r.query(ctx, q, legFilterArgs(f))
	if err != nil {
		return nil, fmt.Errorf("repo.LegRepo.List: %w", err)
	}
	return legs, nil
}

func (r *pgLegRepo) ListPaged(ctx context.Context, f domain.LegFilter, p domain.PaginationParams) ([]domain.TravelLeg, int64, error) {
	args := legFilterArgs(f)

	var total int64
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM travel_legs`+legFilterWhere, args).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("repo.LegRepo.ListPaged: count: %w", err)
	}

	args["limit"] = p.Limit
	args["offset"] = p.Offset()
	q := `SELECT ` + legColumns + ` FROM travel_legs` + legFilterWhere + `
		ORDER BY start_timestamp DESC, created_at DESC
		LIMIT @limit OFFSET @offset`

	legs, err := r.query(ctx, q, args)
	if err != nil {
		return nil, 0, fmt.Errorf("repo.LegRepo.ListPaged: %w", err)
	}
	return legs, total, nil
}

func (r *pgLegRepo) query(ctx context.Context, q string, args pgx.NamedArgs) ([]domain.TravelLeg, error) {
	rows, err := r.db.Query(ctx, q, args)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var legs []domain.TravelLeg
	for rows.Next() {
		l, err := scanLeg(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		legs = append(legs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return legs, nil
}

// scanLeg maps a single database row into a domain.TravelLeg.
// Nullable UUIDs go through pgtype.UUID; nullable end fields scan into pointers.
func scanLeg(s scanner) (domain.TravelLeg, error) {
	var (
		l                  domain.TravelLeg
		id, journeyID      pgtype.UUID
		apptFrom, apptTo   pgtype.UUID
		startType, endType string
		status             string
	)

	err := s.Scan(
		&id, &journeyID, &l.UserID,
		&l.StartLatitude, &l.StartLongitude, &l.StartTimestamp, &l.StartLocationName, &startType,
		&apptFrom, &apptTo,
		&l.EndLatitude, &l.EndLongitude, &l.EndTimestamp, &l.EndLocationName, &endType,
		&l.CalculatedMileage, &status, &l.IsFinalLeg, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.TravelLeg{}, domain.ErrNotFound
		}
		return domain.TravelLeg{}, err
	}

	l.ID = uuid.UUID(id.Bytes)
	l.JourneyID = uuid.UUID(journeyID.Bytes)
	l.AppointmentIDFrom = uuidPtr(apptFrom)
	l.AppointmentIDTo = uuidPtr(apptTo)
	l.StartLocationType = domain.LocationType(startType)
	l.EndLocationType = domain.LocationType(endType)
	l.Status = domain.LegStatus(status)
	return l, nil
}
