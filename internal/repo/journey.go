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

// JourneyRepo defines the persistence operations for Journeys.
// The service layer depends on this interface, not the concrete Postgres
// implementation, which allows the service to be unit-tested with a mock.
type JourneyRepo interface {
	// Create mints a new journey for userID starting at startedAt and returns
	// the persisted record with its DB-generated id.
	Create(ctx context.Context, userID string, startedAt time.Time) (domain.Journey, error)

	// GetByID retrieves a single journey by its UUID primary key.
	// Returns domain.ErrNotFound if no journey with that ID exists.
	GetByID(ctx context.Context, id uuid.UUID) (domain.Journey, error)

	// ListByUserPaged returns one page of a user's journeys, most recent first,
	// and the total number of journeys the user has.
	ListByUserPaged(ctx context.Context, userID string, p domain.PaginationParams) ([]domain.Journey, int64, error)

	// Close stamps ended_at on an open journey. Closing an already closed
	// journey keeps the first ended_at. Returns domain.ErrNotFound if the
	// journey does not exist.
	Close(ctx context.Context, id uuid.UUID, endedAt time.Time) (domain.Journey, error)
}

// pgJourneyRepo is the Postgres implementation of JourneyRepo.
type pgJourneyRepo struct {
	db db
}

// NewJourneyRepo constructs a JourneyRepo backed by the provided db connection.
// In production pass *pgxpool.Pool; in tests pass a pgx.Tx for rollback isolation.
func NewJourneyRepo(db db) JourneyRepo {
	return &pgJourneyRepo{db: db}
}

const journeyColumns = `id, user_id, started_at, ended_at, created_at, updated_at`

func (r *pgJourneyRepo) Create(ctx context.Context, userID string, startedAt time.Time) (domain.Journey, error) {
	const q = `
		INSERT INTO journeys (user_id, started_at)
		VALUES (@user_id, @started_at)
		RETURNING ` + journeyColumns

	row := r.db.QueryRow(ctx, q, pgx.NamedArgs{
		"user_id":    userID,
		"started_at": startedAt,
	})
	result, err := scanJourney(row)
	if err != nil {
		return domain.Journey{}, fmt.Errorf("repo.JourneyRepo.Create: %w", err)
	}
	return result, nil
}

func (r *pgJourneyRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Journey, error) {
	q := `SELECT ` + journeyColumns + ` FROM journeys WHERE id = @id`

	result, err := scanJourney(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id}))
	if err != nil {
		return domain.Journey{}, fmt.Errorf("repo.JourneyRepo.GetByID: %w", err)
	}
	return result, nil
}

func (r *pgJourneyRepo) ListByUserPaged(ctx context.Context, userID string, p domain.PaginationParams) ([]domain.Journey, int64, error) {
	var total int64
	err := r.db.QueryRow(ctx,
		`SELECT count(*) FROM journeys WHERE user_id = @user_id`,
		pgx.NamedArgs{"user_id": userID},
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("repo.JourneyRepo.ListByUserPaged: count: %w", err)
	}

	q := `
		SELECT ` + journeyColumns + `
		FROM journeys
		WHERE user_id = @user_id
		ORDER BY started_at DESC
		LIMIT @limit OFFSET @offset`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{
		"user_id": userID,
		"limit":   p.Limit,
		"offset":  p.Offset(),
	})
	if err != nil {
		return nil, 0, fmt.Errorf("repo.JourneyRepo.ListByUserPaged: %w", err)
	}
	defer rows.Close()

	var journeys []domain.Journey
	for rows.Next() {
		j, err := scanJourney(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("repo.JourneyRepo.ListByUserPaged: scan: %w", err)
		}
		journeys = append(journeys, j)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("repo.JourneyRepo.ListByUserPaged: rows: %w", err)
	}
	return journeys, total, nil
}

func (r *pgJourneyRepo) Close(ctx context.Context, id uuid.UUID, endedAt time.Time) (domain.Journey, error) {
	const q = `
		UPDATE journeys
		SET ended_at   = COALESCE(ended_at, @ended_at),
		    updated_at = now()
		WHERE id = @id
		RETURNING ` + journeyColumns

	row := r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id, "ended_at": endedAt})
	result, err := scanJourney(row)
	if err != nil {
		return domain.Journey{}, fmt.Errorf("repo.JourneyRepo.Close: %w", err)
	}
	return result, nil
}

// scanJourney maps a single database row into a domain.Journey.
func scanJourney(s scanner) (domain.Journey, error) {
	var (
		j  domain.Journey
		id pgtype.UUID
	)

	err := s.Scan(&id, &j.UserID, &j.StartedAt, &j.EndedAt, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Journey{}, domain.ErrNotFound
		}
		return domain.Journey{}, err
	}

	j.ID = uuid.UUID(id.Bytes)
	return j, nil
}
