package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/visit-tracker/internal/domain"
	"github.com/pkordes/visit-tracker/internal/geo"
	"github.com/pkordes/visit-tracker/internal/repo"
	"github.com/pkordes/visit-tracker/internal/service"
)

// mockLegRepo is a hand-written test double for repo.LegRepo.
// Each field is a function so individual tests can control return values.
type mockLegRepo struct {
	create    func(ctx context.Context, leg domain.TravelLeg) (domain.TravelLeg, error)
	getByID   func(ctx context.Context, id uuid.UUID) (domain.TravelLeg, error)
	complete  func(ctx context.Context, id uuid.UUID, c domain.LegCompletion, mileage float64) (domain.TravelLeg, error)
	list      func(ctx context.Context, f domain.LegFilter) ([]domain.TravelLeg, error)
	listPaged func(ctx context.Context, f domain.LegFilter, p domain.PaginationParams) ([]domain.TravelLeg, int64, error)
}

func (m *mockLegRepo) Create(ctx context.Context, leg domain.TravelLeg) (domain.TravelLeg, error) {
	return m.create(ctx, leg)
}
func (m *mockLegRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.TravelLeg, error) {
	return m.getByID(ctx, id)
}
func (m *mockLegRepo) Complete(ctx context.Context, id uuid.UUID, c domain.LegCompletion, mileage float64) (domain.TravelLeg, error) {
	return m.complete(ctx, id, c, mileage)
}
func (m *mockLegRepo) List(ctx context.Context, f domain.LegFilter) ([]domain.TravelLeg, error) {
	if m.list == nil {
		return nil, nil
	}
	return m.list(ctx, f)
}
func (m *mockLegRepo) ListPaged(ctx context.Context, f domain.LegFilter, p domain.PaginationParams) ([]domain.TravelLeg, int64, error) {
	return m.listPaged(ctx, f, p)
}

// compile-time check: mockLegRepo must satisfy repo.LegRepo.
var _ repo.LegRepo = (*mockLegRepo)(nil)

// fixedMiles is a MileageCalculator that always answers the same distance.
type fixedMiles float64

func (f fixedMiles) Miles(context.Context, domain.Point, domain.Point) (float64, error) {
	return float64(f), nil
}

var _ geo.MileageCalculator = fixedMiles(0)

func ptr[T any](v T) *T { return &v }

var (
	alice     = domain.Identity{UserID: "user_alice", Email: "alice@example.org"}
	legStart  = time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	officePos = domain.Point{Latitude: 30.2672, Longitude: -97.7431}
)

// echoCreate stores the leg it was given with a fresh ID, like the repo does.
func echoCreate(_ context.Context, leg domain.TravelLeg) (domain.TravelLeg, error) {
	leg.ID = uuid.New()
	leg.Status = domain.LegInProgress
	return leg, nil
}

func newLegService(legs *mockLegRepo, journeys *mockJourneyRepo, appts *mockAppointmentRepo) *service.LegService {
	return service.NewLegService(legs, journeys, appts, fixedMiles(3.2), nil)
}

func officeLeg(to *uuid.UUID) domain.NewLeg {
	return domain.NewLeg{
		StartLatitude:     officePos.Latitude,
		StartLongitude:    officePos.Longitude,
		StartTimestamp:    legStart,
		StartLocationType: domain.LocationOffice,
		AppointmentIDTo:   to,
	}
}

// ---- Create ------------------------------------------------------------------

// mintingCreate stands in for the repo minting a journey with the leg.
func mintingCreate(t *testing.T, journeyID uuid.UUID) func(context.Context, domain.TravelLeg) (domain.TravelLeg, error) {
	return func(ctx context.Context, leg domain.TravelLeg) (domain.TravelLeg, error) {
		assert.Equal(t, uuid.Nil, leg.JourneyID, "a first leg must ask the repo to mint its journey")
		leg.JourneyID = journeyID
		return echoCreate(ctx, leg)
	}
}

// noMint fails the test if the service mints a journey outside the leg insert.
func noMint(t *testing.T) *mockJourneyRepo {
	return &mockJourneyRepo{
		create: func(context.Context, string, time.Time) (domain.Journey, error) {
			t.Fatal("journeys are minted by the leg insert, not separately")
			return domain.Journey{}, nil
		},
	}
}

func TestLegService_Create_MintsJourneyForFirstLeg(t *testing.T) {
	apptA := uuid.New()
	minted := uuid.New()
	var driveStarted uuid.UUID

	svc := newLegService(
		&mockLegRepo{create: mintingCreate(t, minted)},
		noMint(t),
		&mockAppointmentRepo{
			markDriveStarted: func(_ context.Context, id uuid.UUID, _ time.Time) error {
				driveStarted = id
				return nil
			},
		},
	)

	got, err := svc.Create(context.Background(), alice, officeLeg(&apptA))

	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, got.ID)
	assert.Equal(t, minted, got.JourneyID)
	assert.Equal(t, alice.UserID, got.UserID)
	assert.Equal(t, legStart, got.StartTimestamp)
	assert.Equal(t, domain.LegInProgress, got.Status)
	assert.Equal(t, apptA, driveStarted)
}

func TestLegService_Create_RejectedLegMintsNoJourney(t *testing.T) {
	apptA := uuid.New()
	mints := 0

	svc := newLegService(
		&mockLegRepo{create: func(context.Context, domain.TravelLeg) (domain.TravelLeg, error) {
			return domain.TravelLeg{}, domain.ErrLegInProgress
		}},
		&mockJourneyRepo{
			create: func(_ context.Context, userID string, _ time.Time) (domain.Journey, error) {
				mints++
				return domain.Journey{ID: uuid.New(), UserID: userID}, nil
			},
		},
		&mockAppointmentRepo{
			markDriveStarted: func(context.Context, uuid.UUID, time.Time) error {
				t.Fatal("a rejected leg must not touch the appointment")
				return nil
			},
		},
	)

	_, err := svc.Create(context.Background(), alice, officeLeg(&apptA))

	assert.ErrorIs(t, err, domain.ErrLegInProgress)
	assert.Zero(t, mints)
}

func TestLegService_Create_ContinuesGivenJourney(t *testing.T) {
	apptA, apptB := uuid.New(), uuid.New()
	j := domain.Journey{ID: uuid.New(), UserID: alice.UserID}

	svc := newLegService(
		&mockLegRepo{create: echoCreate},
		&mockJourneyRepo{
			create: func(context.Context, string, time.Time) (domain.Journey, error) {
				t.Fatal("a continuing leg must not mint a journey")
				return domain.Journey{}, nil
			},
			getByID: func(_ context.Context, _ uuid.UUID) (domain.Journey, error) { return j, nil },
		},
		&mockAppointmentRepo{},
	)

	in := officeLeg(&apptB)
	in.AppointmentIDFrom = &apptA
	in.StartLocationType = domain.LocationAppointment
	in.JourneyID = &j.ID

	got, err := svc.Create(context.Background(), alice, in)

	require.NoError(t, err)
	assert.Equal(t, j.ID, got.JourneyID)
	assert.Equal(t, &apptA, got.AppointmentIDFrom)
}

func TestLegService_Create_RejectsEndedJourney(t *testing.T) {
	ended := legStart.Add(-time.Hour)
	j := domain.Journey{ID: uuid.New(), UserID: alice.UserID, EndedAt: &ended}

	svc := newLegService(
		&mockLegRepo{},
		&mockJourneyRepo{
			getByID: func(_ context.Context, _ uuid.UUID) (domain.Journey, error) { return j, nil },
		},
		&mockAppointmentRepo{},
	)

	in := officeLeg(nil)
	in.JourneyID = &j.ID

	_, err := svc.Create(context.Background(), alice, in)

	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestLegService_Create_RejectsForeignJourney(t *testing.T) {
	j := domain.Journey{ID: uuid.New(), UserID: "user_bob"}

	svc := newLegService(
		&mockLegRepo{},
		&mockJourneyRepo{
			getByID: func(_ context.Context, _ uuid.UUID) (domain.Journey, error) { return j, nil },
		},
		&mockAppointmentRepo{},
	)

	in := officeLeg(nil)
	in.JourneyID = &j.ID

	_, err := svc.Create(context.Background(), alice, in)

	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestLegService_Create_OneInProgressPerUser(t *testing.T) {
	svc := newLegService(
		&mockLegRepo{
			list: func(_ context.Context, f domain.LegFilter) ([]domain.TravelLeg, error) {
				assert.Equal(t, domain.LegInProgress, f.Status)
				assert.Equal(t, alice.UserID, f.UserID)
				return []domain.TravelLeg{{ID: uuid.New(), Status: domain.LegInProgress}}, nil
			},
		},
		&mockJourneyRepo{},
		&mockAppointmentRepo{},
	)

	_, err := svc.Create(context.Background(), alice, officeLeg(nil))

	assert.ErrorIs(t, err, domain.ErrLegInProgress)
}

func TestLegService_Create_InfersOwnerFromAppointment(t *testing.T) {
	apptA := uuid.New()
	var owner string

	svc := newLegService(
		&mockLegRepo{create: func(ctx context.Context, leg domain.TravelLeg) (domain.TravelLeg, error) {
			owner = leg.UserID
			return echoCreate(ctx, leg)
		}},
		noMint(t),
		&mockAppointmentRepo{
			getByID: func(_ context.Context, id uuid.UUID) (domain.Appointment, error) {
				return domain.Appointment{ID: id, AssignedUserID: "user_carol"}, nil
			},
		},
	)

	got, err := svc.Create(context.Background(), domain.Identity{}, officeLeg(&apptA))

	require.NoError(t, err)
	assert.Equal(t, "user_carol", owner)
	assert.Equal(t, "user_carol", got.UserID)
}

func TestLegService_Create_NoOwner(t *testing.T) {
	svc := newLegService(&mockLegRepo{}, &mockJourneyRepo{}, &mockAppointmentRepo{})

	_, err := svc.Create(context.Background(), domain.Identity{}, officeLeg(nil))

	assert.ErrorIs(t, err, domain.ErrAuthenticationRequired)
}

func TestLegService_Create_UnknownAppointment(t *testing.T) {
	apptA := uuid.New()
	svc := newLegService(
		&mockLegRepo{},
		&mockJourneyRepo{},
		&mockAppointmentRepo{
			getByID: func(_ context.Context, _ uuid.UUID) (domain.Appointment, error) {
				return domain.Appointment{}, domain.ErrNotFound
			},
		},
	)

	_, err := svc.Create(context.Background(), domain.Identity{}, officeLeg(&apptA))

	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestLegService_Create_Validation(t *testing.T) {
	same := uuid.New()
	tests := []struct {
		name string
		edit func(*domain.NewLeg)
	}{
		{"latitude out of range", func(in *domain.NewLeg) { in.StartLatitude = 91 }},
		{"longitude out of range", func(in *domain.NewLeg) { in.StartLongitude = -181 }},
		{"unknown location type", func(in *domain.NewLeg) { in.StartLocationType = "car_wash" }},
		{"from equals to", func(in *domain.NewLeg) {
			in.AppointmentIDFrom = &same
			in.AppointmentIDTo = &same
		}},
	}

	svc := newLegService(&mockLegRepo{}, &mockJourneyRepo{}, &mockAppointmentRepo{})

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := officeLeg(nil)
			tc.edit(&in)

			_, err := svc.Create(context.Background(), alice, in)

			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestLegService_Create_MirrorFailureDoesNotFailRequest(t *testing.T) {
	apptA := uuid.New()
	svc := newLegService(
		&mockLegRepo{create: echoCreate},
		noMint(t),
		&mockAppointmentRepo{
			markDriveStarted: func(context.Context, uuid.UUID, time.Time) error {
				return errors.New("connection reset")
			},
		},
	)

	_, err := svc.Create(context.Background(), alice, officeLeg(&apptA))

	assert.NoError(t, err)
}

func TestLegService_Create_DefaultsStartTimestamp(t *testing.T) {
	var stored time.Time
	svc := newLegService(
		&mockLegRepo{create: func(ctx context.Context, leg domain.TravelLeg) (domain.TravelLeg, error) {
			stored = leg.StartTimestamp
			return echoCreate(ctx, leg)
		}},
		noMint(t),
		&mockAppointmentRepo{},
	)

	in := officeLeg(nil)
	in.StartTimestamp = time.Time{}

	_, err := svc.Create(context.Background(), alice, in)

	require.NoError(t, err)
	assert.False(t, stored.IsZero())
}

// ---- Complete ----------------------------------------------------------------

func openLeg(to, from *uuid.UUID, final bool) domain.TravelLeg {
	return domain.TravelLeg{
		ID:                uuid.New(),
		JourneyID:         uuid.New(),
		UserID:            alice.UserID,
		StartLatitude:     officePos.Latitude,
		StartLongitude:    officePos.Longitude,
		StartTimestamp:    legStart,
		AppointmentIDTo:   to,
		AppointmentIDFrom: from,
		IsFinalLeg:        final,
		Status:            domain.LegInProgress,
	}
}

func arrival() domain.LegCompletion {
	return domain.LegCompletion{
		EndLatitude:     30.3005,
		EndLongitude:    -97.7003,
		EndTimestamp:    legStart.Add(25 * time.Minute),
		EndLocationType: domain.LocationAppointment,
	}
}

// completeEcho marks the leg completed the way the repo's UPDATE does.
func completeEcho(leg domain.TravelLeg) func(context.Context, uuid.UUID, domain.LegCompletion, float64) (domain.TravelLeg, error) {
	return func(_ context.Context, _ uuid.UUID, c domain.LegCompletion, mileage float64) (domain.TravelLeg, error) {
		leg.Status = domain.LegCompleted
		leg.EndLatitude = ptr(c.EndLatitude)
		leg.EndLongitude = ptr(c.EndLongitude)
		leg.EndTimestamp = ptr(c.EndTimestamp)
		leg.CalculatedMileage = ptr(mileage)
		leg.IsFinalLeg = leg.IsFinalLeg || c.IsFinalLeg
		return leg, nil
	}
}

func TestLegService_Complete_OK(t *testing.T) {
	apptA := uuid.New()
	leg := openLeg(&apptA, nil, false)
	var arrived uuid.UUID

	svc := newLegService(
		&mockLegRepo{
			getByID:  func(_ context.Context, _ uuid.UUID) (domain.TravelLeg, error) { return leg, nil },
			complete: completeEcho(leg),
		},
		&mockJourneyRepo{},
		&mockAppointmentRepo{
			markArrived: func(_ context.Context, id uuid.UUID, _ time.Time) error {
				arrived = id
				return nil
			},
		},
	)

	got, err := svc.Complete(context.Background(), alice, leg.ID, arrival())

	require.NoError(t, err)
	assert.Equal(t, domain.LegCompleted, got.Status)
	require.NotNil(t, got.CalculatedMileage)
	assert.Equal(t, 3.2, *got.CalculatedMileage)
	assert.Equal(t, apptA, arrived)
}

func TestLegService_Complete_FinalLegClosesJourney(t *testing.T) {
	apptB := uuid.New()
	leg := openLeg(nil, &apptB, true)
	var closed uuid.UUID
	var returnMiles float64

	svc := newLegService(
		&mockLegRepo{
			getByID:  func(_ context.Context, _ uuid.UUID) (domain.TravelLeg, error) { return leg, nil },
			complete: completeEcho(leg),
		},
		&mockJourneyRepo{
			close: func(_ context.Context, id uuid.UUID, _ time.Time) (domain.Journey, error) {
				closed = id
				return domain.Journey{ID: id}, nil
			},
		},
		&mockAppointmentRepo{
			markReturnCompleted: func(_ context.Context, _ uuid.UUID, m float64) error {
				returnMiles = m
				return nil
			},
		},
	)

	c := arrival()
	c.EndLocationType = domain.LocationOffice

	_, err := svc.Complete(context.Background(), alice, leg.ID, c)

	require.NoError(t, err)
	assert.Equal(t, leg.JourneyID, closed)
	assert.Equal(t, 3.2, returnMiles)
}

func TestLegService_Complete_UnknownLeg(t *testing.T) {
	svc := newLegService(
		&mockLegRepo{
			getByID: func(_ context.Context, _ uuid.UUID) (domain.TravelLeg, error) {
				return domain.TravelLeg{}, domain.ErrNotFound
			},
		},
		&mockJourneyRepo{},
		&mockAppointmentRepo{},
	)

	_, err := svc.Complete(context.Background(), alice, uuid.New(), arrival())

	assert.ErrorIs(t, err, domain.ErrLegNotFound)
}

func TestLegService_Complete_OtherUsersLeg(t *testing.T) {
	leg := openLeg(nil, nil, false)
	leg.UserID = "user_bob"
	svc := newLegService(
		&mockLegRepo{
			getByID: func(_ context.Context, _ uuid.UUID) (domain.TravelLeg, error) { return leg, nil },
		},
		&mockJourneyRepo{},
		&mockAppointmentRepo{},
	)

	_, err := svc.Complete(context.Background(), alice, leg.ID, arrival())

	assert.ErrorIs(t, err, domain.ErrLegNotFound)
}

func TestLegService_Complete_AlreadyCompleted(t *testing.T) {
	leg := openLeg(nil, nil, false)
	leg.Status = domain.LegCompleted
	svc := newLegService(
		&mockLegRepo{
			getByID: func(_ context.Context, _ uuid.UUID) (domain.TravelLeg, error) { return leg, nil },
			complete: func(context.Context, uuid.UUID, domain.LegCompletion, float64) (domain.TravelLeg, error) {
				t.Fatal("completed legs must not be written again")
				return domain.TravelLeg{}, nil
			},
		},
		&mockJourneyRepo{},
		&mockAppointmentRepo{},
	)

	_, err := svc.Complete(context.Background(), alice, leg.ID, arrival())

	assert.ErrorIs(t, err, domain.ErrLegAlreadyCompleted)
}

func TestLegService_Complete_LostRace(t *testing.T) {
	leg := openLeg(nil, nil, false)
	svc := newLegService(
		&mockLegRepo{
			getByID: func(_ context.Context, _ uuid.UUID) (domain.TravelLeg, error) { return leg, nil },
			complete: func(context.Context, uuid.UUID, domain.LegCompletion, float64) (domain.TravelLeg, error) {
				return domain.TravelLeg{}, domain.ErrLegAlreadyCompleted
			},
		},
		&mockJourneyRepo{},
		&mockAppointmentRepo{},
	)

	_, err := svc.Complete(context.Background(), alice, leg.ID, arrival())

	assert.ErrorIs(t, err, domain.ErrLegAlreadyCompleted)
}

func TestLegService_Complete_EndBeforeStart(t *testing.T) {
	leg := openLeg(nil, nil, false)
	svc := newLegService(
		&mockLegRepo{
			getByID: func(_ context.Context, _ uuid.UUID) (domain.TravelLeg, error) { return leg, nil },
		},
		&mockJourneyRepo{},
		&mockAppointmentRepo{},
	)

	c := arrival()
	c.EndTimestamp = legStart.Add(-time.Minute)

	_, err := svc.Complete(context.Background(), alice, leg.ID, c)

	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestLegService_Complete_InvalidCoordinates(t *testing.T) {
	svc := newLegService(&mockLegRepo{}, &mockJourneyRepo{}, &mockAppointmentRepo{})

	c := arrival()
	c.EndLatitude = -95

	_, err := svc.Complete(context.Background(), alice, uuid.New(), c)

	assert.ErrorIs(t, err, domain.ErrValidation)
}

// ---- GetByID -----------------------------------------------------------------

func TestLegService_GetByID_Ownership(t *testing.T) {
	leg := openLeg(nil, nil, false)
	svc := newLegService(
		&mockLegRepo{
			getByID: func(_ context.Context, _ uuid.UUID) (domain.TravelLeg, error) { return leg, nil },
		},
		&mockJourneyRepo{},
		&mockAppointmentRepo{},
	)

	tests := []struct {
		name    string
		who     domain.Identity
		wantErr error
	}{
		{"owner", alice, nil},
		{"anonymous", domain.Identity{}, nil},
		{"other user", domain.Identity{UserID: "user_bob"}, domain.ErrLegNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := svc.GetByID(context.Background(), tc.who, leg.ID)

			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, leg.ID, got.ID)
		})
	}
}

// ---- Query -------------------------------------------------------------------

func TestLegService_Query_ReturnsEmptySlice(t *testing.T) {
	svc := newLegService(
		&mockLegRepo{
			listPaged: func(context.Context, domain.LegFilter, domain.PaginationParams) ([]domain.TravelLeg, int64, error) {
				return nil, 0, nil
			},
		},
		&mockJourneyRepo{},
		&mockAppointmentRepo{},
	)

	got, total, err := svc.Query(context.Background(),
		domain.LegFilter{Status: domain.LegInProgress}, domain.NewPaginationParams(nil, nil))

	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Zero(t, total)
}

func TestLegService_Query_UnknownStatus(t *testing.T) {
	svc := newLegService(&mockLegRepo{}, &mockJourneyRepo{}, &mockAppointmentRepo{})

	_, _, err := svc.Query(context.Background(),
		domain.LegFilter{Status: "paused"}, domain.NewPaginationParams(nil, nil))

	assert.ErrorIs(t, err, domain.ErrValidation)
}
