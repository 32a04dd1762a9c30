package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/visit-tracker/internal/domain"
	"github.com/pkordes/visit-tracker/internal/repo"
	"github.com/pkordes/visit-tracker/testutil"
)

var journeyStart = time.Date(2025, 6, 2, 8, 30, 0, 0, time.UTC)

func newTestJourneyRepo(t *testing.T) repo.JourneyRepo {
	t.Helper()
	return repo.NewJourneyRepo(testutil.NewTx(t))
}

func TestJourneyRepo_Create(t *testing.T) {
	r := newTestJourneyRepo(t)

	got, err := r.Create(context.Background(), "user_caseworker", journeyStart)

	require.NoError(t, err)
	assert.NotEqual(t, uuid.UUID{}, got.ID, "ID should be DB-generated UUID")
	assert.Equal(t, "user_caseworker", got.UserID)
	assert.True(t, got.StartedAt.Equal(journeyStart))
	assert.Nil(t, got.EndedAt, "a new journey is open")
	assert.False(t, got.CreatedAt.IsZero())
}

func TestJourneyRepo_GetByID_NotFound(t *testing.T) {
	r := newTestJourneyRepo(t)

	_, err := r.GetByID(context.Background(), uuid.New())

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestJourneyRepo_Close_KeepsFirstEndedAt(t *testing.T) {
	r := newTestJourneyRepo(t)
	ctx := context.Background()

	j, err := r.Create(ctx, "user_caseworker", journeyStart)
	require.NoError(t, err)

	first := journeyStart.Add(4 * time.Hour)
	closed, err := r.Close(ctx, j.ID, first)
	require.NoError(t, err)
	require.NotNil(t, closed.EndedAt)
	assert.True(t, closed.EndedAt.Equal(first))

	again, err := r.Close(ctx, j.ID, first.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, again.EndedAt.Equal(first), "second close must not move ended_at")
}

func TestJourneyRepo_Close_NotFound(t *testing.T) {
	r := newTestJourneyRepo(t)

	_, err := r.Close(context.Background(), uuid.New(), journeyStart)

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestJourneyRepo_ListByUserPaged(t *testing.T) {
	r := newTestJourneyRepo(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := r.Create(ctx, "user_paged", journeyStart.AddDate(0, 0, i))
		require.NoError(t, err)
	}
	_, err := r.Create(ctx, "someone_else", journeyStart)
	require.NoError(t, err)

	page, total, err := r.ListByUserPaged(ctx, "user_paged", domain.PaginationParams{Page: 1, Limit: 2})

	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, page, 2)
	assert.True(t, page[0].StartedAt.After(page[1].StartedAt), "most recent first")
}
