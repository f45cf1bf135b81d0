package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/campusops/placement/modules/placement/domain/aggregates/assignment"
	"github.com/campusops/placement/modules/placement/domain/aggregates/capacity"
	"github.com/campusops/placement/modules/placement/infrastructure/persistence/memory"
)

// Two readers of the same record race to write; the second write carries a
// stale version and must lose.
func TestAssignmentUpdateStaleVersion(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewAssignmentRepository()

	created, err := repo.Create(ctx, assignment.New(uuid.New(), uuid.New()))
	require.NoError(t, err)

	first, err := repo.GetByID(ctx, created.ID())
	require.NoError(t, err)
	second, err := repo.GetByID(ctx, created.ID())
	require.NoError(t, err)

	key := capacity.WindowKey{
		SiteID:      uuid.New(),
		ProgramID:   created.ProgramID(),
		PeriodStart: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC),
	}

	winner, err := first.Assign(key)
	require.NoError(t, err)
	committed, err := repo.Update(ctx, winner)
	require.NoError(t, err)
	require.Equal(t, first.Version()+1, committed.Version())

	loser, err := second.Assign(key)
	require.NoError(t, err)
	_, err = repo.Update(ctx, loser)
	require.ErrorIs(t, err, assignment.ErrConcurrencyConflict)

	// the winner's commit is untouched
	got, err := repo.GetByID(ctx, created.ID())
	require.NoError(t, err)
	require.Equal(t, assignment.StatusAssigned, got.Status())
	require.Equal(t, committed.Version(), got.Version())
}
