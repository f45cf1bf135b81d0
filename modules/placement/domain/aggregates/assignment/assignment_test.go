package assignment_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/campusops/placement/modules/placement/domain/aggregates/assignment"
	"github.com/campusops/placement/modules/placement/domain/aggregates/capacity"
)

func testKey(siteID uuid.UUID) capacity.WindowKey {
	now := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	return capacity.WindowKey{
		SiteID:      siteID,
		ProgramID:   uuid.New(),
		PeriodStart: now,
		PeriodEnd:   now.AddDate(0, 3, 0),
	}
}

func TestAssignLifecycle(t *testing.T) {
	a := assignment.New(uuid.New(), uuid.New())
	require.Equal(t, assignment.StatusUnassigned, a.Status())
	require.True(t, a.Assignable())
	require.Nil(t, a.AssignedWindow())

	key := testKey(uuid.New())
	assigned, err := a.Assign(key)
	require.NoError(t, err)
	require.Equal(t, assignment.StatusAssigned, assigned.Status())
	require.False(t, assigned.Assignable())
	require.Equal(t, key, *assigned.AssignedWindow())
	require.Equal(t, key.SiteID, *assigned.AssignedSiteID())

	// the original value is untouched
	require.Equal(t, assignment.StatusUnassigned, a.Status())

	completed, err := assigned.Complete()
	require.NoError(t, err)
	require.Equal(t, assignment.StatusCompleted, completed.Status())
}

func TestAssignSameSiteIsIdempotent(t *testing.T) {
	a := assignment.New(uuid.New(), uuid.New())
	key := testKey(uuid.New())

	assigned, err := a.Assign(key)
	require.NoError(t, err)

	again, err := assigned.Assign(key)
	require.ErrorIs(t, err, assignment.ErrAlreadyAssigned)
	require.Equal(t, assigned, again)

	_, err = assigned.Assign(testKey(uuid.New()))
	require.ErrorIs(t, err, assignment.ErrInvalidStatus)
}

func TestMarkSuggestedKeepsAssignable(t *testing.T) {
	a := assignment.New(uuid.New(), uuid.New())

	suggested, err := a.MarkSuggested()
	require.NoError(t, err)
	require.Equal(t, assignment.StatusSuggested, suggested.Status())
	require.True(t, suggested.Assignable())

	// suggested records still accept a commit
	assigned, err := suggested.Assign(testKey(uuid.New()))
	require.NoError(t, err)
	require.Equal(t, assignment.StatusAssigned, assigned.Status())

	_, err = assigned.MarkSuggested()
	require.ErrorIs(t, err, assignment.ErrInvalidStatus)
}

func TestRemoveDetachesEverything(t *testing.T) {
	a := assignment.New(uuid.New(), uuid.New())
	batchID := uuid.New()

	attached, err := a.AttachToBatch(batchID)
	require.NoError(t, err)
	require.Equal(t, batchID, *attached.BatchID())

	assigned, err := attached.Assign(testKey(uuid.New()))
	require.NoError(t, err)

	removed, err := assigned.Remove()
	require.NoError(t, err)
	require.Equal(t, assignment.StatusRemoved, removed.Status())
	require.Nil(t, removed.AssignedWindow())
	require.Nil(t, removed.BatchID())
	require.False(t, removed.Assignable())

	_, err = removed.Remove()
	require.ErrorIs(t, err, assignment.ErrRemoved)
	_, err = removed.Assign(testKey(uuid.New()))
	require.ErrorIs(t, err, assignment.ErrInvalidStatus)
}

func TestAttachToBatchRejectsSecondBatch(t *testing.T) {
	a := assignment.New(uuid.New(), uuid.New())
	first := uuid.New()

	attached, err := a.AttachToBatch(first)
	require.NoError(t, err)

	// re-attaching to the same batch is a no-op
	same, err := attached.AttachToBatch(first)
	require.NoError(t, err)
	require.Equal(t, first, *same.BatchID())

	_, err = attached.AttachToBatch(uuid.New())
	require.ErrorIs(t, err, assignment.ErrInvalidStatus)
}

func TestCompleteRequiresAssigned(t *testing.T) {
	a := assignment.New(uuid.New(), uuid.New())
	_, err := a.Complete()
	require.ErrorIs(t, err, assignment.ErrInvalidStatus)
}
