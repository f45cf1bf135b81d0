package batch_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/campusops/placement/modules/placement/domain/aggregates/batch"
)

func TestBatchTransitionOrder(t *testing.T) {
	b := batch.New("fall placements", nil)
	require.Equal(t, batch.StatusDraft, b.Status())

	_, err := b.Transition(batch.StatusCompleted)
	require.ErrorIs(t, err, batch.ErrInvalidTransition)

	b, err = b.Transition(batch.StatusActive)
	require.NoError(t, err)

	_, err = b.Transition(batch.StatusDraft)
	require.ErrorIs(t, err, batch.ErrInvalidTransition)

	b, err = b.Transition(batch.StatusCompleted)
	require.NoError(t, err)

	b, err = b.Transition(batch.StatusArchived)
	require.NoError(t, err)

	_, err = b.Transition(batch.StatusArchived)
	require.ErrorIs(t, err, batch.ErrArchived)
}

func TestBatchMembership(t *testing.T) {
	b := batch.New("spring", nil)
	a1 := uuid.New()
	a2 := uuid.New()

	b, err := b.AddMember(a1)
	require.NoError(t, err)
	b, err = b.AddMember(a2)
	require.NoError(t, err)
	b, err = b.AddMember(a1)
	require.NoError(t, err)
	require.Len(t, b.MemberIDs(), 2)
	require.True(t, b.HasMember(a1))

	b, err = b.RemoveMember(a1)
	require.NoError(t, err)
	require.False(t, b.HasMember(a1))

	_, err = b.RemoveMember(a1)
	require.ErrorIs(t, err, batch.ErrNotMember)
}

func TestBatchMembershipLockedAfterActive(t *testing.T) {
	b := batch.New("summer", nil)
	b, err := b.AddMember(uuid.New())
	require.NoError(t, err)

	b, err = b.Transition(batch.StatusActive)
	require.NoError(t, err)
	b, err = b.AddMember(uuid.New())
	require.NoError(t, err)

	b, err = b.Transition(batch.StatusCompleted)
	require.NoError(t, err)
	_, err = b.AddMember(uuid.New())
	require.ErrorIs(t, err, batch.ErrNotMutable)

	b, err = b.Transition(batch.StatusArchived)
	require.NoError(t, err)
	_, err = b.AddMember(uuid.New())
	require.ErrorIs(t, err, batch.ErrArchived)
}

func TestBatchProgramFilter(t *testing.T) {
	program := uuid.New()
	b := batch.New("nursing cohort", &program)
	require.True(t, b.AcceptsProgram(program))
	require.False(t, b.AcceptsProgram(uuid.New()))

	open := batch.New("open cohort", nil)
	require.True(t, open.AcceptsProgram(uuid.New()))
}

func TestBatchMemberIDsSorted(t *testing.T) {
	b := batch.New("ordering", nil)
	for i := 0; i < 5; i++ {
		var err error
		b, err = b.AddMember(uuid.New())
		require.NoError(t, err)
	}
	ids := b.MemberIDs()
	for i := 1; i < len(ids); i++ {
		require.Less(t, ids[i-1].String(), ids[i].String())
	}
}
