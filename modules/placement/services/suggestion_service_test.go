package services_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/campusops/placement/modules/placement/domain/aggregates/batch"
	"github.com/campusops/placement/modules/placement/domain/aggregates/execution"
	"github.com/campusops/placement/modules/placement/services"
)

func TestGenerateDeterministic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	program := uuid.New()
	f.addWindow(uuid.New(), program, 3)
	f.addWindow(uuid.New(), program, 5)
	a1 := f.addStudent(program)
	a2 := f.addStudent(program)
	b := f.activeBatch("determinism", a1, a2)

	first, err := f.suggSvc.Generate(ctx, b.ID())
	require.NoError(t, err)
	second, err := f.suggSvc.Generate(ctx, b.ID())
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestGenerateOrderingAndTieBreak(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	program := uuid.New()

	strong := uuid.New()
	weakA := uuid.New()
	weakB := uuid.New()
	f.addWindow(strong, program, 4)
	f.addWindow(weakA, program, 4)
	f.addWindow(weakB, program, 4)
	f.registry.profiles[strong] = services.SiteProfile{SiteID: strong, Name: "strong", SuccessRate: 0.95}

	a := f.addStudent(program)
	b := f.activeBatch("ordering", a)

	sugs, err := f.suggSvc.Generate(ctx, b.ID())
	require.NoError(t, err)
	require.Len(t, sugs, 1)
	cands := sugs[0].Candidates
	require.Len(t, cands, 3)

	require.Equal(t, strong, cands[0].Window.Key().SiteID)
	require.Greater(t, cands[0].Score, cands[1].Score)

	// identical scores fall back to site id ascending
	require.Equal(t, cands[1].Score, cands[2].Score)
	require.Less(t, cands[1].Window.Key().SiteID.String(), cands[2].Window.Key().SiteID.String())
}

func TestGenerateExcludesOtherPrograms(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	program := uuid.New()
	other := uuid.New()
	f.addWindow(uuid.New(), program, 2)
	f.addWindow(uuid.New(), other, 2)

	a := f.addStudent(program)
	b := f.activeBatch("programs", a)

	sugs, err := f.suggSvc.Generate(ctx, b.ID())
	require.NoError(t, err)
	require.Len(t, sugs, 1)
	require.Len(t, sugs[0].Candidates, 1)
	require.Equal(t, program, sugs[0].Candidates[0].Window.Key().ProgramID)
}

func TestGenerateRetainsExclusionReasons(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	program := uuid.New()
	key := f.addWindow(uuid.New(), program, 2)

	a := f.addStudent(program)
	p := f.directory.profiles[a.StudentID()]
	p.Holds = []string{"background check pending"}
	f.directory.profiles[a.StudentID()] = p
	b := f.activeBatch("holds", a)

	sugs, err := f.suggSvc.Generate(ctx, b.ID())
	require.NoError(t, err)
	require.Len(t, sugs, 1)
	require.Empty(t, sugs[0].Candidates)
	require.Len(t, sugs[0].Excluded, 1)
	require.True(t, sugs[0].Excluded[0].Window.Equal(key))
	require.Contains(t, sugs[0].Excluded[0].Reasons[0], "background check pending")
}

func TestGenerateReasonsCapped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	program := uuid.New()
	site := uuid.New()
	f.addWindow(site, program, 10)
	f.registry.profiles[site] = services.SiteProfile{
		SiteID:      site,
		Name:        "riverside clinic",
		Location:    "riverside",
		SuccessRate: 0.95,
	}
	a := f.addStudent(program, "riverside")
	b := f.activeBatch("reasons", a)

	sugs, err := f.suggSvc.Generate(ctx, b.ID())
	require.NoError(t, err)
	cands := sugs[0].Candidates
	require.Len(t, cands, 1)
	require.LessOrEqual(t, len(cands[0].Reasons), 3)
	require.NotEmpty(t, cands[0].Reasons)
	require.GreaterOrEqual(t, cands[0].Score, 90)
}

func TestGenerateDoesNotMutateState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	program := uuid.New()
	key := f.addWindow(uuid.New(), program, 2)
	a := f.addStudent(program)
	b := f.activeBatch("read only", a)

	_, err := f.suggSvc.Generate(ctx, b.ID())
	require.NoError(t, err)

	w, err := f.windows.GetByKey(ctx, key)
	require.NoError(t, err)
	require.Equal(t, 2, w.AvailableSpots())
	require.Equal(t, int64(1), w.Version())

	got, err := f.assignments.GetByID(ctx, a.ID())
	require.NoError(t, err)
	require.Equal(t, a.Status(), got.Status())
}

func TestGenerateSkipsAssignedMembers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	program := uuid.New()
	key := f.addWindow(uuid.New(), program, 2)
	a1 := f.addStudent(program)
	a2 := f.addStudent(program)
	b := f.activeBatch("skip assigned", a1, a2)

	results, err := f.execSvc.Execute(ctx, b.ID(), []services.ExecutionPair{
		{AssignmentID: a1.ID(), Window: key},
	}, execution.ModeBestEffort)
	require.NoError(t, err)
	require.Equal(t, execution.OutcomeCommitted, results[0].Outcome())

	sugs, err := f.suggSvc.Generate(ctx, b.ID())
	require.NoError(t, err)
	require.Len(t, sugs, 1)
	require.Equal(t, a2.ID(), sugs[0].AssignmentID)
}

func TestGenerateUnknownBatch(t *testing.T) {
	f := newFixture(t)
	_, err := f.suggSvc.Generate(context.Background(), uuid.New())
	require.ErrorIs(t, err, batch.ErrNotFound)
}
