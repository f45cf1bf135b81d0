package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/campusops/placement/modules/placement/domain/aggregates/assignment"
	"github.com/campusops/placement/modules/placement/domain/aggregates/batch"
	"github.com/campusops/placement/modules/placement/domain/aggregates/capacity"
	"github.com/campusops/placement/modules/placement/domain/eligibility"
	"github.com/campusops/placement/modules/placement/infrastructure/persistence/memory"
	"github.com/campusops/placement/modules/placement/services"
	"github.com/campusops/placement/pkg/configuration"
	"github.com/campusops/placement/pkg/eventbus"
)

var fixedNow = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

func isInsufficient(err error) bool {
	return errors.Is(err, capacity.ErrInsufficientCapacity)
}

type stubDirectory struct {
	profiles map[uuid.UUID]eligibility.StudentProfile
}

func (d *stubDirectory) Profile(_ context.Context, studentID uuid.UUID) (eligibility.StudentProfile, error) {
	p, ok := d.profiles[studentID]
	if !ok {
		return eligibility.StudentProfile{}, errors.New("student not found")
	}
	return p, nil
}

type stubRegistry struct {
	profiles map[uuid.UUID]services.SiteProfile
}

func (r *stubRegistry) Profile(_ context.Context, siteID, _ uuid.UUID) (services.SiteProfile, error) {
	if p, ok := r.profiles[siteID]; ok {
		return p, nil
	}
	return services.SiteProfile{SiteID: siteID, Name: "site " + siteID.String()[:8]}, nil
}

type fixture struct {
	t *testing.T

	windows     *memory.CapacityRepository
	assignments *memory.AssignmentRepository
	batches     *memory.BatchRepository
	results     *memory.ExecutionRepository
	directory   *stubDirectory
	registry    *stubRegistry

	ledger   *services.LedgerService
	batchSvc *services.BatchService
	execSvc  *services.ExecutionService
	suggSvc  *services.SuggestionService
	pool     *services.AssignmentService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		t:           t,
		windows:     memory.NewCapacityRepository(),
		assignments: memory.NewAssignmentRepository(),
		batches:     memory.NewBatchRepository(),
		results:     memory.NewExecutionRepository(),
		directory:   &stubDirectory{profiles: map[uuid.UUID]eligibility.StudentProfile{}},
		registry:    &stubRegistry{profiles: map[uuid.UUID]services.SiteProfile{}},
	}

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	bus := eventbus.NewEventPublisher(log)

	f.ledger = services.NewLedgerService(f.windows, ledgerOpts())
	f.batchSvc = services.NewBatchService(f.batches, f.assignments, f.ledger, bus)
	f.execSvc = services.NewExecutionService(
		f.batches, f.assignments, f.windows, f.ledger, f.results, f.directory, bus)
	f.suggSvc = services.NewSuggestionService(
		f.batches, f.assignments, f.windows, f.directory, f.registry,
		scoringOpts(),
		services.WithClock(func() time.Time { return fixedNow }),
	)
	f.pool = services.NewAssignmentService(f.assignments, f.directory, bus)
	return f
}

func scoringOpts() configuration.ScoringOptions {
	return configuration.ScoringOptions{
		HeadroomWeight:   0.35,
		SuccessWeight:    0.30,
		PreferenceWeight: 0.20,
		RecencyWeight:    0.15,
		RecencyHorizon:   720 * time.Hour,
	}
}

// addWindow seeds a capacity window for the default placement period.
func (f *fixture) addWindow(siteID, programID uuid.UUID, max int) capacity.WindowKey {
	f.t.Helper()
	key := capacity.WindowKey{
		SiteID:      siteID,
		ProgramID:   programID,
		PeriodStart: fixedNow.AddDate(0, -1, 0),
		PeriodEnd:   fixedNow.AddDate(0, 2, 0),
	}
	_, err := f.windows.Create(context.Background(), capacity.New(key, max))
	require.NoError(f.t, err)
	return key
}

// addStudent seeds a directory profile and its unassigned pool record.
func (f *fixture) addStudent(programID uuid.UUID, prefs ...string) assignment.Assignment {
	f.t.Helper()
	studentID := uuid.New()
	f.directory.profiles[studentID] = eligibility.StudentProfile{
		StudentID:          studentID,
		ProgramID:          programID,
		PreferredLocations: prefs,
	}
	a, err := f.assignments.Create(context.Background(), assignment.New(studentID, programID))
	require.NoError(f.t, err)
	return a
}

// activeBatch creates a batch holding the given assignments and moves it to
// active.
func (f *fixture) activeBatch(name string, members ...assignment.Assignment) batch.Batch {
	f.t.Helper()
	ctx := context.Background()
	b, err := f.batchSvc.Create(ctx, name, nil)
	require.NoError(f.t, err)

	ids := make([]uuid.UUID, len(members))
	for i, m := range members {
		ids[i] = m.ID()
	}
	b, itemErrs, err := f.batchSvc.AddStudents(ctx, b.ID(), ids)
	require.NoError(f.t, err)
	require.Empty(f.t, itemErrs)

	b, err = f.batchSvc.Transition(ctx, b.ID(), batch.StatusActive)
	require.NoError(f.t, err)
	return b
}
