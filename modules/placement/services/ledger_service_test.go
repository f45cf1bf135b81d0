package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/campusops/placement/modules/placement/domain/aggregates/capacity"
	"github.com/campusops/placement/modules/placement/infrastructure/persistence/memory"
	"github.com/campusops/placement/modules/placement/services"
	"github.com/campusops/placement/pkg/configuration"
)

func ledgerOpts() configuration.LedgerOptions {
	return configuration.LedgerOptions{
		MaxAttempts: 5,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  10 * time.Millisecond,
	}
}

func seedWindow(t *testing.T, repo *memory.CapacityRepository, max int) capacity.WindowKey {
	t.Helper()
	key := capacity.WindowKey{
		SiteID:      uuid.New(),
		ProgramID:   uuid.New(),
		PeriodStart: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2026, 12, 20, 0, 0, 0, 0, time.UTC),
	}
	_, err := repo.Create(context.Background(), capacity.New(key, max))
	require.NoError(t, err)
	return key
}

func TestLedgerReserveAndRelease(t *testing.T) {
	repo := memory.NewCapacityRepository()
	svc := services.NewLedgerService(repo, ledgerOpts())
	ctx := context.Background()
	key := seedWindow(t, repo, 3)

	w, err := svc.Reserve(ctx, key, 2)
	require.NoError(t, err)
	require.Equal(t, 1, w.AvailableSpots())

	_, err = svc.Reserve(ctx, key, 2)
	require.ErrorIs(t, err, capacity.ErrInsufficientCapacity)

	w, err = svc.Release(ctx, key, 1)
	require.NoError(t, err)
	require.Equal(t, 2, w.AvailableSpots())

	// release never exceeds max even when over-released
	w, err = svc.Release(ctx, key, 5)
	require.NoError(t, err)
	require.Equal(t, 3, w.AvailableSpots())
	require.NoError(t, w.CheckInvariant())
}

func TestLedgerUnknownWindow(t *testing.T) {
	svc := services.NewLedgerService(memory.NewCapacityRepository(), ledgerOpts())
	_, err := svc.Get(context.Background(), capacity.WindowKey{SiteID: uuid.New()})
	require.ErrorIs(t, err, capacity.ErrNotFound)

	_, err = svc.Reserve(context.Background(), capacity.WindowKey{SiteID: uuid.New()}, 1)
	require.ErrorIs(t, err, capacity.ErrNotFound)
}

func TestLedgerAppendsAudit(t *testing.T) {
	repo := memory.NewCapacityRepository()
	svc := services.NewLedgerService(repo, ledgerOpts())
	ctx := context.Background()
	key := seedWindow(t, repo, 2)

	_, err := svc.Reserve(ctx, key, 1)
	require.NoError(t, err)
	_, err = svc.Release(ctx, key, 1)
	require.NoError(t, err)

	entries, err := svc.Audit(ctx, key)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, -1, entries[0].Delta)
	require.Equal(t, 1, entries[0].Resulting)
	require.Equal(t, 1, entries[1].Delta)
	require.Equal(t, 2, entries[1].Resulting)
	require.Equal(t, "system", entries[0].Actor)
}

// conflictingRepo fails every conditional write so the retry budget runs out.
type conflictingRepo struct {
	*memory.CapacityRepository
	attempts int
}

func (r *conflictingRepo) UpdateSpots(ctx context.Context, key capacity.WindowKey, newAvailable int, expectedVersion int64) (capacity.Window, error) {
	r.attempts++
	return capacity.Window{}, capacity.ErrConcurrencyConflict
}

func TestLedgerRetryExhaustion(t *testing.T) {
	inner := memory.NewCapacityRepository()
	repo := &conflictingRepo{CapacityRepository: inner}
	svc := services.NewLedgerService(repo, ledgerOpts())
	key := seedWindow(t, inner, 2)

	_, err := svc.Reserve(context.Background(), key, 1)
	require.ErrorIs(t, err, capacity.ErrConcurrencyConflict)
	require.Equal(t, 5, repo.attempts)
}

func TestLedgerHaltedWindowRefusesWrites(t *testing.T) {
	repo := memory.NewCapacityRepository()
	svc := services.NewLedgerService(repo, ledgerOpts())
	ctx := context.Background()
	key := seedWindow(t, repo, 2)
	require.NoError(t, repo.MarkHalted(ctx, key))

	_, err := svc.Reserve(ctx, key, 1)
	require.ErrorIs(t, err, capacity.ErrWindowHalted)
	_, err = svc.Release(ctx, key, 1)
	require.ErrorIs(t, err, capacity.ErrWindowHalted)
}

// corruptingRepo returns an impossible state from the conditional write to
// exercise the halt path.
type corruptingRepo struct {
	*memory.CapacityRepository
}

func (r *corruptingRepo) UpdateSpots(ctx context.Context, key capacity.WindowKey, newAvailable int, expectedVersion int64) (capacity.Window, error) {
	w, err := r.CapacityRepository.UpdateSpots(ctx, key, newAvailable, expectedVersion)
	if err != nil {
		return capacity.Window{}, err
	}
	return capacity.Hydrate(
		w.Key(), w.MaxCapacity(), -1, w.Version(), w.Halted(),
		w.CreatedAt(), w.UpdatedAt(),
	), nil
}

func TestLedgerInvariantViolationHaltsWindow(t *testing.T) {
	inner := memory.NewCapacityRepository()
	svc := services.NewLedgerService(&corruptingRepo{CapacityRepository: inner}, ledgerOpts())
	ctx := context.Background()
	key := seedWindow(t, inner, 2)

	_, err := svc.Reserve(ctx, key, 1)
	require.ErrorIs(t, err, capacity.ErrLedgerInvariant)

	w, err := inner.GetByKey(ctx, key)
	require.NoError(t, err)
	require.True(t, w.Halted())
}

// Two racing reservations for the last remaining slot: exactly one commits.
func TestLedgerLastSlotRace(t *testing.T) {
	repo := memory.NewCapacityRepository()
	svc := services.NewLedgerService(repo, ledgerOpts())
	ctx := context.Background()
	key := seedWindow(t, repo, 1)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Reserve(ctx, key, 1)
		}(i)
	}
	wg.Wait()

	var committed, insufficient int
	for _, err := range errs {
		switch {
		case err == nil:
			committed++
		case isInsufficient(err):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, committed)
	require.Equal(t, 1, insufficient)

	w, err := repo.GetByKey(ctx, key)
	require.NoError(t, err)
	require.Equal(t, 0, w.AvailableSpots())
}
