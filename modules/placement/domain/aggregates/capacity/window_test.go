package capacity_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/campusops/placement/modules/placement/domain/aggregates/capacity"
)

func testKey() capacity.WindowKey {
	return capacity.WindowKey{
		SiteID:      uuid.MustParse("11111111-1111-1111-1111-111111111111"),
		ProgramID:   uuid.MustParse("22222222-2222-2222-2222-222222222222"),
		PeriodStart: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2026, 12, 20, 0, 0, 0, 0, time.UTC),
	}
}

func TestWindowReserve(t *testing.T) {
	w := capacity.New(testKey(), 2)

	w, err := w.Reserve(1)
	require.NoError(t, err)
	require.Equal(t, 1, w.AvailableSpots())

	w, err = w.Reserve(1)
	require.NoError(t, err)
	require.Equal(t, 0, w.AvailableSpots())

	_, err = w.Reserve(1)
	require.ErrorIs(t, err, capacity.ErrInsufficientCapacity)

	_, err = w.Reserve(0)
	require.ErrorIs(t, err, capacity.ErrInvalidAmount)
}

func TestWindowReleaseCapsAtMax(t *testing.T) {
	w := capacity.New(testKey(), 2)
	w, err := w.Reserve(1)
	require.NoError(t, err)

	w, err = w.Release(1)
	require.NoError(t, err)
	require.Equal(t, 2, w.AvailableSpots())

	w, err = w.Release(1)
	require.NoError(t, err)
	require.Equal(t, 2, w.AvailableSpots())
	require.NoError(t, w.CheckInvariant())
}

func TestWindowHaltedRefusesWrites(t *testing.T) {
	w := capacity.Hydrate(testKey(), 2, 2, 3, true, time.Now(), time.Now())

	_, err := w.Reserve(1)
	require.ErrorIs(t, err, capacity.ErrWindowHalted)

	_, err = w.Release(1)
	require.ErrorIs(t, err, capacity.ErrWindowHalted)
}

func TestWindowInvariant(t *testing.T) {
	bad := capacity.Hydrate(testKey(), 2, 3, 1, false, time.Now(), time.Now())
	require.ErrorIs(t, bad.CheckInvariant(), capacity.ErrLedgerInvariant)

	negative := capacity.Hydrate(testKey(), 2, -1, 1, false, time.Now(), time.Now())
	require.ErrorIs(t, negative.CheckInvariant(), capacity.ErrLedgerInvariant)
}

func TestWindowExpired(t *testing.T) {
	w := capacity.New(testKey(), 1)
	require.False(t, w.Expired(time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)))
	require.True(t, w.Expired(time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)))
}
