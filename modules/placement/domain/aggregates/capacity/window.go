package capacity

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/campusops/placement/pkg/serrors"
)

var (
	ErrNotFound             = serrors.NewError("capacity_window_not_found", "capacity window not found", "")
	ErrInsufficientCapacity = serrors.NewError("insufficient_capacity", "not enough spots available", "")
	ErrConcurrencyConflict  = serrors.NewError("concurrency_conflict", "capacity window was modified concurrently", "")
	ErrWindowHalted         = serrors.NewError("window_halted", "capacity window is halted and refuses writes", "")
	ErrLedgerInvariant      = serrors.NewError("ledger_invariant_violation", "capacity window reached an impossible state", "")
	ErrInvalidAmount        = serrors.NewError("invalid_amount", "amount must be positive", "")
)

// WindowKey identifies one unit of placeable capacity.
type WindowKey struct {
	SiteID      uuid.UUID
	ProgramID   uuid.UUID
	PeriodStart time.Time
	PeriodEnd   time.Time
}

func (k WindowKey) String() string {
	return fmt.Sprintf("%s/%s/%s..%s",
		k.SiteID, k.ProgramID,
		k.PeriodStart.UTC().Format(time.RFC3339),
		k.PeriodEnd.UTC().Format(time.RFC3339),
	)
}

func (k WindowKey) Equal(other WindowKey) bool {
	return k.SiteID == other.SiteID &&
		k.ProgramID == other.ProgramID &&
		k.PeriodStart.Equal(other.PeriodStart) &&
		k.PeriodEnd.Equal(other.PeriodEnd)
}

type Window struct {
	key            WindowKey
	maxCapacity    int
	availableSpots int
	version        int64
	halted         bool
	createdAt      time.Time
	updatedAt      time.Time
}

func New(key WindowKey, maxCapacity int) Window {
	return Window{
		key:            key,
		maxCapacity:    maxCapacity,
		availableSpots: maxCapacity,
		version:        1,
	}
}

func Hydrate(
	key WindowKey,
	maxCapacity int,
	availableSpots int,
	version int64,
	halted bool,
	createdAt time.Time,
	updatedAt time.Time,
) Window {
	return Window{
		key:            key,
		maxCapacity:    maxCapacity,
		availableSpots: availableSpots,
		version:        version,
		halted:         halted,
		createdAt:      createdAt,
		updatedAt:      updatedAt,
	}
}

func (w Window) Key() WindowKey       { return w.key }
func (w Window) MaxCapacity() int     { return w.maxCapacity }
func (w Window) AvailableSpots() int  { return w.availableSpots }
func (w Window) Version() int64       { return w.version }
func (w Window) Halted() bool         { return w.halted }
func (w Window) CreatedAt() time.Time { return w.createdAt }
func (w Window) UpdatedAt() time.Time { return w.updatedAt }
func (w Window) IsZero() bool         { return w.key == (WindowKey{}) && w.version == 0 }

func (w Window) Expired(now time.Time) bool {
	return !w.key.PeriodEnd.After(now)
}

// Headroom is the available/max ratio used as a scoring factor.
func (w Window) Headroom() float64 {
	if w.maxCapacity <= 0 {
		return 0
	}
	return float64(w.availableSpots) / float64(w.maxCapacity)
}

// Reserve returns a copy with n spots consumed. The version is not bumped
// here; the repository's conditional write owns the increment.
func (w Window) Reserve(n int) (Window, error) {
	if n <= 0 {
		return Window{}, ErrInvalidAmount.WithDetails("reserve %d", n)
	}
	if w.halted {
		return Window{}, ErrWindowHalted.WithDetails("window %s", w.key)
	}
	if w.availableSpots < n {
		return Window{}, ErrInsufficientCapacity.WithDetails("window %s has %d of %d requested", w.key, w.availableSpots, n)
	}
	w.availableSpots -= n
	return w, nil
}

// Release returns a copy with n spots returned, capped at max capacity.
func (w Window) Release(n int) (Window, error) {
	if n <= 0 {
		return Window{}, ErrInvalidAmount.WithDetails("release %d", n)
	}
	if w.halted {
		return Window{}, ErrWindowHalted.WithDetails("window %s", w.key)
	}
	w.availableSpots += n
	if w.availableSpots > w.maxCapacity {
		w.availableSpots = w.maxCapacity
	}
	return w, nil
}

// CheckInvariant reports whether the window is in an impossible state.
// Callers halt the window when this fails; the state is never clamped.
func (w Window) CheckInvariant() error {
	if w.availableSpots < 0 || w.availableSpots > w.maxCapacity {
		return ErrLedgerInvariant.WithDetails("window %s has %d available of %d max", w.key, w.availableSpots, w.maxCapacity)
	}
	return nil
}

// AuditEntry records one successful reserve or release.
type AuditEntry struct {
	Key        WindowKey
	Delta      int
	Resulting  int
	Actor      string
	OccurredAt time.Time
}
