// Package memory holds in-process repository implementations backing tests
// and local development. They honor the same contracts as the SQL
// repositories, including the conditional-version writes on capacity windows
// and assignments.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/campusops/placement/modules/placement/domain/aggregates/capacity"
)

type CapacityRepository struct {
	mu      sync.Mutex
	windows map[string]capacity.Window
	audit   []capacity.AuditEntry
}

func NewCapacityRepository() *CapacityRepository {
	return &CapacityRepository{
		windows: map[string]capacity.Window{},
	}
}

func (r *CapacityRepository) GetByKey(_ context.Context, key capacity.WindowKey) (capacity.Window, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.windows[key.String()]
	if !ok {
		return capacity.Window{}, capacity.ErrNotFound.WithDetails("window %s", key)
	}
	return w, nil
}

func (r *CapacityRepository) ListByProgram(_ context.Context, programID uuid.UUID) ([]capacity.Window, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []capacity.Window
	for _, w := range r.windows {
		if w.Key().ProgramID == programID {
			out = append(out, w)
		}
	}
	return out, nil
}

func (r *CapacityRepository) Create(_ context.Context, w capacity.Window) (capacity.Window, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := capacity.Hydrate(
		w.Key(), w.MaxCapacity(), w.AvailableSpots(), w.Version(), w.Halted(),
		time.Now().UTC(), time.Now().UTC(),
	)
	r.windows[w.Key().String()] = stored
	return stored, nil
}

func (r *CapacityRepository) UpdateSpots(_ context.Context, key capacity.WindowKey, newAvailable int, expectedVersion int64) (capacity.Window, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.windows[key.String()]
	if !ok {
		return capacity.Window{}, capacity.ErrNotFound.WithDetails("window %s", key)
	}
	if w.Version() != expectedVersion {
		return capacity.Window{}, capacity.ErrConcurrencyConflict.WithDetails(
			"window %s at version %d, expected %d", key, w.Version(), expectedVersion)
	}
	updated := capacity.Hydrate(
		w.Key(), w.MaxCapacity(), newAvailable, w.Version()+1, w.Halted(),
		w.CreatedAt(), time.Now().UTC(),
	)
	r.windows[key.String()] = updated
	return updated, nil
}

func (r *CapacityRepository) MarkHalted(_ context.Context, key capacity.WindowKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.windows[key.String()]
	if !ok {
		return capacity.ErrNotFound.WithDetails("window %s", key)
	}
	r.windows[key.String()] = capacity.Hydrate(
		w.Key(), w.MaxCapacity(), w.AvailableSpots(), w.Version(), true,
		w.CreatedAt(), time.Now().UTC(),
	)
	return nil
}

func (r *CapacityRepository) AppendAudit(_ context.Context, entry capacity.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.audit = append(r.audit, entry)
	return nil
}

func (r *CapacityRepository) ListAudit(_ context.Context, key capacity.WindowKey) ([]capacity.AuditEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []capacity.AuditEntry
	for _, e := range r.audit {
		if e.Key.Equal(key) {
			out = append(out, e)
		}
	}
	return out, nil
}
