package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/campusops/placement/modules/placement/domain/aggregates/assignment"
	"github.com/campusops/placement/modules/placement/domain/aggregates/capacity"
)

type AssignmentRepository struct {
	mu    sync.Mutex
	items map[uuid.UUID]assignment.Assignment
}

func NewAssignmentRepository() *AssignmentRepository {
	return &AssignmentRepository{
		items: map[uuid.UUID]assignment.Assignment{},
	}
}

func (r *AssignmentRepository) GetByID(_ context.Context, id uuid.UUID) (assignment.Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.items[id]
	if !ok {
		return assignment.Assignment{}, assignment.ErrNotFound.WithDetails("assignment %s", id)
	}
	return a, nil
}

func (r *AssignmentRepository) GetByIDs(_ context.Context, ids []uuid.UUID) ([]assignment.Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]assignment.Assignment, 0, len(ids))
	for _, id := range ids {
		a, ok := r.items[id]
		if !ok {
			return nil, assignment.ErrNotFound.WithDetails("assignment %s", id)
		}
		out = append(out, a)
	}
	return out, nil
}

func (r *AssignmentRepository) ListByBatch(_ context.Context, batchID uuid.UUID) ([]assignment.Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []assignment.Assignment
	for _, a := range r.items {
		if b := a.BatchID(); b != nil && *b == batchID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID().String() < out[j].ID().String()
	})
	return out, nil
}

func (r *AssignmentRepository) CountAssignedInWindow(_ context.Context, key capacity.WindowKey) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, a := range r.items {
		if a.Status() != assignment.StatusAssigned {
			continue
		}
		if w := a.AssignedWindow(); w != nil && w.Equal(key) {
			n++
		}
	}
	return n, nil
}

func (r *AssignmentRepository) Create(_ context.Context, a assignment.Assignment) (assignment.Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[a.ID()] = a
	return a, nil
}

func (r *AssignmentRepository) Update(_ context.Context, a assignment.Assignment) (assignment.Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.items[a.ID()]
	if !ok {
		return assignment.Assignment{}, assignment.ErrNotFound.WithDetails("assignment %s", a.ID())
	}
	if cur.Version() != a.Version() {
		return assignment.Assignment{}, assignment.ErrConcurrencyConflict.WithDetails(
			"assignment %s at version %d, expected %d", a.ID(), cur.Version(), a.Version())
	}
	updated := assignment.Hydrate(
		a.ID(), a.StudentID(), a.ProgramID(), a.Status(),
		a.AssignedWindow(), a.BatchID(), a.Version()+1,
		a.CreatedAt(), time.Now().UTC(),
	)
	r.items[a.ID()] = updated
	return updated, nil
}
