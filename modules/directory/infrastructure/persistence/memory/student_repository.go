// Package memory holds map-backed repositories for tests and local runs
// without a database.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/campusops/placement/modules/directory/domain/aggregates/student"
)

type StudentRepository struct {
	mu    sync.Mutex
	items map[uuid.UUID]student.Student
}

func NewStudentRepository() *StudentRepository {
	return &StudentRepository{
		items: map[uuid.UUID]student.Student{},
	}
}

func (r *StudentRepository) GetByID(_ context.Context, id uuid.UUID) (student.Student, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.items[id]
	if !ok {
		return student.Student{}, student.ErrNotFound.WithDetails("student %s", id)
	}
	return s, nil
}

func (r *StudentRepository) GetPaginated(_ context.Context, params *student.FindParams) ([]student.Student, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []student.Student
	for _, s := range r.items {
		if params != nil && params.ProgramID != nil && s.ProgramID() != *params.ProgramID {
			continue
		}
		all = append(all, s)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].ID().String() < all[j].ID().String()
	})
	total := int64(len(all))
	if params != nil {
		if params.Offset > 0 {
			if params.Offset >= len(all) {
				return nil, total, nil
			}
			all = all[params.Offset:]
		}
		if params.Limit > 0 && params.Limit < len(all) {
			all = all[:params.Limit]
		}
	}
	return all, total, nil
}

func (r *StudentRepository) Create(_ context.Context, s student.Student) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[s.ID()] = s
	return nil
}

func (r *StudentRepository) Update(_ context.Context, s student.Student) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[s.ID()]; !ok {
		return student.ErrNotFound.WithDetails("student %s", s.ID())
	}
	r.items[s.ID()] = s
	return nil
}
