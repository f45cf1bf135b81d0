package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/campusops/placement/modules/placement/domain/aggregates/batch"
)

type BatchRepository struct {
	mu    sync.Mutex
	items map[uuid.UUID]batch.Batch
}

func NewBatchRepository() *BatchRepository {
	return &BatchRepository{
		items: map[uuid.UUID]batch.Batch{},
	}
}

func (r *BatchRepository) GetByID(_ context.Context, id uuid.UUID) (batch.Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.items[id]
	if !ok {
		return batch.Batch{}, batch.ErrNotFound.WithDetails("batch %s", id)
	}
	return b, nil
}

func (r *BatchRepository) GetPaginated(_ context.Context, params *batch.FindParams) ([]batch.Batch, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []batch.Batch
	for _, b := range r.items {
		if params != nil && params.Status != "" && b.Status() != params.Status {
			continue
		}
		all = append(all, b)
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

func (r *BatchRepository) Create(_ context.Context, b batch.Batch) (batch.Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[b.ID()] = b
	return b, nil
}

func (r *BatchRepository) Update(_ context.Context, b batch.Batch) (batch.Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[b.ID()]; !ok {
		return batch.Batch{}, batch.ErrNotFound.WithDetails("batch %s", b.ID())
	}
	r.items[b.ID()] = b
	return b, nil
}
