package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/campusops/placement/modules/placement/domain/aggregates/execution"
)

type ExecutionRepository struct {
	mu      sync.Mutex
	results []execution.Result
}

func NewExecutionRepository() *ExecutionRepository {
	return &ExecutionRepository{}
}

func (r *ExecutionRepository) ListByBatch(_ context.Context, batchID uuid.UUID) ([]execution.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []execution.Result
	for _, res := range r.results {
		if res.BatchID() == batchID {
			out = append(out, res)
		}
	}
	return out, nil
}

func (r *ExecutionRepository) ListByAssignment(_ context.Context, assignmentID uuid.UUID) ([]execution.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []execution.Result
	for _, res := range r.results {
		if res.AssignmentID() == assignmentID {
			out = append(out, res)
		}
	}
	return out, nil
}

func (r *ExecutionRepository) Append(_ context.Context, res execution.Result) (execution.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
	return res, nil
}
