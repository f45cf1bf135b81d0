package execution

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	ListByBatch(ctx context.Context, batchID uuid.UUID) ([]Result, error)
	ListByAssignment(ctx context.Context, assignmentID uuid.UUID) ([]Result, error)
	// Append stores the result and enqueues its notification in the same
	// transaction when the implementation is backed by the outbox.
	Append(ctx context.Context, r Result) (Result, error)
}
