package batch

import (
	"context"

	"github.com/google/uuid"
)

type FindParams struct {
	Status Status
	Limit  int
	Offset int
}

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (Batch, error)
	GetPaginated(ctx context.Context, params *FindParams) ([]Batch, int64, error)
	Create(ctx context.Context, b Batch) (Batch, error)
	Update(ctx context.Context, b Batch) (Batch, error)
}
