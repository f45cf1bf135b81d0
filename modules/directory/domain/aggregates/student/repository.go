package student

import (
	"context"

	"github.com/google/uuid"
)

type FindParams struct {
	ProgramID *uuid.UUID
	Limit     int
	Offset    int
}

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (Student, error)
	GetPaginated(ctx context.Context, params *FindParams) ([]Student, int64, error)
	Create(ctx context.Context, s Student) error
	Update(ctx context.Context, s Student) error
}
