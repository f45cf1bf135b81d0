package assignment

import (
	"context"

	"github.com/google/uuid"

	"github.com/campusops/placement/modules/placement/domain/aggregates/capacity"
)

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (Assignment, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]Assignment, error)
	ListByBatch(ctx context.Context, batchID uuid.UUID) ([]Assignment, error)
	CountAssignedInWindow(ctx context.Context, key capacity.WindowKey) (int64, error)
	Create(ctx context.Context, a Assignment) (Assignment, error)
	Update(ctx context.Context, a Assignment) (Assignment, error)
}
