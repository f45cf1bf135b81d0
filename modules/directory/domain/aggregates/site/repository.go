package site

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (Site, error)
	GetAll(ctx context.Context) ([]Site, error)
	Create(ctx context.Context, s Site) error
	Update(ctx context.Context, s Site) error

	// GetStats returns zero-valued stats when the pair has no history yet.
	GetStats(ctx context.Context, siteID, programID uuid.UUID) (ProgramStats, error)
	SaveStats(ctx context.Context, stats ProgramStats) error
}
