package capacity

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	GetByKey(ctx context.Context, key WindowKey) (Window, error)
	ListByProgram(ctx context.Context, programID uuid.UUID) ([]Window, error)
	Create(ctx context.Context, w Window) (Window, error)
	// UpdateSpots writes newAvailable only when the stored version still equals
	// expectedVersion, bumping the version on success. A losing writer gets
	// ErrConcurrencyConflict and must re-read before retrying.
	UpdateSpots(ctx context.Context, key WindowKey, newAvailable int, expectedVersion int64) (Window, error)
	MarkHalted(ctx context.Context, key WindowKey) error
	AppendAudit(ctx context.Context, entry AuditEntry) error
	ListAudit(ctx context.Context, key WindowKey) ([]AuditEntry, error)
}
