package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/campusops/placement/modules/placement/domain/aggregates/batch"
	"github.com/campusops/placement/pkg/composables"
)

type BatchRepository struct{}

func NewBatchRepository() batch.Repository {
	return &BatchRepository{}
}

func (r *BatchRepository) GetByID(ctx context.Context, id uuid.UUID) (batch.Batch, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return batch.Batch{}, err
	}

	var (
		name                 string
		programFilter        *uuid.UUID
		status               batch.Status
		createdAt, updatedAt time.Time
	)
	err = tx.QueryRow(ctx, `
SELECT name, program_filter, status, created_at, updated_at
  FROM batches WHERE id = $1
`, id).Scan(&name, &programFilter, &status, &createdAt, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return batch.Batch{}, batch.ErrNotFound.WithDetails("batch %s", id)
	}
	if err != nil {
		return batch.Batch{}, err
	}

	members, err := r.memberIDs(ctx, id)
	if err != nil {
		return batch.Batch{}, err
	}
	return batch.Hydrate(id, name, programFilter, status, members, createdAt, updatedAt), nil
}

func (r *BatchRepository) GetPaginated(ctx context.Context, params *batch.FindParams) ([]batch.Batch, int64, error) {
	if params == nil {
		params = &batch.FindParams{}
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, 0, err
	}

	limit := params.Limit
	if limit <= 0 {
		limit = 25
	}
	offset := params.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := tx.Query(ctx, `
SELECT id FROM batches
 WHERE ($1 = '' OR status = $1)
 ORDER BY created_at DESC, id
 LIMIT $2 OFFSET $3
`, string(params.Status), limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, 0, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int64
	if err := tx.QueryRow(ctx, `
SELECT count(*) FROM batches WHERE ($1 = '' OR status = $1)
`, string(params.Status)).Scan(&total); err != nil {
		return nil, 0, err
	}

	out := make([]batch.Batch, 0, len(ids))
	for _, id := range ids {
		b, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, b)
	}
	return out, total, nil
}

func (r *BatchRepository) Create(ctx context.Context, b batch.Batch) (batch.Batch, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return batch.Batch{}, err
	}
	_, err = tx.Exec(ctx, `
INSERT INTO batches (id, name, program_filter, status)
VALUES ($1, $2, $3, $4)
`, b.ID(), b.Name(), b.ProgramFilter(), b.Status())
	if err != nil {
		return batch.Batch{}, err
	}
	if err := r.replaceMembers(ctx, b); err != nil {
		return batch.Batch{}, err
	}
	return r.GetByID(ctx, b.ID())
}

func (r *BatchRepository) Update(ctx context.Context, b batch.Batch) (batch.Batch, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return batch.Batch{}, err
	}
	tag, err := tx.Exec(ctx, `
UPDATE batches
   SET name = $2, program_filter = $3, status = $4, updated_at = now()
 WHERE id = $1
`, b.ID(), b.Name(), b.ProgramFilter(), b.Status())
	if err != nil {
		return batch.Batch{}, err
	}
	if tag.RowsAffected() == 0 {
		return batch.Batch{}, batch.ErrNotFound.WithDetails("batch %s", b.ID())
	}
	if err := r.replaceMembers(ctx, b); err != nil {
		return batch.Batch{}, err
	}
	return r.GetByID(ctx, b.ID())
}

func (r *BatchRepository) memberIDs(ctx context.Context, batchID uuid.UUID) ([]uuid.UUID, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
SELECT assignment_id FROM batch_members WHERE batch_id = $1 ORDER BY assignment_id
`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *BatchRepository) replaceMembers(ctx context.Context, b batch.Batch) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM batch_members WHERE batch_id = $1`, b.ID()); err != nil {
		return err
	}
	for _, id := range b.MemberIDs() {
		if _, err := tx.Exec(ctx, `
INSERT INTO batch_members (batch_id, assignment_id) VALUES ($1, $2)
`, b.ID(), id); err != nil {
			return err
		}
	}
	return nil
}
