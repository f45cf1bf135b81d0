package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/campusops/placement/modules/placement/domain/aggregates/assignment"
	"github.com/campusops/placement/modules/placement/domain/aggregates/capacity"
	"github.com/campusops/placement/pkg/composables"
)

const assignmentColumns = `id, student_id, program_id, status,
	site_id, period_start, period_end, batch_id, version, created_at, updated_at`

type AssignmentRepository struct{}

func NewAssignmentRepository() assignment.Repository {
	return &AssignmentRepository{}
}

func (r *AssignmentRepository) GetByID(ctx context.Context, id uuid.UUID) (assignment.Assignment, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return assignment.Assignment{}, err
	}
	row := tx.QueryRow(ctx, `
SELECT `+assignmentColumns+` FROM assignments WHERE id = $1
`, id)
	a, err := scanAssignment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return assignment.Assignment{}, assignment.ErrNotFound.WithDetails("assignment %s", id)
	}
	return a, err
}

func (r *AssignmentRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]assignment.Assignment, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
SELECT `+assignmentColumns+` FROM assignments WHERE id = ANY($1) ORDER BY id
`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]assignment.Assignment, 0, len(ids))
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) != len(ids) {
		return nil, assignment.ErrNotFound.WithDetails("requested %d assignments, found %d", len(ids), len(out))
	}
	return out, nil
}

func (r *AssignmentRepository) ListByBatch(ctx context.Context, batchID uuid.UUID) ([]assignment.Assignment, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
SELECT `+assignmentColumns+` FROM assignments WHERE batch_id = $1 ORDER BY id
`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []assignment.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *AssignmentRepository) CountAssignedInWindow(ctx context.Context, key capacity.WindowKey) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	var n int64
	err = tx.QueryRow(ctx, `
SELECT count(*) FROM assignments
 WHERE status = $1 AND site_id = $2 AND program_id = $3
   AND period_start = $4 AND period_end = $5
`, assignment.StatusAssigned, key.SiteID, key.ProgramID, key.PeriodStart, key.PeriodEnd).Scan(&n)
	return n, err
}

func (r *AssignmentRepository) Create(ctx context.Context, a assignment.Assignment) (assignment.Assignment, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return assignment.Assignment{}, err
	}
	siteID, periodStart, periodEnd := windowParts(a.AssignedWindow())
	row := tx.QueryRow(ctx, `
INSERT INTO assignments (id, student_id, program_id, status, site_id, period_start, period_end, batch_id, version)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING `+assignmentColumns+`
`, a.ID(), a.StudentID(), a.ProgramID(), a.Status(), siteID, periodStart, periodEnd, a.BatchID(), a.Version())
	return scanAssignment(row)
}

func (r *AssignmentRepository) Update(ctx context.Context, a assignment.Assignment) (assignment.Assignment, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return assignment.Assignment{}, err
	}
	siteID, periodStart, periodEnd := windowParts(a.AssignedWindow())
	row := tx.QueryRow(ctx, `
UPDATE assignments
   SET status = $2,
       site_id = $3,
       period_start = $4,
       period_end = $5,
       batch_id = $6,
       version = version + 1,
       updated_at = now()
 WHERE id = $1
   AND version = $7
RETURNING `+assignmentColumns+`
`, a.ID(), a.Status(), siteID, periodStart, periodEnd, a.BatchID(), a.Version())
	updated, err := scanAssignment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		// distinguish a missing row from a lost race
		var version int64
		probe := tx.QueryRow(ctx, `SELECT version FROM assignments WHERE id = $1`, a.ID())
		if probeErr := probe.Scan(&version); probeErr != nil {
			if errors.Is(probeErr, pgx.ErrNoRows) {
				return assignment.Assignment{}, assignment.ErrNotFound.WithDetails("assignment %s", a.ID())
			}
			return assignment.Assignment{}, probeErr
		}
		return assignment.Assignment{}, assignment.ErrConcurrencyConflict.WithDetails(
			"assignment %s at version %d, expected %d", a.ID(), version, a.Version())
	}
	return updated, err
}

func windowParts(key *capacity.WindowKey) (*uuid.UUID, *time.Time, *time.Time) {
	if key == nil {
		return nil, nil, nil
	}
	return &key.SiteID, &key.PeriodStart, &key.PeriodEnd
}

func scanAssignment(row pgx.Row) (assignment.Assignment, error) {
	var (
		id, studentID, programID uuid.UUID
		status                   assignment.Status
		siteID, batchID          *uuid.UUID
		periodStart, periodEnd   *time.Time
		version                  int64
		createdAt, updatedAt     time.Time
	)
	if err := row.Scan(
		&id, &studentID, &programID, &status,
		&siteID, &periodStart, &periodEnd, &batchID, &version, &createdAt, &updatedAt,
	); err != nil {
		return assignment.Assignment{}, err
	}

	var window *capacity.WindowKey
	if siteID != nil && periodStart != nil && periodEnd != nil {
		window = &capacity.WindowKey{
			SiteID:      *siteID,
			ProgramID:   programID,
			PeriodStart: *periodStart,
			PeriodEnd:   *periodEnd,
		}
	}
	return assignment.Hydrate(id, studentID, programID, status, window, batchID, version, createdAt, updatedAt), nil
}
