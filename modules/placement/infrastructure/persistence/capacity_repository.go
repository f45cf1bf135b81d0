package persistence

import (
	"context"
	"errors"
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/campusops/placement/modules/placement/domain/aggregates/capacity"
	"github.com/campusops/placement/pkg/composables"
)

const windowColumns = `site_id, program_id, period_start, period_end,
	max_capacity, available_spots, version, halted, created_at, updated_at`

type CapacityRepository struct{}

func NewCapacityRepository() capacity.Repository {
	return &CapacityRepository{}
}

func (r *CapacityRepository) GetByKey(ctx context.Context, key capacity.WindowKey) (capacity.Window, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return capacity.Window{}, err
	}
	row := tx.QueryRow(ctx, `
SELECT `+windowColumns+`
  FROM capacity_windows
 WHERE site_id = $1 AND program_id = $2 AND period_start = $3 AND period_end = $4
`, key.SiteID, key.ProgramID, key.PeriodStart, key.PeriodEnd)
	w, err := scanWindow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return capacity.Window{}, capacity.ErrNotFound.WithDetails("window %s", key)
	}
	return w, err
}

func (r *CapacityRepository) ListByProgram(ctx context.Context, programID uuid.UUID) ([]capacity.Window, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
SELECT `+windowColumns+`
  FROM capacity_windows
 WHERE program_id = $1
 ORDER BY site_id, period_start
`, programID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []capacity.Window
	for rows.Next() {
		w, err := scanWindow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (r *CapacityRepository) Create(ctx context.Context, w capacity.Window) (capacity.Window, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return capacity.Window{}, err
	}
	key := w.Key()
	row := tx.QueryRow(ctx, `
INSERT INTO capacity_windows (site_id, program_id, period_start, period_end,
	max_capacity, available_spots, version, halted)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING `+windowColumns+`
`, key.SiteID, key.ProgramID, key.PeriodStart, key.PeriodEnd,
		w.MaxCapacity(), w.AvailableSpots(), w.Version(), w.Halted())
	return scanWindow(row)
}

func (r *CapacityRepository) UpdateSpots(ctx context.Context, key capacity.WindowKey, newAvailable int, expectedVersion int64) (capacity.Window, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return capacity.Window{}, err
	}
	row := tx.QueryRow(ctx, `
UPDATE capacity_windows
   SET available_spots = $5,
       version = version + 1,
       updated_at = now()
 WHERE site_id = $1 AND program_id = $2 AND period_start = $3 AND period_end = $4
   AND version = $6
RETURNING `+windowColumns+`
`, key.SiteID, key.ProgramID, key.PeriodStart, key.PeriodEnd, newAvailable, expectedVersion)
	w, err := scanWindow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		// distinguish a missing row from a lost race
		var version int64
		probe := tx.QueryRow(ctx, `
SELECT version FROM capacity_windows
 WHERE site_id = $1 AND program_id = $2 AND period_start = $3 AND period_end = $4
`, key.SiteID, key.ProgramID, key.PeriodStart, key.PeriodEnd)
		if probeErr := probe.Scan(&version); probeErr != nil {
			if errors.Is(probeErr, pgx.ErrNoRows) {
				return capacity.Window{}, capacity.ErrNotFound.WithDetails("window %s", key)
			}
			return capacity.Window{}, probeErr
		}
		return capacity.Window{}, capacity.ErrConcurrencyConflict.WithDetails(
			"window %s at version %d, expected %d", key, version, expectedVersion)
	}
	return w, err
}

func (r *CapacityRepository) MarkHalted(ctx context.Context, key capacity.WindowKey) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `
UPDATE capacity_windows
   SET halted = true, updated_at = now()
 WHERE site_id = $1 AND program_id = $2 AND period_start = $3 AND period_end = $4
`, key.SiteID, key.ProgramID, key.PeriodStart, key.PeriodEnd)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return capacity.ErrNotFound.WithDetails("window %s", key)
	}
	return nil
}

func (r *CapacityRepository) AppendAudit(ctx context.Context, entry capacity.AuditEntry) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
INSERT INTO capacity_audit (site_id, program_id, period_start, period_end,
	delta, resulting, actor, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`, entry.Key.SiteID, entry.Key.ProgramID, entry.Key.PeriodStart, entry.Key.PeriodEnd,
		entry.Delta, entry.Resulting, entry.Actor, entry.OccurredAt)
	if err != nil {
		return gerrors.Wrap(err, "failed to append capacity audit entry")
	}
	return nil
}

func (r *CapacityRepository) ListAudit(ctx context.Context, key capacity.WindowKey) ([]capacity.AuditEntry, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
SELECT delta, resulting, actor, occurred_at
  FROM capacity_audit
 WHERE site_id = $1 AND program_id = $2 AND period_start = $3 AND period_end = $4
 ORDER BY id
`, key.SiteID, key.ProgramID, key.PeriodStart, key.PeriodEnd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []capacity.AuditEntry
	for rows.Next() {
		e := capacity.AuditEntry{Key: key}
		if err := rows.Scan(&e.Delta, &e.Resulting, &e.Actor, &e.OccurredAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanWindow(row pgx.Row) (capacity.Window, error) {
	var (
		key                         capacity.WindowKey
		maxCapacity, availableSpots int
		version                     int64
		halted                      bool
		createdAt, updatedAt        time.Time
	)
	if err := row.Scan(
		&key.SiteID, &key.ProgramID, &key.PeriodStart, &key.PeriodEnd,
		&maxCapacity, &availableSpots, &version, &halted, &createdAt, &updatedAt,
	); err != nil {
		return capacity.Window{}, err
	}
	return capacity.Hydrate(key, maxCapacity, availableSpots, version, halted, createdAt, updatedAt), nil
}
