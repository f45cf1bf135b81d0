package persistence

import (
	"context"
	"errors"
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/campusops/placement/modules/directory/domain/aggregates/site"
	"github.com/campusops/placement/pkg/composables"
)

type SiteRepository struct{}

func NewSiteRepository() site.Repository {
	return &SiteRepository{}
}

func (r *SiteRepository) GetByID(ctx context.Context, id uuid.UUID) (site.Site, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return site.Site{}, err
	}

	var (
		name, location       string
		createdAt, updatedAt time.Time
	)
	err = tx.QueryRow(ctx, `
SELECT name, location, created_at, updated_at FROM sites WHERE id = $1
`, id).Scan(&name, &location, &createdAt, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return site.Site{}, site.ErrNotFound.WithDetails("site %s", id)
	}
	if err != nil {
		return site.Site{}, err
	}
	return site.Hydrate(id, name, location, createdAt, updatedAt), nil
}

func (r *SiteRepository) GetAll(ctx context.Context) ([]site.Site, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
SELECT id, name, location, created_at, updated_at FROM sites ORDER BY name, id
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []site.Site
	for rows.Next() {
		var (
			id                   uuid.UUID
			name, location       string
			createdAt, updatedAt time.Time
		)
		if err := rows.Scan(&id, &name, &location, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		items = append(items, site.Hydrate(id, name, location, createdAt, updatedAt))
	}
	return items, rows.Err()
}

func (r *SiteRepository) Create(ctx context.Context, s site.Site) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
INSERT INTO sites (id, name, location) VALUES ($1, $2, $3)
`, s.ID(), s.Name(), s.Location())
	if err != nil {
		return gerrors.Wrap(err, "failed to create site")
	}
	return nil
}

func (r *SiteRepository) Update(ctx context.Context, s site.Site) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `
UPDATE sites SET name = $2, location = $3, updated_at = now() WHERE id = $1
`, s.ID(), s.Name(), s.Location())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return site.ErrNotFound.WithDetails("site %s", s.ID())
	}
	return nil
}

func (r *SiteRepository) GetStats(ctx context.Context, siteID, programID uuid.UUID) (site.ProgramStats, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return site.ProgramStats{}, err
	}

	var (
		placements, completions int
		lastAssignedAt          *time.Time
	)
	err = tx.QueryRow(ctx, `
SELECT placements, completions, last_assigned_at
  FROM site_program_stats
 WHERE site_id = $1 AND program_id = $2
`, siteID, programID).Scan(&placements, &completions, &lastAssignedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return site.ProgramStats{}, nil
	}
	if err != nil {
		return site.ProgramStats{}, err
	}
	stats := site.ProgramStats{
		SiteID:      siteID,
		ProgramID:   programID,
		Placements:  placements,
		Completions: completions,
	}
	if lastAssignedAt != nil {
		stats.LastAssignedAt = *lastAssignedAt
	}
	return stats, nil
}

func (r *SiteRepository) SaveStats(ctx context.Context, stats site.ProgramStats) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	var lastAssignedAt *time.Time
	if !stats.LastAssignedAt.IsZero() {
		at := stats.LastAssignedAt
		lastAssignedAt = &at
	}
	_, err = tx.Exec(ctx, `
INSERT INTO site_program_stats (site_id, program_id, placements, completions, last_assigned_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (site_id, program_id) DO UPDATE
   SET placements = EXCLUDED.placements,
       completions = EXCLUDED.completions,
       last_assigned_at = EXCLUDED.last_assigned_at
`, stats.SiteID, stats.ProgramID, stats.Placements, stats.Completions, lastAssignedAt)
	if err != nil {
		return gerrors.Wrap(err, "failed to save site program stats")
	}
	return nil
}
