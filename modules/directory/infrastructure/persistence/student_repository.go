package persistence

import (
	"context"
	"errors"
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/campusops/placement/modules/directory/domain/aggregates/student"
	"github.com/campusops/placement/pkg/composables"
)

const studentColumns = `id, program_id, display_name, holds, preferred_locations, created_at, updated_at`

type StudentRepository struct{}

func NewStudentRepository() student.Repository {
	return &StudentRepository{}
}

func (r *StudentRepository) GetByID(ctx context.Context, id uuid.UUID) (student.Student, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return student.Student{}, err
	}

	row := tx.QueryRow(ctx, `
SELECT `+studentColumns+`
  FROM students WHERE id = $1
`, id)
	s, err := scanStudent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return student.Student{}, student.ErrNotFound.WithDetails("student %s", id)
	}
	return s, err
}

func (r *StudentRepository) GetPaginated(ctx context.Context, params *student.FindParams) ([]student.Student, int64, error) {
	if params == nil {
		params = &student.FindParams{}
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
SELECT `+studentColumns+`
  FROM students
 WHERE ($1::uuid IS NULL OR program_id = $1)
 ORDER BY created_at DESC, id
 LIMIT $2 OFFSET $3
`, params.ProgramID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []student.Student
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int64
	err = tx.QueryRow(ctx, `
SELECT COUNT(*) FROM students WHERE ($1::uuid IS NULL OR program_id = $1)
`, params.ProgramID).Scan(&total)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *StudentRepository) Create(ctx context.Context, s student.Student) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
INSERT INTO students (id, program_id, display_name, holds, preferred_locations)
VALUES ($1, $2, $3, $4, $5)
`, s.ID(), s.ProgramID(), s.DisplayName(), s.Holds(), s.PreferredLocations())
	if err != nil {
		return gerrors.Wrap(err, "failed to create student")
	}
	return nil
}

func (r *StudentRepository) Update(ctx context.Context, s student.Student) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `
UPDATE students
   SET program_id = $2, display_name = $3, holds = $4, preferred_locations = $5, updated_at = now()
 WHERE id = $1
`, s.ID(), s.ProgramID(), s.DisplayName(), s.Holds(), s.PreferredLocations())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return student.ErrNotFound.WithDetails("student %s", s.ID())
	}
	return nil
}

func scanStudent(row pgx.Row) (student.Student, error) {
	var (
		id, programID        uuid.UUID
		displayName          string
		holds, preferred     []string
		createdAt, updatedAt time.Time
	)
	err := row.Scan(&id, &programID, &displayName, &holds, &preferred, &createdAt, &updatedAt)
	if err != nil {
		return student.Student{}, err
	}
	return student.Hydrate(id, programID, displayName, holds, preferred, createdAt, updatedAt), nil
}
