package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/campusops/placement/modules/directory/domain/aggregates/student"
	"github.com/campusops/placement/modules/placement/domain/eligibility"
	"github.com/campusops/placement/pkg/composables"
)

// StudentService owns enrollment records and answers eligibility lookups for
// the placement engine.
type StudentService struct {
	repo student.Repository
}

func NewStudentService(repo student.Repository) *StudentService {
	return &StudentService{repo: repo}
}

func (s *StudentService) GetByID(ctx context.Context, id uuid.UUID) (student.Student, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *StudentService) GetPaginated(ctx context.Context, params *student.FindParams) ([]student.Student, int64, error) {
	return s.repo.GetPaginated(ctx, params)
}

func (s *StudentService) Enroll(ctx context.Context, programID uuid.UUID, displayName string) (student.Student, error) {
	return composables.InTxResult(ctx, func(txCtx context.Context) (student.Student, error) {
		created := student.New(programID, displayName)
		if err := s.repo.Create(txCtx, created); err != nil {
			return student.Student{}, err
		}
		return created, nil
	})
}

func (s *StudentService) PlaceHold(ctx context.Context, id uuid.UUID, hold string) (student.Student, error) {
	return s.mutate(ctx, id, func(st student.Student) (student.Student, error) {
		return st.AddHold(hold)
	})
}

func (s *StudentService) ResolveHold(ctx context.Context, id uuid.UUID, hold string) (student.Student, error) {
	return s.mutate(ctx, id, func(st student.Student) (student.Student, error) {
		return st.ResolveHold(hold)
	})
}

func (s *StudentService) SetPreferredLocations(ctx context.Context, id uuid.UUID, locations []string) (student.Student, error) {
	return s.mutate(ctx, id, func(st student.Student) (student.Student, error) {
		return st.SetPreferredLocations(locations), nil
	})
}

// Profile adapts the enrollment record into the snapshot the placement engine
// checks eligibility against.
func (s *StudentService) Profile(ctx context.Context, studentID uuid.UUID) (eligibility.StudentProfile, error) {
	st, err := s.repo.GetByID(ctx, studentID)
	if err != nil {
		return eligibility.StudentProfile{}, err
	}
	return eligibility.StudentProfile{
		StudentID:          st.ID(),
		ProgramID:          st.ProgramID(),
		Holds:              st.Holds(),
		PreferredLocations: st.PreferredLocations(),
	}, nil
}

func (s *StudentService) mutate(
	ctx context.Context,
	id uuid.UUID,
	apply func(student.Student) (student.Student, error),
) (student.Student, error) {
	return composables.InTxResult(ctx, func(txCtx context.Context) (student.Student, error) {
		st, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			return student.Student{}, err
		}
		next, err := apply(st)
		if err != nil {
			return student.Student{}, err
		}
		if err := s.repo.Update(txCtx, next); err != nil {
			return student.Student{}, err
		}
		return next, nil
	})
}
