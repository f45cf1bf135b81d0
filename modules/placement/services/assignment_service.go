package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/campusops/placement/modules/placement/domain/aggregates/assignment"
	"github.com/campusops/placement/pkg/eventbus"
)

// AssignmentService maintains the unassigned pool. Records enter it when a
// student becomes placeable and are never deleted afterwards.
type AssignmentService struct {
	repo      assignment.Repository
	students  StudentDirectory
	publisher eventbus.EventBus
}

func NewAssignmentService(repo assignment.Repository, students StudentDirectory, publisher eventbus.EventBus) *AssignmentService {
	return &AssignmentService{
		repo:      repo,
		students:  students,
		publisher: publisher,
	}
}

func (s *AssignmentService) GetByID(ctx context.Context, id uuid.UUID) (assignment.Assignment, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *AssignmentService) ListByBatch(ctx context.Context, batchID uuid.UUID) ([]assignment.Assignment, error) {
	return s.repo.ListByBatch(ctx, batchID)
}

// EnterPool creates an unassigned record for the student, with the program
// taken from the directory snapshot.
func (s *AssignmentService) EnterPool(ctx context.Context, studentID uuid.UUID) (assignment.Assignment, error) {
	student, err := s.students.Profile(ctx, studentID)
	if err != nil {
		return assignment.Assignment{}, err
	}
	created, err := s.repo.Create(ctx, assignment.New(student.StudentID, student.ProgramID))
	if err != nil {
		return assignment.Assignment{}, err
	}
	s.publisher.Publish(assignment.CreatedEvent{Result: created})
	return created, nil
}
