package services

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/campusops/placement/modules/placement/domain/aggregates/assignment"
	"github.com/campusops/placement/modules/placement/domain/aggregates/batch"
	"github.com/campusops/placement/pkg/composables"
	"github.com/campusops/placement/pkg/eventbus"
	"github.com/campusops/placement/pkg/serrors"
)

var ErrEmptyBatchName = serrors.NewError("validation_error", "batch name must not be empty", "")

// MembershipError is one per-item failure from AddStudents. The remaining
// items are still applied.
type MembershipError struct {
	AssignmentID uuid.UUID
	Err          error
}

// BatchService owns the batch state machine and orchestrates membership
// against the capacity ledger.
type BatchService struct {
	batches     batch.Repository
	assignments assignment.Repository
	ledger      *LedgerService
	publisher   eventbus.EventBus
}

func NewBatchService(
	batches batch.Repository,
	assignments assignment.Repository,
	ledger *LedgerService,
	publisher eventbus.EventBus,
) *BatchService {
	return &BatchService{
		batches:     batches,
		assignments: assignments,
		ledger:      ledger,
		publisher:   publisher,
	}
}

func (s *BatchService) GetByID(ctx context.Context, id uuid.UUID) (batch.Batch, error) {
	return s.batches.GetByID(ctx, id)
}

func (s *BatchService) GetPaginated(ctx context.Context, params *batch.FindParams) ([]batch.Batch, int64, error) {
	return s.batches.GetPaginated(ctx, params)
}

func (s *BatchService) Create(ctx context.Context, name string, programFilter *uuid.UUID) (batch.Batch, error) {
	if strings.TrimSpace(name) == "" {
		return batch.Batch{}, ErrEmptyBatchName
	}
	created, err := s.batches.Create(ctx, batch.New(name, programFilter))
	if err != nil {
		return batch.Batch{}, err
	}
	s.publisher.Publish(batch.CreatedEvent{Result: created})
	return created, nil
}

// AddStudents attaches assignments to the batch. Items failing program or
// membership validation are reported individually; the rest go through.
func (s *BatchService) AddStudents(ctx context.Context, batchID uuid.UUID, assignmentIDs []uuid.UUID) (batch.Batch, []MembershipError, error) {
	var itemErrs []MembershipError
	var added []uuid.UUID

	updated, err := composables.InTxResult(ctx, func(txCtx context.Context) (batch.Batch, error) {
		b, err := s.batches.GetByID(txCtx, batchID)
		if err != nil {
			return batch.Batch{}, err
		}
		if !b.Mutable() {
			if b.Status() == batch.StatusArchived {
				return batch.Batch{}, batch.ErrArchived.WithDetails("batch %s", b.ID())
			}
			return batch.Batch{}, batch.ErrNotMutable.WithDetails("batch %s is %s", b.ID(), b.Status())
		}

		for _, id := range assignmentIDs {
			a, err := s.assignments.GetByID(txCtx, id)
			if err != nil {
				itemErrs = append(itemErrs, MembershipError{AssignmentID: id, Err: err})
				continue
			}
			if !b.AcceptsProgram(a.ProgramID()) {
				itemErrs = append(itemErrs, MembershipError{
					AssignmentID: id,
					Err:          batch.ErrProgramMismatch.WithDetails("assignment %s program %s", a.ID(), a.ProgramID()),
				})
				continue
			}
			attached, err := a.AttachToBatch(b.ID())
			if err != nil {
				itemErrs = append(itemErrs, MembershipError{AssignmentID: id, Err: err})
				continue
			}
			if _, err := s.assignments.Update(txCtx, attached); err != nil {
				return batch.Batch{}, err
			}
			b, err = b.AddMember(id)
			if err != nil {
				return batch.Batch{}, err
			}
			added = append(added, id)
		}
		return s.batches.Update(txCtx, b)
	})
	if err != nil {
		return batch.Batch{}, nil, err
	}

	if len(added) > 0 {
		s.publisher.Publish(batch.MembersAddedEvent{BatchID: updated.ID(), AssignmentIDs: added})
	}
	return updated, itemErrs, nil
}

// RemoveStudent releases the assignment's capacity spot when one is held,
// then retires the record and detaches it from the batch.
func (s *BatchService) RemoveStudent(ctx context.Context, batchID, assignmentID uuid.UUID) (batch.Batch, error) {
	released := false
	updated, err := composables.InTxResult(ctx, func(txCtx context.Context) (batch.Batch, error) {
		b, err := s.batches.GetByID(txCtx, batchID)
		if err != nil {
			return batch.Batch{}, err
		}
		// reject before touching the ledger; a late ErrArchived from
		// RemoveMember would leave the release applied on non-SQL repositories
		if b.Status() == batch.StatusArchived {
			return batch.Batch{}, batch.ErrArchived.WithDetails("batch %s", b.ID())
		}
		a, err := s.assignments.GetByID(txCtx, assignmentID)
		if err != nil {
			return batch.Batch{}, err
		}
		if !b.HasMember(assignmentID) {
			return batch.Batch{}, batch.ErrNotMember.WithDetails("assignment %s in batch %s", assignmentID, batchID)
		}

		if a.Status() == assignment.StatusAssigned {
			if key := a.AssignedWindow(); key != nil {
				if _, err := s.ledger.Release(txCtx, *key, 1); err != nil {
					return batch.Batch{}, err
				}
				released = true
			}
		}

		removed, err := a.Remove()
		if err != nil {
			return batch.Batch{}, err
		}
		if _, err := s.assignments.Update(txCtx, removed); err != nil {
			return batch.Batch{}, err
		}

		b, err = b.RemoveMember(assignmentID)
		if err != nil {
			return batch.Batch{}, err
		}
		return s.batches.Update(txCtx, b)
	})
	if err != nil {
		return batch.Batch{}, err
	}

	s.publisher.Publish(batch.MemberRemovedEvent{
		BatchID:      updated.ID(),
		AssignmentID: assignmentID,
		Released:     released,
	})
	return updated, nil
}

// Transition moves the batch one step forward. Completing requires that no
// member is still waiting on a placement.
func (s *BatchService) Transition(ctx context.Context, batchID uuid.UUID, to batch.Status) (batch.Batch, error) {
	var from batch.Status
	updated, err := composables.InTxResult(ctx, func(txCtx context.Context) (batch.Batch, error) {
		b, err := s.batches.GetByID(txCtx, batchID)
		if err != nil {
			return batch.Batch{}, err
		}
		from = b.Status()

		if to == batch.StatusCompleted {
			members, err := s.assignments.GetByIDs(txCtx, b.MemberIDs())
			if err != nil {
				return batch.Batch{}, err
			}
			for _, a := range members {
				if a.Status() != assignment.StatusAssigned && a.Status() != assignment.StatusRemoved {
					return batch.Batch{}, batch.ErrMembersPending.WithDetails(
						"assignment %s is %s", a.ID(), a.Status())
				}
			}
		}

		b, err = b.Transition(to)
		if err != nil {
			return batch.Batch{}, err
		}
		return s.batches.Update(txCtx, b)
	})
	if err != nil {
		return batch.Batch{}, err
	}

	s.publisher.Publish(batch.TransitionedEvent{BatchID: updated.ID(), From: from, To: to})
	return updated, nil
}
