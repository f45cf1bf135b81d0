package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/campusops/placement/modules/placement/domain/aggregates/assignment"
	"github.com/campusops/placement/modules/placement/domain/aggregates/batch"
	"github.com/campusops/placement/modules/placement/domain/aggregates/capacity"
	"github.com/campusops/placement/modules/placement/domain/aggregates/execution"
	"github.com/campusops/placement/modules/placement/domain/eligibility"
	"github.com/campusops/placement/pkg/composables"
	"github.com/campusops/placement/pkg/eventbus"
	"github.com/campusops/placement/pkg/serrors"
)

var ErrInvalidMode = serrors.NewError("invalid_execution_mode", "execution mode must be atomic or best_effort", "")

// ExecutionPair is one (assignment, window) selection handed to the executor,
// from accepted suggestions or manual override.
type ExecutionPair struct {
	AssignmentID uuid.UUID
	Window       capacity.WindowKey
}

// ExecutionService runs the validate, reserve, commit protocol per pair.
// Pairs are processed in assignment-id order regardless of input order so two
// concurrent calls contending for the same windows cannot deadlock each other.
type ExecutionService struct {
	batches     batch.Repository
	assignments assignment.Repository
	windows     capacity.Repository
	ledger      *LedgerService
	results     execution.Repository
	students    StudentDirectory
	publisher   eventbus.EventBus
}

func NewExecutionService(
	batches batch.Repository,
	assignments assignment.Repository,
	windows capacity.Repository,
	ledger *LedgerService,
	results execution.Repository,
	students StudentDirectory,
	publisher eventbus.EventBus,
) *ExecutionService {
	return &ExecutionService{
		batches:     batches,
		assignments: assignments,
		windows:     windows,
		ledger:      ledger,
		results:     results,
		students:    students,
		publisher:   publisher,
	}
}

// pairState tracks what a single pair did so atomic mode can compensate.
type pairState struct {
	pair     ExecutionPair
	outcome  execution.Outcome
	reason   string
	reserved bool
	// prior holds the assignment as it was before the commit, for rollback.
	prior     assignment.Assignment
	committed bool
}

func (s *ExecutionService) Execute(ctx context.Context, batchID uuid.UUID, pairs []ExecutionPair, mode execution.Mode) ([]execution.Result, error) {
	if mode == "" {
		mode = execution.ModeBestEffort
	}
	if !execution.ValidMode(mode) {
		return nil, ErrInvalidMode.WithDetails("mode %q", mode)
	}

	b, err := s.batches.GetByID(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if b.Status() != batch.StatusActive {
		return nil, batch.ErrNotActive.WithDetails("batch %s is %s", b.ID(), b.Status())
	}

	ordered := make([]ExecutionPair, len(pairs))
	copy(ordered, pairs)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].AssignmentID.String() < ordered[j].AssignmentID.String()
	})

	states := make([]*pairState, 0, len(ordered))
	var failed *pairState
	var cancelled error
	for i, p := range ordered {
		// cooperative cancellation between pairs; committed pairs stay
		if err := ctx.Err(); err != nil {
			cancelled = err
			break
		}
		st := s.executePair(ctx, b, p)
		states = append(states, st)
		if mode == execution.ModeAtomic &&
			st.outcome != execution.OutcomeCommitted &&
			st.outcome != execution.OutcomeAlreadyAssigned {
			failed = st
			// remaining pairs still get reported, with the root cause
			for _, rest := range ordered[i+1:] {
				states = append(states, &pairState{pair: rest})
			}
			break
		}
	}

	if mode == execution.ModeAtomic && failed != nil {
		if err := s.compensate(ctx, states); err != nil {
			return nil, err
		}
		rootOutcome, rootReason := failed.outcome, failed.reason
		for _, st := range states {
			st.outcome = rootOutcome
			st.reason = fmt.Sprintf("atomic execution aborted: %s", rootReason)
		}
	}

	results, err := s.persistResults(ctx, b.ID(), states)
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(execution.CompletedEvent{
		BatchID: b.ID(),
		Mode:    mode,
		Results: results,
	})
	if cancelled != nil {
		return results, cancelled
	}
	return results, nil
}

func (s *ExecutionService) ListByBatch(ctx context.Context, batchID uuid.UUID) ([]execution.Result, error) {
	if _, err := s.batches.GetByID(ctx, batchID); err != nil {
		return nil, err
	}
	return s.results.ListByBatch(ctx, batchID)
}

// executePair runs validate, reserve, commit for one pair. Business failures
// land in the state's outcome; the pair never aborts its siblings here.
func (s *ExecutionService) executePair(ctx context.Context, b batch.Batch, p ExecutionPair) *pairState {
	st := &pairState{pair: p}
	now := time.Now().UTC()

	a, err := s.assignments.GetByID(ctx, p.AssignmentID)
	if err != nil {
		st.outcome = execution.OutcomeValidationError
		st.reason = fmt.Sprintf("assignment %s not found", p.AssignmentID)
		return st
	}
	st.prior = a

	if !b.HasMember(a.ID()) {
		st.outcome = execution.OutcomeValidationError
		st.reason = fmt.Sprintf("assignment %s is not a member of batch %s", a.ID(), b.ID())
		return st
	}

	// idempotent retry: same site is a no-op, different site must be
	// unassigned first
	if a.Status() == assignment.StatusAssigned {
		if site := a.AssignedSiteID(); site != nil && *site == p.Window.SiteID {
			st.outcome = execution.OutcomeAlreadyAssigned
			st.reason = "assignment already committed to this site"
			return st
		}
		st.outcome = execution.OutcomeValidationError
		st.reason = "assignment is committed to a different site"
		return st
	}
	if !a.Assignable() {
		st.outcome = execution.OutcomeValidationError
		st.reason = fmt.Sprintf("assignment is %s", a.Status())
		return st
	}

	w, err := s.windows.GetByKey(ctx, p.Window)
	if err != nil {
		st.outcome = execution.OutcomeValidationError
		st.reason = fmt.Sprintf("capacity window %s not found", p.Window)
		return st
	}

	// validate on the current snapshot, immediately before reserving;
	// suggestions may be stale by now
	student, err := s.students.Profile(ctx, a.StudentID())
	if err != nil {
		st.outcome = execution.OutcomeValidationError
		st.reason = fmt.Sprintf("student %s not found", a.StudentID())
		return st
	}
	if elig := eligibility.Check(student, w, now); !elig.Eligible {
		st.outcome = execution.OutcomeStaleEligibility
		st.reason = fmt.Sprintf("no longer eligible: %s", elig.Reasons[0])
		return st
	}

	if _, err := s.ledger.Reserve(ctx, p.Window, 1); err != nil {
		switch {
		case errors.Is(err, capacity.ErrInsufficientCapacity):
			st.outcome = execution.OutcomeInsufficientCapacity
			st.reason = "window exhausted"
		case errors.Is(err, capacity.ErrConcurrencyConflict):
			// retry budget ran out; retryable by the caller
			st.outcome = execution.OutcomeInsufficientCapacity
			st.reason = "concurrent contention on window, retry"
		default:
			st.outcome = execution.OutcomeValidationError
			st.reason = err.Error()
		}
		return st
	}
	st.reserved = true

	assigned, err := a.Assign(p.Window)
	if err != nil {
		s.releaseQuietly(ctx, p.Window)
		st.reserved = false
		st.outcome = execution.OutcomeValidationError
		st.reason = err.Error()
		return st
	}
	updated, err := s.assignments.Update(ctx, assigned)
	if err != nil {
		s.releaseQuietly(ctx, p.Window)
		st.reserved = false
		if errors.Is(err, assignment.ErrConcurrencyConflict) {
			// a concurrent caller committed this assignment first; the
			// reservation is returned, so no spot leaks
			st.outcome = execution.OutcomeInsufficientCapacity
			st.reason = "assignment modified concurrently, retry"
		} else {
			st.outcome = execution.OutcomeValidationError
			st.reason = fmt.Sprintf("commit failed: %v", err)
		}
		return st
	}
	// rollback writes the pre-commit fields under the committed row's version
	st.prior = revertSnapshot(st.prior, updated.Version())
	st.committed = true
	st.outcome = execution.OutcomeCommitted
	return st
}

func revertSnapshot(prior assignment.Assignment, version int64) assignment.Assignment {
	return assignment.Hydrate(
		prior.ID(), prior.StudentID(), prior.ProgramID(), prior.Status(),
		prior.AssignedWindow(), prior.BatchID(), version,
		prior.CreatedAt(), prior.UpdatedAt(),
	)
}

// compensate releases every reservation and reverts every assignment commit
// made within this executor call.
func (s *ExecutionService) compensate(ctx context.Context, states []*pairState) error {
	for _, st := range states {
		if st.committed {
			if _, err := s.assignments.Update(ctx, st.prior); err != nil {
				return err
			}
			st.committed = false
		}
		if st.reserved {
			if _, err := s.ledger.Release(ctx, st.pair.Window, 1); err != nil && !errors.Is(err, capacity.ErrWindowHalted) {
				return err
			}
			st.reserved = false
		}
	}
	return nil
}

func (s *ExecutionService) persistResults(ctx context.Context, batchID uuid.UUID, states []*pairState) ([]execution.Result, error) {
	actor := composables.UseActor(ctx)
	now := time.Now().UTC()
	return composables.InTxResult(ctx, func(txCtx context.Context) ([]execution.Result, error) {
		out := make([]execution.Result, 0, len(states))
		for _, st := range states {
			r := execution.New(batchID, st.pair.AssignmentID, st.pair.Window, st.outcome, st.reason, actor, now)
			stored, err := s.results.Append(txCtx, r)
			if err != nil {
				return nil, err
			}
			out = append(out, stored)
		}
		return out, nil
	})
}

func (s *ExecutionService) releaseQuietly(ctx context.Context, key capacity.WindowKey) {
	if _, err := s.ledger.Release(ctx, key, 1); err != nil {
		composables.UseLogger(ctx).
			WithField("window", key.String()).
			WithError(err).
			Error("failed to release reservation after aborted commit")
	}
}
