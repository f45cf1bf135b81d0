package execution

import (
	"time"

	"github.com/google/uuid"

	"github.com/campusops/placement/modules/placement/domain/aggregates/capacity"
)

type Outcome string

const (
	OutcomeCommitted            Outcome = "committed"
	OutcomeInsufficientCapacity Outcome = "insufficient_capacity"
	OutcomeStaleEligibility     Outcome = "stale_eligibility"
	OutcomeAlreadyAssigned      Outcome = "already_assigned"
	OutcomeValidationError      Outcome = "validation_error"
)

type Mode string

const (
	ModeAtomic     Mode = "atomic"
	ModeBestEffort Mode = "best_effort"
)

func ValidMode(m Mode) bool {
	return m == ModeAtomic || m == ModeBestEffort
}

// Result is one per-pair execution outcome. Rows are the audit trail of every
// assignment attempt, committed or not.
type Result struct {
	id           uuid.UUID
	batchID      uuid.UUID
	assignmentID uuid.UUID
	window       capacity.WindowKey
	outcome      Outcome
	reason       string
	actor        string
	occurredAt   time.Time
}

func New(batchID, assignmentID uuid.UUID, window capacity.WindowKey, outcome Outcome, reason, actor string, occurredAt time.Time) Result {
	return Result{
		id:           uuid.New(),
		batchID:      batchID,
		assignmentID: assignmentID,
		window:       window,
		outcome:      outcome,
		reason:       reason,
		actor:        actor,
		occurredAt:   occurredAt,
	}
}

func Hydrate(
	id uuid.UUID,
	batchID uuid.UUID,
	assignmentID uuid.UUID,
	window capacity.WindowKey,
	outcome Outcome,
	reason string,
	actor string,
	occurredAt time.Time,
) Result {
	return Result{
		id:           id,
		batchID:      batchID,
		assignmentID: assignmentID,
		window:       window,
		outcome:      outcome,
		reason:       reason,
		actor:        actor,
		occurredAt:   occurredAt,
	}
}

func (r Result) ID() uuid.UUID              { return r.id }
func (r Result) BatchID() uuid.UUID         { return r.batchID }
func (r Result) AssignmentID() uuid.UUID    { return r.assignmentID }
func (r Result) Window() capacity.WindowKey { return r.window }
func (r Result) Outcome() Outcome           { return r.outcome }
func (r Result) Reason() string             { return r.reason }
func (r Result) Actor() string              { return r.actor }
func (r Result) OccurredAt() time.Time      { return r.occurredAt }

// Failed reports whether the outcome needs caller attention. already_assigned
// is an idempotent no-op, not a failure.
func (r Result) Failed() bool {
	return r.outcome != OutcomeCommitted && r.outcome != OutcomeAlreadyAssigned
}
