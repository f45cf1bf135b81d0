package batch

import (
	"github.com/google/uuid"
)

type CreatedEvent struct {
	Result Batch
}

type TransitionedEvent struct {
	BatchID uuid.UUID
	From    Status
	To      Status
}

type MembersAddedEvent struct {
	BatchID       uuid.UUID
	AssignmentIDs []uuid.UUID
}

type MemberRemovedEvent struct {
	BatchID      uuid.UUID
	AssignmentID uuid.UUID
	// Released reports whether a capacity spot was returned as part of the
	// removal.
	Released bool
}
