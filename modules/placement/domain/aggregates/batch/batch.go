package batch

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/campusops/placement/pkg/serrors"
)

var (
	ErrNotFound          = serrors.NewError("batch_not_found", "batch not found", "")
	ErrInvalidTransition = serrors.NewError("invalid_batch_transition", "batch status transition not allowed", "")
	ErrArchived          = serrors.NewError("batch_archived", "archived batches are read only", "")
	ErrNotMutable        = serrors.NewError("batch_not_mutable", "batch membership can only change in draft or active", "")
	ErrProgramMismatch   = serrors.NewError("program_mismatch", "assignment program does not match batch filter", "")
	ErrNotMember         = serrors.NewError("not_a_member", "assignment is not a member of this batch", "")
	ErrMembersPending    = serrors.NewError("members_pending", "batch has members that are neither assigned nor removed", "")
	ErrNotActive         = serrors.NewError("batch_not_active", "batch must be active to execute assignments", "")
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusArchived  Status = "archived"
)

// next holds the single permitted forward step per status. No skips, no
// backward moves.
var next = map[Status]Status{
	StatusDraft:     StatusActive,
	StatusActive:    StatusCompleted,
	StatusCompleted: StatusArchived,
}

type Batch struct {
	id            uuid.UUID
	name          string
	programFilter *uuid.UUID
	status        Status
	memberIDs     map[uuid.UUID]struct{}
	createdAt     time.Time
	updatedAt     time.Time
}

func New(name string, programFilter *uuid.UUID) Batch {
	return Batch{
		id:            uuid.New(),
		name:          strings.TrimSpace(name),
		programFilter: programFilter,
		status:        StatusDraft,
		memberIDs:     map[uuid.UUID]struct{}{},
	}
}

func Hydrate(
	id uuid.UUID,
	name string,
	programFilter *uuid.UUID,
	status Status,
	memberIDs []uuid.UUID,
	createdAt time.Time,
	updatedAt time.Time,
) Batch {
	members := make(map[uuid.UUID]struct{}, len(memberIDs))
	for _, m := range memberIDs {
		members[m] = struct{}{}
	}
	return Batch{
		id:            id,
		name:          strings.TrimSpace(name),
		programFilter: programFilter,
		status:        status,
		memberIDs:     members,
		createdAt:     createdAt,
		updatedAt:     updatedAt,
	}
}

func (b Batch) ID() uuid.UUID        { return b.id }
func (b Batch) Name() string         { return b.name }
func (b Batch) Status() Status       { return b.status }
func (b Batch) CreatedAt() time.Time { return b.createdAt }
func (b Batch) UpdatedAt() time.Time { return b.updatedAt }
func (b Batch) IsZero() bool         { return b.id == uuid.Nil }

func (b Batch) ProgramFilter() *uuid.UUID {
	if b.programFilter == nil {
		return nil
	}
	id := *b.programFilter
	return &id
}

// MemberIDs returns the membership sorted by assignment id for deterministic
// iteration.
func (b Batch) MemberIDs() []uuid.UUID {
	out := make([]uuid.UUID, 0, len(b.memberIDs))
	for id := range b.memberIDs {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].String() < out[j].String()
	})
	return out
}

func (b Batch) HasMember(id uuid.UUID) bool {
	_, ok := b.memberIDs[id]
	return ok
}

func (b Batch) Mutable() bool {
	return b.status == StatusDraft || b.status == StatusActive
}

// AcceptsProgram reports whether an assignment with the given program may
// join this batch.
func (b Batch) AcceptsProgram(programID uuid.UUID) bool {
	return b.programFilter == nil || *b.programFilter == programID
}

func (b Batch) AddMember(assignmentID uuid.UUID) (Batch, error) {
	if b.status == StatusArchived {
		return Batch{}, ErrArchived.WithDetails("batch %s", b.id)
	}
	if !b.Mutable() {
		return Batch{}, ErrNotMutable.WithDetails("batch %s is %s", b.id, b.status)
	}
	b = b.cloneMembers()
	b.memberIDs[assignmentID] = struct{}{}
	return b, nil
}

func (b Batch) RemoveMember(assignmentID uuid.UUID) (Batch, error) {
	if b.status == StatusArchived {
		return Batch{}, ErrArchived.WithDetails("batch %s", b.id)
	}
	if !b.HasMember(assignmentID) {
		return Batch{}, ErrNotMember.WithDetails("assignment %s in batch %s", assignmentID, b.id)
	}
	b = b.cloneMembers()
	delete(b.memberIDs, assignmentID)
	return b, nil
}

// Transition moves the batch one step forward. The caller is responsible for
// checking member readiness before completing; see Service.Transition.
func (b Batch) Transition(to Status) (Batch, error) {
	if b.status == StatusArchived {
		return Batch{}, ErrArchived.WithDetails("batch %s", b.id)
	}
	if next[b.status] != to {
		return Batch{}, ErrInvalidTransition.WithDetails("batch %s: %s -> %s", b.id, b.status, to)
	}
	b = b.cloneMembers()
	b.status = to
	return b, nil
}

func (b Batch) cloneMembers() Batch {
	members := make(map[uuid.UUID]struct{}, len(b.memberIDs))
	for id := range b.memberIDs {
		members[id] = struct{}{}
	}
	b.memberIDs = members
	return b
}

func ValidStatus(s Status) bool {
	switch s {
	case StatusDraft, StatusActive, StatusCompleted, StatusArchived:
		return true
	}
	return false
}
