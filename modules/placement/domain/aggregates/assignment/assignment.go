package assignment

import (
	"time"

	"github.com/google/uuid"

	"github.com/campusops/placement/modules/placement/domain/aggregates/capacity"
	"github.com/campusops/placement/pkg/serrors"
)

var (
	ErrNotFound            = serrors.NewError("assignment_not_found", "assignment not found", "")
	ErrAlreadyAssigned     = serrors.NewError("already_assigned", "assignment already holds a site", "")
	ErrInvalidStatus       = serrors.NewError("invalid_assignment_status", "operation not allowed in current status", "")
	ErrRemoved             = serrors.NewError("assignment_removed", "assignment is removed and retained for audit only", "")
	ErrConcurrencyConflict = serrors.NewError("assignment_conflict", "assignment was modified concurrently", "")
)

type Status string

const (
	StatusUnassigned Status = "unassigned"
	StatusSuggested  Status = "suggested"
	StatusAssigned   Status = "assigned"
	StatusCompleted  Status = "completed"
	StatusRemoved    Status = "removed"
)

// Assignment is one student's placement record. Rows are never deleted;
// removed is terminal but retained. Domain operations never bump the version;
// the repository's conditional write owns the increment.
type Assignment struct {
	id             uuid.UUID
	studentID      uuid.UUID
	programID      uuid.UUID
	status         Status
	assignedWindow *capacity.WindowKey
	batchID        *uuid.UUID
	version        int64
	createdAt      time.Time
	updatedAt      time.Time
}

func New(studentID, programID uuid.UUID) Assignment {
	return Assignment{
		id:        uuid.New(),
		studentID: studentID,
		programID: programID,
		status:    StatusUnassigned,
		version:   1,
	}
}

func Hydrate(
	id uuid.UUID,
	studentID uuid.UUID,
	programID uuid.UUID,
	status Status,
	assignedWindow *capacity.WindowKey,
	batchID *uuid.UUID,
	version int64,
	createdAt time.Time,
	updatedAt time.Time,
) Assignment {
	return Assignment{
		id:             id,
		studentID:      studentID,
		programID:      programID,
		status:         status,
		assignedWindow: assignedWindow,
		batchID:        batchID,
		version:        version,
		createdAt:      createdAt,
		updatedAt:      updatedAt,
	}
}

func (a Assignment) ID() uuid.UUID         { return a.id }
func (a Assignment) StudentID() uuid.UUID  { return a.studentID }
func (a Assignment) ProgramID() uuid.UUID  { return a.programID }
func (a Assignment) Status() Status        { return a.status }
func (a Assignment) BatchID() *uuid.UUID   { return a.batchID }
func (a Assignment) Version() int64        { return a.version }
func (a Assignment) CreatedAt() time.Time  { return a.createdAt }
func (a Assignment) UpdatedAt() time.Time  { return a.updatedAt }
func (a Assignment) IsZero() bool          { return a.id == uuid.Nil }

func (a Assignment) AssignedWindow() *capacity.WindowKey {
	if a.assignedWindow == nil {
		return nil
	}
	k := *a.assignedWindow
	return &k
}

func (a Assignment) AssignedSiteID() *uuid.UUID {
	if a.assignedWindow == nil {
		return nil
	}
	id := a.assignedWindow.SiteID
	return &id
}

// Assignable reports whether the record may take part in suggestion and
// execution flows.
func (a Assignment) Assignable() bool {
	return a.status == StatusUnassigned || a.status == StatusSuggested
}

// Assign commits the record to a capacity window. Re-assigning the same site
// is an idempotent no-op surfaced as ErrAlreadyAssigned; a different site
// must be explicitly unassigned first.
func (a Assignment) Assign(key capacity.WindowKey) (Assignment, error) {
	if a.status == StatusAssigned && a.assignedWindow != nil {
		if a.assignedWindow.SiteID == key.SiteID {
			return a, ErrAlreadyAssigned.WithDetails("assignment %s already on site %s", a.id, key.SiteID)
		}
		return Assignment{}, ErrInvalidStatus.WithDetails("assignment %s is assigned to site %s", a.id, a.assignedWindow.SiteID)
	}
	if !a.Assignable() {
		return Assignment{}, ErrInvalidStatus.WithDetails("assignment %s is %s", a.id, a.status)
	}
	a.status = StatusAssigned
	a.assignedWindow = &key
	return a, nil
}

func (a Assignment) MarkSuggested() (Assignment, error) {
	if a.status != StatusUnassigned && a.status != StatusSuggested {
		return Assignment{}, ErrInvalidStatus.WithDetails("assignment %s is %s", a.id, a.status)
	}
	a.status = StatusSuggested
	return a, nil
}

// Remove ends the record's lifecycle and detaches it from its batch. The row
// stays for audit.
func (a Assignment) Remove() (Assignment, error) {
	if a.status == StatusRemoved {
		return Assignment{}, ErrRemoved.WithDetails("assignment %s", a.id)
	}
	a.status = StatusRemoved
	a.assignedWindow = nil
	a.batchID = nil
	return a, nil
}

func (a Assignment) Complete() (Assignment, error) {
	if a.status != StatusAssigned {
		return Assignment{}, ErrInvalidStatus.WithDetails("assignment %s is %s", a.id, a.status)
	}
	a.status = StatusCompleted
	return a, nil
}

// AttachToBatch enforces the at-most-one-active-batch rule.
func (a Assignment) AttachToBatch(batchID uuid.UUID) (Assignment, error) {
	if a.batchID != nil && *a.batchID != batchID {
		return Assignment{}, ErrInvalidStatus.WithDetails("assignment %s already belongs to batch %s", a.id, *a.batchID)
	}
	a.batchID = &batchID
	return a, nil
}
