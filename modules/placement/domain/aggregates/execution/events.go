package execution

import (
	"time"

	"github.com/google/uuid"
)

// NotificationTopic is the outbox topic carrying per-result notifications.
const NotificationTopic = "placement.execution.result"

// Notification is the outbox payload persisted alongside each result. It is
// dispatched to the notification handler after the transaction commits.
type Notification struct {
	ResultID     uuid.UUID `json:"result_id"`
	BatchID      uuid.UUID `json:"batch_id"`
	AssignmentID uuid.UUID `json:"assignment_id"`
	SiteID       uuid.UUID `json:"site_id"`
	ProgramID    uuid.UUID `json:"program_id"`
	Outcome      Outcome   `json:"outcome"`
	Reason       string    `json:"reason,omitempty"`
	Actor        string    `json:"actor"`
	OccurredAt   time.Time `json:"occurred_at"`
}

func NewNotification(r Result) Notification {
	return Notification{
		ResultID:     r.ID(),
		BatchID:      r.BatchID(),
		AssignmentID: r.AssignmentID(),
		SiteID:       r.Window().SiteID,
		ProgramID:    r.Window().ProgramID,
		Outcome:      r.Outcome(),
		Reason:       r.Reason(),
		Actor:        r.Actor(),
		OccurredAt:   r.OccurredAt(),
	}
}

// CompletedEvent is published in-process after an executor call finishes.
type CompletedEvent struct {
	BatchID uuid.UUID
	Mode    Mode
	Results []Result
}
