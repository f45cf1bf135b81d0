package viewmodels

import "time"

type WindowKey struct {
	SiteID      string    `json:"site_id"`
	ProgramID   string    `json:"program_id"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
}

type Window struct {
	Key            WindowKey `json:"key"`
	MaxCapacity    int       `json:"max_capacity"`
	AvailableSpots int       `json:"available_spots"`
	Version        int64     `json:"version"`
	Halted         bool      `json:"halted"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type AuditEntry struct {
	Delta      int       `json:"delta"`
	Resulting  int       `json:"resulting"`
	Actor      string    `json:"actor"`
	OccurredAt time.Time `json:"occurred_at"`
}

type Batch struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Status        string    `json:"status"`
	ProgramFilter *string   `json:"program_filter,omitempty"`
	MemberIDs     []string  `json:"member_ids"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type Assignment struct {
	ID             string     `json:"id"`
	StudentID      string     `json:"student_id"`
	ProgramID      string     `json:"program_id"`
	Status         string     `json:"status"`
	BatchID        *string    `json:"batch_id,omitempty"`
	AssignedWindow *WindowKey `json:"assigned_window,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

type Candidate struct {
	Window   WindowKey `json:"window"`
	SiteName string    `json:"site_name"`
	Score    int       `json:"score"`
	Reasons  []string  `json:"reasons"`
}

type Exclusion struct {
	Window  WindowKey `json:"window"`
	Reasons []string  `json:"reasons"`
}

type Suggestion struct {
	AssignmentID string      `json:"assignment_id"`
	StudentID    string      `json:"student_id"`
	Candidates   []Candidate `json:"candidates"`
	Excluded     []Exclusion `json:"excluded"`
}

type ExecutionResult struct {
	ID           string    `json:"id"`
	BatchID      string    `json:"batch_id"`
	AssignmentID string    `json:"assignment_id"`
	Window       WindowKey `json:"window"`
	Outcome      string    `json:"outcome"`
	Reason       string    `json:"reason,omitempty"`
	Actor        string    `json:"actor"`
	OccurredAt   time.Time `json:"occurred_at"`
}

type MembershipError struct {
	AssignmentID string `json:"assignment_id"`
	Code         string `json:"code"`
	Message      string `json:"message"`
}
