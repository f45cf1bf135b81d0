package suggestion

import (
	"github.com/google/uuid"

	"github.com/campusops/placement/modules/placement/domain/aggregates/capacity"
)

// Candidate is one scored, eligible window for an assignment.
type Candidate struct {
	Window   capacity.Window
	SiteName string
	Score    int
	Reasons  []string
}

// Suggestion is a ranked recommendation for a single assignment. It is
// ephemeral output: generating it never consumes capacity, and it is
// re-validated at execution time.
type Suggestion struct {
	AssignmentID uuid.UUID
	StudentID    uuid.UUID
	Candidates   []Candidate
	Excluded     []Exclusion
}

// Exclusion retains why an ineligible window was dropped, for display.
type Exclusion struct {
	Window  capacity.WindowKey
	Reasons []string
}
