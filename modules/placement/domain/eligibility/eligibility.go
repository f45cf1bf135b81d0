package eligibility

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/campusops/placement/modules/placement/domain/aggregates/capacity"
)

// StudentProfile is the read-only snapshot supplied by the student directory.
type StudentProfile struct {
	StudentID          uuid.UUID
	ProgramID          uuid.UUID
	Holds              []string
	PreferredLocations []string
}

type Result struct {
	Eligible bool
	Reasons  []string
}

// Check decides whether the student may occupy the window. Pure function of
// its inputs so results are reproducible against the same snapshot.
func Check(student StudentProfile, w capacity.Window, now time.Time) Result {
	var reasons []string
	if student.ProgramID != w.Key().ProgramID {
		reasons = append(reasons, "enrolled program does not match window program")
	}
	if len(student.Holds) > 0 {
		reasons = append(reasons, fmt.Sprintf("outstanding prerequisite hold: %s", student.Holds[0]))
	}
	if w.Expired(now) {
		reasons = append(reasons, "placement period has ended")
	}
	return Result{
		Eligible: len(reasons) == 0,
		Reasons:  reasons,
	}
}
