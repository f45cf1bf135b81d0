package student

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/campusops/placement/pkg/serrors"
)

var (
	ErrNotFound    = serrors.NewError("student_not_found", "student not found", "")
	ErrHoldExists  = serrors.NewError("hold_exists", "student already carries this hold", "")
	ErrHoldMissing = serrors.NewError("hold_missing", "student does not carry this hold", "")
)

// Student is the enrollment snapshot consulted during eligibility checks.
// Holds are free-form markers (unpaid fees, missing prerequisite) that block
// placement until resolved.
type Student struct {
	id                 uuid.UUID
	programID          uuid.UUID
	displayName        string
	holds              []string
	preferredLocations []string
	createdAt          time.Time
	updatedAt          time.Time
}

func New(programID uuid.UUID, displayName string) Student {
	return Student{
		id:          uuid.New(),
		programID:   programID,
		displayName: strings.TrimSpace(displayName),
	}
}

func Hydrate(
	id uuid.UUID,
	programID uuid.UUID,
	displayName string,
	holds []string,
	preferredLocations []string,
	createdAt time.Time,
	updatedAt time.Time,
) Student {
	return Student{
		id:                 id,
		programID:          programID,
		displayName:        strings.TrimSpace(displayName),
		holds:              slices.Clone(holds),
		preferredLocations: slices.Clone(preferredLocations),
		createdAt:          createdAt,
		updatedAt:          updatedAt,
	}
}

func (s Student) ID() uuid.UUID        { return s.id }
func (s Student) ProgramID() uuid.UUID { return s.programID }
func (s Student) DisplayName() string  { return s.displayName }
func (s Student) CreatedAt() time.Time { return s.createdAt }
func (s Student) UpdatedAt() time.Time { return s.updatedAt }
func (s Student) IsZero() bool         { return s.id == uuid.Nil }

func (s Student) Holds() []string {
	return slices.Clone(s.holds)
}

func (s Student) PreferredLocations() []string {
	return slices.Clone(s.preferredLocations)
}

func (s Student) HasHold(hold string) bool {
	return slices.Contains(s.holds, normalizeHold(hold))
}

func (s Student) AddHold(hold string) (Student, error) {
	hold = normalizeHold(hold)
	if slices.Contains(s.holds, hold) {
		return s, ErrHoldExists.WithDetails("hold %q", hold)
	}
	s.holds = append(slices.Clone(s.holds), hold)
	return s, nil
}

func (s Student) ResolveHold(hold string) (Student, error) {
	hold = normalizeHold(hold)
	idx := slices.Index(s.holds, hold)
	if idx < 0 {
		return s, ErrHoldMissing.WithDetails("hold %q", hold)
	}
	s.holds = slices.Delete(slices.Clone(s.holds), idx, idx+1)
	return s, nil
}

func (s Student) SetPreferredLocations(locations []string) Student {
	cleaned := make([]string, 0, len(locations))
	for _, loc := range locations {
		if loc = strings.TrimSpace(loc); loc != "" {
			cleaned = append(cleaned, loc)
		}
	}
	s.preferredLocations = cleaned
	return s
}

func normalizeHold(v string) string { return strings.ToLower(strings.TrimSpace(v)) }
