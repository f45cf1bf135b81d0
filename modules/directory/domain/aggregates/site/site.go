package site

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/campusops/placement/pkg/serrors"
)

var ErrNotFound = serrors.NewError("site_not_found", "site not found", "")

// Site is a host organization offering placements.
type Site struct {
	id        uuid.UUID
	name      string
	location  string
	createdAt time.Time
	updatedAt time.Time
}

func New(name, location string) Site {
	return Site{
		id:       uuid.New(),
		name:     strings.TrimSpace(name),
		location: strings.TrimSpace(location),
	}
}

func Hydrate(id uuid.UUID, name, location string, createdAt, updatedAt time.Time) Site {
	return Site{
		id:        id,
		name:      strings.TrimSpace(name),
		location:  strings.TrimSpace(location),
		createdAt: createdAt,
		updatedAt: updatedAt,
	}
}

func (s Site) ID() uuid.UUID        { return s.id }
func (s Site) Name() string         { return s.name }
func (s Site) Location() string     { return s.location }
func (s Site) CreatedAt() time.Time { return s.createdAt }
func (s Site) UpdatedAt() time.Time { return s.updatedAt }
func (s Site) IsZero() bool         { return s.id == uuid.Nil }

// ProgramStats is the per-program placement history that feeds suggestion
// scoring. SuccessRate is neutral until the site has any history.
type ProgramStats struct {
	SiteID         uuid.UUID
	ProgramID      uuid.UUID
	Placements     int
	Completions    int
	LastAssignedAt time.Time
}

func (s ProgramStats) SuccessRate() float64 {
	if s.Placements == 0 {
		return 0.5
	}
	return float64(s.Completions) / float64(s.Placements)
}

func (s ProgramStats) RecordPlacement(at time.Time) ProgramStats {
	s.Placements++
	if at.After(s.LastAssignedAt) {
		s.LastAssignedAt = at
	}
	return s
}

func (s ProgramStats) RecordCompletion() ProgramStats {
	s.Completions++
	return s
}
