package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/campusops/placement/modules/placement/domain/eligibility"
)

// SiteProfile is the read-only scoring input supplied by the site registry
// for one (site, program) pair.
type SiteProfile struct {
	SiteID   uuid.UUID
	Name     string
	Location string
	// SuccessRate is the historical placement success rate in [0,1].
	SuccessRate float64
	// LastAssignedAt is zero when the site never received an assignment.
	LastAssignedAt time.Time
}

// StudentDirectory supplies student snapshots for eligibility checks.
type StudentDirectory interface {
	Profile(ctx context.Context, studentID uuid.UUID) (eligibility.StudentProfile, error)
}

// SiteRegistry supplies site metadata for suggestion scoring.
type SiteRegistry interface {
	Profile(ctx context.Context, siteID, programID uuid.UUID) (SiteProfile, error)
}
